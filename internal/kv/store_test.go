package kv

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	store, err := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}

func setupSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	store, err := NewSQLStore(db, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func forEachStore(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Run("redis", func(t *testing.T) {
		store, _ := setupRedisStore(t)
		fn(t, store)
	})
	t.Run("sql", func(t *testing.T) {
		fn(t, setupSQLStore(t))
	})
}

func TestStoreGetSetDelete(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		key := NewKey("rubrics", "r1")

		_, err := store.Get(ctx, key)
		require.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, store.Set(ctx, key, []byte(`{"name":"first"}`)))
		require.NoError(t, store.Set(ctx, key, []byte(`{"name":"second"}`)))

		value, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.JSONEq(t, `{"name":"second"}`, string(value))

		require.NoError(t, store.Delete(ctx, key))
		require.NoError(t, store.Delete(ctx, key), "deleting a missing key is not an error")

		_, err = store.Get(ctx, key)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStoreListByPrefixIsOrderedAndScoped(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, NewKey("rubrics", "by_project", "p1", "b"), []byte(`"b"`)))
		require.NoError(t, store.Set(ctx, NewKey("rubrics", "by_project", "p1", "a"), []byte(`"a"`)))
		require.NoError(t, store.Set(ctx, NewKey("rubrics", "by_project", "p10", "c"), []byte(`"c"`)))
		require.NoError(t, store.Set(ctx, NewKey("rubrics", "by_project", "P1", "d"), []byte(`"d"`)))
		require.NoError(t, store.Set(ctx, NewKey("rubrics", "by_project", "p1"), []byte(`"self"`)))
		require.NoError(t, store.Set(ctx, NewKey("rubrics", "a"), []byte(`"primary"`)))

		entries, err := store.List(ctx, NewKey("rubrics", "by_project", "p1"))
		require.NoError(t, err)
		require.Len(t, entries, 2)
		require.Equal(t, Key{"rubrics", "by_project", "p1", "a"}, entries[0].Key)
		require.Equal(t, Key{"rubrics", "by_project", "p1", "b"}, entries[1].Key)
		require.JSONEq(t, `"a"`, string(entries[0].Value))

		empty, err := store.List(ctx, NewKey("evaluations", "by_student", "s1"))
		require.NoError(t, err)
		require.Empty(t, empty)
	})
}

func TestStoreCommitAppliesAllOperations(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		require.NoError(t, store.Set(ctx, NewKey("rubrics", "templates", "old"), []byte(`"old"`)))

		batch := NewBatch().
			Set(NewKey("rubrics", "new"), []byte(`{"id":"new"}`)).
			Set(NewKey("rubrics", "templates", "new"), []byte(`"new"`)).
			Delete(NewKey("rubrics", "templates", "old"))
		require.NoError(t, store.Commit(ctx, batch))

		entries, err := store.List(ctx, NewKey("rubrics", "templates"))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, "new", entries[0].Key.Last())

		_, err = store.Get(ctx, NewKey("rubrics", "new"))
		require.NoError(t, err)

		require.NoError(t, store.Commit(ctx, NewBatch()))
		require.NoError(t, store.Ping(ctx))
	})
}

func TestStoreCommitIsAllOrNothing(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		kept := NewKey("rubrics", "templates", "kept")
		require.NoError(t, store.Set(ctx, kept, []byte(`"kept"`)))

		batch := NewBatch().
			Set(NewKey("rubrics", "r1"), []byte(`{"id":"r1"}`)).
			Delete(kept)
		batch.ops = append(batch.ops, Op{Kind: OpKind(99), Key: NewKey("rubrics", "by_creator", "u1", "r1")})

		err := store.Commit(ctx, batch)
		require.Error(t, err)
		require.Contains(t, err.Error(), "unknown batch operation 99")

		_, err = store.Get(ctx, NewKey("rubrics", "r1"))
		require.ErrorIs(t, err, ErrNotFound)

		value, err := store.Get(ctx, kept)
		require.NoError(t, err)
		require.JSONEq(t, `"kept"`, string(value))
	})
}

func TestSQLStoreMissDoesNotLog(t *testing.T) {
	var buf bytes.Buffer
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.New(log.New(&buf, "", 0), logger.Config{LogLevel: logger.Error}),
	})
	require.NoError(t, err)

	store, err := NewSQLStore(db, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.Get(context.Background(), NewKey("rubrics", "missing"))
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, buf.String())
}

func TestRedisStoreUsesNamespace(t *testing.T) {
	store, mr := setupRedisStore(t)
	require.NoError(t, store.Set(context.Background(), NewKey("rubrics", "r1"), []byte(`{}`)))

	value, err := mr.Get("test:rubrics:r1")
	require.NoError(t, err)
	require.Equal(t, `{}`, value)
}
