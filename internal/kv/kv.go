// Package kv defines the key-value store the rubric and evaluation repositories are built on.
//
// Keys are ordered tuples of segments, e.g. ["rubrics", id] for a primary record and
// ["rubrics", "by_project", projectID, id] for a secondary index entry. Listing by prefix
// returns entries ordered by key.
package kv

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kv: key not found")

const separator = ":"

// Key is a composite key made of ordered segments.
type Key []string

// NewKey builds a key from the supplied segments.
func NewKey(segments ...string) Key {
	return Key(segments)
}

// Append returns a new key with the extra segments appended. The receiver is not modified.
func (k Key) Append(segments ...string) Key {
	out := make(Key, 0, len(k)+len(segments))
	out = append(out, k...)
	return append(out, segments...)
}

// Last returns the final segment of the key, or an empty string for an empty key.
func (k Key) Last() string {
	if len(k) == 0 {
		return ""
	}
	return k[len(k)-1]
}

// String renders the encoded form of the key.
func (k Key) String() string {
	return encodeKey("", k)
}

// Entry is a key/value pair returned from a prefix listing.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is the persistent key-value collaborator used by the repositories.
type Store interface {
	Get(ctx context.Context, key Key) ([]byte, error)
	Set(ctx context.Context, key Key, value []byte) error
	Delete(ctx context.Context, key Key) error
	// List returns every entry strictly below prefix, ordered by key.
	List(ctx context.Context, prefix Key) ([]Entry, error)
	// Commit applies all operations of the batch. Backends with transactions apply them atomically.
	Commit(ctx context.Context, batch *Batch) error
	Ping(ctx context.Context) error
	Close() error
}

// OpKind enumerates batch operation kinds.
type OpKind int

const (
	// OpSet writes a value.
	OpSet OpKind = iota + 1
	// OpDelete removes a key.
	OpDelete
)

// Op is a single write inside a Batch.
type Op struct {
	Kind  OpKind
	Key   Key
	Value []byte
}

// Batch collects writes that belong together, such as a primary record and its index entries.
type Batch struct {
	ops []Op
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Set queues a write.
func (b *Batch) Set(key Key, value []byte) *Batch {
	b.ops = append(b.ops, Op{Kind: OpSet, Key: key, Value: value})
	return b
}

// Delete queues a removal.
func (b *Batch) Delete(key Key) *Batch {
	b.ops = append(b.ops, Op{Kind: OpDelete, Key: key})
	return b
}

// Ops returns the queued operations in insertion order.
func (b *Batch) Ops() []Op {
	if b == nil {
		return nil
	}
	out := make([]Op, len(b.ops))
	copy(out, b.ops)
	return out
}

// Len reports how many operations are queued.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.ops)
}

var segmentEscaper = strings.NewReplacer("%", "%25", separator, "%3A")
var segmentUnescaper = strings.NewReplacer("%3A", separator, "%25", "%")

func encodeKey(namespace string, key Key) string {
	parts := make([]string, 0, len(key)+1)
	if namespace != "" {
		parts = append(parts, segmentEscaper.Replace(namespace))
	}
	for _, segment := range key {
		parts = append(parts, segmentEscaper.Replace(segment))
	}
	return strings.Join(parts, separator)
}

// encodePrefix returns the encoded prefix including the trailing separator so that only keys
// with at least one more segment match.
func encodePrefix(namespace string, prefix Key) string {
	encoded := encodeKey(namespace, prefix)
	if encoded == "" {
		return ""
	}
	return encoded + separator
}

func decodeKey(namespace, raw string) Key {
	if namespace != "" {
		raw = strings.TrimPrefix(raw, segmentEscaper.Replace(namespace)+separator)
	}
	if raw == "" {
		return Key{}
	}
	parts := strings.Split(raw, separator)
	key := make(Key, len(parts))
	for i, part := range parts {
		key[i] = segmentUnescaper.Replace(part)
	}
	return key
}
