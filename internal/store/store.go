// Package store defines the Store Adapter Contract (spec §4.8): the
// narrow interface the runtime evaluator uses to read sensor inputs at
// the start of a cycle and write rule outputs at the end of one.
//
// Concrete KV transport adapters are out of scope for this module (spec
// §1); the implementations here exist to exercise the contract in tests
// and in single-process / embedded deployments, not as the production
// transport.
package store

import "context"

// Value is the dynamic type a Store holds per key: number, string, or
// boolean, matching the literal types allowed in the DSL (spec §3).
type Value = interface{}

// Store abstracts read-all / write-batch access to the external
// key/value store that backs sensor inputs and rule outputs.
//
// Implementations must be idempotent on WriteBatch: writing the same
// batch twice must leave the store in the same state as writing it once.
type Store interface {
	// ReadAll returns the current value of every requested key. When keys
	// is nil, implementations may return their entire known key space.
	// Keys absent from the store are simply omitted from the result map.
	ReadAll(ctx context.Context, keys []string) (map[string]Value, error)

	// WriteBatch writes every key/value pair atomically from the
	// evaluator's point of view: a reader must never observe a partial
	// batch.
	WriteBatch(ctx context.Context, values map[string]Value) error

	// Health reports whether the store is currently reachable and able
	// to serve reads and writes.
	Health(ctx context.Context) bool
}
