// Package store provides the pluggable key-value storage layer shared by the
// greylist and auto-whitelist databases. Backends are selected at startup
// from a locator URL (see Open); callers hold a Store and never depend on
// which backend is behind it.
package store

import "errors"

var (
	// ErrNotFound is returned by Delete when the key is not in the store.
	// Delete is only valid on keys the caller has reason to believe exist.
	ErrNotFound = errors.New("key not found")

	// ErrUnknownScheme is returned by Open for locator schemes this layer
	// does not recognize. Fatal at startup: the daemon cannot run without
	// its stores.
	ErrUnknownScheme = errors.New("unrecognized store scheme")
)

// TransformFunc is invoked by Apply for every entry in the store. It returns
// a result and whether to keep it; dropped results do not appear in Apply's
// output. The function may call back into the store (the maintenance sweep
// deletes entries from inside its transform).
type TransformFunc func(key, value string) (result string, keep bool)

// Store is the contract every backend satisfies. Keys and values are opaque
// strings; the greylist keeps serialized triplets mapped to timestamps, the
// auto-whitelist keeps membership names, and the store interprets neither.
//
// All operations are synchronous. Update is an upsert. Get reports absence
// via found=false, never as an error. Save forces completed mutations to
// stable storage; backends whose medium is durable per write may treat it as
// a no-op. There is no Close in the contract: stores live for the daemon's
// lifetime.
type Store interface {
	Update(key, value string) error
	Get(key string) (value string, found bool, err error)
	Delete(key string) error
	Save() error

	// Apply invokes fn for every entry currently in the store and collects
	// the kept results in backend-defined order. Enumeration is not atomic
	// with respect to concurrent mutation; see the backend docs.
	Apply(fn TransformFunc) ([]string, error)
}
