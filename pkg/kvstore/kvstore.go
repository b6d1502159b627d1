// Package kvstore provides the key-value persistence collaborator used by the
// audit ledger. The ledger serializes its full entry sequence as one JSON blob
// under a fixed key, so the contract is deliberately small: get, set, remove.
//
// Backends: in-memory (tests, ephemeral runs), file, SQLite, Redis, Postgres.
package kvstore

import "context"

// Store is the persistence collaborator contract. A missing key is not an
// error: Get returns ok=false. Errors are reserved for backend failures
// (I/O, quota, connectivity).
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
