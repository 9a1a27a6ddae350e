// Package store defines the durable keyed persistence contract for user
// records. Two interchangeable backends implement it: the authoritative
// remote Postgres store and the local SQLite fallback. The authenticator
// and the entitlement engine are written against this contract only.
package store

import (
	"context"

	"veritas/internal/users"
)

// UserRecordStore is the CRUD contract shared by both backends.
//
// Error semantics (matched with errors.Is against internal/common):
//   - FindByEmail / FindByID return ErrNotFound for a missing record.
//   - Insert returns ErrDuplicateEmail when the email is already taken.
//   - Update is conditional: it only applies when rec.Version still matches
//     the stored version, returning ErrConflict otherwise. On success the
//     stored and in-memory versions are incremented.
//   - Any backend failure (network, I/O) is wrapped in ErrStoreUnavailable.
type UserRecordStore interface {
	FindByEmail(ctx context.Context, email string) (*users.UserRecord, error)
	FindByID(ctx context.Context, id string) (*users.UserRecord, error)
	Insert(ctx context.Context, rec *users.UserRecord) error
	Update(ctx context.Context, rec *users.UserRecord) error

	// Mutate atomically applies fn to the record for id and persists the
	// result. The read-modify-write sequence is serialized per record:
	// concurrent Mutate calls for the same id never lose updates.
	// An error returned by fn aborts the mutation and is returned as is.
	Mutate(ctx context.Context, id string, fn func(rec *users.UserRecord) error) (*users.UserRecord, error)
}
