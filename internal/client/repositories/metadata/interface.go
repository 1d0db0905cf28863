// Package metadata stores small key/value settings of the local client
// database, such as the persisted session token.
package metadata

import (
	"context"
)

// Repository is a string key/value store. Get reports ok=false for absent keys.
type Repository interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, keys ...string) error
}
