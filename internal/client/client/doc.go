// Package client contains the client-side building blocks for gophtodo.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface) to talk
//     to the tasks backend: Login/Register, Profile and the task endpoints.
//  2. A concrete REST implementation (see HTTPClient) that injects the
//     bearer token from a TokenSource, tags every request with an
//     X-Request-ID, optionally paces requests and maps non-2xx responses to
//     *HTTPError.
//  3. Local persistence bootstrap utilities (InitDatabase, RunMigrations) for
//     the CLI, wiring an SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Server-reported failures are returned as *HTTPError whose Error() is the
// message the server sent. Common conditions are exposed as sentinel errors
// that callers can match with errors.Is: ErrUnavailable, ErrUnauthorized.
//
// Concurrency & Contexts
//
// HTTPClient is safe for concurrent use. All operations accept
// context.Context and honor cancellation/timeouts.
//
// See Also
//
//   - Interface:  Client
//   - REST impl:  HTTPClient
//   - DB helpers: InitDatabase, RunMigrations
//   - Errors:     HTTPError, ErrUnavailable, ErrUnauthorized
package client
