// Package cli provides the gophtodo terminal client.
//
// It wires configuration, the local session database, the API client and
// the session/task services behind two front-ends that share one App:
//
//   - an interactive REPL (App.Shell, runREPL), the default command;
//   - one-shot cobra commands: register, login, logout, whoami, tasks, add,
//     rename, toggle, rm and version.
//
// Every protected command consults services.Guard first. Outcomes are
// printed as single-line notifications prefixed with ✅ or ❌; diagnostics go
// to the logger on stderr.
//
// See Execute, App and runREPL for details.
package cli
