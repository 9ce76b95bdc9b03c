// Package cmd implements the command-line interface for the taskvault
// task entity store. Every command is a thin adapter over the storage
// interface: it supplies validated payloads and query objects and never
// reaches into storage internals.
//
// The package is organized into several subpackages:
//
//   - tasks: Commands for task operations (create, get, update, delete,
//     ls, flush, stats)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See taskvault -help for a list of all commands.
package cmd
