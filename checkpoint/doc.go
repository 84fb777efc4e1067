// Package checkpoint houses concrete implementations of the
// core.CheckpointStore. The interface itself lives in core so higher level
// packages (engine, api) depend on the contract rather than on a backend.
//
// The in-memory store suits tests and demo servers; the postgres sub-package
// provides the durable backend.
package checkpoint
