// Package core defines the shared domain model of the ShopQuery orchestration
// engine: conversations, turns, intents, plans, tool call records, context
// bundles, the streamed output unit types and the error taxonomy used across
// every stage of a turn. It also declares the persistence contracts
// (CheckpointStore, FeedbackStore) implemented by the checkpoint and feedback
// packages so that higher layers depend only on abstractions.
//
// Types in this package are plain data carriers passed by value through the
// pipeline; the only cross-turn mutable state lives behind the store
// interfaces.
package core
