package state

import "github.com/zoobzio/capitan"

// Record lifecycle signals.
var (
	// RecordInitialized is emitted when a key's record is created.
	RecordInitialized = capitan.NewSignal(
		"sharedstate.state.initialized",
		"Shadow record created",
	)

	// RecordInitFailed is emitted when a key's default failed and the error was captured.
	RecordInitFailed = capitan.NewSignal(
		"sharedstate.state.init.failed",
		"Default evaluation failed; error captured",
	)
)

// Write signals.
var (
	// ValueWritten is emitted after a write changed a key's value.
	ValueWritten = capitan.NewSignal(
		"sharedstate.state.written",
		"Value written",
	)

	// WriteSkipped is emitted when a write was identical to the current value.
	WriteSkipped = capitan.NewSignal(
		"sharedstate.state.write.skipped",
		"Identical write skipped",
	)
)

// Field keys for store events.
var (
	KeyKey       = capitan.NewStringKey("key")
	KeyOutcome   = capitan.NewStringKey("outcome")
	KeyErr       = capitan.NewStringKey("error")
	KeyConsumers = capitan.NewIntKey("consumers")
)
