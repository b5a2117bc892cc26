package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Standard tracing fields, propagated through the call chain via context.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldUserID is the applicant's user ID
	FieldUserID = "user_id"

	// FieldSnapshotID is the Bright Data snapshot (job) ID
	FieldSnapshotID = "snapshot_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"
)

// Standard metric fields, attached at the log site.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldAttempt is the poll attempt counter
	FieldAttempt = "attempt"

	// FieldStatus is the operation or import status
	FieldStatus = "status"

	// FieldSize is the data size in bytes
	FieldSize = "size"
)
