package logging

import "time"

// #region event-types
// Event names written to lifecycle_log.
const (
	EventStartup  = "startup"
	EventRestore  = "restore"
	EventShutdown = "shutdown"
	EventCorrupt  = "corrupt"
)

// LifecycleEntry is a single row in the lifecycle_log table.
type LifecycleEntry struct {
	EventID    string
	Event      string
	SnapshotID string
	Counter    uint32
	UserCount  int
	Detail     string
	CreatedAt  time.Time
}
// #endregion event-types
