package model

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionProctoringRead allows viewing violation logs and the live monitor.
	PermissionProctoringRead Permission = "proctoring:read"

	// PermissionProctoringExtend allows granting extra time to an attempt.
	PermissionProctoringExtend Permission = "proctoring:extend"

	// PermissionSnapshotsRead allows viewing stored webcam snapshots.
	PermissionSnapshotsRead Permission = "snapshots:read"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionProctoringRead,
	PermissionProctoringExtend,
	PermissionSnapshotsRead,
}
