package models

import "time"

// ConflictAuditStatus tracks a background conflict audit.
type ConflictAuditStatus string

const (
	ConflictAuditPending ConflictAuditStatus = "PENDING"
	ConflictAuditRunning ConflictAuditStatus = "RUNNING"
	ConflictAuditDone    ConflictAuditStatus = "DONE"
	ConflictAuditFailed  ConflictAuditStatus = "FAILED"
)

// ConflictAudit is a scan of stored schedules for conflicts that slipped past
// the write-time check, e.g. through concurrent writers.
type ConflictAudit struct {
	ID            string              `json:"id"`
	Status        ConflictAuditStatus `json:"status"`
	RequestedBy   string              `json:"requested_by"`
	SchedulesSeen int                 `json:"schedules_seen"`
	ConflictCount int                 `json:"conflict_count"`
	Error         string              `json:"error,omitempty"`
	DownloadURL   string              `json:"download_url,omitempty"`
	ExpiresAt     *time.Time          `json:"expires_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	FinishedAt    *time.Time          `json:"finished_at,omitempty"`
}
