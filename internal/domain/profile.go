package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ImportStatus represents the lifecycle state of a LinkedIn profile import.
// Values include ImportStatusIdle, ImportStatusPending, ImportStatusCompleted,
// and ImportStatusFailed.
type ImportStatus string

const (
	ImportStatusIdle      ImportStatus = "idle"
	ImportStatusPending   ImportStatus = "pending"
	ImportStatusCompleted ImportStatus = "completed"
	ImportStatusFailed    ImportStatus = "failed"
)

// Terminal reports whether no further automatic transitions occur from s.
func (s ImportStatus) Terminal() bool {
	return s == ImportStatusCompleted || s == ImportStatusFailed
}

// ApplicantProfile is the persisted applicant record, including the LinkedIn
// import bookkeeping fields the pipeline depends on.
type ApplicantProfile struct {
	ID           string          `gorm:"type:text;primaryKey" json:"id"`
	LinkedInURL  *string         `gorm:"column:linkedin_url" json:"linkedin_url,omitempty"`
	ImportStatus ImportStatus    `gorm:"column:linkedin_import_status;default:idle" json:"linkedin_import_status"`
	SnapshotID   *string         `gorm:"column:linkedin_snapshot_id" json:"linkedin_snapshot_id,omitempty"`
	ProfileRaw   json.RawMessage `gorm:"column:linkedin_profile_raw;type:text" json:"linkedin_profile_raw,omitempty"`
	ImportError  string          `gorm:"column:linkedin_import_error" json:"linkedin_import_error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TableName returns the database table name for ApplicantProfile.
func (ApplicantProfile) TableName() string {
	return "applicant_profiles"
}

// InFlight reports whether the record carries a live snapshot id.
func (p *ApplicantProfile) InFlight() bool {
	return p.ImportStatus == ImportStatusPending && p.SnapshotID != nil && *p.SnapshotID != ""
}

// Validate checks the import-state invariants: a snapshot id may exist only
// while the import is pending (a pending record without one is the short
// window between the pending write and the trigger response), and raw
// profile data exists only once the import completed.
func (p *ApplicantProfile) Validate() error {
	hasSnapshot := p.SnapshotID != nil && *p.SnapshotID != ""
	if hasSnapshot && p.ImportStatus != ImportStatusPending {
		return fmt.Errorf("stale snapshot id with status %q", p.ImportStatus)
	}
	if len(p.ProfileRaw) > 0 && p.ImportStatus != ImportStatusCompleted {
		return fmt.Errorf("profile raw data present with status %q", p.ImportStatus)
	}
	return nil
}
