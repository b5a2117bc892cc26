package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yashwanth-3000/find.ai/internal/domain"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no profile exists for the given user id.
var ErrNotFound = errors.New("profile not found")

// ProfileRepository handles applicant profile persistence, including the
// import-status bookkeeping the pipeline depends on. Each status write is a
// single UPDATE so the snapshot-id/status invariant is never observable
// half-applied.
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new ProfileRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *ProfileRepository: repository instance bound to db.
func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create inserts a new applicant profile record.
func (r *ProfileRepository) Create(ctx context.Context, profile *domain.ApplicantProfile) error {
	if profile.ImportStatus == "" {
		profile.ImportStatus = domain.ImportStatusIdle
	}
	return r.db.WithContext(ctx).Create(profile).Error
}

// Get retrieves the applicant profile for a user.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: applicant's user id.
// Returns:
//   - *domain.ApplicantProfile: profile record if found.
//   - error: ErrNotFound if no record exists, otherwise the query error.
func (r *ProfileRepository) Get(ctx context.Context, userID string) (*domain.ApplicantProfile, error) {
	var profile domain.ApplicantProfile
	if err := r.db.WithContext(ctx).First(&profile, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// SetLinkedInURL updates the profile URL to import from. Refused while an
// import is pending; changing the target mid-flight would detach the stored
// snapshot id from the URL it was triggered for.
func (r *ProfileRepository) SetLinkedInURL(ctx context.Context, userID, url string) error {
	res := r.db.WithContext(ctx).Model(&domain.ApplicantProfile{}).
		Where("id = ? AND linkedin_import_status <> ?", userID, domain.ImportStatusPending).
		Update("linkedin_url", url)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("cannot update linkedin url for %s: %w", userID, errPendingOrMissing(r, ctx, userID))
	}
	return nil
}

// MarkPending records that an import has been initiated, before the remote
// trigger call is made. A crash after this write leaves the record pending
// rather than silently idle.
func (r *ProfileRepository) MarkPending(ctx context.Context, userID string) error {
	return r.update(ctx, userID, map[string]interface{}{
		"linkedin_import_status": domain.ImportStatusPending,
		"linkedin_import_error":  "",
	})
}

// SetSnapshotID persists the remote job id for an in-flight import.
func (r *ProfileRepository) SetSnapshotID(ctx context.Context, userID, snapshotID string) error {
	return r.update(ctx, userID, map[string]interface{}{
		"linkedin_snapshot_id": snapshotID,
	})
}

// Complete records a successful import: status, payload, and snapshot id
// cleared in one write. Idempotent for a given payload.
func (r *ProfileRepository) Complete(ctx context.Context, userID string, payload json.RawMessage) error {
	return r.update(ctx, userID, map[string]interface{}{
		"linkedin_import_status": domain.ImportStatusCompleted,
		"linkedin_profile_raw":   []byte(payload),
		"linkedin_snapshot_id":   nil,
		"linkedin_import_error":  "",
	})
}

// Fail records a failed import, clearing the snapshot id so a later
// bootstrap cannot mistake it for a live job. The message is retained for
// display.
func (r *ProfileRepository) Fail(ctx context.Context, userID, msg string) error {
	return r.update(ctx, userID, map[string]interface{}{
		"linkedin_import_status": domain.ImportStatusFailed,
		"linkedin_snapshot_id":   nil,
		"linkedin_import_error":  msg,
	})
}

// Reset returns the import to idle, clearing any snapshot id and error.
// Used by cancellation.
func (r *ProfileRepository) Reset(ctx context.Context, userID string) error {
	return r.update(ctx, userID, map[string]interface{}{
		"linkedin_import_status": domain.ImportStatusIdle,
		"linkedin_snapshot_id":   nil,
		"linkedin_import_error":  "",
	})
}

func (r *ProfileRepository) update(ctx context.Context, userID string, values map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&domain.ApplicantProfile{}).
		Where("id = ?", userID).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func errPendingOrMissing(r *ProfileRepository, ctx context.Context, userID string) error {
	if _, err := r.Get(ctx, userID); err != nil {
		return err
	}
	return errors.New("import is pending")
}
