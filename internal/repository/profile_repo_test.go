package repository

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/yashwanth-3000/find.ai/internal/config"
	"github.com/yashwanth-3000/find.ai/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func testRepo(t *testing.T) *ProfileRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.ApplicantProfile{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewProfileRepository(db)
}

func seedProfile(t *testing.T, repo *ProfileRepository, userID string) {
	t.Helper()
	if err := repo.Create(context.Background(), &domain.ApplicantProfile{ID: userID}); err != nil {
		t.Fatalf("seed %s: %v", userID, err)
	}
}

func TestCreateAndGet(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	url := "https://www.linkedin.com/in/alice"
	if err := repo.Create(ctx, &domain.ApplicantProfile{ID: "u1", LinkedInURL: &url}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	p, err := repo.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.ImportStatus != domain.ImportStatusIdle {
		t.Errorf("status = %q, want idle default", p.ImportStatus)
	}
	if p.LinkedInURL == nil || *p.LinkedInURL != url {
		t.Errorf("linkedin url = %v", p.LinkedInURL)
	}

	if _, err := repo.Get(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(ghost) err = %v, want ErrNotFound", err)
	}
}

func TestStatusTransitions(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	seedProfile(t, repo, "u1")

	if err := repo.MarkPending(ctx, "u1"); err != nil {
		t.Fatalf("MarkPending: %v", err)
	}
	if err := repo.SetSnapshotID(ctx, "u1", "snap-1"); err != nil {
		t.Fatalf("SetSnapshotID: %v", err)
	}
	p, _ := repo.Get(ctx, "u1")
	if !p.InFlight() {
		t.Fatalf("record not in flight after pending + snapshot id: %+v", p)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("invariant while pending: %v", err)
	}

	payload := json.RawMessage(`{"name":"Alice"}`)
	if err := repo.Complete(ctx, "u1", payload); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	p, _ = repo.Get(ctx, "u1")
	if p.ImportStatus != domain.ImportStatusCompleted {
		t.Errorf("status = %q, want completed", p.ImportStatus)
	}
	if p.SnapshotID != nil {
		t.Errorf("snapshot id survived completion: %v", *p.SnapshotID)
	}
	if string(p.ProfileRaw) != string(payload) {
		t.Errorf("profile raw = %s", p.ProfileRaw)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("invariant after completion: %v", err)
	}

	// Completion is a plain overwrite; a duplicate write-back is harmless.
	if err := repo.Complete(ctx, "u1", payload); err != nil {
		t.Fatalf("duplicate Complete: %v", err)
	}
	p2, _ := repo.Get(ctx, "u1")
	if p2.ImportStatus != p.ImportStatus || string(p2.ProfileRaw) != string(p.ProfileRaw) {
		t.Errorf("duplicate completion changed the record")
	}
}

func TestFailClearsSnapshotKeepsMessage(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	seedProfile(t, repo, "u1")

	if err := repo.MarkPending(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if err := repo.SetSnapshotID(ctx, "u1", "snap-1"); err != nil {
		t.Fatal(err)
	}
	if err := repo.Fail(ctx, "u1", "max poll attempts exceeded"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	p, _ := repo.Get(ctx, "u1")
	if p.ImportStatus != domain.ImportStatusFailed {
		t.Errorf("status = %q, want failed", p.ImportStatus)
	}
	if p.SnapshotID != nil {
		t.Errorf("snapshot id survived failure; bootstrap would resume a dead job")
	}
	if p.ImportError != "max poll attempts exceeded" {
		t.Errorf("import error = %q", p.ImportError)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("invariant after failure: %v", err)
	}

	// Pending again clears the stale message.
	if err := repo.MarkPending(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	p, _ = repo.Get(ctx, "u1")
	if p.ImportError != "" {
		t.Errorf("import error not cleared on retry: %q", p.ImportError)
	}
}

func TestResetReturnsToIdle(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	seedProfile(t, repo, "u1")

	if err := repo.MarkPending(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if err := repo.SetSnapshotID(ctx, "u1", "snap-1"); err != nil {
		t.Fatal(err)
	}
	if err := repo.Reset(ctx, "u1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	p, _ := repo.Get(ctx, "u1")
	if p.ImportStatus != domain.ImportStatusIdle || p.SnapshotID != nil || p.ImportError != "" {
		t.Errorf("record after reset = %+v, want clean idle", p)
	}
}

func TestSetLinkedInURLRefusedWhilePending(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	seedProfile(t, repo, "u1")

	if err := repo.SetLinkedInURL(ctx, "u1", "https://www.linkedin.com/in/alice"); err != nil {
		t.Fatalf("SetLinkedInURL on idle record: %v", err)
	}

	if err := repo.MarkPending(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if err := repo.SetLinkedInURL(ctx, "u1", "https://www.linkedin.com/in/bob"); err == nil {
		t.Fatal("SetLinkedInURL succeeded while pending")
	}

	p, _ := repo.Get(ctx, "u1")
	if *p.LinkedInURL != "https://www.linkedin.com/in/alice" {
		t.Errorf("url changed mid-flight: %q", *p.LinkedInURL)
	}
}

func TestUpdatesOnMissingProfile(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if err := repo.MarkPending(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkPending(ghost) err = %v, want ErrNotFound", err)
	}
	if err := repo.Complete(ctx, "ghost", json.RawMessage(`{}`)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Complete(ghost) err = %v, want ErrNotFound", err)
	}
	if err := repo.SetLinkedInURL(ctx, "ghost", "https://www.linkedin.com/in/x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetLinkedInURL(ghost) err = %v, want ErrNotFound", err)
	}
}

func TestInitDBSQLite(t *testing.T) {
	dir := t.TempDir()
	db, err := InitDB(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(dir, "nested", "test.db"),
		AutoMigrate: true,
	})
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	if !db.Migrator().HasTable(&domain.ApplicantProfile{}) {
		t.Errorf("applicant_profiles table missing after migration")
	}
}
