// Package importer owns the LinkedIn profile import lifecycle: trigger a
// scrape job, poll for its snapshot with bounded attempts, persist partial
// progress so the import survives restarts, and reconcile terminal states
// back into the applicant's profile record.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/yashwanth-3000/find.ai/internal/domain"
	"github.com/yashwanth-3000/find.ai/internal/logger"
	"github.com/yashwanth-3000/find.ai/internal/scrape"
)

var (
	// ErrImportInProgress is returned when a poll loop is already running
	// for the user in this process.
	ErrImportInProgress = errors.New("an import is already running for this user")
	// ErrInvalidURL is returned when the source URL does not look like a
	// LinkedIn profile URL.
	ErrInvalidURL = errors.New("url does not look like a linkedin profile url")
	// ErrMaxAttemptsExceeded is returned when the poll loop exhausts its
	// attempt budget without a ready snapshot.
	ErrMaxAttemptsExceeded = errors.New("max poll attempts exceeded")
	// ErrNotFailed is returned by Retry when the import is not in a failed state.
	ErrNotFailed = errors.New("import is not in a failed state")
	// ErrNoSourceURL is returned when no LinkedIn URL is stored for the user.
	ErrNoSourceURL = errors.New("no linkedin url on profile")
	// ErrShutdown is returned when the service is shutting down.
	ErrShutdown = errors.New("importer is shut down")
)

// ScrapeClient is the external scrape-triggering API: start a job, fetch a
// job's result by id. No retry policy of its own.
type ScrapeClient interface {
	Trigger(ctx context.Context, profileURL string) (string, error)
	Snapshot(ctx context.Context, snapshotID string) (scrape.SnapshotResult, error)
}

// ProfileStore is the persisted profile record the state machine drives.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*domain.ApplicantProfile, error)
	SetLinkedInURL(ctx context.Context, userID, url string) error
	MarkPending(ctx context.Context, userID string) error
	SetSnapshotID(ctx context.Context, userID, snapshotID string) error
	Complete(ctx context.Context, userID string, payload json.RawMessage) error
	Fail(ctx context.Context, userID, msg string) error
	Reset(ctx context.Context, userID string) error
}

// Archiver stores a copy of the raw snapshot payload. Archive failures never
// affect pipeline state.
type Archiver interface {
	Store(ctx context.Context, userID, snapshotID string, payload json.RawMessage) error
}

// Config holds the poll policy and the bootstrap auto-start switch.
type Config struct {
	MaxAttempts  int
	PollInterval time.Duration
	// AutoStart lets Bootstrap trigger a fresh scrape when a URL exists
	// with no imported data. Off by default: starting a paid external job
	// should be an explicit user action.
	AutoStart bool
}

// DefaultConfig returns the production poll policy.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  25,
		PollInterval: 6 * time.Second,
		AutoStart:    false,
	}
}

// Service is the import state machine. It guarantees at most one active poll
// loop per user in this process; cross-process duplicates are tolerated
// because the completion write-back is idempotent.
type Service struct {
	cfg      Config
	store    ProfileStore
	client   ScrapeClient
	archive  Archiver
	reporter Reporter
	log      *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	active map[string]*job
}

// job tracks one in-process poll loop.
type job struct {
	mu         sync.Mutex
	snapshotID string
	attempt    int
	progress   int
	cancelled  bool
	cancelLoop context.CancelFunc
}

func (j *job) setSnapshotID(id string) {
	j.mu.Lock()
	j.snapshotID = id
	j.mu.Unlock()
}

// setProgress never lets the progress value regress.
func (j *job) setProgress(p int) {
	j.mu.Lock()
	if p > j.progress {
		j.progress = p
	}
	j.mu.Unlock()
}

func (j *job) setAttempt(n int) {
	j.mu.Lock()
	j.attempt = n
	j.mu.Unlock()
}

func (j *job) markCancelled() {
	j.mu.Lock()
	j.cancelled = true
	cancel := j.cancelLoop
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (j *job) isCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}

func (j *job) state() (snapshotID string, attempt, progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshotID, j.attempt, j.progress
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithReporter replaces the default log-backed reporter.
func WithReporter(r Reporter) Option {
	return func(s *Service) { s.reporter = r }
}

// WithArchiver enables raw payload archiving on completion.
func WithArchiver(a Archiver) Option {
	return func(s *Service) { s.archive = a }
}

// WithLogger sets the service logger.
func WithLogger(log *logger.Logger) Option {
	return func(s *Service) { s.log = log }
}

// New creates the import service.
func New(cfg Config, store ProfileStore, client ScrapeClient, opts ...Option) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:    cfg,
		store:  store,
		client: client,
		log:    logger.Default(),
		ctx:    ctx,
		cancel: cancel,
		active: make(map[string]*job),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reporter == nil {
		s.reporter = NewLogReporter(s.log)
	}
	return s
}

// ValidProfileURL reports whether raw looks like a LinkedIn profile URL.
func ValidProfileURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host != "linkedin.com" && !strings.HasSuffix(host, ".linkedin.com") {
		return false
	}
	rest := strings.TrimPrefix(u.Path, "/in/")
	return rest != u.Path && strings.Trim(rest, "/") != ""
}

// Start runs a full import synchronously: persist pending, trigger the
// scrape, then poll until a terminal state. All poll-loop errors are
// converted into the failed terminal write plus reporter events; the
// returned error mirrors what was persisted.
func (s *Service) Start(ctx context.Context, userID, profileURL string) error {
	if !ValidProfileURL(profileURL) {
		return ErrInvalidURL
	}
	j, err := s.acquire(userID)
	if err != nil {
		return err
	}
	defer s.release(userID)
	return s.run(ctx, userID, profileURL, j)
}

// Resume re-enters the poll loop for an already-triggered job, using only
// the persisted snapshot id. The attempt budget starts over.
func (s *Service) Resume(ctx context.Context, userID, snapshotID string) error {
	j, err := s.acquire(userID)
	if err != nil {
		return err
	}
	defer s.release(userID)

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	j.mu.Lock()
	j.cancelLoop = cancel
	j.mu.Unlock()

	s.report(userID, LevelInfo, "Resuming import process...")
	s.report(userID, LevelInfo, "Using existing snapshot ID: %s", snapshotID)
	j.setSnapshotID(snapshotID)
	j.setProgress(progressResumed)

	return s.poll(loopCtx, userID, snapshotID, j)
}

// StartImport is the fire-and-forget boundary operation. A non-empty url is
// persisted first; otherwise the stored URL is used. Status is observable
// via Status or the progress reporter.
func (s *Service) StartImport(ctx context.Context, userID, profileURL string) error {
	if profileURL == "" {
		p, err := s.store.Get(ctx, userID)
		if err != nil {
			return err
		}
		if p.LinkedInURL == nil || *p.LinkedInURL == "" {
			return ErrNoSourceURL
		}
		profileURL = *p.LinkedInURL
	} else {
		if !ValidProfileURL(profileURL) {
			return ErrInvalidURL
		}
		if err := s.store.SetLinkedInURL(ctx, userID, profileURL); err != nil {
			return err
		}
	}
	return s.startAsync(userID, profileURL)
}

// Retry re-enters Start using the persisted source URL. Valid only from the
// failed state.
func (s *Service) Retry(ctx context.Context, userID string) error {
	p, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	if p.ImportStatus != domain.ImportStatusFailed {
		return ErrNotFailed
	}
	if p.LinkedInURL == nil || *p.LinkedInURL == "" {
		return ErrNoSourceURL
	}
	return s.startAsync(userID, *p.LinkedInURL)
}

// BootstrapAction describes what Bootstrap decided to do.
type BootstrapAction string

const (
	BootstrapResumed BootstrapAction = "resumed"
	BootstrapStarted BootstrapAction = "started"
	BootstrapNone    BootstrapAction = "none"
)

// Bootstrap inspects the persisted record on process or page start. A
// pending record with a snapshot id re-enters the poll loop; a fresh import
// is started only when AutoStart is configured. Everything else surfaces the
// current status unchanged.
func (s *Service) Bootstrap(ctx context.Context, userID string) (BootstrapAction, error) {
	p, err := s.store.Get(ctx, userID)
	if err != nil {
		return BootstrapNone, err
	}

	if p.InFlight() {
		if err := s.resumeAsync(userID, *p.SnapshotID); err != nil {
			if errors.Is(err, ErrImportInProgress) {
				return BootstrapNone, nil
			}
			return BootstrapNone, err
		}
		return BootstrapResumed, nil
	}

	// Pending with no snapshot id means the process died between the
	// pending write and the trigger response. There is no job to resume.
	if p.ImportStatus == domain.ImportStatusPending {
		if err := s.store.Fail(ctx, userID, "import interrupted before a job id was assigned"); err != nil {
			return BootstrapNone, err
		}
		return BootstrapNone, nil
	}

	if s.cfg.AutoStart &&
		p.LinkedInURL != nil && *p.LinkedInURL != "" &&
		len(p.ProfileRaw) == 0 &&
		p.ImportStatus != domain.ImportStatusCompleted {
		if err := s.startAsync(userID, *p.LinkedInURL); err != nil {
			if errors.Is(err, ErrImportInProgress) {
				return BootstrapNone, nil
			}
			return BootstrapNone, err
		}
		return BootstrapStarted, nil
	}

	return BootstrapNone, nil
}

// Cancel abandons a pending import: the record returns to idle and any
// in-process loop stops silently on its next iteration instead of writing
// back a stale result. The remote job itself keeps running on the provider
// side; its snapshot id is simply forgotten.
func (s *Service) Cancel(ctx context.Context, userID string) error {
	s.mu.Lock()
	j := s.active[userID]
	s.mu.Unlock()
	if j != nil {
		j.markCancelled()
	}

	p, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	if p.ImportStatus == domain.ImportStatusPending {
		return s.store.Reset(ctx, userID)
	}
	return nil
}

// Status describes the import as observed by the boundary.
type Status struct {
	Status      domain.ImportStatus `json:"status"`
	SnapshotID  string              `json:"snapshot_id,omitempty"`
	Attempt     int                 `json:"attempt,omitempty"`
	MaxAttempts int                 `json:"max_attempts"`
	Progress    int                 `json:"progress"`
	Error       string              `json:"error,omitempty"`
	Active      bool                `json:"active"`
}

// Status merges the persisted record with any live loop state.
func (s *Service) Status(ctx context.Context, userID string) (Status, error) {
	p, err := s.store.Get(ctx, userID)
	if err != nil {
		return Status{}, err
	}

	st := Status{
		Status:      p.ImportStatus,
		MaxAttempts: s.cfg.MaxAttempts,
		Error:       p.ImportError,
	}
	if p.SnapshotID != nil {
		st.SnapshotID = *p.SnapshotID
	}
	if p.ImportStatus == domain.ImportStatusCompleted {
		st.Progress = progressDone
	}

	s.mu.Lock()
	j := s.active[userID]
	s.mu.Unlock()
	if j != nil {
		st.Active = true
		snapshotID, attempt, progress := j.state()
		if snapshotID != "" {
			st.SnapshotID = snapshotID
		}
		st.Attempt = attempt
		st.Progress = progress
	}
	return st, nil
}

// Shutdown stops accepting work, cancels running loops, and waits for them
// to unwind. Persisted pending state lets the next process resume.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()
	s.mu.Lock()
	for _, j := range s.active {
		j.mu.Lock()
		cancel := j.cancelLoop
		j.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) acquire(userID string) (*job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return nil, ErrShutdown
	}
	if _, ok := s.active[userID]; ok {
		return nil, ErrImportInProgress
	}
	j := &job{}
	s.active[userID] = j
	s.wg.Add(1)
	return j, nil
}

func (s *Service) release(userID string) {
	s.mu.Lock()
	delete(s.active, userID)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Service) startAsync(userID, profileURL string) error {
	if !ValidProfileURL(profileURL) {
		return ErrInvalidURL
	}
	j, err := s.acquire(userID)
	if err != nil {
		return err
	}
	go func() {
		defer s.release(userID)
		if err := s.run(s.ctx, userID, profileURL, j); err != nil {
			s.log.WithField(logger.FieldUserID, userID).WithError(err).Warn("import finished with error")
		}
	}()
	return nil
}

func (s *Service) resumeAsync(userID, snapshotID string) error {
	j, err := s.acquire(userID)
	if err != nil {
		return err
	}
	go func() {
		defer s.release(userID)

		loopCtx, cancel := context.WithCancel(s.ctx)
		defer cancel()
		j.mu.Lock()
		j.cancelLoop = cancel
		j.mu.Unlock()

		s.report(userID, LevelInfo, "Resuming import process...")
		s.report(userID, LevelInfo, "Using existing snapshot ID: %s", snapshotID)
		j.setSnapshotID(snapshotID)
		j.setProgress(progressResumed)

		if err := s.poll(loopCtx, userID, snapshotID, j); err != nil {
			s.log.WithField(logger.FieldUserID, userID).WithError(err).Warn("resumed import finished with error")
		}
	}()
	return nil
}

// run drives Idle -> Pending -> (Completed | Failed) for a fresh job.
func (s *Service) run(ctx context.Context, userID, profileURL string, j *job) error {
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	j.mu.Lock()
	j.cancelLoop = cancel
	j.mu.Unlock()

	s.report(userID, LevelInfo, "Starting LinkedIn data import process...")
	s.report(userID, LevelInfo, "Target URL: %s", profileURL)
	j.setProgress(progressStart)

	// Pending is persisted before the remote call so a crash here still
	// shows pending rather than silently reverting to idle.
	if err := s.store.MarkPending(loopCtx, userID); err != nil {
		s.report(userID, LevelError, "Failed to record import start: %v", err)
		return fmt.Errorf("mark pending: %w", err)
	}

	s.report(userID, LevelInfo, "Triggering Bright Data API request...")
	j.setProgress(progressTriggered)

	snapshotID, err := s.client.Trigger(loopCtx, profileURL)
	if err != nil {
		// Trigger failures funnel through the same failed write-back as
		// poll failures; the caller observes the transition via Status.
		return s.fail(userID, j, fmt.Sprintf("Error: %v", err), err)
	}

	s.report(userID, LevelSuccess, "Snapshot ID received: %s", snapshotID)
	j.setSnapshotID(snapshotID)
	j.setProgress(progressSnapshotID)

	if err := s.store.SetSnapshotID(loopCtx, userID, snapshotID); err != nil {
		return s.fail(userID, j, fmt.Sprintf("Failed to persist snapshot ID: %v", err), err)
	}

	return s.poll(loopCtx, userID, snapshotID, j)
}

// poll is the bounded, interval-spaced fetch loop shared by Start and
// Resume. Running and malformed responses consume an attempt and continue;
// transient fetch errors continue; fatal ones abort to failed.
func (s *Service) poll(ctx context.Context, userID, snapshotID string, j *job) error {
	maxAttempts := s.cfg.MaxAttempts

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		j.setAttempt(attempt)
		j.setProgress(pollProgress(attempt, maxAttempts))
		s.report(userID, LevelInfo, "Fetching data attempt %d/%d...", attempt, maxAttempts)

		if err := s.wait(ctx); err != nil {
			if j.isCancelled() {
				s.report(userID, LevelInfo, "Import cancelled")
				return nil
			}
			// Shutdown or caller cancellation: the pending record stays
			// persisted so the next bootstrap resumes this job.
			return err
		}

		res, err := s.client.Snapshot(ctx, snapshotID)
		if err != nil {
			var fe *scrape.FetchError
			if errors.As(err, &fe) && fe.Fatal() {
				return s.fail(userID, j, fmt.Sprintf("Unrecoverable error fetching snapshot: %v", err), err)
			}
			s.report(userID, LevelError, "Error in attempt %d: %v", attempt, err)
			continue
		}

		switch res.Status {
		case scrape.SnapshotRunning:
			s.report(userID, LevelInfo, "Snapshot is still processing, waiting...")
		case scrape.SnapshotReady:
			s.report(userID, LevelSuccess, "Successfully retrieved LinkedIn profile data!")
			return s.complete(userID, snapshotID, j, res.Profile)
		default:
			s.report(userID, LevelInfo, "Data format was unexpected. Trying again...")
		}
	}

	return s.fail(userID, j, "Failed to retrieve profile data after multiple attempts", ErrMaxAttemptsExceeded)
}

// complete performs the terminal write-back that makes pending -> completed
// externally visible. Refetching an already-finished job re-persists the
// same payload, so a duplicate poller is harmless.
func (s *Service) complete(userID, snapshotID string, j *job, payload json.RawMessage) error {
	if j.isCancelled() {
		return nil
	}

	j.setProgress(progressSaving)
	s.report(userID, LevelInfo, "Saving LinkedIn data to database...")

	// Terminal writes use a fresh context: the job is done remotely and the
	// outcome must be persisted even if the initiating request went away.
	if err := s.store.Complete(context.Background(), userID, payload); err != nil {
		return s.fail(userID, j, fmt.Sprintf("Error saving profile data: %v", err), err)
	}

	if s.archive != nil {
		if err := s.archive.Store(context.Background(), userID, snapshotID, payload); err != nil {
			s.log.WithFields(logger.Fields{
				logger.FieldUserID:     userID,
				logger.FieldSnapshotID: snapshotID,
			}).WithError(err).Warn("snapshot archive failed")
		}
	}

	j.setProgress(progressDone)
	s.report(userID, LevelSuccess, "LinkedIn profile data saved successfully!")
	return nil
}

// fail performs the failed terminal write-back and returns cause so callers
// of the synchronous API see what happened.
func (s *Service) fail(userID string, j *job, msg string, cause error) error {
	if j.isCancelled() {
		return nil
	}
	s.report(userID, LevelError, "%s", msg)
	if err := s.store.Fail(context.Background(), userID, msg); err != nil {
		s.log.WithField(logger.FieldUserID, userID).WithError(err).Error("failed to persist failed status")
	}
	return cause
}

// wait suspends for one poll interval, honoring cancellation.
func (s *Service) wait(ctx context.Context) error {
	if s.cfg.PollInterval <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.cfg.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Service) report(userID string, level Level, format string, args ...interface{}) {
	s.reporter.Report(userID, Event{
		Time:    time.Now(),
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	})
}
