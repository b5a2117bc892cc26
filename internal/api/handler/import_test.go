package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yashwanth-3000/find.ai/internal/domain"
	"github.com/yashwanth-3000/find.ai/internal/importer"
	"github.com/yashwanth-3000/find.ai/internal/repository"
	"github.com/yashwanth-3000/find.ai/internal/scrape"
)

type memStore struct {
	mu       sync.Mutex
	profiles map[string]*domain.ApplicantProfile
}

func newMemStore() *memStore {
	return &memStore{profiles: make(map[string]*domain.ApplicantProfile)}
}

func (m *memStore) seed(userID, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &domain.ApplicantProfile{ID: userID, ImportStatus: domain.ImportStatusIdle}
	if url != "" {
		p.LinkedInURL = &url
	}
	m.profiles[userID] = p
}

func (m *memStore) Get(_ context.Context, userID string) (*domain.ApplicantProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) mutate(userID string, fn func(*domain.ApplicantProfile)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return repository.ErrNotFound
	}
	fn(p)
	return nil
}

func (m *memStore) SetLinkedInURL(_ context.Context, userID, url string) error {
	return m.mutate(userID, func(p *domain.ApplicantProfile) { p.LinkedInURL = &url })
}

func (m *memStore) MarkPending(_ context.Context, userID string) error {
	return m.mutate(userID, func(p *domain.ApplicantProfile) {
		p.ImportStatus = domain.ImportStatusPending
		p.ImportError = ""
	})
}

func (m *memStore) SetSnapshotID(_ context.Context, userID, snapshotID string) error {
	return m.mutate(userID, func(p *domain.ApplicantProfile) { p.SnapshotID = &snapshotID })
}

func (m *memStore) Complete(_ context.Context, userID string, payload json.RawMessage) error {
	return m.mutate(userID, func(p *domain.ApplicantProfile) {
		p.ImportStatus = domain.ImportStatusCompleted
		p.ProfileRaw = payload
		p.SnapshotID = nil
		p.ImportError = ""
	})
}

func (m *memStore) Fail(_ context.Context, userID, msg string) error {
	return m.mutate(userID, func(p *domain.ApplicantProfile) {
		p.ImportStatus = domain.ImportStatusFailed
		p.SnapshotID = nil
		p.ImportError = msg
	})
}

func (m *memStore) Reset(_ context.Context, userID string) error {
	return m.mutate(userID, func(p *domain.ApplicantProfile) {
		p.ImportStatus = domain.ImportStatusIdle
		p.SnapshotID = nil
		p.ImportError = ""
	})
}

type stubClient struct{}

func (stubClient) Trigger(context.Context, string) (string, error) { return "snap-1", nil }

func (stubClient) Snapshot(context.Context, string) (scrape.SnapshotResult, error) {
	return scrape.SnapshotResult{
		Status:  scrape.SnapshotReady,
		Profile: json.RawMessage(`{"name":"Alice"}`),
	}, nil
}

func newTestRouter(store *memStore) *gin.Engine {
	gin.SetMode(gin.TestMode)

	events := importer.NewRingReporter(32)
	svc := importer.New(importer.Config{MaxAttempts: 5, PollInterval: 0}, store, stubClient{},
		importer.WithReporter(events))
	h := NewImportHandler(svc, events)

	r := gin.New()
	r.POST("/api/v1/profiles/:id/import", h.StartImport)
	r.GET("/api/v1/profiles/:id/import", h.GetStatus)
	r.POST("/api/v1/profiles/:id/import/retry", h.Retry)
	r.POST("/api/v1/profiles/:id/import/bootstrap", h.Bootstrap)
	r.DELETE("/api/v1/profiles/:id/import", h.Cancel)
	return r
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func waitCompleted(t *testing.T, store *memStore, userID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p, err := store.Get(context.Background(), userID)
		if err == nil && p.ImportStatus == domain.ImportStatusCompleted {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("import for %s never completed", userID)
}

func TestStartImportAccepted(t *testing.T) {
	store := newMemStore()
	store.seed("u1", "")
	r := newTestRouter(store)

	w := doRequest(r, http.MethodPost, "/api/v1/profiles/u1/import",
		`{"url":"https://www.linkedin.com/in/alice"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body)
	}
	waitCompleted(t, store, "u1")
}

func TestStartImportUsesStoredURL(t *testing.T) {
	store := newMemStore()
	store.seed("u1", "https://www.linkedin.com/in/alice")
	r := newTestRouter(store)

	w := doRequest(r, http.MethodPost, "/api/v1/profiles/u1/import", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body)
	}
	waitCompleted(t, store, "u1")
}

func TestStartImportBadRequests(t *testing.T) {
	store := newMemStore()
	store.seed("u1", "")
	r := newTestRouter(store)

	cases := []struct {
		name string
		body string
	}{
		{"invalid url", `{"url":"https://example.com/in/alice"}`},
		{"no url anywhere", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(r, http.MethodPost, "/api/v1/profiles/u1/import", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", w.Code, w.Body)
			}
		})
	}
}

func TestStartImportUnknownProfile(t *testing.T) {
	r := newTestRouter(newMemStore())

	// No stored URL means the handler reads the profile first and surfaces
	// the missing record.
	w := doRequest(r, http.MethodPost, "/api/v1/profiles/ghost/import", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404: %s", w.Code, w.Body)
	}
}

func TestGetStatus(t *testing.T) {
	store := newMemStore()
	store.seed("u1", "")
	r := newTestRouter(store)

	w := doRequest(r, http.MethodPost, "/api/v1/profiles/u1/import",
		`{"url":"https://www.linkedin.com/in/alice"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("start status = %d: %s", w.Code, w.Body)
	}
	waitCompleted(t, store, "u1")

	w = doRequest(r, http.MethodGet, "/api/v1/profiles/u1/import", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body)
	}

	var resp struct {
		Import importer.Status  `json:"import"`
		Events []importer.Event `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Import.Status != domain.ImportStatusCompleted {
		t.Errorf("import status = %q, want completed", resp.Import.Status)
	}
	if resp.Import.Progress != 100 {
		t.Errorf("progress = %d, want 100", resp.Import.Progress)
	}
	if len(resp.Events) == 0 {
		t.Errorf("status response carries no import log")
	}
}

func TestGetStatusUnknownProfile(t *testing.T) {
	r := newTestRouter(newMemStore())
	w := doRequest(r, http.MethodGet, "/api/v1/profiles/ghost/import", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404: %s", w.Code, w.Body)
	}
}

func TestRetryConflictWhenNotFailed(t *testing.T) {
	store := newMemStore()
	store.seed("u1", "https://www.linkedin.com/in/alice")
	r := newTestRouter(store)

	w := doRequest(r, http.MethodPost, "/api/v1/profiles/u1/import/retry", "")
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409: %s", w.Code, w.Body)
	}
}

func TestRetryFromFailed(t *testing.T) {
	store := newMemStore()
	store.seed("u1", "https://www.linkedin.com/in/alice")
	if err := store.Fail(context.Background(), "u1", "boom"); err != nil {
		t.Fatal(err)
	}
	r := newTestRouter(store)

	w := doRequest(r, http.MethodPost, "/api/v1/profiles/u1/import/retry", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body)
	}
	waitCompleted(t, store, "u1")
}

func TestCancelIdlesPendingImport(t *testing.T) {
	store := newMemStore()
	store.seed("u1", "https://www.linkedin.com/in/alice")
	if err := store.MarkPending(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}
	r := newTestRouter(store)

	w := doRequest(r, http.MethodDelete, "/api/v1/profiles/u1/import", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body)
	}
	p, err := store.Get(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if p.ImportStatus != domain.ImportStatusIdle {
		t.Errorf("status = %q, want idle", p.ImportStatus)
	}
}

func TestBootstrapEndpoint(t *testing.T) {
	store := newMemStore()
	store.seed("u1", "https://www.linkedin.com/in/alice")
	if err := store.MarkPending(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetSnapshotID(context.Background(), "u1", "snap-9"); err != nil {
		t.Fatal(err)
	}
	r := newTestRouter(store)

	w := doRequest(r, http.MethodPost, "/api/v1/profiles/u1/import/bootstrap", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body)
	}

	var resp struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Action != string(importer.BootstrapResumed) {
		t.Errorf("action = %q, want resumed", resp.Action)
	}
	waitCompleted(t, store, "u1")
}
