package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"facewatch/internal/config"
	"facewatch/internal/models"
	"facewatch/internal/services/notify"
	"facewatch/internal/services/recording"
)

// ========================================
// Landing page
// ========================================

func TestRootHandler_RedirectsToIndex(t *testing.T) {
	rec := httptest.NewRecorder()
	RootHandler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusMovedPermanently {
		t.Errorf("Expected 301, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/index.html" {
		t.Errorf("Expected Location /index.html, got %q", loc)
	}

	rec = httptest.NewRecorder()
	RootHandler(rec, httptest.NewRequest(http.MethodGet, "/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown path, got %d", rec.Code)
	}
}

func TestIndexHandler_ReferencesStream(t *testing.T) {
	rec := httptest.NewRecorder()
	IndexHandler(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Unexpected Content-Type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `src="stream.mjpg"`) {
		t.Error("Landing page should reference the stream endpoint")
	}
}

// ========================================
// Recordings
// ========================================

func setupRecordings(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"recording_20250101-100000_000.avi", "recording_20250102-100000_000.avi"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("video-"+name), 0644); err != nil {
			t.Fatalf("Failed to write recording: %v", err)
		}
	}
	return dir
}

func TestRecordingsHandler_ListsNewestFirst(t *testing.T) {
	dir := setupRecordings(t)
	rec := httptest.NewRecorder()
	RecordingsHandler(dir, newTestLogger(t))(rec, httptest.NewRequest(http.MethodGet, "/recordings", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	newer := strings.Index(body, "recording_20250102")
	older := strings.Index(body, "recording_20250101")
	if newer < 0 || older < 0 || newer > older {
		t.Errorf("Expected both recordings listed newest first, got %s", body)
	}
	if !strings.Contains(body, `href="/recordings/recording_20250102-100000_000.avi"`) {
		t.Errorf("Missing download link in %s", body)
	}
}

func TestRecordingsHandler_Download(t *testing.T) {
	dir := setupRecordings(t)
	rec := httptest.NewRecorder()
	name := "recording_20250101-100000_000.avi"
	RecordingsHandler(dir, newTestLogger(t))(rec, httptest.NewRequest(http.MethodGet, "/recordings/"+name, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Errorf("Unexpected Content-Type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="`+name+`"` {
		t.Errorf("Unexpected Content-Disposition %q", cd)
	}
	if rec.Body.String() != "video-"+name {
		t.Errorf("Unexpected body %q", rec.Body.String())
	}
}

func TestRecordingsHandler_RejectsTraversal(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "recordings")
	os.MkdirAll(dir, 0755)
	os.WriteFile(filepath.Join(root, "secret.txt"), []byte("secret"), 0644)

	handler := RecordingsHandler(dir, newTestLogger(t))
	for _, path := range []string{"/recordings/..%2fsecret.txt", "/recordings/missing.avi", "/recordings/.."} {
		u, _ := url.Parse(path)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.URL = u
		rec := httptest.NewRecorder()
		handler(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
		if strings.Contains(rec.Body.String(), "secret") {
			t.Errorf("%s: leaked file outside the recordings directory", path)
		}
	}
}

func TestIsValidFilename(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"recording_20250101-100000_000.avi", true},
		{"clip.avi", true},
		{"", false},
		{".", false},
		{"..", false},
		{"../secret", false},
		{"a/b.avi", false},
		{`a\b.avi`, false},
		{"file\x00name.avi", false},
	}

	for _, tt := range tests {
		if got := isValidFilename(tt.name); got != tt.valid {
			t.Errorf("isValidFilename(%q) = %v, expected %v", tt.name, got, tt.valid)
		}
	}
}

// ========================================
// API
// ========================================

type fakeRecordingRepo struct {
	recordings []models.Recording
	filter     *models.RecordingFilter
	deleted    []string
}

func (f *fakeRecordingRepo) StartSession(*models.Recording) (int64, error) { return 0, nil }
func (f *fakeRecordingRepo) FinishSession(int64, time.Time, int64, string) error {
	return nil
}
func (f *fakeRecordingRepo) Insert(*models.Recording) (int64, error) { return 0, nil }
func (f *fakeRecordingRepo) GetByFilename(name string) (*models.Recording, error) {
	for i := range f.recordings {
		if f.recordings[i].Filename == name {
			return &f.recordings[i], nil
		}
	}
	return nil, nil
}
func (f *fakeRecordingRepo) GetAll(filter *models.RecordingFilter) ([]models.Recording, error) {
	f.filter = filter
	return f.recordings, nil
}
func (f *fakeRecordingRepo) GetTotalCount(*models.RecordingFilter) (int, error) {
	return 30, nil
}
func (f *fakeRecordingRepo) Exists(string) (bool, error) { return false, nil }
func (f *fakeRecordingRepo) DeleteByFilename(name string) error {
	f.deleted = append(f.deleted, name)
	return nil
}

type fakeAlertRepo struct {
	limit int
}

func (f *fakeAlertRepo) Insert(*models.Alert) error { return nil }
func (f *fakeAlertRepo) GetRecent(limit int) ([]models.Alert, error) {
	f.limit = limit
	return []models.Alert{{ID: "a", Subject: "Unauthorized access detected"}}, nil
}
func (f *fakeAlertRepo) GetStats() (*models.AlertStats, error) {
	return &models.AlertStats{TotalAlerts: 1, PerSubject: map[string]int{"Unauthorized access detected": 1}}, nil
}
func (f *fakeAlertRepo) DeleteAll() error { return nil }

func TestRecordingsAPIHandler_Pagination(t *testing.T) {
	repo := &fakeRecordingRepo{recordings: []models.Recording{{ID: 1, Filename: "a.avi"}}}
	rec := httptest.NewRecorder()
	RecordingsAPIHandler(repo, newTestLogger(t))(rec, httptest.NewRequest(http.MethodGet, "/api/recordings?page=2&limit=10&status=finished", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if repo.filter.Offset != 10 || repo.filter.Limit != 10 || repo.filter.Status != "finished" {
		t.Errorf("Unexpected filter %+v", repo.filter)
	}

	var data RecordingsData
	if err := json.NewDecoder(rec.Body).Decode(&data); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if data.TotalPages != 3 || data.CurrentPage != 2 || data.Length != 30 {
		t.Errorf("Unexpected pagination %+v", data)
	}
}

func TestDeleteRecordingHandler(t *testing.T) {
	dir := setupRecordings(t)
	finished := "recording_20250101-100000_000.avi"
	active := "recording_20250102-100000_000.avi"
	repo := &fakeRecordingRepo{recordings: []models.Recording{
		{ID: 1, Filename: finished, Status: models.RecordingFinished},
		{ID: 2, Filename: active, Status: models.RecordingActive},
	}}
	handler := DeleteRecordingHandler(dir, repo, newTestLogger(t))

	tests := []struct {
		name     string
		expected int
	}{
		{"unknown.avi", http.StatusNotFound},
		{"..", http.StatusNotFound},
		{active, http.StatusConflict},
		{finished, http.StatusNoContent},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodDelete, "/api/recordings/x", nil)
		req.SetPathValue("name", tt.name)
		rec := httptest.NewRecorder()
		handler(rec, req)
		if rec.Code != tt.expected {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.expected, rec.Code)
		}
	}

	if len(repo.deleted) != 1 || repo.deleted[0] != finished {
		t.Errorf("Expected only %s deleted from the store, got %v", finished, repo.deleted)
	}
	if _, err := os.Stat(filepath.Join(dir, finished)); !os.IsNotExist(err) {
		t.Errorf("Finished recording file should be removed")
	}
	if _, err := os.Stat(filepath.Join(dir, active)); err != nil {
		t.Errorf("Active recording file must be kept: %v", err)
	}
}

func TestAlertsHandler_DefaultLimit(t *testing.T) {
	repo := &fakeAlertRepo{}
	rec := httptest.NewRecorder()
	AlertsHandler(repo, newTestLogger(t))(rec, httptest.NewRequest(http.MethodGet, "/api/alerts?limit=abc", nil))

	if repo.limit != 50 {
		t.Errorf("Expected default limit 50, got %d", repo.limit)
	}
	var data AlertsData
	if err := json.NewDecoder(rec.Body).Decode(&data); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(data.Alerts) != 1 || data.Stats.TotalAlerts != 1 {
		t.Errorf("Unexpected payload %+v", data)
	}
}

func TestStatusHandler(t *testing.T) {
	status := func() PipelineStatus {
		return PipelineStatus{
			Recording:     recording.Status{State: "recording", Frames: 12},
			FrameVersion:  42,
			Viewers:       3,
			Notifications: notify.Stats{Queued: 5, Dropped: 1},
			MQTTPublished: 4,
		}
	}
	rec := httptest.NewRecorder()
	StatusHandler(status, newTestLogger(t))(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	var got map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if got["frame_version"].(float64) != 42 || got["viewers"].(float64) != 3 || got["mqtt_published"].(float64) != 4 {
		t.Errorf("Unexpected status %v", got)
	}
	if got["recording"].(map[string]interface{})["state"] != "recording" {
		t.Errorf("Unexpected recording status %v", got["recording"])
	}
}

// ========================================
// Logs and login
// ========================================

func TestLogsHandlers(t *testing.T) {
	l := newTestLogger(t)
	l.Info("hello from test")

	rec := httptest.NewRecorder()
	ShowLogsHandler(l, "info.log")(rec, httptest.NewRequest(http.MethodGet, "/logs/info", nil))
	if !strings.Contains(rec.Body.String(), "hello from test") {
		t.Errorf("Expected log entry in %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	ClearLogsHandler(l, "info.log")(rec, httptest.NewRequest(http.MethodGet, "/logs/info/clear", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}

	info, err := os.Stat(filepath.Join(l.Dir(), "info.log"))
	if err != nil || info.Size() != 0 {
		t.Errorf("Expected empty info.log after clear")
	}
}

func TestLoginHandler(t *testing.T) {
	cfg := config.Default()
	cfg.Password = "s3cret"
	handler := LoginHandler(cfg, newTestLogger(t))

	form := url.Values{"password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong password, got %d", rec.Code)
	}

	form = url.Values{"password": {"s3cret"}}
	req = httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("Expected 303, got %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value == "" || cookies[0].Value == "s3cret" {
		t.Errorf("Unexpected cookies %+v", cookies)
	}

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET, got %d", rec.Code)
	}
}
