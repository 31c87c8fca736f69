package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpp0ca/tunesync-core/internal/domain"
	"github.com/jpp0ca/tunesync-core/internal/ports"
	"github.com/jpp0ca/tunesync-core/internal/taskstore"
)

// stubDriverFactory is a minimal ports.DriverFactory for ListPlaylists tests.
type stubDriverFactory struct {
	playlists []domain.Playlist
	err       error
}

func (f *stubDriverFactory) Build(ctx context.Context, userID string, provider domain.ServiceName) (ports.ProviderPort, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &stubDriver{playlists: f.playlists}, nil
}

// stubDriver satisfies ports.ProviderPort with only GetUserPlaylists wired.
type stubDriver struct {
	playlists []domain.Playlist
}

func (d *stubDriver) Name() domain.ServiceName           { return domain.ServiceSpotify }
func (d *stubDriver) SupportsDirectISRCQuerying() bool    { return false }
func (d *stubDriver) SupportsMusicBrainzIDQuerying() bool { return false }
func (d *stubDriver) GetUserPlaylists(ctx context.Context, limit int) ([]domain.Playlist, error) {
	return d.playlists, nil
}
func (d *stubDriver) GetPlaylist(ctx context.Context, id string) (domain.Playlist, error) {
	return domain.Playlist{}, nil
}
func (d *stubDriver) GetPlaylistTracks(ctx context.Context, id string, limit int) ([]domain.Track, error) {
	return nil, nil
}
func (d *stubDriver) CreatePlaylist(ctx context.Context, name string) (domain.Playlist, error) {
	return domain.Playlist{}, nil
}
func (d *stubDriver) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	return nil
}
func (d *stubDriver) GetTrack(ctx context.Context, id string) (domain.Track, error) {
	return domain.Track{}, nil
}
func (d *stubDriver) SearchTracks(ctx context.Context, query string, limit int) ([]domain.Track, error) {
	return nil, nil
}
func (d *stubDriver) GetTrackByISRC(ctx context.Context, isrc string) (domain.Track, error) {
	return domain.Track{}, nil
}
func (d *stubDriver) GetSavedTracks(ctx context.Context, limit int) ([]domain.Track, error) {
	return nil, nil
}
func (d *stubDriver) GetRandomTrack(ctx context.Context) (*domain.Track, error) { return nil, nil }

// fakeRedis is a minimal in-memory redisCommands, mirroring
// internal/taskstore's own test fake so this package can exercise a real
// *taskstore.Store without a live Redis instance.
type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeRedis() *fakeRedis { return &fakeRedis{values: make(map[string]string)} }

func (f *fakeRedis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *fakeRedis) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeRedis) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return nil
}

func (f *fakeRedis) RPush(ctx context.Context, list, value string) error { return nil }

func (f *fakeRedis) BLPop(ctx context.Context, list string, timeout time.Duration) (string, bool, error) {
	return "", false, nil
}

func (f *fakeRedis) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.values {
		keys = append(keys, k)
	}
	return keys, nil
}

func setupRouter(store *taskstore.Store) *gin.Engine {
	return setupRouterWithDrivers(store, nil)
}

func setupRouterWithDrivers(store *taskstore.Store, drivers ports.DriverFactory) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(store, BearerUserIDAuthenticator{}, drivers)
	h.RegisterRoutes(r)
	return r
}

func TestHealth(t *testing.T) {
	r := setupRouter(taskstore.New(newFakeRedis()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateTransfer_RequiresAuth(t *testing.T) {
	r := setupRouter(taskstore.New(newFakeRedis()))

	body, _ := json.Marshal(createTransferRequest{
		FromProvider: domain.ServiceSpotify,
		ToProvider:   domain.ServiceYouTube,
		FromPlaylist: "pl-1",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/transfer", bytes.NewReader(body))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateTransfer_EnqueuesAndReturnsTaskID(t *testing.T) {
	r := setupRouter(taskstore.New(newFakeRedis()))

	body, _ := json.Marshal(createTransferRequest{
		FromProvider: domain.ServiceSpotify,
		ToProvider:   domain.ServiceYouTube,
		FromPlaylist: "pl-1",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/transfer", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer user-1")
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["task_id"])
}

func TestGetTask_RoundTripsThroughCreate(t *testing.T) {
	store := taskstore.New(newFakeRedis())
	r := setupRouter(store)

	createBody, _ := json.Marshal(createTransferRequest{
		FromProvider: domain.ServiceSpotify,
		ToProvider:   domain.ServiceYouTube,
		FromPlaylist: "pl-1",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/transfer", bytes.NewReader(createBody))
	req.Header.Set("Authorization", "Bearer user-1")
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	var created map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	taskID := created["task_id"]

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+taskID, nil)
	req2.Header.Set("Authorization", "Bearer user-1")
	r.ServeHTTP(w2, req2)

	require.Equal(t, http.StatusOK, w2.Code)

	var task domain.Task
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &task))
	assert.Equal(t, taskID, task.TaskID)
	assert.Equal(t, domain.TaskQueued, task.Status)
}

func TestGetTask_NotFound(t *testing.T) {
	r := setupRouter(taskstore.New(newFakeRedis()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/does-not-exist", nil)
	req.Header.Set("Authorization", "Bearer user-1")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelTask(t *testing.T) {
	store := taskstore.New(newFakeRedis())
	r := setupRouter(store)

	createBody, _ := json.Marshal(createTransferRequest{
		FromProvider: domain.ServiceSpotify,
		ToProvider:   domain.ServiceYouTube,
		FromPlaylist: "pl-1",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/transfer", bytes.NewReader(createBody))
	req.Header.Set("Authorization", "Bearer user-1")
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	var created map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	taskID := created["task_id"]

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodDelete, "/api/v1/tasks/"+taskID, nil)
	req2.Header.Set("Authorization", "Bearer user-1")
	r.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusOK, w2.Code)

	w3 := httptest.NewRecorder()
	req3 := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+taskID, nil)
	req3.Header.Set("Authorization", "Bearer user-1")
	r.ServeHTTP(w3, req3)
	var task domain.Task
	require.NoError(t, json.Unmarshal(w3.Body.Bytes(), &task))
	assert.Equal(t, domain.TaskCanceled, task.Status)
}

func TestListPlaylists_Unconfigured(t *testing.T) {
	r := setupRouter(taskstore.New(newFakeRedis()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/playlists?provider=spotify", nil)
	req.Header.Set("Authorization", "Bearer user-1")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestListPlaylists_MissingProvider(t *testing.T) {
	r := setupRouterWithDrivers(taskstore.New(newFakeRedis()), &stubDriverFactory{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/playlists", nil)
	req.Header.Set("Authorization", "Bearer user-1")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListPlaylists_Success(t *testing.T) {
	drivers := &stubDriverFactory{playlists: []domain.Playlist{
		{Name: "Road Trip", ServiceName: domain.ServiceSpotify, ServiceID: "pl-1"},
	}}
	r := setupRouterWithDrivers(taskstore.New(newFakeRedis()), drivers)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/playlists?provider=spotify", nil)
	req.Header.Set("Authorization", "Bearer user-1")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var playlists []domain.Playlist
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &playlists))
	require.Len(t, playlists, 1)
	assert.Equal(t, "Road Trip", playlists[0].Name)
}

func TestListPlaylists_DriverBuildError(t *testing.T) {
	drivers := &stubDriverFactory{err: domain.NewError(domain.KindAuthError, "no credential")}
	r := setupRouterWithDrivers(taskstore.New(newFakeRedis()), drivers)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/playlists?provider=spotify", nil)
	req.Header.Set("Authorization", "Bearer user-1")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearerUserIDAuthenticator_MissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := BearerUserIDAuthenticator{}.UserIDFromRequest(req)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Authorization"))
}
