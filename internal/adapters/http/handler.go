// Package http is the thin HTTP surface listed at interface precision in
// spec.md §6: POST /tasks/transfer, GET /tasks/{task_id}, DELETE
// /tasks/{task_id}, plus a GET /playlists passthrough over a
// ports.ProviderPort. Everything it does is a direct pass-through to
// internal/taskstore or a provider driver — user accounts, session
// issuance, and OAuth2 link/unlink are explicitly out of core scope
// (spec.md §1) and are represented here only by the narrow Authenticator
// seam a real deployment would plug in. Grounded on the teacher's
// internal/adapters/http/handler.go gin routing/error-response shape.
package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/jpp0ca/tunesync-core/internal/domain"
	"github.com/jpp0ca/tunesync-core/internal/ports"
	"github.com/jpp0ca/tunesync-core/internal/taskstore"
)

// Authenticator resolves the caller's user id from an incoming request.
// The core never sees passwords, sessions, or JWTs — per spec.md §1 that
// machinery is plumbing outside this repo's scope. A real deployment
// supplies an implementation backed by its own session/JWT layer.
type Authenticator interface {
	UserIDFromRequest(r *http.Request) (string, error)
}

// Handler exposes the task-transfer HTTP surface over a taskstore.Store,
// plus a thin read-only playlists listing over a ports.DriverFactory.
type Handler struct {
	store   *taskstore.Store
	auth    Authenticator
	drivers ports.DriverFactory
}

// NewHandler builds a Handler over store, authenticating callers via auth.
// drivers may be nil, in which case GET /playlists is unavailable and
// responds 503 — useful for deployments that split the HTTP surface from
// provider credential wiring.
func NewHandler(store *taskstore.Store, auth Authenticator, drivers ports.DriverFactory) *Handler {
	return &Handler{store: store, auth: auth, drivers: drivers}
}

// RegisterRoutes wires the task-transfer surface onto r.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	{
		api.POST("/tasks/transfer", h.CreateTransfer)
		api.GET("/tasks/:task_id", h.GetTask)
		api.DELETE("/tasks/:task_id", h.CancelTask)
		api.GET("/playlists", h.ListPlaylists)
	}
}

// Health returns a simple liveness response.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ErrorResponse is the standard error payload shape.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// createTransferRequest is the POST /tasks/transfer body.
type createTransferRequest struct {
	FromProvider domain.ServiceName `json:"from_provider" binding:"required"`
	ToProvider   domain.ServiceName `json:"to_provider" binding:"required"`
	FromPlaylist string             `json:"from_playlist" binding:"required"`
}

// CreateTransfer enqueues a USER_INITIATED_PLAYLIST_TRANSFER task and
// returns immediately with its id, per spec.md §6's
// "POST /tasks/transfer → creates a task, returns immediately".
func (h *Handler) CreateTransfer(c *gin.Context) {
	userID, err := h.userID(c)
	if err != nil {
		return
	}

	var req createTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: err.Error()})
		return
	}

	task := domain.Task{
		TaskID:   taskstore.NewTaskID(),
		UserID:   userID,
		Kind:     domain.TaskKindPlaylistTransfer,
		Status:   domain.TaskQueued,
		QueuedAt: time.Now().Unix(),
		Arguments: domain.TransferArguments{
			FromProvider: req.FromProvider,
			ToProvider:   req.ToProvider,
			FromPlaylist: req.FromPlaylist,
		},
	}

	if err := h.store.Enqueue(c.Request.Context(), task); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"task_id": task.TaskID})
}

// GetTask returns the current state of a task record owned by the caller.
func (h *Handler) GetTask(c *gin.Context) {
	userID, err := h.userID(c)
	if err != nil {
		return
	}

	taskID := c.Param("task_id")
	task, found, err := h.findUserTask(c, userID, taskID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "no such task"})
		return
	}

	c.JSON(http.StatusOK, task)
}

// CancelTask marks a task CANCELED; the worker observes it cooperatively
// at its next cancellation check (spec.md §4.6, §4.7).
func (h *Handler) CancelTask(c *gin.Context) {
	userID, err := h.userID(c)
	if err != nil {
		return
	}

	taskID := c.Param("task_id")
	if err := h.store.MarkCancelled(c.Request.Context(), userID, taskID); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "canceled"})
}

// ListPlaylists returns the caller's playlists on a given provider — a
// thin passthrough over ports.ProviderPort.GetUserPlaylists, read-only and
// synchronous since it needs no matching (unlike a transfer, it is not a
// Non-goal to serve it at request time).
func (h *Handler) ListPlaylists(c *gin.Context) {
	if h.drivers == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "unavailable", Message: "playlist listing is not configured"})
		return
	}

	userID, err := h.userID(c)
	if err != nil {
		return
	}

	provider := domain.ServiceName(c.Query("provider"))
	if provider == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "query parameter 'provider' is required"})
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))

	driver, err := h.drivers.Build(c.Request.Context(), userID, provider)
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: "provider_error", Message: err.Error()})
		return
	}

	playlists, err := driver.GetUserPlaylists(c.Request.Context(), limit)
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: "provider_error", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, playlists)
}

// statusFor maps a closed domain.Kind to the HTTP status a caller should
// see, defaulting to 500 for anything that isn't a client-facing kind.
func statusFor(err error) int {
	kind, ok := domain.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case domain.KindAuthError:
		return http.StatusUnauthorized
	case domain.KindPlaylistNotFound, domain.KindTrackNotFound:
		return http.StatusNotFound
	case domain.KindInvalidArgument:
		return http.StatusBadRequest
	case domain.KindUnsupportedFeature:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) userID(c *gin.Context) (string, error) {
	userID, err := h.auth.UserIDFromRequest(c.Request)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: err.Error()})
		return "", err
	}
	return userID, nil
}

// findUserTask loads every task belonging to userID and returns the one
// matching taskID, since the store's key schema is keyed by (kind, user,
// task) and the kind isn't known to the caller up front.
func (h *Handler) findUserTask(c *gin.Context, userID, taskID string) (domain.Task, bool, error) {
	tasks, err := h.store.ListForUser(c.Request.Context(), userID)
	if err != nil {
		return domain.Task{}, false, errors.Wrap(err, "http: list user tasks")
	}
	for _, t := range tasks {
		if t.TaskID == taskID {
			return t, true, nil
		}
	}
	return domain.Task{}, false, nil
}
