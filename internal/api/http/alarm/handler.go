package alarm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	domain "github.com/oshokin/remote-alarm/internal/domain/alarm"
)

// Service abstracts the state machine operations the transport depends on.
type Service interface {
	PlayOnce(ctx context.Context) error
	Loop(ctx context.Context) error
	Stop(ctx context.Context)
	StopDelayed(ctx context.Context, delay time.Duration) bool
	SetVolume(ctx context.Context, volume int) error
	Snapshot() domain.Snapshot
	LoopDuration() time.Duration
	StopDelay() time.Duration
}

// StatusResponse is the JSON view of a state snapshot.
type StatusResponse struct {
	// RemainingSeconds is nil when no deadline is active.
	RemainingSeconds *int64 `json:"remaining_seconds"`
	// StartedAt is nil when idle.
	StartedAt *time.Time `json:"started_at"`
	Mode      string     `json:"mode"`
	Status    string     `json:"status"`
	Remaining string     `json:"remaining,omitempty"`
	Volume    int        `json:"volume"`
	IsPlaying bool       `json:"is_playing"`
}

// ActionResponse is returned by every mutating endpoint.
type ActionResponse struct {
	StatusResponse

	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Success bool   `json:"success"`
}

// VolumeRequest is the body of POST /api/volume.
type VolumeRequest struct {
	Volume *int `json:"volume" binding:"required"`
}

// Handler serves the alarm endpoints.
type Handler struct {
	// service provides the alarm operations.
	service Service
}

// NewHandler wires the provided service into HTTP handlers.
func NewHandler(service Service) *Handler {
	return &Handler{
		service: service,
	}
}

// Status returns the current state.
func (h *Handler) Status(c *gin.Context) {
	snapshot := h.service.Snapshot()

	c.JSON(http.StatusOK, toStatusResponse(&snapshot))
}

// Play plays the alarm once.
func (h *Handler) Play(c *gin.Context) {
	err := h.service.PlayOnce(c.Request.Context())

	h.respond(c, "Playing alarm once", err)
}

// Loop plays the alarm on repeat for the loop window.
func (h *Handler) Loop(c *gin.Context) {
	err := h.service.Loop(c.Request.Context())

	h.respond(c, "Looping alarm for "+h.service.LoopDuration().String(), err)
}

// Stop silences the alarm immediately.
func (h *Handler) Stop(c *gin.Context) {
	h.service.Stop(c.Request.Context())

	h.respond(c, "Stopped", nil)
}

// StopDelayed silences the alarm after the configured delay.
func (h *Handler) StopDelayed(c *gin.Context) {
	delay := h.service.StopDelay()

	message := "Nothing is playing"
	if h.service.StopDelayed(c.Request.Context(), delay) {
		message = "Stopping in " + delay.String()
	}

	h.respond(c, message, nil)
}

// SetVolume changes the output volume.
func (h *Handler) SetVolume(c *gin.Context) {
	var req VolumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond(c, "", &domain.ValidationError{Field: "volume", Reason: "body must be {\"volume\": <0-100>}"})

		return
	}

	err := h.service.SetVolume(c.Request.Context(), *req.Volume)

	h.respond(c, fmt.Sprintf("Volume set to %d%%", *req.Volume), err)
}

// respond writes the status with the outcome of an operation.
func (h *Handler) respond(c *gin.Context, message string, err error) {
	snapshot := h.service.Snapshot()
	resp := ActionResponse{
		StatusResponse: toStatusResponse(&snapshot),
		Message:        message,
		Success:        err == nil,
	}

	if err == nil {
		c.JSON(http.StatusOK, resp)

		return
	}

	resp.Message = ""
	resp.Error = err.Error()

	_ = c.Error(err)

	c.JSON(statusCode(err), resp)
}

// statusCode maps domain errors to HTTP status codes.
func statusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// toStatusResponse converts a snapshot to its JSON view.
func toStatusResponse(s *domain.Snapshot) StatusResponse {
	resp := StatusResponse{
		RemainingSeconds: s.RemainingSeconds(),
		Mode:             string(s.Mode),
		Status:           string(s.Status()),
		Volume:           s.Volume,
		IsPlaying:        s.IsPlaying,
	}

	if !s.StartedAt.IsZero() {
		startedAt := s.StartedAt
		resp.StartedAt = &startedAt
	}

	if remaining, ok := s.Remaining(); ok {
		resp.Remaining = formatRemaining(remaining)
	}

	return resp
}

// formatRemaining renders a duration as "5h 59m 58s".
func formatRemaining(d time.Duration) string {
	seconds := int64((d + time.Second - 1) / time.Second)
	hours, seconds := seconds/3600, seconds%3600
	minutes, seconds := seconds/60, seconds%60

	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}
