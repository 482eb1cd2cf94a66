package lifecycle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/audittrail/internal/apperror"
)

// maxBatchBytes bounds one ingest request body.
const maxBatchBytes = 8 << 20

// Handler handles the notification ingest API. Handlers are thin: decode,
// validate, hand over to the coordinator.
type Handler struct {
	coord *Coordinator
}

// NewHandler creates a new ingest handler.
func NewHandler(coord *Coordinator) *Handler {
	return &Handler{coord: coord}
}

// Notifications accepts one notification or an array of them
// (POST /api/v1/notifications). The batch is processed in order in one
// request scope. Pipeline failures never fail the request.
func (h *Handler) Notifications(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBatchBytes))
	if err != nil {
		return apperror.NewBadRequest("unreadable request body")
	}

	batch, err := DecodeNotifications(body)
	if err != nil {
		return apperror.NewBadRequest(err.Error())
	}

	// The pipeline runs to completion even if the client goes away.
	ctx := context.WithoutCancel(c.Request().Context())
	if GuardFrom(ctx) == nil {
		ctx = h.coord.Scope(ctx, CorrelationID(ctx))
	}
	for _, n := range batch {
		h.coord.Handle(ctx, n)
	}

	return c.JSON(http.StatusAccepted, map[string]int{"accepted": len(batch)})
}

// DecodeNotifications parses a single notification object or an array and
// validates every entry.
func DecodeNotifications(body []byte) ([]Notification, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty request body")
	}

	var batch []Notification
	if body[0] == '[' {
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, fmt.Errorf("invalid notification list")
		}
	} else {
		var n Notification
		if err := json.Unmarshal(body, &n); err != nil {
			return nil, fmt.Errorf("invalid notification")
		}
		batch = []Notification{n}
	}

	for i, n := range batch {
		if err := n.Validate(); err != nil {
			return nil, fmt.Errorf("notification %d: %v", i, err)
		}
	}
	return batch, nil
}

// Authentication event types.
const (
	AuthLoginFailed    = "login_failed"
	AuthLoginSucceeded = "login_succeeded"
)

// authEvent is the body of POST /api/v1/auth-events.
type authEvent struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	UserID   int64  `json:"user_id"`
	IP       string `json:"ip"`
}

// AuthEvents records a login success or failure (POST /api/v1/auth-events).
func (h *Handler) AuthEvents(c echo.Context) error {
	var ev authEvent
	if err := c.Bind(&ev); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if ev.IP == "" {
		ev.IP = c.Request().Header.Get("X-Client-IP")
	}

	ctx := context.WithoutCancel(c.Request().Context())
	switch ev.Type {
	case AuthLoginFailed:
		if ev.Username == "" {
			return apperror.NewBadRequest("username is required")
		}
		h.coord.LoginFailed(ctx, ev.Username, ev.IP)
	case AuthLoginSucceeded:
		if ev.UserID <= 0 {
			return apperror.NewBadRequest("user_id is required")
		}
		h.coord.LoginSucceeded(ctx, ev.UserID, ev.IP)
	default:
		return apperror.NewBadRequest("unknown auth event type " + strconv.Quote(ev.Type))
	}

	return c.NoContent(http.StatusAccepted)
}
