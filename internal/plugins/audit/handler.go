package audit

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/audittrail/internal/apperror"
	"github.com/keyxmakerx/audittrail/internal/severity"
)

// Handler handles HTTP requests for log queries and retention. Handlers are
// thin: bind request, call service, render response.
type Handler struct {
	service AuditService
}

// NewHandler creates a new audit handler.
func NewHandler(service AuditService) *Handler {
	return &Handler{service: service}
}

// List returns a page of records (GET /api/v1/logs).
func (h *Handler) List(c echo.Context) error {
	f, err := ParseFilter(c.QueryParams().Get)
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	perPage, _ := strconv.Atoi(c.QueryParam("per_page"))

	result, err := h.service.Query(c.Request().Context(), f, page, perPage)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Show returns one record (GET /api/v1/logs/:id).
func (h *Handler) Show(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return apperror.NewBadRequest("invalid record id")
	}

	rec, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

// deleteRequest is the body of a bulk delete.
type deleteRequest struct {
	IDs []int64 `json:"ids"`
}

// Delete removes records by id (DELETE /api/v1/logs).
func (h *Handler) Delete(c echo.Context) error {
	var req deleteRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	n, err := h.service.Delete(c.Request().Context(), req.IDs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int64{"deleted": n})
}

// ParseFilter builds a Filter from named parameters. get returns "" for an
// absent parameter; both query strings and CLI flags are read through it.
func ParseFilter(get func(string) string) (Filter, error) {
	var f Filter

	if s := get("severity"); s != "" {
		l, err := severity.Parse(s)
		if err != nil {
			return f, apperror.NewBadRequest("invalid severity")
		}
		f.Severity = &l
	}
	if s := get("min_severity"); s != "" {
		l, err := severity.Parse(s)
		if err != nil {
			return f, apperror.NewBadRequest("invalid min_severity")
		}
		f.MinSeverity = &l
	}
	if s := get("actor_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return f, apperror.NewBadRequest("invalid actor_id")
		}
		f.ActorID = &id
	}

	f.Action = strings.TrimSpace(get("action"))
	f.ObjectKind = strings.TrimSpace(get("object_kind"))
	f.ObjectID = strings.TrimSpace(get("object_id"))
	f.Search = strings.TrimSpace(get("search"))

	var err error
	if f.DateFrom, err = parseDate(get("date_from"), false); err != nil {
		return f, apperror.NewBadRequest("invalid date_from")
	}
	if f.DateTo, err = parseDate(get("date_to"), true); err != nil {
		return f, apperror.NewBadRequest("invalid date_to")
	}
	return f, nil
}

// parseDate accepts RFC 3339 timestamps and plain dates. A plain date used
// as an upper bound covers the whole day.
func parseDate(s string, endOfDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t, nil
}
