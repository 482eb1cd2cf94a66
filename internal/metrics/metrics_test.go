package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(recordsTotal.WithLabelValues("post", "notice"))
	Recorded("post", "notice")
	Recorded("post", "notice")
	if got := testutil.ToFloat64(recordsTotal.WithLabelValues("post", "notice")); got != before+2 {
		t.Errorf("records = %v, want %v", got, before+2)
	}

	before = testutil.ToFloat64(suppressedTotal.WithLabelValues(ReasonDuplicate))
	Suppressed(ReasonDuplicate)
	if got := testutil.ToFloat64(suppressedTotal.WithLabelValues(ReasonDuplicate)); got != before+1 {
		t.Errorf("suppressed = %v, want %v", got, before+1)
	}

	before = testutil.ToFloat64(snapshotsExpired)
	SnapshotsExpired(0)
	SnapshotsExpired(3)
	if got := testutil.ToFloat64(snapshotsExpired); got != before+3 {
		t.Errorf("expired = %v, want %v", got, before+3)
	}
}

func TestHandler(t *testing.T) {
	Notification("user", "after_mutation")

	e := echo.New()
	RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "audittrail_notifications_total") {
		t.Error("metrics output missing audittrail_notifications_total")
	}
}
