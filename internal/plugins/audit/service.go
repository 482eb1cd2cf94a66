package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/keyxmakerx/audittrail/internal/apperror"
)

// Page size bounds for log queries.
const (
	defaultPerPage = 50
	maxPerPage     = 500
)

// purgeBatch is how many ids one retention delete removes.
const purgeBatch = 500

// AuditService handles business logic for the log: validation, paging
// limits and retention. Persistence is delegated to the repository.
type AuditService interface {
	// Record validates and persists a record.
	Record(ctx context.Context, rec *LogRecord) error

	// Query returns one page of records. Pages are 1-indexed.
	Query(ctx context.Context, f Filter, page, perPage int) (*Page, error)

	// Get returns a single record.
	Get(ctx context.Context, id int64) (*LogRecord, error)

	// Delete removes records by id.
	Delete(ctx context.Context, ids []int64) (int64, error)

	// Purge removes every record older than age, in batches.
	Purge(ctx context.Context, age time.Duration) (int64, error)
}

// auditService implements AuditService.
type auditService struct {
	repo AuditRepository
	now  func() time.Time
}

// NewAuditService creates a new audit service with the given repository.
func NewAuditService(repo AuditRepository) AuditService {
	return &auditService{repo: repo, now: time.Now}
}

// Record validates and persists a record. Failures are logged here so
// fire-and-forget callers still leave a trace.
func (s *auditService) Record(ctx context.Context, rec *LogRecord) error {
	if rec.Action == "" {
		return apperror.NewBadRequest("action is required for audit record")
	}
	if rec.ObjectKind == "" {
		return apperror.NewBadRequest("object kind is required for audit record")
	}
	if !rec.Severity.Valid() {
		return apperror.NewValidation("invalid severity")
	}

	if err := s.repo.Insert(ctx, rec); err != nil {
		slog.Error("failed to write audit record",
			slog.String("action", rec.Action),
			slog.String("object_kind", rec.ObjectKind),
			slog.String("object_id", rec.ObjectID),
			slog.Any("error", err),
		)
		return apperror.NewInternal(fmt.Errorf("writing audit record: %w", err))
	}

	return nil
}

// Query returns a page of records. Invalid page numbers are clamped to 1 and
// page sizes to [1, maxPerPage].
func (s *auditService) Query(ctx context.Context, f Filter, page, perPage int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	if !f.DateFrom.IsZero() && !f.DateTo.IsZero() && f.DateTo.Before(f.DateFrom) {
		return nil, apperror.NewValidation("date_to must not be before date_from")
	}

	offset := (page - 1) * perPage
	records, total, err := s.repo.Query(ctx, f, perPage, offset)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("querying audit log: %w", err))
	}
	if records == nil {
		records = []LogRecord{}
	}

	return &Page{Records: records, Total: total, Page: page, PerPage: perPage}, nil
}

// Get returns a single record.
func (s *auditService) Get(ctx context.Context, id int64) (*LogRecord, error) {
	if id <= 0 {
		return nil, apperror.NewBadRequest("invalid record id")
	}
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if _, ok := err.(*apperror.AppError); ok {
			return nil, err
		}
		return nil, apperror.NewInternal(fmt.Errorf("getting audit record: %w", err))
	}
	return rec, nil
}

// Delete removes records by id.
func (s *auditService) Delete(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, apperror.NewBadRequest("at least one id is required")
	}
	n, err := s.repo.DeleteByIDs(ctx, ids)
	if err != nil {
		return 0, apperror.NewInternal(fmt.Errorf("deleting audit records: %w", err))
	}
	slog.Info("audit records deleted", slog.Int64("count", n))
	return n, nil
}

// Purge deletes records older than age by id list, purgeBatch at a time.
func (s *auditService) Purge(ctx context.Context, age time.Duration) (int64, error) {
	if age <= 0 {
		return 0, apperror.NewValidation("retention age must be positive")
	}
	cutoff := s.now().Add(-age)

	var total int64
	for {
		ids, err := s.repo.IDsOlderThan(ctx, cutoff, purgeBatch)
		if err != nil {
			return total, apperror.NewInternal(fmt.Errorf("listing expired audit records: %w", err))
		}
		if len(ids) == 0 {
			break
		}
		n, err := s.repo.DeleteByIDs(ctx, ids)
		if err != nil {
			return total, apperror.NewInternal(fmt.Errorf("purging audit records: %w", err))
		}
		total += n
		if len(ids) < purgeBatch || n == 0 {
			break
		}
	}

	slog.Info("audit log purged",
		slog.Int64("deleted", total),
		slog.Time("cutoff", cutoff),
	)
	return total, nil
}
