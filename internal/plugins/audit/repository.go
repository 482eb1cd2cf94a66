package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/keyxmakerx/audittrail/internal/apperror"
	"github.com/keyxmakerx/audittrail/internal/severity"
)

// AuditRepository is the Log Store. All SQL lives in the concrete
// implementation; placeholders are "?" so the same queries run on MariaDB
// and SQLite.
type AuditRepository interface {
	// Insert stores a record and sets its ID.
	Insert(ctx context.Context, rec *LogRecord) error

	// Query returns one page of records matching f, most recent first, plus
	// the total number of matches.
	Query(ctx context.Context, f Filter, limit, offset int) ([]LogRecord, int, error)

	// FindByID returns a single record.
	FindByID(ctx context.Context, id int64) (*LogRecord, error)

	// DeleteByIDs removes records and returns how many were deleted.
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)

	// IDsOlderThan returns up to limit ids of records created before cutoff.
	IDsOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]int64, error)

	// CountRecent counts records of action from ip created at or after since.
	CountRecent(ctx context.Context, action, ip string, since time.Time) (int, error)
}

// auditRepository implements AuditRepository over database/sql.
type auditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new repository backed by the given DB pool.
func NewAuditRepository(db *sql.DB) AuditRepository {
	return &auditRepository{db: db}
}

const recordColumns = `id, actor_id, actor_ip, created_at, severity, action,
	object_kind, object_id, object_label, details, links, correlation_id`

// Insert stores a record. Links are serialized to JSON; empty details and
// links are stored as NULL.
func (r *auditRepository) Insert(ctx context.Context, rec *LogRecord) error {
	query := `INSERT INTO audit_log (actor_id, actor_ip, created_at, severity, severity_level, action,
	          object_kind, object_id, object_label, details, links, correlation_id)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var details, links sql.NullString
	if len(rec.Details) > 0 {
		details = sql.NullString{String: string(rec.Details), Valid: true}
	}
	if len(rec.Links) > 0 {
		b, err := json.Marshal(rec.Links)
		if err != nil {
			return fmt.Errorf("marshaling audit links: %w", err)
		}
		links = sql.NullString{String: string(b), Valid: true}
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.CreatedAt = dbTime(rec.CreatedAt)

	result, err := r.db.ExecContext(ctx, query,
		rec.ActorID, rec.ActorIP, rec.CreatedAt, rec.Severity.String(), int(rec.Severity), rec.Action,
		rec.ObjectKind, rec.ObjectID, rec.ObjectLabel, details, links, rec.CorrelationID,
	)
	if err != nil {
		return fmt.Errorf("inserting audit record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting audit record id: %w", err)
	}
	rec.ID = id

	return nil
}

// where builds the WHERE clause and arguments for f.
func where(f Filter) (string, []any) {
	var conds []string
	var args []any

	if f.Severity != nil {
		conds = append(conds, "severity_level = ?")
		args = append(args, int(*f.Severity))
	}
	if f.MinSeverity != nil {
		conds = append(conds, "severity_level <= ?")
		args = append(args, int(*f.MinSeverity))
	}
	if f.ActorID != nil {
		conds = append(conds, "actor_id = ?")
		args = append(args, *f.ActorID)
	}
	if f.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, f.Action)
	}
	if f.ObjectKind != "" {
		conds = append(conds, "object_kind = ?")
		args = append(args, f.ObjectKind)
	}
	if f.ObjectID != "" {
		conds = append(conds, "object_id = ?")
		args = append(args, f.ObjectID)
	}
	if !f.DateFrom.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, dbTime(f.DateFrom))
	}
	if !f.DateTo.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, dbTime(f.DateTo))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + escapeLike(s) + "%"
		conds = append(conds, `(object_label LIKE ? ESCAPE '!' OR action LIKE ? ESCAPE '!' OR details LIKE ? ESCAPE '!')`)
		args = append(args, like, like, like)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// dbTime normalizes t to the stored precision: UTC, whole seconds. SQLite
// compares timestamps as text, so every bound must share one format.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// escapeLike escapes LIKE wildcards in user input.
func escapeLike(s string) string {
	return strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`).Replace(s)
}

// Query returns records matching f ordered by most recent first.
func (r *auditRepository) Query(ctx context.Context, f Filter, limit, offset int) ([]LogRecord, int, error) {
	clause, args := where(f)

	// Count total matches for pagination.
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting audit records: %w", err)
	}

	query := `SELECT ` + recordColumns + ` FROM audit_log` + clause +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying audit records: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// FindByID returns a single record or a not-found error.
func (r *auditRepository) FindByID(ctx context.Context, id int64) (*LogRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM audit_log WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("querying audit record: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperror.NewNotFound("audit record not found")
	}
	return &records[0], nil
}

// DeleteByIDs removes the given records. An empty list is a no-op.
func (r *auditRepository) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM audit_log WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting audit records: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted audit records: %w", err)
	}
	return n, nil
}

// IDsOlderThan returns the oldest ids created before cutoff.
func (r *auditRepository) IDsOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM audit_log WHERE created_at < ? ORDER BY id LIMIT ?`,
		dbTime(cutoff), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing expired audit records: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning audit record id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit record ids: %w", err)
	}
	return ids, nil
}

// CountRecent counts matching records, used by the brute-force heuristic.
func (r *auditRepository) CountRecent(ctx context.Context, action, ip string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_log WHERE action = ? AND actor_ip = ? AND created_at >= ?`,
		action, ip, dbTime(since),
	).Scan(&count)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("counting recent audit records: %w", err)
	}
	return count, nil
}

// scanRecords scans audit_log rows. Expects recordColumns in order.
func scanRecords(rows *sql.Rows) ([]LogRecord, error) {
	var records []LogRecord
	for rows.Next() {
		var rec LogRecord
		var level string
		var actorIP, label, details, links, correlation sql.NullString
		if err := rows.Scan(
			&rec.ID, &rec.ActorID, &actorIP, &rec.CreatedAt, &level, &rec.Action,
			&rec.ObjectKind, &rec.ObjectID, &label, &details, &links, &correlation,
		); err != nil {
			return nil, fmt.Errorf("scanning audit record: %w", err)
		}

		rec.ActorIP = actorIP.String
		rec.ObjectLabel = label.String
		rec.CorrelationID = correlation.String
		rec.CreatedAt = rec.CreatedAt.UTC()
		if l, err := severity.Parse(level); err == nil {
			rec.Severity = l
		} else {
			rec.Severity = severity.Info
		}

		// Non-fatal: undecodable stored data reads as empty so one bad row
		// does not break the listing.
		if details.Valid && json.Valid([]byte(details.String)) {
			rec.Details = json.RawMessage(details.String)
		}
		if links.Valid && links.String != "" {
			if err := json.Unmarshal([]byte(links.String), &rec.Links); err != nil {
				rec.Links = nil
			}
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit rows: %w", err)
	}

	return records, nil
}
