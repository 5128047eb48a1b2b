package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ioc-registry/pkg/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

var (
	// ErrNotFound is returned when no threat matches the lookup.
	ErrNotFound = errors.New("threat not found")

	// ErrDuplicateValue is returned when an insert loses to the unique
	// constraint on the value column.
	ErrDuplicateValue = errors.New("threat value already exists")
)

// ThreatFilter narrows list and count queries. Nil fields match everything.
type ThreatFilter struct {
	Type     *models.IndicatorType
	Severity *models.Severity
}

func (f ThreatFilter) apply(q *bun.SelectQuery) *bun.SelectQuery {
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.Severity != nil {
		q = q.Where("severity = ?", *f.Severity)
	}
	return q
}

// InsertThreat saves a new threat record and scans the stored row back into
// the model. The detection time is assigned here when the caller left it
// unset. A unique violation on the value column surfaces as ErrDuplicateValue.
func (db *DB) InsertThreat(ctx context.Context, threat *models.Threat) error {
	if threat.DateDetected.IsZero() {
		threat.DateDetected = time.Now().UTC()
	}

	err := db.NewInsert().
		Model(threat).
		Returning("*").
		Scan(ctx)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateValue
		}
		return fmt.Errorf("error inserting threat: %v", err)
	}

	return nil
}

// GetThreatByID returns the threat with the given id, or ErrNotFound.
func (db *DB) GetThreatByID(ctx context.Context, id int64) (*models.Threat, error) {
	var threat models.Threat
	err := db.NewSelect().
		Model(&threat).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error querying threat: %v", err)
	}

	return &threat, nil
}

// GetThreatByValue returns the threat holding the given value, or ErrNotFound.
func (db *DB) GetThreatByValue(ctx context.Context, value string) (*models.Threat, error) {
	var threat models.Threat
	err := db.NewSelect().
		Model(&threat).
		Where("value = ?", value).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error querying threat by value: %v", err)
	}

	return &threat, nil
}

// DeleteThreat removes the threat with the given id, reporting whether a
// row was actually deleted. Deleting an absent id is not an error.
func (db *DB) DeleteThreat(ctx context.Context, id int64) (bool, error) {
	res, err := db.NewDelete().
		Model((*models.Threat)(nil)).
		Where("id = ?", id).
		Exec(ctx)

	if err != nil {
		return false, fmt.Errorf("error deleting threat: %v", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading deleted row count: %v", err)
	}

	return affected > 0, nil
}

// ListThreats returns threats matching the filter, newest detections first
// with ties broken by descending id. Offset and limit are applied after
// filtering and ordering.
func (db *DB) ListThreats(ctx context.Context, filter ThreatFilter, offset, limit int) ([]models.Threat, error) {
	threats := make([]models.Threat, 0)
	q := filter.apply(db.NewSelect().Model(&threats))

	err := q.
		Order("date_detected DESC", "id DESC").
		Offset(offset).
		Limit(limit).
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("error listing threats: %v", err)
	}

	return threats, nil
}

// CountThreats returns the number of threats matching the filter.
func (db *DB) CountThreats(ctx context.Context, filter ThreatFilter) (int, error) {
	count, err := filter.apply(db.NewSelect().Model((*models.Threat)(nil))).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("error counting threats: %v", err)
	}

	return count, nil
}

// CountThreatsBy returns per-value counts for the given column, which must
// be type or severity. Every member of the column's closed set appears in
// the result, zero when absent from the table.
func (db *DB) CountThreatsBy(ctx context.Context, column string) (map[string]int, error) {
	counts := make(map[string]int)
	switch column {
	case "type":
		for _, indicatorType := range models.AllIndicatorTypes() {
			counts[indicatorType.String()] = 0
		}
	case "severity":
		for _, severity := range models.AllSeverities() {
			counts[severity.String()] = 0
		}
	default:
		return nil, fmt.Errorf("cannot group threats by column %q", column)
	}

	var rows []struct {
		Key   string `bun:"key"`
		Count int    `bun:"count"`
	}
	err := db.NewSelect().
		Model((*models.Threat)(nil)).
		ColumnExpr("? as key", bun.Ident(column)).
		ColumnExpr("count(*) as count").
		Group(column).
		Scan(ctx, &rows)

	if err != nil {
		return nil, fmt.Errorf("error counting threats by %s: %v", column, err)
	}

	for _, row := range rows {
		counts[row.Key] = row.Count
	}

	return counts, nil
}

// Statistics aggregates registry-wide threat counts for the dashboard.
type Statistics struct {
	Total      int            `json:"total"`
	ByType     map[string]int `json:"by_type"`
	BySeverity map[string]int `json:"by_severity"`
}

// ThreatStatistics builds the summary counts. Every indicator type and
// severity level appears in the maps, zero when unused.
func (db *DB) ThreatStatistics(ctx context.Context) (*Statistics, error) {
	total, err := db.CountThreats(ctx, ThreatFilter{})
	if err != nil {
		return nil, err
	}

	byType, err := db.CountThreatsBy(ctx, "type")
	if err != nil {
		return nil, err
	}

	bySeverity, err := db.CountThreatsBy(ctx, "severity")
	if err != nil {
		return nil, err
	}

	return &Statistics{
		Total:      total,
		ByType:     byType,
		BySeverity: bySeverity,
	}, nil
}

// isUniqueViolation recognizes unique-constraint failures from both
// engines: SQLSTATE class 23 from Postgres, the "UNIQUE constraint failed"
// message from SQLite.
func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.IntegrityViolation()
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
