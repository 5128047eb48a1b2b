package threat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"ioc-registry/pkg/database"
	"ioc-registry/pkg/metrics"
	"ioc-registry/pkg/models"
)

const (
	maxValueLength  = 500
	maxSourceLength = 100

	// DefaultListLimit applies when a listing names no limit.
	DefaultListLimit = 100
	// MaxListLimit caps how many threats a single listing may return.
	MaxListLimit = 1000

	healthPingTimeout = 2 * time.Second
)

type Service struct {
	db     *database.DB
	logger *slog.Logger
}

func NewService(db *database.DB, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger,
	}
}

// CreateInput carries a threat submission before validation.
type CreateInput struct {
	Type     string
	Value    string
	Severity string
	Source   *string
}

// Create validates and registers a new threat. The value is trimmed before
// any checks. Duplicates are rejected with a ConflictError naming the
// record that already holds the value; the store's unique constraint stays
// authoritative when two writers race past the pre-check.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Threat, error) {
	value := strings.TrimSpace(input.Value)
	if value == "" {
		return nil, &ValidationError{Field: "value", Reason: "cannot be empty or whitespace"}
	}
	if utf8.RuneCountInString(value) > maxValueLength {
		return nil, &ValidationError{Field: "value", Reason: fmt.Sprintf("cannot exceed %d characters", maxValueLength)}
	}

	indicatorType := models.IndicatorType(input.Type)
	if !indicatorType.Valid() {
		return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("must be one of %v", models.AllIndicatorTypes())}
	}

	severity := models.Severity(input.Severity)
	if !severity.Valid() {
		return nil, &ValidationError{Field: "severity", Reason: fmt.Sprintf("must be one of %v", models.AllSeverities())}
	}

	if input.Source != nil && utf8.RuneCountInString(*input.Source) > maxSourceLength {
		return nil, &ValidationError{Field: "source", Reason: fmt.Sprintf("cannot exceed %d characters", maxSourceLength)}
	}

	// Fast path only; the unique constraint settles concurrent creates.
	existing, err := s.db.GetThreatByValue(ctx, value)
	if err == nil {
		metrics.ThreatConflicts.Inc()
		return nil, &ConflictError{Value: value, ExistingID: existing.ID}
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("error checking for existing threat: %v", err)
	}

	threat := &models.Threat{
		Type:     indicatorType,
		Value:    value,
		Severity: severity,
		Source:   input.Source,
	}

	err = s.db.InsertThreat(ctx, threat)
	if errors.Is(err, database.ErrDuplicateValue) {
		// A concurrent writer won the race between the pre-check and the
		// insert. Report the conflict against the surviving record.
		metrics.ThreatConflicts.Inc()
		return nil, s.conflictFor(ctx, value)
	}
	if err != nil {
		return nil, err
	}

	metrics.ThreatsRegistered.WithLabelValues(threat.Type.String(), threat.Severity.String()).Inc()
	s.logger.Info("Threat registered",
		"id", threat.ID,
		"type", threat.Type,
		"severity", threat.Severity)

	return threat, nil
}

func (s *Service) conflictFor(ctx context.Context, value string) error {
	existing, err := s.db.GetThreatByValue(ctx, value)
	if err != nil {
		return fmt.Errorf("error resolving duplicate threat: %v", err)
	}
	return &ConflictError{Value: value, ExistingID: existing.ID}
}

// ListInput narrows and pages a threat listing. Nil Skip and Limit take
// the defaults; empty filter strings match everything.
type ListInput struct {
	Type     string
	Severity string
	Skip     *int
	Limit    *int
}

// List returns threats matching the input, newest detections first. An
// empty result is not an error.
func (s *Service) List(ctx context.Context, input ListInput) ([]models.Threat, error) {
	skip := 0
	if input.Skip != nil {
		skip = *input.Skip
	}
	if skip < 0 {
		return nil, &ValidationError{Field: "skip", Reason: "must not be negative"}
	}

	limit := DefaultListLimit
	if input.Limit != nil {
		limit = *input.Limit
	}
	if limit < 1 || limit > MaxListLimit {
		return nil, &ValidationError{Field: "limit", Reason: fmt.Sprintf("must be between 1 and %d", MaxListLimit)}
	}

	var filter database.ThreatFilter
	if input.Type != "" {
		indicatorType := models.IndicatorType(input.Type)
		if !indicatorType.Valid() {
			return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("must be one of %v", models.AllIndicatorTypes())}
		}
		filter.Type = &indicatorType
	}
	if input.Severity != "" {
		severity := models.Severity(input.Severity)
		if !severity.Valid() {
			return nil, &ValidationError{Field: "severity", Reason: fmt.Sprintf("must be one of %v", models.AllSeverities())}
		}
		filter.Severity = &severity
	}

	return s.db.ListThreats(ctx, filter, skip, limit)
}

// Get returns the threat with the given id, or a NotFoundError.
func (s *Service) Get(ctx context.Context, id int64) (*models.Threat, error) {
	threat, err := s.db.GetThreatByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}

	return threat, nil
}

// Delete removes the threat with the given id. Deleting an id that was
// already removed reports NotFoundError, same as one that never existed.
func (s *Service) Delete(ctx context.Context, id int64) error {
	deleted, err := s.db.DeleteThreat(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return &NotFoundError{ID: id}
	}

	metrics.ThreatsDeleted.Inc()
	s.logger.Info("Threat deleted", "id", id)

	return nil
}

// Statistics returns registry-wide counts grouped by type and severity.
func (s *Service) Statistics(ctx context.Context) (*database.Statistics, error) {
	return s.db.ThreatStatistics(ctx)
}

// HealthStatus reports liveness of the service and its store.
type HealthStatus struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
}

// Health pings the store with a short deadline. Store failures degrade
// the status instead of returning an error.
func (s *Service) Health(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "healthy",
		Database:  "connected",
		Timestamp: time.Now().UTC(),
	}

	pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()

	if err := s.db.PingContext(pingCtx); err != nil {
		s.logger.Error("Database health check failed", "error", err)
		status.Status = "degraded"
		status.Database = fmt.Sprintf("error: %v", err)
	}

	return status
}
