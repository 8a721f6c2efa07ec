package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kailas-cloud/reqcheck/internal/domain"
)

// sessionRow is the comparison_sessions table. Result and Report hold JSON;
// ProcessingTime is in seconds.
type sessionRow struct {
	ID                string     `gorm:"primaryKey;size:36"`
	Status            string     `gorm:"size:32;not null;index"`
	CreatedAt         time.Time  `gorm:"not null;index"`
	CompletedAt       *time.Time `gorm:"index"`
	ProcessingTime    float64    `gorm:"not null;default:0"`
	RequirementsCount int        `gorm:"not null;default:0"`
	Result            string     `gorm:"type:text"`
	Report            string     `gorm:"type:text"`
	ErrorMessage      string     `gorm:"type:text"`
}

func (sessionRow) TableName() string { return "comparison_sessions" }

// PostgresStore keeps sessions in the comparison_sessions table.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore creates a store over an open gorm connection.
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates or updates the table.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if err := p.db.WithContext(ctx).AutoMigrate(&sessionRow{}); err != nil {
		return fmt.Errorf("migrate comparison_sessions: %w", err)
	}
	return nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Create stores a new pending session.
func (p *PostgresStore) Create(ctx context.Context, id string, createdAt time.Time) (domain.Session, error) {
	s := newPending(id, createdAt)
	row, err := toRow(s)
	if err != nil {
		return domain.Session{}, err
	}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.Session{}, fmt.Errorf("create session failed: %w", err)
	}
	return s, nil
}

// Get returns the session or domain.ErrNotFound.
func (p *PostgresStore) Get(ctx context.Context, id string) (domain.Session, error) {
	var row sessionRow
	if err := p.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Session{}, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
		}
		return domain.Session{}, fmt.Errorf("get session failed: %w", err)
	}
	return fromRow(row)
}

func (p *PostgresStore) Transition(ctx context.Context, id string, state domain.RunState) error {
	return p.update(ctx, id, func(s *domain.Session) error { return transition(s, state) })
}

func (p *PostgresStore) Complete(
	ctx context.Context, id string, result []domain.Verdict, report *domain.Report,
	completedAt time.Time, elapsed time.Duration,
) error {
	return p.update(ctx, id, func(s *domain.Session) error {
		return complete(s, result, report, completedAt, elapsed)
	})
}

func (p *PostgresStore) Fail(ctx context.Context, id, message string, completedAt time.Time, elapsed time.Duration) error {
	return p.update(ctx, id, func(s *domain.Session) error { return fail(s, message, completedAt, elapsed) })
}

// update applies fn and writes the row back only if the status has not moved meanwhile.
func (p *PostgresStore) update(ctx context.Context, id string, fn func(*domain.Session) error) error {
	s, err := p.Get(ctx, id)
	if err != nil {
		return err
	}
	prev := s.Status
	if err := fn(&s); err != nil {
		return err
	}
	row, err := toRow(s)
	if err != nil {
		return err
	}
	res := p.db.WithContext(ctx).Model(&sessionRow{}).
		Where("id = ? AND status = ?", id, string(prev)).
		Updates(map[string]any{
			"status":             row.Status,
			"completed_at":       row.CompletedAt,
			"processing_time":    row.ProcessingTime,
			"requirements_count": row.RequirementsCount,
			"result":             row.Result,
			"report":             row.Report,
			"error_message":      row.ErrorMessage,
		})
	if res.Error != nil {
		return fmt.Errorf("update session failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("session %s changed concurrently: %w", id, domain.ErrInvalidTransition)
	}
	return nil
}

type statusCount struct {
	Status  string
	Count   int
	Seconds float64
}

// Stats aggregates by status in the database.
func (p *PostgresStore) Stats(ctx context.Context) (domain.SessionStats, error) {
	var rows []statusCount
	err := p.db.WithContext(ctx).Model(&sessionRow{}).
		Select("status, count(*) AS count, coalesce(sum(processing_time), 0) AS seconds").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return domain.SessionStats{}, fmt.Errorf("session stats failed: %w", err)
	}
	return statsFromCounts(rows), nil
}

func statsFromCounts(rows []statusCount) domain.SessionStats {
	var acc statsAcc
	for _, r := range rows {
		acc.stats.Total += r.Count
		switch domain.RunState(r.Status) {
		case domain.RunCompleted:
			acc.stats.Completed += r.Count
			acc.seconds += r.Seconds
		case domain.RunFailed:
			acc.stats.Failed += r.Count
		default:
			acc.stats.InProgress += r.Count
		}
	}
	return acc.result()
}

// DeleteOlderThan removes sessions created before cutoff.
func (p *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res := p.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&sessionRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete sessions failed: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func toRow(s domain.Session) (sessionRow, error) {
	row := sessionRow{
		ID:                s.ID,
		Status:            string(s.Status),
		CreatedAt:         s.CreatedAt,
		CompletedAt:       s.CompletedAt,
		ProcessingTime:    s.ProcessingTime.Seconds(),
		RequirementsCount: s.RequirementsCount,
		ErrorMessage:      s.ErrorMessage,
	}
	if s.Result != nil {
		data, err := json.Marshal(s.Result)
		if err != nil {
			return sessionRow{}, fmt.Errorf("encode result: %w", err)
		}
		row.Result = string(data)
	}
	if s.Report != nil {
		data, err := json.Marshal(s.Report)
		if err != nil {
			return sessionRow{}, fmt.Errorf("encode report: %w", err)
		}
		row.Report = string(data)
	}
	return row, nil
}

func fromRow(row sessionRow) (domain.Session, error) {
	status, err := domain.ParseRunState(row.Status)
	if err != nil {
		return domain.Session{}, fmt.Errorf("session %s: %w", row.ID, err)
	}
	s := domain.Session{
		ID:                row.ID,
		Status:            status,
		CreatedAt:         row.CreatedAt,
		CompletedAt:       row.CompletedAt,
		ProcessingTime:    time.Duration(row.ProcessingTime * float64(time.Second)),
		RequirementsCount: row.RequirementsCount,
		ErrorMessage:      row.ErrorMessage,
	}
	if row.Result != "" {
		if err := json.Unmarshal([]byte(row.Result), &s.Result); err != nil {
			return domain.Session{}, fmt.Errorf("decode result of session %s: %w", row.ID, err)
		}
	}
	if row.Report != "" {
		var report domain.Report
		if err := json.Unmarshal([]byte(row.Report), &report); err != nil {
			return domain.Session{}, fmt.Errorf("decode report of session %s: %w", row.ID, err)
		}
		s.Report = &report
	}
	return s, nil
}
