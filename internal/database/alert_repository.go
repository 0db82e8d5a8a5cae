package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lexwatch/lexwatch/internal/alerts"
	"github.com/lexwatch/lexwatch/internal/correlation"
)

// Alert status filters
const (
	StatusActive   = "active"
	StatusResolved = "resolved"
)

// AlertFilter narrows ListAlerts
type AlertFilter struct {
	Severity alerts.Severity
	Status   string
	Since    time.Time
	Limit    int
	Offset   int
}

// AlertRepository archives alerts and correlation groups
type AlertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a repository on db
func NewAlertRepository(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// SaveAlert stores an alert. Saving an id twice keeps the first row.
func (r *AlertRepository) SaveAlert(ctx context.Context, alert *alerts.Alert) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(NewAlertRecord(alert)).Error
	if err != nil {
		return fmt.Errorf("save alert %s: %w", alert.ID, err)
	}
	return nil
}

// MarkResolved flags an archived alert as resolved
func (r *AlertRepository) MarkResolved(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&AlertRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"resolved": true, "resolved_at": at})
	if result.Error != nil {
		return fmt.Errorf("resolve alert %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("resolve alert %s: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// SaveGroup upserts a correlation group and links its member alerts
func (r *AlertRepository) SaveGroup(ctx context.Context, group *correlation.AlertGroup) error {
	rec := NewAlertGroupRecord(group)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"pattern_id", "confidence", "alert_ids", "resolved", "last_updated", "updated_at"}),
		}).Create(rec).Error
		if err != nil {
			return fmt.Errorf("save group %s: %w", group.ID, err)
		}
		if len(rec.AlertIDs) == 0 {
			return nil
		}
		err = tx.Model(&AlertRecord{}).
			Where("id IN ?", []string(rec.AlertIDs)).
			Update("group_id", group.ID).Error
		if err != nil {
			return fmt.Errorf("link alerts to group %s: %w", group.ID, err)
		}
		return nil
	})
}

// MarkGroupResolved flags an archived group as resolved
func (r *AlertRepository) MarkGroupResolved(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&AlertGroupRecord{}).
		Where("id = ?", id).
		Update("resolved", true)
	if result.Error != nil {
		return fmt.Errorf("resolve group %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("resolve group %s: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// DeleteAlerts removes resolved alerts created before cutoff and returns
// how many rows were deleted
func (r *AlertRepository) DeleteAlerts(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("resolved = ? AND timestamp < ?", true, cutoff).
		Delete(&AlertRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete alerts: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ListAlerts returns archived alerts, newest first, with the total count
// matching the filter
func (r *AlertRepository) ListAlerts(ctx context.Context, filter AlertFilter) ([]AlertRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&AlertRecord{})
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity.String())
	}
	switch filter.Status {
	case StatusActive:
		query = query.Where("resolved = ?", false)
	case StatusResolved:
		query = query.Where("resolved = ?", true)
	}
	if !filter.Since.IsZero() {
		query = query.Where("timestamp >= ?", filter.Since)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	var records []AlertRecord
	if err := query.Order("timestamp DESC").Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("list alerts: %w", err)
	}
	return records, total, nil
}

// GetGroup returns an archived group
func (r *AlertRepository) GetGroup(ctx context.Context, id string) (*AlertGroupRecord, error) {
	var rec AlertGroupRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}
