package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/lexwatch/lexwatch/internal/alerts"
	"github.com/lexwatch/lexwatch/internal/correlation"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	return json.Unmarshal(scanBytes(value), j)
}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// StringList stores a list of strings as a JSON array
type StringList []string

// Scan implements the sql.Scanner interface
func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	data := scanBytes(value)
	if data == nil {
		return errors.New("unsupported type for StringList")
	}
	return json.Unmarshal(data, s)
}

// Value implements the driver.Valuer interface
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	return string(b), err
}

func scanBytes(value interface{}) []byte {
	switch v := value.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	}
	return nil
}

// AlertRecord is the archived form of an alert
type AlertRecord struct {
	ID         string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Severity   string     `gorm:"type:varchar(20);not null;index" json:"severity"`
	Title      string     `gorm:"type:text;not null" json:"title"`
	Message    string     `gorm:"type:text" json:"message"`
	Metadata   JSONB      `gorm:"type:jsonb" json:"metadata"`
	Timestamp  time.Time  `gorm:"not null;index" json:"timestamp"`
	Resolved   bool       `gorm:"default:false;index" json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at"`
	GroupID    string     `gorm:"type:varchar(36);index" json:"group_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (AlertRecord) TableName() string {
	return "alerts"
}

// NewAlertRecord converts an alert for storage
func NewAlertRecord(a *alerts.Alert) *AlertRecord {
	rec := &AlertRecord{
		ID:         a.ID,
		Severity:   a.Severity.String(),
		Title:      a.Title,
		Message:    a.Message,
		Timestamp:  a.Timestamp,
		Resolved:   a.Resolved,
		ResolvedAt: a.ResolvedAt,
	}
	if len(a.Metadata) > 0 {
		rec.Metadata = JSONB(a.Metadata.Clone())
	}
	return rec
}

// ToAlert converts the record back into an alert
func (r *AlertRecord) ToAlert() *alerts.Alert {
	a := &alerts.Alert{
		ID:         r.ID,
		Severity:   alerts.Severity(r.Severity),
		Title:      r.Title,
		Message:    r.Message,
		Timestamp:  r.Timestamp,
		Resolved:   r.Resolved,
		ResolvedAt: r.ResolvedAt,
	}
	if len(r.Metadata) > 0 {
		a.Metadata = alerts.Metadata(r.Metadata)
	}
	return a
}

// AlertGroupRecord is the archived form of a correlation group
type AlertGroupRecord struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PatternID   string     `gorm:"type:varchar(255);index" json:"pattern_id,omitempty"`
	Confidence  float64    `gorm:"type:decimal(3,2)" json:"confidence"`
	AlertIDs    StringList `gorm:"type:jsonb" json:"alert_ids"`
	Resolved    bool       `gorm:"default:false" json:"resolved"`
	LastUpdated time.Time  `gorm:"not null" json:"last_updated"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (AlertGroupRecord) TableName() string {
	return "alert_groups"
}

// NewAlertGroupRecord converts a correlation group for storage
func NewAlertGroupRecord(g *correlation.AlertGroup) *AlertGroupRecord {
	rec := &AlertGroupRecord{
		ID:          g.ID,
		Confidence:  g.Confidence,
		Resolved:    g.Resolved,
		LastUpdated: g.Timestamp,
		AlertIDs:    make(StringList, 0, len(g.Alerts)),
	}
	if g.Pattern != nil {
		rec.PatternID = g.Pattern.ID
	}
	for _, a := range g.Alerts {
		rec.AlertIDs = append(rec.AlertIDs, a.ID)
	}
	return rec
}
