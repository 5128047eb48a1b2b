package models

import (
	"time"

	"github.com/uptrace/bun"
)

type IndicatorType string

const (
	TypeIP     IndicatorType = "IP"
	TypeHash   IndicatorType = "Hash"
	TypeURL    IndicatorType = "URL"
	TypeDomain IndicatorType = "Domain"
)

// AllIndicatorTypes returns every indicator type the registry accepts.
func AllIndicatorTypes() []IndicatorType {
	return []IndicatorType{TypeIP, TypeHash, TypeURL, TypeDomain}
}

func (t IndicatorType) String() string {
	return string(t)
}

// Valid reports whether t is a known indicator type. Matching is exact,
// so "ip" is not an accepted spelling of "IP".
func (t IndicatorType) Valid() bool {
	switch t {
	case TypeIP, TypeHash, TypeURL, TypeDomain:
		return true
	}
	return false
}

type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

// AllSeverities returns every severity level in order of urgency.
func AllSeverities() []Severity {
	return []Severity{SeverityHigh, SeverityMedium, SeverityLow}
}

func (s Severity) String() string {
	return string(s)
}

// Valid reports whether s is a known severity level. Matching is exact.
func (s Severity) Valid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

type Threat struct {
	bun.BaseModel `bun:"table:threats,alias:t"`

	ID           int64         `bun:",pk,autoincrement" json:"id"`
	Type         IndicatorType `bun:",notnull" json:"type"`
	Value        string        `bun:",unique,notnull" json:"value"`
	Severity     Severity      `bun:",notnull" json:"severity"`
	Source       *string       `json:"source"`
	DateDetected time.Time     `bun:",notnull" json:"date_detected"`
}
