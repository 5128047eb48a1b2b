/*
Package models defines the core data structures of the IOC registry. It
provides the threat record persisted by the database layer and the closed
sets of indicator types and severity levels accepted by the API.

Core Types:

IndicatorType classifies the observable a threat value describes:

	type IndicatorType string
	const (
		TypeIP     IndicatorType = "IP"
		TypeHash   IndicatorType = "Hash"
		TypeURL    IndicatorType = "URL"
		TypeDomain IndicatorType = "Domain"
	)

Severity ranks how urgently a threat needs attention:

	type Severity string
	const (
		SeverityHigh   Severity = "High"
		SeverityMedium Severity = "Medium"
		SeverityLow    Severity = "Low"
	)

Both sets are closed: membership is checked with Valid, and matching is
exact. AllIndicatorTypes and AllSeverities enumerate the members so
statistics and validation messages never drift from the accepted values.

Threat is the sole persisted entity:

	type Threat struct {
		ID           int64         // Unique identifier, assigned by the store
		Type         IndicatorType // Kind of observable
		Value        string        // The indicator itself, unique across the registry
		Severity     Severity      // Urgency ranking
		Source       *string       // Reporting tool or feed, nil when unknown
		DateDetected time.Time     // When the indicator was registered
	}

Database Integration:

The Threat model carries bun tags for the threats table: an autoincrement
primary key and a unique constraint on the value column. The unique
constraint is the final arbiter of duplicate values; callers racing to
register the same indicator lose to it rather than to any in-process check.

Usage Example:

	source := "Firewall-01"
	threat := &models.Threat{
		Type:     models.TypeIP,
		Value:    "203.0.113.7",
		Severity: models.SeverityHigh,
		Source:   &source,
	}

Validation:

The model structures do not validate themselves. Trimming, length bounds
and enum membership are enforced by the threat service before records
reach the store.
*/
package models
