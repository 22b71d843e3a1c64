// Package issues collects the problems found during a conversion pass and
// derives the tri-state outcome (success, partial, failure) from them.
package issues

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Severity classifies how much an issue affects the conversion outcome.
type Severity string

const (
	// SeverityCritical stops processing; no usable data exists.
	SeverityCritical Severity = "critical"
	// SeverityError marks a recoverable per-item defect. The item is dropped.
	SeverityError Severity = "error"
	// SeverityWarning is informational and never changes the status.
	SeverityWarning Severity = "warning"
)

// ItemType names the kind of entity an issue refers to.
type ItemType string

const (
	ItemPackage  ItemType = "package"
	ItemDeck     ItemType = "deck"
	ItemNoteType ItemType = "noteType"
	ItemNote     ItemType = "note"
	ItemCard     ItemType = "card"
	ItemReview   ItemType = "review"
	ItemMedia    ItemType = "media"
)

// Details locates an issue in the source data.
type Details struct {
	ItemType ItemType `json:"itemType,omitempty" yaml:"itemType,omitempty"`
	// OriginalData is the raw offending record, if any.
	OriginalData any `json:"originalData,omitempty" yaml:"originalData,omitempty"`
}

// Issue is a single problem reported during conversion.
type Issue struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Message  string   `json:"message" yaml:"message"`
	Details  Details  `json:"details,omitempty" yaml:"details,omitempty"`
}

func (i Issue) String() string {
	if i.Details.ItemType == "" {
		return fmt.Sprintf("[%s] %s", i.Severity, i.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Details.ItemType, i.Message)
}

// ErrorHandling selects how recoverable errors affect the final status.
type ErrorHandling string

const (
	// BestEffort keeps the data produced so far and reports StatusPartial.
	BestEffort ErrorHandling = "best-effort"
	// Strict turns the first recoverable error into a failure.
	Strict ErrorHandling = "strict"
)

// ParseErrorHandling maps a user supplied mode name to an ErrorHandling value.
// The empty string selects BestEffort.
func ParseErrorHandling(s string) (ErrorHandling, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "best-effort", "besteffort", "best_effort":
		return BestEffort, nil
	case "strict":
		return Strict, nil
	default:
		return "", fmt.Errorf("invalid error handling mode: %s. Must be one of best-effort, strict", s)
	}
}

// Collector accumulates issues for one conversion pass.
// It is not safe for concurrent use.
type Collector struct {
	mode   ErrorHandling
	issues []Issue
	logger *zap.SugaredLogger
}

// NewCollector returns an empty collector. A nil logger disables logging.
func NewCollector(mode ErrorHandling, logger *zap.SugaredLogger) *Collector {
	if mode == "" {
		mode = BestEffort
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Collector{mode: mode, logger: logger}
}

// Mode returns the error handling mode the collector computes status with.
func (c *Collector) Mode() ErrorHandling {
	return c.mode
}

// Add records an issue.
func (c *Collector) Add(severity Severity, message string, details Details) {
	c.issues = append(c.issues, Issue{Severity: severity, Message: message, Details: details})

	kv := []any{"severity", severity, "itemType", details.ItemType}
	switch severity {
	case SeverityCritical:
		c.logger.Errorw(message, kv...)
	case SeverityError:
		c.logger.Warnw(message, kv...)
	default:
		c.logger.Infow(message, kv...)
	}
}

func (c *Collector) Critical(message string, details Details) {
	c.Add(SeverityCritical, message, details)
}

func (c *Collector) Error(message string, details Details) {
	c.Add(SeverityError, message, details)
}

func (c *Collector) Warning(message string, details Details) {
	c.Add(SeverityWarning, message, details)
}

// Issues returns a copy of the issues in the order they were reported.
func (c *Collector) Issues() []Issue {
	out := make([]Issue, len(c.issues))
	copy(out, c.issues)
	return out
}

// Count returns how many issues of the given severity were reported.
func (c *Collector) Count(severity Severity) int {
	n := 0
	for _, i := range c.issues {
		if i.Severity == severity {
			n++
		}
	}
	return n
}

func (c *Collector) HasCritical() bool {
	return c.Count(SeverityCritical) > 0
}

func (c *Collector) HasErrors() bool {
	return c.Count(SeverityError) > 0
}

// Status derives the outcome from the issues collected so far.
func (c *Collector) Status() Status {
	switch {
	case c.HasCritical():
		return StatusFailure
	case c.HasErrors() && c.mode == Strict:
		return StatusFailure
	case c.HasErrors():
		return StatusPartial
	default:
		return StatusSuccess
	}
}
