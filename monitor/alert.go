package monitor

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/teilomillet/relcheck/internal/validation"
)

// ErrUnknownCondition is returned for a rule condition other than <, >, == or !=.
var ErrUnknownCondition = errors.New("unknown condition")

type Condition string

const (
	Below    Condition = "<"
	Above    Condition = ">"
	Equal    Condition = "=="
	NotEqual Condition = "!="
)

// equalTolerance is the distance under which two values compare equal.
const equalTolerance = 1e-9

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rule raises an alert when a model's latest value of Metric satisfies
// Condition against Threshold.
type Rule struct {
	ID          string    `json:"rule_id" validate:"required"`
	ModelName   string    `json:"model_name" validate:"required"`
	Metric      string    `json:"metric_name" validate:"required"`
	Condition   Condition `json:"condition"`
	Threshold   float64   `json:"threshold"`
	Severity    Severity  `json:"severity" validate:"oneof=low medium high critical"`
	Description string    `json:"description"`
	Enabled     bool      `json:"enabled"`
}

// NewRule builds an enabled rule with a fresh ID.
func NewRule(model, metric string, cond Condition, threshold float64, severity Severity, description string) (Rule, error) {
	r := Rule{
		ID:          uuid.NewString(),
		ModelName:   model,
		Metric:      metric,
		Condition:   cond,
		Threshold:   threshold,
		Severity:    severity,
		Description: description,
		Enabled:     true,
	}
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

func (r Rule) Validate() error {
	if err := validation.Struct(r); err != nil {
		return fmt.Errorf("invalid alert rule: %s", validation.Describe(err))
	}
	if err := checkMetric(r.Metric); err != nil {
		return err
	}
	switch r.Condition {
	case Below, Above, Equal, NotEqual:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCondition, r.Condition)
	}
}

// Check reports whether value triggers the rule. A disabled rule never
// triggers.
func (r Rule) Check(value float64) (bool, error) {
	if !r.Enabled {
		return false, nil
	}
	switch r.Condition {
	case Below:
		return value < r.Threshold, nil
	case Above:
		return value > r.Threshold, nil
	case Equal:
		return math.Abs(value-r.Threshold) < equalTolerance, nil
	case NotEqual:
		return math.Abs(value-r.Threshold) >= equalTolerance, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownCondition, r.Condition)
	}
}

type Alert struct {
	ID           string    `json:"alert_id"`
	RuleID       string    `json:"rule_id"`
	ModelName    string    `json:"model_name"`
	Metric       string    `json:"metric_name"`
	CurrentValue float64   `json:"current_value"`
	Threshold    float64   `json:"threshold"`
	Severity     Severity  `json:"severity"`
	Message      string    `json:"message"`
	TriggeredAt  time.Time `json:"triggered_at"`
	Acknowledged bool      `json:"acknowledged"`
}

func newAlert(rule Rule, value float64, at time.Time) Alert {
	return Alert{
		ID:           uuid.NewString(),
		RuleID:       rule.ID,
		ModelName:    rule.ModelName,
		Metric:       rule.Metric,
		CurrentValue: value,
		Threshold:    rule.Threshold,
		Severity:     rule.Severity,
		Message:      fmt.Sprintf("%s: %s = %.3f", rule.Description, rule.Metric, value),
		TriggeredAt:  at,
	}
}

// Acknowledge returns an acknowledged copy of a.
func (a Alert) Acknowledge() Alert {
	a.Acknowledged = true
	return a
}
