package engine

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dolos-sec/dolos/internal/blocklist"
	"github.com/dolos-sec/dolos/internal/detect"
)

// Operator compares a condition's value against an event field or a count.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNe       Operator = "ne"
	OpGt       Operator = "gt"
	OpLt       Operator = "lt"
	OpGte      Operator = "gte"
	OpLte      Operator = "lte"
	OpContains Operator = "contains"
	OpMatches  Operator = "matches"
)

// ConditionType selects which fact about the event (or its address's
// history) a condition inspects.
type ConditionType string

const (
	CondSeverity    ConditionType = "severity"
	CondAttackType  ConditionType = "attack_type"
	CondCountry     ConditionType = "country"
	CondUserAgent   ConditionType = "user_agent"
	CondPathPattern ConditionType = "path_pattern"
	CondAttackCount ConditionType = "attack_count"
)

// Condition is a single predicate. All of a rule's conditions must hold for
// the rule to trigger. TimeWindow (seconds) is only meaningful for
// attack_count conditions, where it defines the sliding window counted.
type Condition struct {
	Type       ConditionType `json:"type"`
	Operator   Operator      `json:"operator"`
	Value      string        `json:"value"`
	TimeWindow int           `json:"time_window,omitempty"`
}

// Action is what a matched rule does. Block is currently the only type.
type Action struct {
	Type     string             `json:"type"`
	Duration blocklist.Duration `json:"duration"`
	Channels []string           `json:"notify_channels,omitempty"`
}

// ActionBlock is the only supported action type.
const ActionBlock = "block"

// Rule is a named, enable-able auto-block policy. Rules are evaluated in
// list order and the first match wins.
type Rule struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Enabled    bool        `json:"enabled"`
	Conditions []Condition `json:"conditions"`
	Action     Action      `json:"action"`
	Cooldown   int         `json:"cooldown"` // seconds per (rule, address)
}

// CooldownDuration returns the rule's cooldown as a time.Duration.
func (r Rule) CooldownDuration() time.Duration {
	return time.Duration(r.Cooldown) * time.Second
}

// historyCounter is the slice of the event history the engine hands to
// condition evaluation.
type historyCounter interface {
	RecentCount(address string, window time.Duration, now time.Time) int
}

// evaluate reports whether the condition holds for the event. Malformed
// conditions (bad regex, non-numeric value where a number is needed, unknown
// operator) evaluate to false: uninterpretable input must never block, and
// must never crash the decision path.
func (c Condition) evaluate(ev detect.Event, counts historyCounter, now time.Time) bool {
	switch c.Type {
	case CondSeverity:
		want, err := detect.ParseSeverity(strings.ToLower(c.Value))
		if err != nil {
			return false
		}
		return compareInts(c.Operator, int(ev.Severity), int(want))
	case CondAttackType:
		return compareStrings(c.Operator, string(ev.Type), c.Value)
	case CondCountry:
		return compareStrings(c.Operator, ev.CountryCode, c.Value)
	case CondUserAgent:
		return compareStrings(c.Operator, ev.UserAgent, c.Value)
	case CondPathPattern:
		return compareStrings(c.Operator, ev.Path, c.Value)
	case CondAttackCount:
		want, err := strconv.Atoi(strings.TrimSpace(c.Value))
		if err != nil || c.TimeWindow <= 0 {
			return false
		}
		window := time.Duration(c.TimeWindow) * time.Second
		return compareInts(c.Operator, counts.RecentCount(ev.Address, window, now), want)
	default:
		return false
	}
}

func compareInts(op Operator, have, want int) bool {
	switch op {
	case OpEq:
		return have == want
	case OpNe:
		return have != want
	case OpGt:
		return have > want
	case OpLt:
		return have < want
	case OpGte:
		return have >= want
	case OpLte:
		return have <= want
	default:
		return false
	}
}

func compareStrings(op Operator, have, want string) bool {
	switch op {
	case OpEq:
		return strings.EqualFold(have, want)
	case OpNe:
		return !strings.EqualFold(have, want)
	case OpContains:
		return strings.Contains(strings.ToLower(have), strings.ToLower(want))
	case OpMatches:
		re, err := regexp.Compile(`(?i)` + want)
		if err != nil {
			return false
		}
		return re.MatchString(have)
	default:
		// Ordering operators are meaningless on free-form strings.
		return false
	}
}
