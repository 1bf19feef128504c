package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dolos-sec/dolos/internal/blocklist"
	"github.com/dolos-sec/dolos/internal/clock"
	"github.com/dolos-sec/dolos/internal/detect"
	"github.com/dolos-sec/dolos/internal/history"
	"github.com/dolos-sec/dolos/internal/logger"
	"github.com/dolos-sec/dolos/internal/metrics"
)

var (
	ErrRuleNotFound  = errors.New("rule not found")
	ErrDuplicateRule = errors.New("rule id already exists")
	ErrInvalidRule   = errors.New("invalid rule")
)

// ActorAutoBlock is the actor recorded on blocks issued by the engine.
const ActorAutoBlock = "AutoBlock"

// Alerter receives fire-and-forget notification of blocks issued by the
// engine. Implementations must not assume they run on the decision path.
type Alerter interface {
	BlockIssued(rec blocklist.Record, rule Rule)
}

// Outcome is the engine's verdict for one processed event.
type Outcome struct {
	Blocked        bool     `json:"blocked"`
	TriggeredRules []string `json:"triggered_rules"`
	Reason         string   `json:"reason,omitempty"`
}

// Engine owns the ordered auto-block rule list and the per-(rule, address)
// cooldown registry. It consumes classified events, aggregates them against
// the address's history, and drives the block registry.
//
// A single mutex serializes ProcessAttack and rule management: evaluation is
// short and CPU-bound, and full serialization closes the read-modify-write
// race between near-simultaneous events from the same address.
type Engine struct {
	mu        sync.Mutex
	rules     []Rule
	history   *history.Store
	blocks    *blocklist.Registry
	cooldowns map[string]time.Time
	clock     clock.Clock
	alerter   Alerter
}

// New builds an Engine over the given history store and block registry,
// starting from the default rule set. A nil clock falls back to the system
// clock.
func New(hist *history.Store, blocks *blocklist.Registry, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.System()
	}
	return &Engine{
		rules:     DefaultRules(),
		history:   hist,
		blocks:    blocks,
		cooldowns: make(map[string]time.Time),
		clock:     clk,
	}
}

// SetAlerter wires an optional block notifier. Alerts are dispatched on a
// separate goroutine so delivery never blocks the decision path.
func (e *Engine) SetAlerter(a Alerter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.alerter = a
}

func cooldownKey(ruleID, address string) string {
	return ruleID + "|" + address
}

// ProcessAttack runs the event through the active rules. The event is
// appended to the address's history first, so attack_count windows include
// the triggering event itself.
func (e *Engine) ProcessAttack(ev detect.Event) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Idempotent short-circuit: an already-blocked address is not
	// re-evaluated, its events are not recorded.
	if e.blocks.IsBlocked(ev.Address) {
		metrics.IncBlockedHit()
		return Outcome{Blocked: true, TriggeredRules: []string{}, Reason: "already blocked"}
	}

	e.history.Append(ev)

	now := e.clock.Now()
	for _, rule := range e.rules {
		if !rule.Enabled {
			continue
		}
		if last, ok := e.cooldowns[cooldownKey(rule.ID, ev.Address)]; ok {
			if rule.Cooldown > 0 && now.Sub(last) < rule.CooldownDuration() {
				// Cooldown-suppressed matches are silently skipped,
				// not reported as triggered.
				continue
			}
		}
		if !e.ruleMatches(rule, ev, now) {
			continue
		}

		rec, err := e.blocks.Block(ev.Address, rule.Action.Duration, rule.Name, ActorAutoBlock, string(ev.Type), ev.Severity.String())
		if err != nil {
			// A rule with an uninterpretable action must not take down
			// the decision path; fail open and try the next rule.
			logger.WithFields(map[string]interface{}{
				"rule":    rule.ID,
				"address": ev.Address,
				"error":   err.Error(),
			}).Warn("auto-block action failed")
			continue
		}

		e.cooldowns[cooldownKey(rule.ID, ev.Address)] = now
		metrics.IncAutoBlock()
		logger.WithFields(map[string]interface{}{
			"rule":     rule.ID,
			"address":  ev.Address,
			"type":     string(ev.Type),
			"severity": ev.Severity.String(),
			"duration": string(rule.Action.Duration),
		}).Warn("address auto-blocked")

		if e.alerter != nil {
			go e.alerter.BlockIssued(rec, rule)
		}

		// First match wins: no further rules are evaluated or reported.
		return Outcome{Blocked: true, TriggeredRules: []string{rule.ID}, Reason: rule.Name}
	}

	return Outcome{Blocked: false, TriggeredRules: []string{}}
}

func (e *Engine) ruleMatches(rule Rule, ev detect.Event, now time.Time) bool {
	for _, cond := range rule.Conditions {
		if !cond.evaluate(ev, e.history, now) {
			return false
		}
	}
	return len(rule.Conditions) > 0
}

// Rules returns a copy of the active rule list in evaluation order.
func (e *Engine) Rules() []Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Rule returns the rule with the given id.
func (e *Engine) Rule(id string) (Rule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.rules {
		if r.ID == id {
			return r, nil
		}
	}
	return Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
}

// AddRule appends a rule to the end of the evaluation order.
func (e *Engine) AddRule(r Rule) error {
	if err := validateRule(r); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.rules {
		if existing.ID == r.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateRule, r.ID)
		}
	}
	e.rules = append(e.rules, r)
	return nil
}

// UpdateRule replaces the rule with the same id, keeping its position.
func (e *Engine) UpdateRule(r Rule) error {
	if err := validateRule(r); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, existing := range e.rules {
		if existing.ID == r.ID {
			e.rules[i] = r
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrRuleNotFound, r.ID)
}

// RemoveRule deletes the rule with the given id.
func (e *Engine) RemoveRule(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, existing := range e.rules {
		if existing.ID == id {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
}

// SetRuleEnabled toggles a rule without touching its position or cooldowns.
func (e *Engine) SetRuleEnabled(id string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, existing := range e.rules {
		if existing.ID == id {
			e.rules[i].Enabled = enabled
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
}

// SetRules atomically replaces the whole active rule list.
func (e *Engine) SetRules(rules []Rule) error {
	seen := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		if err := validateRule(r); err != nil {
			return err
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateRule, r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append([]Rule(nil), rules...)
	return nil
}

// ResetRules restores the default policy set and clears all cooldowns.
func (e *Engine) ResetRules() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = DefaultRules()
	e.cooldowns = make(map[string]time.Time)
}

func validateRule(r Rule) error {
	if r.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRule)
	}
	if r.Action.Type != ActionBlock {
		return fmt.Errorf("%w: unknown action type %q", ErrInvalidRule, r.Action.Type)
	}
	if _, err := r.Action.Duration.Expiry(time.Unix(0, 0)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRule, err)
	}
	return nil
}
