package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolos-sec/dolos/internal/blocklist"
	"github.com/dolos-sec/dolos/internal/clock"
	"github.com/dolos-sec/dolos/internal/detect"
	"github.com/dolos-sec/dolos/internal/history"
)

type testRig struct {
	engine *Engine
	blocks *blocklist.Registry
	hist   *history.Store
	clk    *clock.Fake
}

func newRig(t *testing.T) *testRig {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	hist := history.NewStore(time.Hour, clk)
	blocks := blocklist.NewRegistry(blocklist.NewMemoryStore(), clk)
	return &testRig{
		engine: New(hist, blocks, clk),
		blocks: blocks,
		hist:   hist,
		clk:    clk,
	}
}

func (r *testRig) event(address string, typ detect.AttackType, sev detect.Severity) detect.Event {
	return detect.Event{
		Address:   address,
		Timestamp: r.clk.Now(),
		Type:      typ,
		Severity:  sev,
		Path:      "/trap",
		UserAgent: "curl/8.0",
	}
}

func TestProcessAttack_CriticalInstantBlock(t *testing.T) {
	rig := newRig(t)

	out := rig.engine.ProcessAttack(rig.event("1.2.3.4", detect.AttackEnvDisclosure, detect.SeverityCritical))
	assert.True(t, out.Blocked)
	assert.Equal(t, []string{"critical-instant"}, out.TriggeredRules)
	assert.Equal(t, "Critical severity attack", out.Reason)

	// 24h block with lazy expiry.
	assert.True(t, rig.blocks.IsBlocked("1.2.3.4"))
	rig.clk.Advance(24*time.Hour - time.Second)
	assert.True(t, rig.blocks.IsBlocked("1.2.3.4"))
	rig.clk.Advance(2 * time.Second)
	assert.False(t, rig.blocks.IsBlocked("1.2.3.4"))
}

func TestProcessAttack_AlreadyBlockedShortCircuits(t *testing.T) {
	rig := newRig(t)

	out := rig.engine.ProcessAttack(rig.event("1.2.3.4", detect.AttackEnvDisclosure, detect.SeverityCritical))
	require.True(t, out.Blocked)
	assert.Len(t, rig.hist.All("1.2.3.4"), 1)

	// A second event from the blocked address is not recorded and reports
	// no triggered rules.
	out = rig.engine.ProcessAttack(rig.event("1.2.3.4", detect.AttackSQLInjection, detect.SeverityHigh))
	assert.True(t, out.Blocked)
	assert.Empty(t, out.TriggeredRules)
	assert.Equal(t, "already blocked", out.Reason)
	assert.Len(t, rig.hist.All("1.2.3.4"), 1)
}

func TestProcessAttack_HighFrequencyThreshold(t *testing.T) {
	rig := newRig(t)

	// Two high-severity events inside the window do not block.
	for i := 0; i < 2; i++ {
		out := rig.engine.ProcessAttack(rig.event("2.3.4.5", detect.AttackSQLInjection, detect.SeverityHigh))
		assert.False(t, out.Blocked, "event %d should not block", i+1)
		rig.clk.Advance(30 * time.Second)
	}

	// The third event inside 300s triggers; the just-appended event counts
	// toward its own window.
	out := rig.engine.ProcessAttack(rig.event("2.3.4.5", detect.AttackXSS, detect.SeverityHigh))
	assert.True(t, out.Blocked)
	assert.Equal(t, []string{"high-frequency"}, out.TriggeredRules)
	assert.True(t, rig.blocks.IsBlocked("2.3.4.5"))

	// 1h block, not 24h.
	rec, found := rig.blocks.Get("2.3.4.5")
	require.True(t, found)
	require.NotNil(t, rec.ExpiresAt)
	assert.Equal(t, rig.clk.Now().Add(time.Hour), *rec.ExpiresAt)
}

func TestProcessAttack_HighFrequencyWindowExpires(t *testing.T) {
	rig := newRig(t)

	rig.engine.ProcessAttack(rig.event("2.3.4.5", detect.AttackSQLInjection, detect.SeverityHigh))
	rig.clk.Advance(6 * time.Minute)
	rig.engine.ProcessAttack(rig.event("2.3.4.5", detect.AttackSQLInjection, detect.SeverityHigh))
	rig.clk.Advance(6 * time.Minute)

	// Only one prior event remains inside the 300s window, so the third
	// high event does not block.
	out := rig.engine.ProcessAttack(rig.event("2.3.4.5", detect.AttackSQLInjection, detect.SeverityHigh))
	assert.False(t, out.Blocked)
}

func TestProcessAttack_BruteForceBurst(t *testing.T) {
	rig := newRig(t)

	var out Outcome
	for i := 0; i < 10; i++ {
		out = rig.engine.ProcessAttack(rig.event("3.4.5.6", detect.AttackBruteForce, detect.SeverityMedium))
		rig.clk.Advance(time.Second)
	}
	assert.True(t, out.Blocked)
	assert.Equal(t, []string{"brute-force-burst"}, out.TriggeredRules)
}

func TestProcessAttack_ScannerUserAgentPermanentBlock(t *testing.T) {
	rig := newRig(t)

	ev := rig.event("4.5.6.7", detect.AttackScanner, detect.SeverityLow)
	ev.UserAgent = "sqlmap/1.7-dev (https://sqlmap.org)"

	out := rig.engine.ProcessAttack(ev)
	assert.True(t, out.Blocked)
	assert.Equal(t, []string{"scanner-tool"}, out.TriggeredRules)

	rec, found := rig.blocks.Get("4.5.6.7")
	require.True(t, found)
	assert.Nil(t, rec.ExpiresAt)
}

func TestProcessAttack_WebshellFirstMatchGoesToCritical(t *testing.T) {
	rig := newRig(t)

	// A webshell event is critical, so the critical-instant rule fires
	// first and the webshell rule is never consulted.
	out := rig.engine.ProcessAttack(rig.event("5.6.7.8", detect.AttackWebshellUpload, detect.SeverityCritical))
	assert.True(t, out.Blocked)
	assert.Equal(t, []string{"critical-instant"}, out.TriggeredRules)
}

func TestProcessAttack_WebshellRuleWhenCriticalDisabled(t *testing.T) {
	rig := newRig(t)
	require.NoError(t, rig.engine.SetRuleEnabled("critical-instant", false))

	out := rig.engine.ProcessAttack(rig.event("5.6.7.8", detect.AttackWebshellUpload, detect.SeverityCritical))
	assert.True(t, out.Blocked)
	assert.Equal(t, []string{"webshell-instant"}, out.TriggeredRules)

	rec, found := rig.blocks.Get("5.6.7.8")
	require.True(t, found)
	assert.Nil(t, rec.ExpiresAt)
}

func TestProcessAttack_EventFlood(t *testing.T) {
	rig := newRig(t)

	var out Outcome
	for i := 0; i < 20; i++ {
		out = rig.engine.ProcessAttack(rig.event("6.7.8.9", detect.AttackUnknown, detect.SeverityLow))
		rig.clk.Advance(time.Second)
	}
	assert.True(t, out.Blocked)
	assert.Equal(t, []string{"event-flood"}, out.TriggeredRules)
}

func TestProcessAttack_CooldownSuppressesSameRule(t *testing.T) {
	rig := newRig(t)

	// Trip the high-frequency rule.
	for i := 0; i < 3; i++ {
		rig.engine.ProcessAttack(rig.event("7.8.9.10", detect.AttackSQLInjection, detect.SeverityHigh))
	}
	require.True(t, rig.blocks.IsBlocked("7.8.9.10"))

	// Unblock, then send another high event within the 300s cooldown: the
	// high-frequency rule is suppressed, and with four history entries the
	// flood rule is still short, so nothing blocks.
	removed, err := rig.blocks.Unblock("7.8.9.10")
	require.NoError(t, err)
	require.True(t, removed)

	rig.clk.Advance(10 * time.Second)
	out := rig.engine.ProcessAttack(rig.event("7.8.9.10", detect.AttackSQLInjection, detect.SeverityHigh))
	assert.False(t, out.Blocked)

	// A different rule may still trigger during the cooldown: a critical
	// event is handled by critical-instant.
	rig.clk.Advance(10 * time.Second)
	out = rig.engine.ProcessAttack(rig.event("7.8.9.10", detect.AttackEnvDisclosure, detect.SeverityCritical))
	assert.True(t, out.Blocked)
	assert.Equal(t, []string{"critical-instant"}, out.TriggeredRules)
}

func TestProcessAttack_CooldownExpires(t *testing.T) {
	rig := newRig(t)

	for i := 0; i < 3; i++ {
		rig.engine.ProcessAttack(rig.event("8.9.10.11", detect.AttackSQLInjection, detect.SeverityHigh))
	}
	removed, err := rig.blocks.Unblock("8.9.10.11")
	require.NoError(t, err)
	require.True(t, removed)

	// After the cooldown elapses the rule can retrigger once a fresh burst
	// refills the sliding window.
	rig.clk.Advance(301 * time.Second)
	var out Outcome
	for i := 0; i < 3; i++ {
		out = rig.engine.ProcessAttack(rig.event("8.9.10.11", detect.AttackSQLInjection, detect.SeverityHigh))
	}
	assert.True(t, out.Blocked)
	assert.Equal(t, []string{"high-frequency"}, out.TriggeredRules)
}

func TestProcessAttack_DisabledRuleSkipped(t *testing.T) {
	rig := newRig(t)
	require.NoError(t, rig.engine.SetRuleEnabled("critical-instant", false))
	require.NoError(t, rig.engine.SetRuleEnabled("webshell-instant", false))

	out := rig.engine.ProcessAttack(rig.event("9.10.11.12", detect.AttackEnvDisclosure, detect.SeverityCritical))
	assert.False(t, out.Blocked)
	assert.Empty(t, out.TriggeredRules)
}

func TestProcessAttack_EmptyRuleListNeverBlocks(t *testing.T) {
	rig := newRig(t)
	require.NoError(t, rig.engine.SetRules(nil))

	for i := 0; i < 50; i++ {
		out := rig.engine.ProcessAttack(rig.event("10.11.12.13", detect.AttackWebshellUpload, detect.SeverityCritical))
		assert.False(t, out.Blocked)
	}
}

func TestProcessAttack_MalformedRuleFailsOpen(t *testing.T) {
	rig := newRig(t)
	require.NoError(t, rig.engine.SetRules([]Rule{
		{
			ID:      "bad-regex",
			Name:    "Broken matcher",
			Enabled: true,
			Conditions: []Condition{
				{Type: CondUserAgent, Operator: OpMatches, Value: "([unclosed"},
			},
			Action: Action{Type: ActionBlock, Duration: blocklist.Duration1Hour},
		},
		{
			ID:      "bad-count",
			Name:    "Broken count",
			Enabled: true,
			Conditions: []Condition{
				{Type: CondAttackCount, Operator: OpGte, Value: "not-a-number", TimeWindow: 60},
			},
			Action: Action{Type: ActionBlock, Duration: blocklist.Duration1Hour},
		},
	}))

	out := rig.engine.ProcessAttack(rig.event("11.12.13.14", detect.AttackSQLInjection, detect.SeverityHigh))
	assert.False(t, out.Blocked)
}

func TestRuleManagement(t *testing.T) {
	rig := newRig(t)

	rules := rig.engine.Rules()
	assert.Len(t, rules, 6)
	assert.Equal(t, "critical-instant", rules[0].ID)

	custom := Rule{
		ID:      "country-block",
		Name:    "Hostile geography",
		Enabled: true,
		Conditions: []Condition{
			{Type: CondCountry, Operator: OpEq, Value: "KP"},
		},
		Action: Action{Type: ActionBlock, Duration: blocklist.Duration7Days},
	}
	assert.NoError(t, rig.engine.AddRule(custom))
	assert.ErrorIs(t, rig.engine.AddRule(custom), ErrDuplicateRule)

	got, err := rig.engine.Rule("country-block")
	assert.NoError(t, err)
	assert.Equal(t, "Hostile geography", got.Name)

	custom.Name = "Hostile geography v2"
	assert.NoError(t, rig.engine.UpdateRule(custom))
	got, _ = rig.engine.Rule("country-block")
	assert.Equal(t, "Hostile geography v2", got.Name)

	assert.NoError(t, rig.engine.RemoveRule("country-block"))
	_, err = rig.engine.Rule("country-block")
	assert.ErrorIs(t, err, ErrRuleNotFound)

	assert.ErrorIs(t, rig.engine.RemoveRule("nope"), ErrRuleNotFound)
	assert.ErrorIs(t, rig.engine.SetRuleEnabled("nope", true), ErrRuleNotFound)

	rig.engine.ResetRules()
	assert.Len(t, rig.engine.Rules(), 6)
}

func TestRuleManagement_Validation(t *testing.T) {
	rig := newRig(t)

	err := rig.engine.AddRule(Rule{ID: "", Action: Action{Type: ActionBlock, Duration: blocklist.Duration1Hour}})
	assert.ErrorIs(t, err, ErrInvalidRule)

	err = rig.engine.AddRule(Rule{ID: "x", Action: Action{Type: "quarantine", Duration: blocklist.Duration1Hour}})
	assert.ErrorIs(t, err, ErrInvalidRule)

	err = rig.engine.AddRule(Rule{ID: "x", Action: Action{Type: ActionBlock, Duration: blocklist.Duration("5m")}})
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestCountryRuleBlocks(t *testing.T) {
	rig := newRig(t)
	require.NoError(t, rig.engine.SetRules([]Rule{
		{
			ID:      "country-block",
			Name:    "Hostile geography",
			Enabled: true,
			Conditions: []Condition{
				{Type: CondCountry, Operator: OpEq, Value: "KP"},
			},
			Action: Action{Type: ActionBlock, Duration: blocklist.Duration7Days},
		},
	}))

	ev := rig.event("12.13.14.15", detect.AttackScanner, detect.SeverityLow)
	ev.CountryCode = "KP"
	out := rig.engine.ProcessAttack(ev)
	assert.True(t, out.Blocked)

	ev = rig.event("13.14.15.16", detect.AttackScanner, detect.SeverityLow)
	ev.CountryCode = "SE"
	out = rig.engine.ProcessAttack(ev)
	assert.False(t, out.Blocked)
}

type recordingAlerter struct {
	ch chan string
}

func (a *recordingAlerter) BlockIssued(rec blocklist.Record, rule Rule) {
	a.ch <- rec.Address + "/" + rule.ID
}

func TestEngine_AlerterNotified(t *testing.T) {
	rig := newRig(t)
	alerter := &recordingAlerter{ch: make(chan string, 1)}
	rig.engine.SetAlerter(alerter)

	rig.engine.ProcessAttack(rig.event("14.15.16.17", detect.AttackEnvDisclosure, detect.SeverityCritical))

	select {
	case got := <-alerter.ch:
		assert.Equal(t, "14.15.16.17/critical-instant", got)
	case <-time.After(time.Second):
		t.Fatal("alerter was not notified")
	}
}
