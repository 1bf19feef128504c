package engine

import "github.com/dolos-sec/dolos/internal/blocklist"

// scannerToolPattern matches the User-Agent strings of well-known attack
// tooling. Kept in sync with the classifier's scanner category.
const scannerToolPattern = `(sqlmap|nikto|nmap|masscan|nuclei|wpscan|dirbuster|gobuster|ffuf|feroxbuster|acunetix|nessus|zgrab|burpsuite|whatweb)`

// DefaultRules returns the baseline auto-block policy set in priority order.
// Callers get a fresh slice they own.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:      "critical-instant",
			Name:    "Critical severity attack",
			Enabled: true,
			Conditions: []Condition{
				{Type: CondSeverity, Operator: OpEq, Value: "critical"},
			},
			Action:   Action{Type: ActionBlock, Duration: blocklist.Duration24Hours},
			Cooldown: 0,
		},
		{
			ID:      "high-frequency",
			Name:    "Repeated high-severity attacks",
			Enabled: true,
			Conditions: []Condition{
				{Type: CondSeverity, Operator: OpGte, Value: "high"},
				{Type: CondAttackCount, Operator: OpGte, Value: "3", TimeWindow: 300},
			},
			Action:   Action{Type: ActionBlock, Duration: blocklist.Duration1Hour},
			Cooldown: 300,
		},
		{
			ID:      "brute-force-burst",
			Name:    "Brute force burst",
			Enabled: true,
			Conditions: []Condition{
				{Type: CondAttackType, Operator: OpEq, Value: "brute_force"},
				{Type: CondAttackCount, Operator: OpGte, Value: "10", TimeWindow: 60},
			},
			Action:   Action{Type: ActionBlock, Duration: blocklist.Duration1Hour},
			Cooldown: 60,
		},
		{
			ID:      "scanner-tool",
			Name:    "Known scanner tooling",
			Enabled: true,
			Conditions: []Condition{
				{Type: CondUserAgent, Operator: OpMatches, Value: scannerToolPattern},
			},
			Action:   Action{Type: ActionBlock, Duration: blocklist.DurationPermanent},
			Cooldown: 0,
		},
		{
			ID:      "webshell-instant",
			Name:    "Webshell upload",
			Enabled: true,
			Conditions: []Condition{
				{Type: CondAttackType, Operator: OpEq, Value: "webshell_upload"},
			},
			Action:   Action{Type: ActionBlock, Duration: blocklist.DurationPermanent},
			Cooldown: 0,
		},
		{
			ID:      "event-flood",
			Name:    "Event flood",
			Enabled: true,
			Conditions: []Condition{
				{Type: CondAttackCount, Operator: OpGte, Value: "20", TimeWindow: 600},
			},
			Action:   Action{Type: ActionBlock, Duration: blocklist.Duration1Hour},
			Cooldown: 600,
		},
	}
}
