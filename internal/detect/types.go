package detect

import (
	"encoding/json"
	"fmt"
	"time"
)

// Severity is an ordered threat level. The numeric ordering is load-bearing:
// rule conditions compare severities with gt/lt style operators.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "low",
	SeverityMedium:   "medium",
	SeverityHigh:     "high",
	SeverityCritical: "critical",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "low"
}

// ParseSeverity maps a severity name to its Severity value.
func ParseSeverity(name string) (Severity, error) {
	for sev, n := range severityNames {
		if n == name {
			return sev, nil
		}
	}
	return SeverityLow, fmt.Errorf("unknown severity %q", name)
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	sev, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = sev
	return nil
}

// AttackType tags the nature of a detected malicious pattern.
type AttackType string

const (
	AttackCryptominer       AttackType = "cryptominer"
	AttackMalware           AttackType = "malware"
	AttackWebshellUpload    AttackType = "webshell_upload"
	AttackRansomware        AttackType = "ransomware"
	AttackBotnetC2          AttackType = "botnet_c2"
	AttackDataExfiltration  AttackType = "data_exfiltration"
	AttackEnvDisclosure     AttackType = "env_disclosure"
	AttackCommandInjection  AttackType = "command_injection"
	AttackSQLInjection      AttackType = "sql_injection"
	AttackXSS               AttackType = "xss"
	AttackPathTraversal     AttackType = "path_traversal"
	AttackXXE               AttackType = "xxe"
	AttackSSRF              AttackType = "ssrf"
	AttackTemplateInjection AttackType = "template_injection"
	AttackDeserialization   AttackType = "deserialization"
	AttackHeaderInjection   AttackType = "header_injection"
	AttackBruteForce        AttackType = "brute_force"
	AttackScanner           AttackType = "scanner"
	AttackUnknown           AttackType = "unknown"
)

// AttackTypes lists every known attack type.
var AttackTypes = []AttackType{
	AttackCryptominer,
	AttackMalware,
	AttackWebshellUpload,
	AttackRansomware,
	AttackBotnetC2,
	AttackDataExfiltration,
	AttackEnvDisclosure,
	AttackCommandInjection,
	AttackSQLInjection,
	AttackXSS,
	AttackPathTraversal,
	AttackXXE,
	AttackSSRF,
	AttackTemplateInjection,
	AttackDeserialization,
	AttackHeaderInjection,
	AttackBruteForce,
	AttackScanner,
	AttackUnknown,
}

// Result is the classifier's verdict for a single request.
type Result struct {
	Type     AttackType `json:"attack_type"`
	Severity Severity   `json:"severity"`
	Details  string     `json:"details"`
}

// Event is one observed request classified as an attack, attributed to a
// source address. Immutable once created.
type Event struct {
	Address     string     `json:"address"`
	Timestamp   time.Time  `json:"timestamp"`
	Type        AttackType `json:"attack_type"`
	Severity    Severity   `json:"severity"`
	Path        string     `json:"path"`
	UserAgent   string     `json:"user_agent,omitempty"`
	CountryCode string     `json:"country_code,omitempty"`
}
