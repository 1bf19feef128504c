package detect

import (
	"fmt"
	"sort"
	"strings"
)

// Classifier maps a raw request to an attack type and severity by running an
// ordered list of category checks and returning on the first match.
//
// Matching is deliberately permissive: a honeypot's cost for a false positive
// is serving a fake page, so the category patterns favor recall over
// precision.
type Classifier struct {
	categories []Category
}

// NewClassifier builds a Classifier over the given category order. With no
// arguments it uses DefaultCategories.
func NewClassifier(categories ...Category) *Classifier {
	if len(categories) == 0 {
		categories = DefaultCategories()
	}
	return &Classifier{categories: categories}
}

// Request is the raw material the classifier inspects. Absent fields are
// treated as empty strings.
type Request struct {
	Path    string
	Query   string
	Body    string
	Headers map[string]string
}

// UserAgent returns the request's User-Agent header, if any.
func (r Request) UserAgent() string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, "user-agent") {
			return v
		}
	}
	return ""
}

// haystack flattens the request into the single string every pattern is
// tested against. Headers are serialized in sorted key order so the result
// is deterministic.
func (r Request) haystack() string {
	var b strings.Builder
	b.WriteString(r.Path)
	b.WriteByte('\n')
	b.WriteString(r.Query)
	b.WriteByte('\n')
	b.WriteString(r.Body)
	if len(r.Headers) > 0 {
		keys := make([]string, 0, len(r.Headers))
		for k := range r.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteByte('\n')
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(r.Headers[k])
		}
	}
	return strings.ToLower(b.String())
}

// Classify runs the ordered category checks against the request. First match
// wins; a request matching both a critical and a lower category returns
// whichever category is ordered first. Pure function, no side effects.
func (c *Classifier) Classify(req Request) Result {
	haystack := req.haystack()
	for _, cat := range c.categories {
		if matched, ok := cat.match(haystack); ok {
			return Result{
				Type:     cat.Type,
				Severity: cat.Severity,
				Details:  fmt.Sprintf("%s: %q", cat.Name, matched),
			}
		}
	}
	return Result{Type: AttackUnknown, Severity: SeverityLow, Details: "no known pattern matched"}
}
