// Package scan detects prompt-injection markers in untrusted text. Scanning
// is advisory: it never deletes content and never blocks on its own. Every
// finding is surfaced to a human decision point, except post-generation
// scans which are logged only.
package scan

import (
	"fmt"
	"regexp"
	"sort"
	"unicode/utf8"

	"github.com/flaggdavid-source/lifeboat/internal/sanitize"
)

// Finding reports one pattern match. Excerpts are bounded so findings never
// re-surface a large payload in logs or API responses.
type Finding struct {
	Field   string `json:"field"`
	Pattern string `json:"pattern"`
	Matched string `json:"matched"`
}

const (
	maxPatternLen = 60
	maxExcerptLen = 80

	// Contiguous base64-looking runs at least this long count as a
	// possible encoded payload.
	base64RunLen = 200

	// String leaves shorter than this are skipped by ScanValue; short
	// values cannot carry a meaningful injection payload.
	minLeafLen = 30
)

type pattern struct {
	id string
	re *regexp.Regexp
}

// Ordered categories: instruction override, role reassignment, fake
// message-boundary delimiters, exfiltration requests, hidden-instruction
// markers, encoded payloads.
var patterns = []pattern{
	{"override:ignore-previous", regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above|earlier)\s+(instructions?|prompts?|messages?|directives?)`)},
	{"override:disregard", regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|your)\s+(instructions?|rules?|guidelines?)`)},
	{"override:forget", regexp.MustCompile(`(?i)forget\s+(everything|all|your)\s+(you|previous|instructions?|rules?)`)},
	{"override:new-instructions", regexp.MustCompile(`(?i)(new|updated|real)\s+instructions?\s*:`)},
	{"role:you-are-now", regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|the)\s`)},
	{"role:act-as", regexp.MustCompile(`(?i)(act|behave|respond)\s+as\s+(if\s+you\s+(are|were)|a\s+different)`)},
	{"role:pretend", regexp.MustCompile(`(?i)pretend\s+(to\s+be|you\s+are|that\s+you)`)},
	{"delimiter:fake-system", regexp.MustCompile(`(?i)(\[/?(system|inst)\]|<\|?/?(system|im_start|im_end)\|?>|<<\s*sys\s*>>|###\s*(system|instruction))`)},
	{"delimiter:fake-role-tag", regexp.MustCompile(`(?i)</?(assistant|human|user)\s*>`)},
	{"exfil:credentials", regexp.MustCompile(`(?i)(reveal|send|print|output|share)\s+(your|the|any)\s+(api[\s_-]?key|password|secret|credential|token)s?`)},
	{"exfil:system-prompt", regexp.MustCompile(`(?i)(repeat|reveal|print|show)\s+(your|the)\s+(system\s+prompt|initial\s+instructions?)`)},
	{"hidden:marker", regexp.MustCompile(`(?i)(hidden|secret)\s+(instructions?|commands?|directives?|message)`)},
	{"hidden:do-not-tell", regexp.MustCompile(`(?i)do\s+not\s+(tell|inform|mention\s+this\s+to)\s+the\s+(user|human)`)},
	{"encoded:base64-run", regexp.MustCompile(`[A-Za-z0-9+/=]{` + fmt.Sprint(base64RunLen) + `,}`)},
}

// Scan sanitizes text and evaluates the full pattern set against it.
func Scan(text string) []Finding {
	return scanField("", text)
}

func scanField(field, text string) []Finding {
	clean := sanitize.Clean(text)

	var findings []Finding
	for _, p := range patterns {
		m := p.re.FindString(clean)
		if m == "" {
			continue
		}
		findings = append(findings, Finding{
			Field:   field,
			Pattern: truncate(p.id, maxPatternLen),
			Matched: truncate(m, maxExcerptLen),
		})
	}
	return findings
}

// ScanValue walks an arbitrary nested record or array and scans every
// string leaf longer than minLeafLen, tagging findings with a dotted and
// indexed path such as "relationship.inside_jokes[2]". A field named
// skipField is excluded, used for values already scanned separately so
// findings are not reported twice.
func ScanValue(v any, skipField string) []Finding {
	var findings []Finding
	walkValue("", v, skipField, &findings)
	return findings
}

func walkValue(path string, v any, skipField string, findings *[]Finding) {
	switch val := v.(type) {
	case string:
		if len(val) <= minLeafLen {
			return
		}
		*findings = append(*findings, scanField(path, val)...)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if k == skipField {
				continue
			}
			child := k
			if path != "" {
				child = path + "." + k
			}
			walkValue(child, val[k], skipField, findings)
		}
	case []any:
		for i, item := range val {
			walkValue(fmt.Sprintf("%s[%d]", path, i), item, skipField, findings)
		}
	}
}

// truncate bounds s to n bytes without cutting a rune mid-sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
