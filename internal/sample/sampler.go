// Package sample bounds an unbounded message corpus to a fixed request
// budget. Sampling keeps the relationship's beginning and current state in
// full and strides through the middle: origin and present matter more to a
// companion profile than the middle.
package sample

import (
	"fmt"
	"strings"

	"github.com/flaggdavid-source/lifeboat/internal/parse"
)

// approxMessageChars is the assumed average formatted message size used to
// derive the middle-segment stride. An approximation inherited from the
// original design; changing it silently changes which messages survive
// sampling, so it stays a named constant.
const approxMessageChars = 500

// Segment boundaries of the sampling split.
const (
	earlyFraction  = 0.1
	recentFraction = 0.3
)

const lineSeparator = "\n\n"

// Budget bounds one extraction run: Total is the hard ceiling on the whole
// formatted corpus, Chunk the per-request ceiling. Chunk < Total.
type Budget struct {
	Total int
	Chunk int
}

// FormatMessage renders one message as a transcript line.
func FormatMessage(m parse.Message) string {
	role := "Assistant"
	if m.Role == parse.RoleUser {
		role = "User"
	}
	return fmt.Sprintf("[%s]: %s", role, m.Text)
}

// Marker renders a section marker line inserted by sampling.
func Marker(label string) string {
	return fmt.Sprintf("--- %s ---", label)
}

// IsMarker reports whether a transcript line is a sampling section marker.
func IsMarker(line string) bool {
	return strings.HasPrefix(line, "--- ") && strings.HasSuffix(line, " ---")
}

// FormattedSize returns the total character length of the formatted
// transcript, separators included.
func FormattedSize(msgs []parse.Message) int {
	n := 0
	for i, m := range msgs {
		if i > 0 {
			n += len(lineSeparator)
		}
		n += len(FormatMessage(m))
	}
	return n
}

// Sample downselects messages when the formatted corpus exceeds the total
// budget. The first 10% and last 30% are kept verbatim; the middle 60% is
// kept at a stride derived from the budget left after reserving the early
// and recent segments. Returns transcript lines (messages plus section
// markers) and whether sampling was applied. At or under budget this is a
// pass-through.
func Sample(msgs []parse.Message, totalBudget int) (lines []string, sampled bool) {
	if FormattedSize(msgs) <= totalBudget {
		return formatAll(msgs), false
	}

	n := len(msgs)
	earlyCount := int(earlyFraction * float64(n))
	recentCount := int(recentFraction * float64(n))
	early := msgs[:earlyCount]
	recent := msgs[n-recentCount:]
	middle := msgs[earlyCount : n-recentCount]

	remaining := totalBudget - FormattedSize(early) - FormattedSize(recent)
	if remaining < 0 {
		remaining = 0
	}
	keepTarget := remaining / approxMessageChars
	if keepTarget < 1 {
		keepTarget = 1
	}
	stride := len(middle) / keepTarget
	if stride < 1 {
		stride = 1
	}

	lines = formatAll(early)
	lines = append(lines, Marker("middle period, sampled"))
	for i := 0; i < len(middle); i += stride {
		lines = append(lines, FormatMessage(middle[i]))
	}
	lines = append(lines, Marker("recent period"))
	lines = append(lines, formatAll(recent)...)
	return lines, true
}

// SplitChunks greedily packs transcript lines into chunks no larger than
// chunkBudget, splitting only at line boundaries. A single line larger than
// the budget is kept whole in its own chunk; a message is never split
// mid-text. Chunks preserve line order and cover the input exactly once.
func SplitChunks(lines []string, chunkBudget int) []string {
	var chunks []string
	var buf strings.Builder

	for _, line := range lines {
		add := len(line)
		if buf.Len() > 0 {
			add += len(lineSeparator)
		}
		if buf.Len() > 0 && buf.Len()+add > chunkBudget {
			chunks = append(chunks, buf.String())
			buf.Reset()
		}
		if buf.Len() > 0 {
			buf.WriteString(lineSeparator)
		}
		buf.WriteString(line)
	}
	if buf.Len() > 0 {
		chunks = append(chunks, buf.String())
	}
	return chunks
}

// BuildChunks applies sampling then chunk splitting in one step.
func BuildChunks(msgs []parse.Message, b Budget) (chunks []string, sampled bool) {
	lines, sampled := Sample(msgs, b.Total)
	return SplitChunks(lines, b.Chunk), sampled
}

func formatAll(msgs []parse.Message) []string {
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		lines[i] = FormatMessage(m)
	}
	return lines
}
