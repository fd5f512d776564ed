package extract

import (
	"strings"
	"time"

	"github.com/flaggdavid-source/lifeboat/internal/parse"
	"github.com/flaggdavid-source/lifeboat/internal/profile"
)

// ComputeStats aggregates the raw message list locally. This is the one
// part of the profile that is ground truth rather than model output, and it
// must stay that way: nothing downstream may overwrite it.
func ComputeStats(msgs []parse.Message) *profile.Stats {
	s := &profile.Stats{
		MessagesByRole: make(map[string]int),
		WordsByRole:    make(map[string]int),
		ByMonth:        make(map[string]int),
	}

	var first, last time.Time
	for _, m := range msgs {
		s.MessagesByRole[m.Role]++
		s.WordsByRole[m.Role] += len(strings.Fields(m.Text))
		if len(m.Text) > s.LongestMessage {
			s.LongestMessage = len(m.Text)
		}

		if m.Timestamp.IsZero() {
			continue // histograms only cover messages with known timestamps
		}
		ts := m.Timestamp
		s.ByHourOfDay[ts.Hour()]++
		s.ByDayOfWeek[int(ts.Weekday())]++
		s.ByMonth[ts.Format("2006-01")]++

		if first.IsZero() || ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}

	s.FirstMessage = first
	s.LastMessage = last
	if !first.IsZero() {
		s.DaySpan = int(last.Sub(first).Hours()/24) + 1
	}

	s.PeakHour = argmax(s.ByHourOfDay[:])
	s.PeakDay = argmax(s.ByDayOfWeek[:])
	return s
}

// argmax returns the first index holding the maximum value; ties break to
// the lowest index.
func argmax(counts []int) int {
	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return best
}
