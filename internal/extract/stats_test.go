package extract

import (
	"testing"
	"time"

	"github.com/flaggdavid-source/lifeboat/internal/parse"
)

func TestComputeStats(t *testing.T) {
	day1 := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)  // Monday
	day2 := time.Date(2024, 3, 6, 21, 30, 0, 0, time.UTC) // Wednesday

	msgs := []parse.Message{
		{Role: parse.RoleUser, Text: "hello there friend", Timestamp: day1},
		{Role: parse.RoleAssistant, Text: "hi", Timestamp: day1.Add(time.Minute)},
		{Role: parse.RoleUser, Text: "a much longer message with several more words in it", Timestamp: day2},
		{Role: parse.RoleAssistant, Text: "short"}, // no timestamp
	}

	s := ComputeStats(msgs)

	if s.MessagesByRole[parse.RoleUser] != 2 || s.MessagesByRole[parse.RoleAssistant] != 2 {
		t.Errorf("MessagesByRole = %v", s.MessagesByRole)
	}
	if s.WordsByRole[parse.RoleUser] != 13 {
		t.Errorf("user words = %d, want 13", s.WordsByRole[parse.RoleUser])
	}
	if s.WordsByRole[parse.RoleAssistant] != 2 {
		t.Errorf("assistant words = %d, want 2", s.WordsByRole[parse.RoleAssistant])
	}
	if want := len(msgs[2].Text); s.LongestMessage != want {
		t.Errorf("LongestMessage = %d, want %d", s.LongestMessage, want)
	}

	// The untimestamped message counts toward roles but not histograms.
	total := 0
	for _, c := range s.ByHourOfDay {
		total += c
	}
	if total != 3 {
		t.Errorf("hour histogram total = %d, want 3", total)
	}
	if s.ByHourOfDay[9] != 2 || s.ByHourOfDay[21] != 1 {
		t.Errorf("ByHourOfDay = %v", s.ByHourOfDay)
	}
	if s.ByDayOfWeek[int(time.Monday)] != 2 || s.ByDayOfWeek[int(time.Wednesday)] != 1 {
		t.Errorf("ByDayOfWeek = %v", s.ByDayOfWeek)
	}
	if s.ByMonth["2024-03"] != 3 {
		t.Errorf("ByMonth = %v", s.ByMonth)
	}

	if !s.FirstMessage.Equal(day1) {
		t.Errorf("FirstMessage = %v", s.FirstMessage)
	}
	if !s.LastMessage.Equal(day2) {
		t.Errorf("LastMessage = %v", s.LastMessage)
	}
	if s.DaySpan != 3 {
		t.Errorf("DaySpan = %d, want 3", s.DaySpan)
	}
	if s.PeakHour != 9 {
		t.Errorf("PeakHour = %d, want 9", s.PeakHour)
	}
	if s.PeakDay != int(time.Monday) {
		t.Errorf("PeakDay = %d, want Monday", s.PeakDay)
	}
}

func TestComputeStats_NoTimestamps(t *testing.T) {
	msgs := []parse.Message{
		{Role: parse.RoleUser, Text: "one"},
		{Role: parse.RoleAssistant, Text: "two"},
	}
	s := ComputeStats(msgs)
	if !s.FirstMessage.IsZero() || !s.LastMessage.IsZero() {
		t.Error("expected zero first/last times")
	}
	if s.DaySpan != 0 {
		t.Errorf("DaySpan = %d, want 0", s.DaySpan)
	}
}

func TestArgmax_TiesBreakLow(t *testing.T) {
	if got := argmax([]int{0, 3, 3, 1}); got != 1 {
		t.Errorf("argmax = %d, want 1", got)
	}
	if got := argmax([]int{0, 0, 0}); got != 0 {
		t.Errorf("argmax all-zero = %d, want 0", got)
	}
}
