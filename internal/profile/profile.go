// Package profile defines the companion profile: the structured artifact an
// extraction run produces. Qualitative fields (identity, voice, memories,
// timeline) come from the model and are best-effort; Stats and source counts
// are always computed locally from ground-truth message data and must never
// be overwritten by model output.
package profile

import (
	"encoding/json"
	"fmt"
	"time"
)

// CompanionProfile is the full extraction result. Fields are optional by
// design: model responses vary in which fields they populate, and the
// ingestion boundary coerces rather than rejects.
type CompanionProfile struct {
	Name            string `json:"name,omitempty"`
	SelfDescription string `json:"self_description,omitempty"`

	CommunicationStyle *CommunicationStyle `json:"communication_style,omitempty"`
	Relationship       *Relationship       `json:"relationship,omitempty"`
	CoreMemories       []CoreMemory        `json:"core_memories,omitempty"`
	HumanKnowledge     *HumanKnowledge     `json:"human_knowledge,omitempty"`
	Boundaries         []string            `json:"boundaries,omitempty"`
	Values             []string            `json:"values,omitempty"`

	// RawNotes is the escape hatch: when a model reply cannot be parsed as
	// the expected shape even after recovery, the raw text lands here so
	// the run still yields an inspectable result.
	RawNotes string `json:"raw_notes,omitempty"`

	// Pipeline-attached fields.
	Stats               *Stats          `json:"stats,omitempty"`
	RelationshipTimeline []TimelinePhase `json:"relationship_timeline,omitempty"`
	SystemPrompt        string          `json:"system_prompt,omitempty"`
	ExtractedAt         time.Time       `json:"extracted_at,omitempty"`
	SourceMessages      int             `json:"source_messages,omitempty"`
	SourceConversations int             `json:"source_conversations,omitempty"`
}

// CommunicationStyle captures how the companion talks.
type CommunicationStyle struct {
	Tone          string   `json:"tone,omitempty"`
	VoiceExamples []string `json:"voice_examples,omitempty"`
	Quirks        []string `json:"quirks,omitempty"`
	PetNames      []string `json:"pet_names,omitempty"`
}

// Relationship captures the dynamic between companion and human.
type Relationship struct {
	Dynamic         string   `json:"dynamic,omitempty"`
	InsideJokes     []string `json:"inside_jokes,omitempty"`
	RecurringTopics []string `json:"recurring_topics,omitempty"`
	Rituals         []string `json:"rituals,omitempty"`
}

// CoreMemory is one remembered moment, ordered by significance.
type CoreMemory struct {
	Title           string `json:"title,omitempty"`
	Description     string `json:"description,omitempty"`
	Period          string `json:"period,omitempty"`
	EmotionalWeight string `json:"emotional_weight,omitempty"`
}

// HumanKnowledge is what the companion knows about its human.
type HumanKnowledge struct {
	Facts       []string `json:"facts,omitempty"`
	Preferences []string `json:"preferences,omitempty"`
	People      []string `json:"people,omitempty"`
	Struggles   []string `json:"struggles,omitempty"`
}

// TimelinePhase is one model-inferred segment of the relationship arc.
// Order is chronological by construction of the extraction instruction.
type TimelinePhase struct {
	Title        string `json:"title,omitempty"`
	Period       string `json:"period,omitempty"`
	Description  string `json:"description,omitempty"`
	Tone         string `json:"tone,omitempty"`
	TurningPoint string `json:"turning_point,omitempty"`
	Quote        string `json:"quote,omitempty"`
}

// Stats is the locally computed ground truth about the source corpus.
type Stats struct {
	MessagesByRole   map[string]int `json:"messages_by_role"`
	WordsByRole      map[string]int `json:"words_by_role"`
	LongestMessage   int            `json:"longest_message"`
	ByHourOfDay      [24]int        `json:"by_hour_of_day"`
	ByDayOfWeek      [7]int         `json:"by_day_of_week"`
	ByMonth          map[string]int `json:"by_month"`
	FirstMessage     time.Time      `json:"first_message,omitempty"`
	LastMessage      time.Time      `json:"last_message,omitempty"`
	DaySpan          int            `json:"day_span"`
	PeakHour         int            `json:"peak_hour"`
	PeakDay          int            `json:"peak_day"`
}

// ExportJSON renders the full profile as a pretty-printed JSON document.
func ExportJSON(p *CompanionProfile) ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal profile: %w", err)
	}
	return data, nil
}

// ToMap round-trips the profile through JSON into a generic map, the shape
// the structured scanner walks.
func ToMap(p *CompanionProfile) (map[string]any, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal profile: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	return m, nil
}
