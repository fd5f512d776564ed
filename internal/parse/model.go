package parse

import (
	"sort"
	"time"
)

// Role values for a conversation message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in a conversation, shared across parsers.
// A zero Timestamp means the source carried no usable time, not "oldest".
type Message struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is a normalized conversation produced by one parse call.
// IDs are sequential from 0 and stable for the life of the batch.
type Conversation struct {
	ID       int       `json:"id"`
	Title    string    `json:"title"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`
	Messages []Message `json:"messages"`
}

// MessageCount returns the number of messages in the conversation.
func (c Conversation) MessageCount() int {
	return len(c.Messages)
}

// TextSize returns the total character length of all message texts.
func (c Conversation) TextSize() int {
	n := 0
	for _, m := range c.Messages {
		n += len(m.Text)
	}
	return n
}

// SortChronological orders messages with known timestamps by ascending
// timestamp, keeping discovery order for ties. Messages with unknown
// timestamps stay at their discovery positions: a zero time carries no
// ordering information, and excluding it from the comparison keeps the
// comparator a strict weak ordering over the rest.
func SortChronological(msgs []Message) {
	idx := make([]int, 0, len(msgs))
	for i, m := range msgs {
		if !m.Timestamp.IsZero() {
			idx = append(idx, i)
		}
	}
	if len(idx) < 2 {
		return
	}

	known := make([]Message, len(idx))
	for k, i := range idx {
		known[k] = msgs[i]
	}
	sort.SliceStable(known, func(a, b int) bool {
		return known[a].Timestamp.Before(known[b].Timestamp)
	})
	for k, i := range idx {
		msgs[i] = known[k]
	}
}

// finalize assigns sequential ids, sorts each conversation chronologically
// and drops conversations with no extractable messages.
func finalize(convs []Conversation) []Conversation {
	out := convs[:0]
	id := 0
	for _, c := range convs {
		if len(c.Messages) == 0 {
			continue
		}
		SortChronological(c.Messages)
		c.ID = id
		id++
		out = append(out, c)
	}
	return out
}

// SortForDisplay orders a batch most-recently-updated first. Downstream
// processing re-sorts selected messages by timestamp, so this ordering is
// presentational only.
func SortForDisplay(convs []Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return displayTime(convs[i]).After(displayTime(convs[j]))
	})
}

func displayTime(c Conversation) time.Time {
	if !c.Updated.IsZero() {
		return c.Updated
	}
	return c.Created
}

// parseTimestamp accepts the timestamp encodings seen across export
// formats: unix seconds (integer or fractional), unix milliseconds, and
// RFC3339 strings. Unusable values yield the zero time.
func parseTimestamp(v any) time.Time {
	switch t := v.(type) {
	case float64:
		if t <= 0 {
			return time.Time{}
		}
		// Millisecond epochs are 13 digits; anything that large is ms.
		if t > 1e12 {
			return time.UnixMilli(int64(t)).UTC()
		}
		sec := int64(t)
		nsec := int64((t - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC()
	case string:
		if t == "" {
			return time.Time{}
		}
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts.UTC()
		}
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts.UTC()
		}
		return time.Time{}
	default:
		return time.Time{}
	}
}
