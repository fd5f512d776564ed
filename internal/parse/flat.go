package parse

import "strings"

// Flat-turn exports carry one object per turn with a human flag and a set
// of candidate responses, one of which is marked primary. Flat-message
// exports are simpler: one object per message with an explicit text field
// and a user flag.

// detectFlatTurns matches documents whose rows carry candidate responses or
// an author object with a human flag.
func detectFlatTurns(doc any) bool {
	rows := turnRows(doc)
	if len(rows) == 0 {
		return false
	}
	for _, r := range rows {
		obj, ok := r.(map[string]any)
		if !ok {
			return false
		}
		if _, ok := obj["candidates"].([]any); ok {
			continue
		}
		if author, ok := obj["author"].(map[string]any); ok {
			if _, ok := author["is_human"]; ok {
				continue
			}
		}
		return false
	}
	return true
}

func turnRows(doc any) []any {
	switch d := doc.(type) {
	case []any:
		return d
	case map[string]any:
		if turns, ok := d["turns"].([]any); ok {
			return turns
		}
	}
	return nil
}

func parseFlatTurns(doc any) []Conversation {
	c := Conversation{}
	if obj, ok := doc.(map[string]any); ok {
		if name, ok := obj["character_name"].(string); ok {
			c.Title = name
		}
	}

	for _, r := range turnRows(doc) {
		obj, ok := r.(map[string]any)
		if !ok {
			continue
		}

		role := RoleAssistant
		if isHuman(obj) {
			role = RoleUser
		}

		text := strings.TrimSpace(turnText(obj))
		if text == "" {
			continue
		}

		c.Messages = append(c.Messages, Message{
			Role:      role,
			Text:      text,
			Timestamp: parseTimestamp(firstPresent(obj, "create_time", "created_at", "timestamp")),
		})
	}
	return []Conversation{c}
}

func isHuman(obj map[string]any) bool {
	if v, ok := obj["is_human"].(bool); ok {
		return v
	}
	if author, ok := obj["author"].(map[string]any); ok {
		if v, ok := author["is_human"].(bool); ok {
			return v
		}
	}
	return false
}

// turnText selects the turn's text: the primary candidate's raw content
// when candidates exist (first candidate if none is marked primary),
// otherwise the inline text field.
func turnText(obj map[string]any) string {
	candidates, ok := obj["candidates"].([]any)
	if !ok || len(candidates) == 0 {
		if s, ok := obj["text"].(string); ok {
			return s
		}
		return ""
	}

	primaryID, _ := obj["primary_candidate_id"].(string)
	var first string
	for i, c := range candidates {
		cand, ok := c.(map[string]any)
		if !ok {
			continue
		}
		content, _ := cand["raw_content"].(string)
		if i == 0 {
			first = content
		}
		if primaryID != "" {
			if id, _ := cand["candidate_id"].(string); id == primaryID {
				return content
			}
		}
	}
	return first
}

// Candidate flag fields marking a flat message as user-authored.
var userFlagFields = []string{"is_user", "is_human", "isUser", "from_user", "fromUser"}

// Candidate text fields for flat messages.
var messageTextFields = []string{"message", "text", "content"}

// detectFlatMessages matches rows carrying an explicit text field plus a
// boolean user flag.
func detectFlatMessages(doc any) bool {
	rows, ok := doc.([]any)
	if !ok {
		if obj, isObj := doc.(map[string]any); isObj {
			if inner, ok := obj["messages"].([]any); ok {
				rows = inner
			}
		}
	}
	if len(rows) == 0 {
		return false
	}
	for _, r := range rows {
		obj, ok := r.(map[string]any)
		if !ok {
			return false
		}
		if _, ok := stringField(obj, messageTextFields); !ok {
			return false
		}
		if _, ok := boolField(obj, userFlagFields); !ok {
			return false
		}
	}
	return true
}

func parseFlatMessages(doc any) []Conversation {
	rows, ok := doc.([]any)
	if !ok {
		if obj, isObj := doc.(map[string]any); isObj {
			rows, _ = obj["messages"].([]any)
		}
	}

	c := Conversation{}
	for _, r := range rows {
		obj, ok := r.(map[string]any)
		if !ok {
			continue
		}

		text, _ := stringField(obj, messageTextFields)
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		role := RoleAssistant
		if user, ok := boolField(obj, userFlagFields); ok && user {
			role = RoleUser
		}

		c.Messages = append(c.Messages, Message{
			Role:      role,
			Text:      text,
			Timestamp: parseTimestamp(firstPresent(obj, "timestamp", "created_at", "create_time", "time")),
		})
	}
	return []Conversation{c}
}

func stringField(obj map[string]any, names []string) (string, bool) {
	for _, name := range names {
		if s, ok := obj[name].(string); ok {
			return s, true
		}
	}
	return "", false
}

func boolField(obj map[string]any, names []string) (bool, bool) {
	for _, name := range names {
		if b, ok := obj[name].(bool); ok {
			return b, true
		}
	}
	return false, false
}

func firstPresent(obj map[string]any, names ...string) any {
	for _, name := range names {
		if v, ok := obj[name]; ok {
			return v
		}
	}
	return nil
}
