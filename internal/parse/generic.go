package parse

import "strings"

// The generic fallback probes any array of message-like objects found in
// the document for known text and role field names. It exists so that
// near-miss exports still parse instead of failing outright.

var genericTextFields = []string{"text", "content", "message", "body", "value"}
var genericRoleFields = []string{"role", "author", "sender", "speaker", "from"}

// Role strings that mark a row as user-authored.
var userRoleNames = map[string]bool{
	"user": true, "human": true, "you": true, "me": true,
}

// findMessageArray locates the first array of objects in the document,
// searching the top level and then one level of nesting. Matching is
// structural only: an array whose rows all lack usable text still matches
// and then fails with a no-messages error, not an unsupported-format one.
func findMessageArray(doc any) ([]any, bool) {
	if rows, ok := doc.([]any); ok && arrayOfObjects(rows) {
		return rows, true
	}
	if obj, ok := doc.(map[string]any); ok {
		for _, v := range obj {
			if rows, ok := v.([]any); ok && arrayOfObjects(rows) {
				return rows, true
			}
		}
	}
	return nil, false
}

func arrayOfObjects(rows []any) bool {
	for _, r := range rows {
		if _, ok := r.(map[string]any); ok {
			return true
		}
	}
	return false
}

func parseGeneric(rows []any) []Conversation {
	c := Conversation{}
	for _, r := range rows {
		obj, ok := r.(map[string]any)
		if !ok {
			continue
		}

		text, ok := genericText(obj)
		if !ok {
			continue // rows without a usable text field are skipped, not an error
		}

		c.Messages = append(c.Messages, Message{
			Role:      genericRole(obj),
			Text:      text,
			Timestamp: parseTimestamp(firstPresent(obj, "timestamp", "create_time", "created_at", "time", "date")),
		})
	}
	return []Conversation{c}
}

func genericText(obj map[string]any) (string, bool) {
	for _, name := range genericTextFields {
		if s, ok := obj[name].(string); ok {
			if t := strings.TrimSpace(s); t != "" {
				return t, true
			}
		}
	}
	return "", false
}

func genericRole(obj map[string]any) string {
	if user, ok := boolField(obj, userFlagFields); ok {
		if user {
			return RoleUser
		}
		return RoleAssistant
	}
	for _, name := range genericRoleFields {
		if s, ok := obj[name].(string); ok {
			if userRoleNames[strings.ToLower(strings.TrimSpace(s))] {
				return RoleUser
			}
			return RoleAssistant
		}
	}
	return RoleAssistant
}
