package parse

import (
	"regexp"
	"strings"
)

// Plain two-party transcripts use "Speaker: text" lines. The parser has to
// guess which speaker is the human: a self-referential label wins, otherwise
// the less talkative speaker is assumed to be the human (companions tend to
// write more). Near-equal message counts can misattribute roles; that is a
// known limit of the heuristic.

var speakerLine = regexp.MustCompile(`^([^\s:][^:]{0,39}):\s?(.*)$`)

// Labels people use for themselves in saved logs.
var selfAliases = map[string]bool{
	"you": true, "human": true, "user": true, "me": true,
}

func parsePlainText(text string) ([]Conversation, error) {
	type rawMsg struct {
		speaker string
		text    string
	}

	var msgs []rawMsg
	var current *rawMsg

	for _, line := range strings.Split(text, "\n") {
		if m := speakerLine.FindStringSubmatch(line); m != nil {
			if current != nil {
				msgs = append(msgs, *current)
			}
			current = &rawMsg{speaker: strings.TrimSpace(m[1]), text: m[2]}
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		// Continuation line: belongs to the pending message.
		if current != nil {
			current.text += "\n" + line
		}
	}
	if current != nil {
		msgs = append(msgs, *current)
	}

	if len(msgs) == 0 {
		return nil, ErrUnsupportedFormat
	}

	counts := make(map[string]int)
	var order []string
	for _, m := range msgs {
		if counts[m.speaker] == 0 {
			order = append(order, m.speaker)
		}
		counts[m.speaker]++
	}
	if len(order) < 2 {
		return nil, ErrNoMessagesFound
	}

	human := pickHuman(order, counts)

	c := Conversation{}
	for _, m := range msgs {
		text := strings.TrimSpace(m.text)
		if text == "" {
			continue
		}
		role := RoleAssistant
		if m.speaker == human {
			role = RoleUser
		}
		c.Messages = append(c.Messages, Message{Role: role, Text: text})
	}

	return finalizeOrErr([]Conversation{c})
}

func pickHuman(order []string, counts map[string]int) string {
	for _, s := range order {
		if selfAliases[strings.ToLower(s)] {
			return s
		}
	}
	human := order[0]
	for _, s := range order[1:] {
		if counts[s] < counts[human] {
			human = s
		}
	}
	return human
}
