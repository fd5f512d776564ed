package parse

import (
	"errors"
	"testing"
)

func TestParsePlainText_LessFrequentSpeakerIsHuman(t *testing.T) {
	// Alice speaks twice, Bob once: neither label is self-referential, so
	// the less talkative Bob is assumed to be the human.
	doc := []byte("Alice: hi\nBob: hello there\nAlice: how are you\n")

	convs, err := Parse(doc, "log.txt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	msgs := convs[0].Messages
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	wantRoles := []string{RoleAssistant, RoleUser, RoleAssistant}
	for i, want := range wantRoles {
		if msgs[i].Role != want {
			t.Errorf("message %d: role = %q, want %q", i, msgs[i].Role, want)
		}
	}
}

func TestParsePlainText_SelfAliasWins(t *testing.T) {
	// "Me" is self-referential and wins even though it is the more
	// frequent speaker.
	doc := []byte("Me: hey\nLuna: hi!\nMe: what's new\nMe: still there?\n")

	convs, err := Parse(doc, "log.md")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	for _, m := range convs[0].Messages {
		if m.Text == "hi!" && m.Role != RoleAssistant {
			t.Errorf("Luna should be the assistant, got %q", m.Role)
		}
		if m.Text == "hey" && m.Role != RoleUser {
			t.Errorf("Me should be the user, got %q", m.Role)
		}
	}
}

func TestParsePlainText_ContinuationLines(t *testing.T) {
	doc := []byte("Sam: first line\nsecond line of the same message\nKit: reply\n")

	convs, err := Parse(doc, "log.txt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	msgs := convs[0].Messages
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	want := "first line\nsecond line of the same message"
	if msgs[0].Text != want {
		t.Errorf("continuation not appended: %q", msgs[0].Text)
	}
}

func TestParsePlainText_SingleSpeakerFails(t *testing.T) {
	doc := []byte("Solo: talking\nSolo: to myself\n")

	_, err := Parse(doc, "log.txt")
	if !errors.Is(err, ErrNoMessagesFound) {
		t.Fatalf("expected ErrNoMessagesFound for one speaker, got %v", err)
	}
}

func TestParsePlainText_NoSpeakerLines(t *testing.T) {
	doc := []byte("just some prose\nwith no speakers at all\n")

	_, err := Parse(doc, "notes.txt")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}
