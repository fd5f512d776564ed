package extract

import "testing"

type decodeTarget struct {
	Name string `json:"name"`
}

func TestDecodeModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ok   bool
		want string
	}{
		{"plain object", `{"name": "Ada"}`, true, "Ada"},
		{"fenced json", "```json\n{\"name\": \"Ada\"}\n```", true, "Ada"},
		{"bare fence", "```\n{\"name\": \"Ada\"}\n```", true, "Ada"},
		{"preamble and trailer", "Here is the profile:\n{\"name\": \"Ada\"}\nLet me know!", true, "Ada"},
		{"braces inside strings", `noise {"name": "Ada {the} one"} noise`, true, "Ada {the} one"},
		{"escaped quotes", `x {"name": "she said \"hi\""} y`, true, `she said "hi"`},
		{"no json at all", "I could not produce a profile.", false, ""},
		{"unbalanced", `{"name": "Ada`, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v decodeTarget
			ok := decodeModelJSON(tt.raw, &v)
			if ok != tt.ok {
				t.Fatalf("decodeModelJSON ok = %v, want %v", ok, tt.ok)
			}
			if ok && v.Name != tt.want {
				t.Errorf("Name = %q, want %q", v.Name, tt.want)
			}
		})
	}
}

func TestDecodeModelJSON_Array(t *testing.T) {
	var v []decodeTarget
	raw := "Sure:\n```json\n[{\"name\": \"a\"}, {\"name\": \"b\"}]\n```"
	if !decodeModelJSON(raw, &v) {
		t.Fatal("expected decode to succeed")
	}
	if len(v) != 2 || v[0].Name != "a" || v[1].Name != "b" {
		t.Errorf("decoded = %+v", v)
	}
}

func TestFirstBalanced(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`pre {"a": 1} post`, `{"a": 1}`},
		{`pre [1, 2] post`, `[1, 2]`},
		{`{"a": {"b": 2}}`, `{"a": {"b": 2}}`},
		{`{"s": "has } inside"}`, `{"s": "has } inside"}`},
		{`no brackets here`, ``},
		{`{"open": 1`, ``},
	}
	for _, tt := range tests {
		if got := firstBalanced(tt.in); got != tt.want {
			t.Errorf("firstBalanced(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
