package script

import "testing"

func TestRecognize(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{name: "simple block", raw: "```neo\nX\n```", want: "\nX\n", wantOK: true},
		{name: "surrounding whitespace", raw: "  \n```neo\nX\n```\n\t", want: "\nX\n", wantOK: true},
		{name: "empty interior", raw: "```neo```", want: "", wantOK: true},
		{name: "plain text", raw: "plain text"},
		{name: "empty", raw: ""},
		{name: "other language", raw: "```go\nX\n```"},
		{name: "missing closing fence", raw: "```neo\nX\n"},
		{name: "missing opening fence", raw: "X\n```"},
		{name: "text after block", raw: "```neo\nX\n``` trailing"},
		{name: "too short to hold both fences", raw: "```neo``"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Recognize(tt.raw)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("Recognize(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestRecognizeFence(t *testing.T) {
	got, ok := RecognizeFence("```lua\nprint()\n```", "lua")
	if !ok || got != "\nprint()\n" {
		t.Fatalf("RecognizeFence() = (%q, %v)", got, ok)
	}
	if _, ok := RecognizeFence("```neo\nX\n```", "lua"); ok {
		t.Fatal("fence tag must match")
	}
}
