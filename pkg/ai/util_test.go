package ai

import (
	"testing"
)

type sampleOut struct {
	Name  string  `json:"name"`
	Count int     `json:"count"`
	Area  float64 `json:"area"`
}

func TestUnmarshalFlexible_StandardJSON(t *testing.T) {
	var out sampleOut
	err := UnmarshalFlexible(`{"name": "kitchen", "count": 2, "area": 12.5}`, &out)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if out.Name != "kitchen" || out.Count != 2 || out.Area != 12.5 {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestUnmarshalFlexible_DoubleEncoded(t *testing.T) {
	var out sampleOut
	err := UnmarshalFlexible(`"{\"name\": \"bath\", \"count\": 1, \"area\": 4}"`, &out)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if out.Name != "bath" || out.Count != 1 {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestUnmarshalFlexible_Malformed(t *testing.T) {
	var out sampleOut
	err := UnmarshalFlexible(`{name: "hall", count: 3, area: 8.25,}`, &out)
	if err != nil {
		t.Fatalf("expected repair to succeed, got %v", err)
	}
	if out.Name != "hall" || out.Count != 3 {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestUnmarshalFlexible_CodeFenced(t *testing.T) {
	var out sampleOut
	input := "```json\n{\"name\": \"loggia\", \"count\": 1, \"area\": 3.1}\n```"
	err := UnmarshalFlexible(input, &out)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if out.Name != "loggia" {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestUnmarshalFlexible_DuplicateLeadingBrace(t *testing.T) {
	var out sampleOut
	err := UnmarshalFlexible(`{ {"name": "wc", "count": 1, "area": 2}`, &out)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if out.Name != "wc" {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestUnmarshalFlexible_Array(t *testing.T) {
	var out []sampleOut
	err := UnmarshalFlexible(`[{"name": "a", "count": 1, "area": 1}, {"name": "b", "count": 2, "area": 2}]`, &out)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(out) != 2 || out[1].Name != "b" {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"```json\n[1,2]\n```", "[1,2]"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"{\"a\":1}", "{\"a\":1}"},
		{"  [1,2]  ", "[1,2]"},
	}
	for _, c := range cases {
		got := StripCodeFences(c.in)
		if got != c.want {
			t.Fatalf("StripCodeFences(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTruncateToTokens_NoBudget(t *testing.T) {
	if got := TruncateToTokens("unchanged", 0); got != "unchanged" {
		t.Fatalf("expected passthrough for zero budget, got %q", got)
	}
	if got := TruncateToTokens("", 10); got != "" {
		t.Fatalf("expected empty passthrough, got %q", got)
	}
}

func TestGenerateSchema_DisallowsAdditionalProperties(t *testing.T) {
	schema := GenerateSchema(sampleOut{})
	if schema == nil {
		t.Fatal("expected schema, got nil")
	}
}
