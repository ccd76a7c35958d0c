package openai

import "testing"

func TestTrimToJSON(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"brand":"Tesla"}`, `{"brand":"Tesla"}`},
		{"Here you go:\n```json\n{\"brand\":\"Tesla\"}\n```", `{"brand":"Tesla"}`},
		{"prefix {\"a\":{\"b\":1}} suffix", `{"a":{"b":1}}`},
		{"no json here", "no json here"},
	}
	for _, c := range cases {
		if got := trimToJSON(c.in); got != c.want {
			t.Errorf("trimToJSON(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	valid := Config{BaseURL: "https://api.openai.com/v1", ChatModel: "gpt-4o-mini", EmbeddingModel: "text-embedding-3-small"}
	if err := valid.validate(); err != nil {
		t.Fatalf("validate err = %v", err)
	}
	if err := (Config{ChatModel: "x", EmbeddingModel: "y"}).validate(); err == nil {
		t.Fatal("expected missing base URL error")
	}
	if err := (Config{BaseURL: "u"}).validate(); err == nil {
		t.Fatal("expected missing model error")
	}
}
