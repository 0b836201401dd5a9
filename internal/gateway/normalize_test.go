package gateway

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			"generated_text list",
			`[{"generated_text": "F = ma"}]`,
			"F = ma",
		},
		{
			"generated_text list takes first",
			`[{"generated_text": "first"}, {"generated_text": "second"}]`,
			"first",
		},
		{
			"chat choices",
			`{"choices": [{"message": {"content": "v = 20 m/s"}}]}`,
			"v = 20 m/s",
		},
		{
			"chat choices takes first",
			`{"choices": [{"message": {"content": "a"}}, {"message": {"content": "b"}}]}`,
			"a",
		},
		{
			"bare JSON string",
			`"plain answer"`,
			"plain answer",
		},
		{
			"unrecognized object falls back to body",
			`{"odd": "shape"}`,
			`{"odd": "shape"}`,
		},
		{
			"not JSON at all",
			"  some plain text  ",
			"some plain text",
		},
		{
			"empty list falls through",
			`[]`,
			`[]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize([]byte(tt.raw)); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
