package tokenizer

import (
	"testing"

	"github.com/pkoukk/tiktoken-go"

	"github.com/BaSui01/colloquy/types"
)

func TestForModelPicksEncoding(t *testing.T) {
	t.Parallel()

	cases := []struct {
		model string
		want  string
	}{
		{"gpt-4o", "o200k_base"},
		{"gpt-4o-mini", "o200k_base"},
		{"gpt-4", "cl100k_base"},
		{"gpt-4-0613", "cl100k_base"}, // 前缀匹配
		{"claude-3-5-sonnet", "cl100k_base"},
	}
	for _, tc := range cases {
		if got := ForModel(tc.model, nil).encoding; got != tc.want {
			t.Fatalf("ForModel(%s).encoding = %s, want %s", tc.model, got, tc.want)
		}
	}
}

func TestCountTokensNeverErrors(t *testing.T) {
	t.Parallel()

	tok := ForModel("gpt-4o-mini", nil)
	n := tok.CountTokens("Hello, how are you today?")
	if n <= 0 {
		t.Fatalf("CountTokens = %d, want > 0", n)
	}

	m := tok.CountMessageTokens(types.NewUserMessage("Hello, how are you today?"))
	if m <= n {
		t.Fatalf("CountMessageTokens = %d, should exceed bare count %d", m, n)
	}
}

func TestCountTokensAgainstEncoding(t *testing.T) {
	t.Parallel()

	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		t.Skipf("encoding data unavailable: %v", err)
	}

	text := "The quick brown fox jumps over the lazy dog."
	want := len(enc.Encode(text, nil, nil))
	if got := ForEncoding("cl100k_base", nil).CountTokens(text); got != want {
		t.Fatalf("CountTokens = %d, want %d", got, want)
	}
}
