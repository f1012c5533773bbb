package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeEnglish(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "Simple sentence",
			input:    "The cat sat on the mat",
			expected: []string{"cat", "sat", "mat"},
		},
		{
			name:     "Lowercasing and punctuation",
			input:    "I love Coding!!",
			expected: []string{"love", "coding"},
		},
		{
			name:     "Single-character words dropped",
			input:    "a b c go",
			expected: []string{"go"},
		},
		{
			name:     "Alphanumeric words kept",
			input:    "released v2 in 2024",
			expected: []string{"released", "v2", "2024"},
		},
		{
			name:     "Empty input",
			input:    "",
			expected: nil,
		},
		{
			name:     "Whitespace only",
			input:    "   \t\n",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Tokenize(tt.input))
		})
	}
}

func TestTokenizeChinese(t *testing.T) {
	// 我 is a stop-word as a unigram, but the bigram 我喜 is not.
	tokens := Tokenize("我喜欢编程")
	assert.Equal(t, []string{"喜", "欢", "编", "程", "我喜", "喜欢", "欢编", "编程"}, tokens)
}

func TestTokenizeMixedScript(t *testing.T) {
	tokens := Tokenize("用Go写代码")
	assert.Equal(t, []string{"用", "go", "写", "代", "码", "写代", "代码"}, tokens)
}

func TestTokenizeDeterministic(t *testing.T) {
	input := "记忆引擎 memory engine v1 上线了"
	first := Tokenize(input)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Tokenize(input))
	}
}

func TestTokenSet(t *testing.T) {
	set := TokenSet("cat cat mat")
	assert.Len(t, set, 2)
	assert.Contains(t, set, "cat")
	assert.Contains(t, set, "mat")

	assert.Empty(t, TokenSet(""))
}
