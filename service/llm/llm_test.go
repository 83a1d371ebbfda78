package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractive_Generate(t *testing.T) {
	testCases := []struct {
		description string
		prompt      Prompt
		expect      string
		expectErr   bool
	}{
		{
			description: "keeps citation markers",
			prompt: Prompt{Kind: KindSectionSummary, Context: []string{
				"[1] Raft elects a leader. It then replicates a log.",
				"[2] Paxos is harder to implement",
			}},
			expect: "Raft elects a leader [1]. Paxos is harder to implement [2].",
		},
		{
			description: "limits sentences",
			prompt:      Prompt{Kind: KindConclusions, Context: []string{"[1] a.", "[2] b.", "[3] c.", "[4] d.", "[5] e."}},
			expect:      "a [1]. b [2]. c [3]. d [4].",
		},
		{
			description: "questions echo context",
			prompt:      Prompt{Kind: KindQuestions, Context: []string{"What aspects?", "What goal?"}},
			expect:      "What aspects?\nWhat goal?",
		},
		{
			description: "empty context",
			prompt:      Prompt{Kind: KindExecutiveSummary},
			expectErr:   true,
		},
		{
			description: "word cap",
			prompt:      Prompt{Kind: KindExecutiveSummary, MaxWords: 3, Context: []string{"one two three four five"}},
			expect:      "one two three...",
		},
	}
	for _, testCase := range testCases {
		actual, err := Extractive{}.Generate(context.Background(), testCase.prompt)
		if testCase.expectErr {
			assert.Error(t, err, testCase.description)
			continue
		}
		require.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expect, actual, testCase.description)
	}
}

func TestWithFallback(t *testing.T) {
	failing := Func(func(context.Context, Prompt) (string, error) { return "", errors.New("quota") })
	blank := Func(func(context.Context, Prompt) (string, error) { return "  ", nil })
	ok := Func(func(context.Context, Prompt) (string, error) { return "remote", nil })
	prompt := Prompt{Kind: KindConclusions, Context: []string{"[1] local."}}

	for _, primary := range []Generator{failing, blank} {
		text, err := WithFallback(primary, Extractive{}).Generate(context.Background(), prompt)
		require.NoError(t, err)
		assert.Equal(t, "local [1].", text)
	}
	text, err := WithFallback(ok, Extractive{}).Generate(context.Background(), prompt)
	require.NoError(t, err)
	assert.Equal(t, "remote", text)
	assert.Equal(t, Extractive{}, WithFallback(nil, Extractive{}))
}

func TestPrompt_String(t *testing.T) {
	p := Prompt{Instruction: " Summarize ", Context: []string{"[1] a"}}
	assert.Equal(t, "Summarize\n\nContext:\n- [1] a\n", p.String())
}
