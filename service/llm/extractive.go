package llm

import (
	"context"
	"strings"
)

// Extractive is an offline Generator. It assembles an answer from the
// prompt context alone: the leading sentence of each evidence line, keeping
// its citation marker. Question prompts echo their context lines.
type Extractive struct {
	MaxSentences int
}

func (e Extractive) Generate(ctx context.Context, prompt Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(prompt.Context) == 0 {
		return "", ErrEmptyResponse
	}
	if prompt.Kind == KindQuestions {
		return strings.Join(prompt.Context, "\n"), nil
	}
	limit := e.MaxSentences
	if limit <= 0 {
		limit = 4
	}
	var sentences []string
	for _, line := range prompt.Context {
		if len(sentences) == limit {
			break
		}
		marker, body := splitMarker(line)
		sentence := firstSentence(body)
		if sentence == "" {
			continue
		}
		if marker != "" {
			sentence = strings.TrimRight(sentence, ".") + " " + marker + "."
		}
		sentences = append(sentences, sentence)
	}
	if len(sentences) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.Join(sentences, " ")
	if prompt.MaxWords > 0 {
		text = truncateWords(text, prompt.MaxWords)
	}
	return text, nil
}

func splitMarker(line string) (string, string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[") {
		return "", line
	}
	end := strings.Index(line, "]")
	if end < 0 {
		return "", line
	}
	return line[:end+1], strings.TrimSpace(line[end+1:])
}

func firstSentence(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	for i := 0; i < len(text); i++ {
		if text[i] != '.' && text[i] != '!' && text[i] != '?' {
			continue
		}
		if i == len(text)-1 || text[i+1] == ' ' {
			return text[:i+1]
		}
	}
	return text
}

func truncateWords(text string, max int) string {
	words := strings.Fields(text)
	if len(words) <= max {
		return text
	}
	return strings.Join(words[:max], " ") + "..."
}
