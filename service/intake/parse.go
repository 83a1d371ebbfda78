package intake

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/viant/deepresearch/model"
)

var (
	listSeparator = regexp.MustCompile(`\s*(?:,|;|\n|\band\b|&)\s*`)
	fieldLine     = regexp.MustCompile(`^\s*(focus|goal|sources?|audience)\s*[:=]\s*(.+)$`)
	negation      = []string{"no ", "not ", "skip ", "exclude ", "without ", "avoid "}
)

var fieldAliases = map[string]Field{
	"focus":    FieldFocus,
	"goal":     FieldGoal,
	"source":   FieldSources,
	"sources":  FieldSources,
	"audience": FieldAudience,
}

var (
	proceedWords = map[string]bool{"proceed": true, "defaults": true, "default": true, "go": true, "go ahead": true, "skip": true, "start": true}
	abandonWords = map[string]bool{"cancel": true, "abandon": true, "stop": true, "quit": true, "nevermind": true, "never mind": true}
)

func command(text string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(text)), ".!")
}

// parseFieldLines extracts "field: value" lines; ok is false when none match.
func parseFieldLines(text string) (map[Field]string, bool) {
	ret := map[Field]string{}
	for _, line := range strings.Split(text, "\n") {
		match := fieldLine.FindStringSubmatch(strings.ToLower(line))
		if match == nil {
			continue
		}
		// keep the original casing of the value
		value := strings.TrimSpace(line[strings.IndexAny(line, ":=")+1:])
		ret[fieldAliases[match[1]]] = value
	}
	return ret, len(ret) > 0
}

// splitList splits "a, b and c" into its items.
func splitList(text string) []string {
	var ret []string
	for _, item := range listSeparator.Split(strings.TrimSpace(text), -1) {
		if item = strings.TrimSpace(item); item != "" {
			ret = append(ret, item)
		}
	}
	return ret
}

// parseSources maps "papers and code, no web" onto priorities and exclusions.
func parseSources(text string) (priorities, exclusions []model.SourceType) {
	seen := map[model.SourceType]bool{}
	for _, item := range splitList(strings.ToLower(text)) {
		excluded := false
		for _, prefix := range negation {
			if strings.HasPrefix(item, prefix) {
				item = strings.TrimSpace(strings.TrimPrefix(item, prefix))
				excluded = true
				break
			}
		}
		t, ok := model.ParseSourceType(item)
		if !ok || seen[t] {
			continue
		}
		seen[t] = true
		if excluded {
			exclusions = append(exclusions, t)
			continue
		}
		priorities = append(priorities, t)
	}
	return priorities, exclusions
}

// parseDateFilter recognises a recency window anywhere in text.
func parseDateFilter(text string) model.DateFilter {
	text = strings.ToLower(text)
	switch {
	case strings.Contains(text, "past week"), strings.Contains(text, "last week"), strings.Contains(text, "this week"):
		return model.DateWeek
	case strings.Contains(text, "past month"), strings.Contains(text, "last month"), strings.Contains(text, "this month"):
		return model.DateMonth
	case strings.Contains(text, "past year"), strings.Contains(text, "last year"), strings.Contains(text, "this year"), strings.Contains(text, "recent"):
		return model.DateYear
	}
	return model.DateAny
}

// topicOf strips a leading research command from the opening message. A
// command only counts when followed by whitespace, ':' or the end of text.
func topicOf(text string) string {
	text = strings.TrimSpace(text)
	lower := strings.ToLower(text)
	for _, prefix := range []string{"/research", "deep research on", "please research", "research"} {
		if !strings.HasPrefix(lower, prefix) {
			continue
		}
		rest := text[len(prefix):]
		if rest == "" {
			return ""
		}
		if rest[0] == ':' || unicode.IsSpace(rune(rest[0])) {
			return strings.TrimSpace(strings.TrimPrefix(rest, ":"))
		}
	}
	return text
}

// goalCue infers a goal from an opening message only on explicit wording;
// anything else is left to the goal question.
func goalCue(topic string) (model.GoalType, bool) {
	lower := " " + strings.ToLower(topic) + " "
	if strings.Contains(lower, " how to ") {
		return model.GoalImplementationGuide, true
	}
	if strings.Contains(lower, " literature review ") {
		return model.GoalLiteratureReview, true
	}
	for _, word := range strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) }) {
		switch word {
		case "compare", "comparing", "comparison", "vs", "versus":
			return model.GoalComparison, true
		}
	}
	return "", false
}
