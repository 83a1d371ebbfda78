// Package synthesizer turns aggregated evidence into a ReportDocument whose
// every citation resolves to a numbered source.
package synthesizer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/viant/deepresearch/internal/clock"
	"github.com/viant/deepresearch/internal/logging"
	"github.com/viant/deepresearch/model"
	"github.com/viant/deepresearch/service/aggregator"
	"github.com/viant/deepresearch/service/investigator"
	"github.com/viant/deepresearch/service/llm"
	"github.com/viant/deepresearch/tracing"
	"go.uber.org/zap"
)

// ErrSynthesisFailure wraps every reason a report could not be produced.
var ErrSynthesisFailure = errors.New("synthesis failure")

const (
	sectionWords    = 180
	summaryWords    = 150
	conclusionWords = 160
	maxQuestions    = 6
	conclusionLines = 6
)

// Input is everything a report is built from.
type Input struct {
	Task      *model.Task
	Brief     *model.Brief
	Aggregate *aggregator.Result
	Outcome   *investigator.Outcome
	StartedAt time.Time
}

type Service struct {
	generator llm.Generator
	template  *template.Template
	timeout   time.Duration
	logger    *zap.Logger
}

type Option func(s *Service)

// WithTemplate replaces the markdown layout used by Render.
func WithTemplate(tmpl *template.Template) Option {
	return func(s *Service) {
		if tmpl != nil {
			s.template = tmpl
		}
	}
}

// WithTimeout bounds one Synthesize call.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Service) { s.timeout = timeout }
}

// New creates a synthesizer; a nil generator falls back to llm.Extractive.
func New(generator llm.Generator, opts ...Option) *Service {
	if generator == nil {
		generator = llm.Extractive{}
	}
	tmpl, err := ParseTemplate("")
	if err != nil {
		panic(err)
	}
	s := &Service{generator: generator, template: tmpl, logger: logging.Named("synthesizer")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Render produces the markdown form of doc.
func (s *Service) Render(doc *model.ReportDocument) (string, error) {
	return Render(s.template, doc)
}

// Synthesize builds and validates a report.
func (s *Service) Synthesize(ctx context.Context, input Input) (doc *model.ReportDocument, err error) {
	ctx, span := tracing.StartSpan(ctx, "synthesizer.synthesize")
	defer func() { tracing.EndSpan(span, err) }()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	doc, err = s.synthesize(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailure, err)
	}
	span.WithInt("sources", len(doc.Sources)).WithInt("sections", len(doc.Sections))
	return doc, nil
}

func (s *Service) synthesize(ctx context.Context, input Input) (*model.ReportDocument, error) {
	if input.Brief == nil {
		return nil, errors.New("brief is required")
	}
	if input.Aggregate == nil || len(input.Aggregate.Findings) == 0 {
		return nil, errors.New("no findings to synthesize")
	}
	brief := input.Brief
	doc := &model.ReportDocument{
		Title:             title(brief),
		ResearchQuestions: Questions(brief),
	}
	numbers := map[string]int{}
	for _, f := range input.Aggregate.Findings {
		if _, ok := numbers[f.ID]; ok {
			continue
		}
		number := len(doc.Sources) + 1
		numbers[f.ID] = number
		doc.Sources = append(doc.Sources, model.Source{
			Number:    number,
			FindingID: f.ID,
			Type:      f.Type,
			Title:     f.Title,
			Locator:   f.Locator,
		})
	}
	known := func(n int) bool { return n >= 1 && n <= len(doc.Sources) }

	var sectionLines []string
	for _, cluster := range input.Aggregate.Clusters {
		var evidence []string
		var cited []int
		for _, id := range cluster.FindingIDs {
			f, ok := input.Aggregate.Finding(id)
			if !ok {
				continue
			}
			evidence = append(evidence, evidenceLine(numbers[id], f))
			cited = append(cited, numbers[id])
		}
		if len(evidence) == 0 {
			continue
		}
		body, err := s.generate(ctx, llm.Prompt{
			Kind:        llm.KindSectionSummary,
			Instruction: fmt.Sprintf("Summarise the evidence on %q for the topic %q. Cite sources only with the given [n] markers.", cluster.Theme, brief.Topic),
			Context:     evidence,
			MaxWords:    sectionWords,
		}, known)
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", cluster.Theme, err)
		}
		section := model.Section{Theme: cluster.Theme, Body: body, Citations: distinct(model.Citations(body))}
		if len(section.Citations) == 0 {
			section.Citations = distinct(cited)
		}
		doc.Sections = append(doc.Sections, section)
		sectionLines = append(sectionLines, body)
	}
	if len(doc.Sections) == 0 {
		return nil, errors.New("no section could be written")
	}

	summary, err := s.generate(ctx, llm.Prompt{
		Kind:        llm.KindExecutiveSummary,
		Instruction: fmt.Sprintf("Write an executive summary of research on %q for %s.", brief.Topic, audience(brief)),
		Context:     sectionLines,
		MaxWords:    summaryWords,
	}, known)
	if err != nil {
		return nil, fmt.Errorf("executive summary: %w", err)
	}
	doc.ExecutiveSummary = summary

	var top []string
	for i, f := range input.Aggregate.Findings {
		if i == conclusionLines {
			break
		}
		top = append(top, evidenceLine(numbers[f.ID], &input.Aggregate.Findings[i]))
	}
	conclusions, err := s.generate(ctx, llm.Prompt{
		Kind:        llm.KindConclusions,
		Instruction: conclusionInstruction(brief),
		Context:     top,
		MaxWords:    conclusionWords,
	}, known)
	if err != nil {
		return nil, fmt.Errorf("conclusions: %w", err)
	}
	doc.Conclusions = conclusions

	var degraded bool
	var failed []model.SourceType
	if input.Outcome != nil {
		degraded = input.Outcome.Degraded
		failed = input.Outcome.FailedTypes()
	}
	doc.Confidence = Confidence(len(doc.Sources), degraded)
	doc.Metadata = model.Metadata{
		Topic:               brief.Topic,
		ResearchDate:        clock.Now(),
		SourceCount:         len(doc.Sources),
		Degraded:            degraded,
		FailedInvestigators: failed,
	}
	if input.Task != nil {
		doc.Metadata.TaskID = input.Task.ID
	}
	if !input.StartedAt.IsZero() {
		doc.Metadata.Elapsed = clock.Since(input.StartedAt)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	s.logger.Info("report synthesized",
		zap.String("taskId", doc.Metadata.TaskID),
		zap.Int("sources", len(doc.Sources)),
		zap.Int("sections", len(doc.Sections)),
		zap.String("confidence", string(doc.Confidence)))
	return doc, nil
}

// generate asks the generator for prose and strips citation markers that do
// not resolve to a numbered source.
func (s *Service) generate(ctx context.Context, prompt llm.Prompt, known func(int) bool) (string, error) {
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	cleaned, dropped := model.StripCitations(text, known)
	if len(dropped) > 0 {
		s.logger.Warn("dropped unresolved citations", zap.String("kind", string(prompt.Kind)), zap.Ints("numbers", dropped))
	}
	if strings.TrimSpace(cleaned) == "" {
		return "", llm.ErrEmptyResponse
	}
	return cleaned, nil
}

// Confidence grades the evidence: high needs at least 20 sources from a
// complete run, medium at least 10.
func Confidence(sources int, degraded bool) model.Confidence {
	switch {
	case sources >= 20 && !degraded:
		return model.ConfidenceHigh
	case sources >= 10:
		return model.ConfidenceMedium
	}
	return model.ConfidenceLow
}

// Questions derives the research questions from the goal and focus points.
func Questions(brief *model.Brief) []string {
	topic := strings.TrimSpace(brief.Topic)
	var ret []string
	switch brief.Goal {
	case model.GoalComparison:
		ret = append(ret, fmt.Sprintf("How do the main approaches to %s compare?", topic))
	case model.GoalImplementationGuide:
		ret = append(ret, fmt.Sprintf("How can %s be implemented in practice?", topic))
	case model.GoalLiteratureReview:
		ret = append(ret, fmt.Sprintf("What does current research say about %s?", topic))
	case model.GoalDecisionSupport:
		ret = append(ret, fmt.Sprintf("Which option for %s best fits the stated needs?", topic))
	default:
		ret = append(ret, fmt.Sprintf("What are the key aspects of %s?", topic))
	}
	for _, focus := range brief.FocusPoints {
		focus = strings.TrimSpace(focus)
		if focus == "" {
			continue
		}
		if len(ret) == maxQuestions {
			break
		}
		ret = append(ret, fmt.Sprintf("What is known about %s in the context of %s?", focus, topic))
	}
	return ret
}

func title(brief *model.Brief) string {
	topic := strings.TrimSpace(brief.Topic)
	if topic == "" {
		return ""
	}
	return "Research Report: " + topic
}

func audience(brief *model.Brief) string {
	if brief.Audience != "" {
		return brief.Audience
	}
	return "a general technical audience"
}

func conclusionInstruction(brief *model.Brief) string {
	switch brief.Goal {
	case model.GoalDecisionSupport:
		return fmt.Sprintf("Recommend a course of action on %q based only on the evidence.", brief.Topic)
	case model.GoalImplementationGuide:
		return fmt.Sprintf("List the practical next steps for implementing %q.", brief.Topic)
	case model.GoalComparison:
		return fmt.Sprintf("State which approaches to %q suit which situations.", brief.Topic)
	}
	return fmt.Sprintf("Draw conclusions about %q from the evidence.", brief.Topic)
}

func evidenceLine(number int, f *model.Finding) string {
	text := strings.TrimSpace(f.Title)
	if snippet := strings.TrimSpace(f.Snippet); snippet != "" {
		text = strings.TrimRight(text, ".") + ". " + snippet
	}
	return fmt.Sprintf("[%d] %s", number, text)
}

func distinct(numbers []int) []int {
	seen := map[int]bool{}
	var ret []int
	for _, n := range numbers {
		if seen[n] {
			continue
		}
		seen[n] = true
		ret = append(ret, n)
	}
	sort.Ints(ret)
	return ret
}
