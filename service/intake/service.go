// Package intake runs the clarification dialog that turns a chat message into
// exactly one Brief and one enqueued Task.
package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/viant/deepresearch/internal/clock"
	"github.com/viant/deepresearch/internal/idgen"
	"github.com/viant/deepresearch/internal/logging"
	"github.com/viant/deepresearch/model"
	"github.com/viant/deepresearch/service/dao"
	"github.com/viant/deepresearch/service/dao/store"
	"github.com/viant/deepresearch/service/llm"
	"go.uber.org/zap"
)

var (
	ErrClarificationTimeout = errors.New("intake: clarification timed out")
	ErrAbandoned            = errors.New("intake: request abandoned")
	ErrSessionClosed        = errors.New("intake: session closed")
	ErrEmptyRequest         = errors.New("intake: empty request")
)

var defaultQuestions = map[Field]string{
	FieldFocus:    "Which aspects should the research focus on?",
	FieldGoal:     "What is the goal: overview, comparison, implementation guide, literature review or decision support?",
	FieldSources:  "Which sources matter most (web, papers, code) and should any be skipped?",
	FieldAudience: "Who is the report for?",
}

// Config bounds the dialog.
type Config struct {
	Window       time.Duration `json:"window" yaml:"window"`
	MaxTurns     int           `json:"maxTurns" yaml:"maxTurns"`
	MaxQuestions int           `json:"maxQuestions" yaml:"maxQuestions"`
}

// DefaultConfig allows 30 minutes, 3 turns and 4 questions.
func DefaultConfig() Config {
	return Config{Window: 30 * time.Minute, MaxTurns: 3, MaxQuestions: 4}
}

// Enqueuer accepts finalized briefs.
type Enqueuer interface {
	Enqueue(ctx context.Context, brief model.Brief) (*model.Task, error)
}

type Service struct {
	config    Config
	sessions  *store.MemoryStore[string, Session]
	queue     Enqueuer
	generator llm.Generator
	mu        sync.Mutex
	logger    *zap.Logger
}

type Option func(s *Service)

// WithGenerator phrases questions with a language model.
func WithGenerator(generator llm.Generator) Option {
	return func(s *Service) { s.generator = generator }
}

// WithConfig overrides the dialog limits.
func WithConfig(config Config) Option {
	return func(s *Service) {
		defaults := DefaultConfig()
		if config.Window <= 0 {
			config.Window = defaults.Window
		}
		if config.MaxTurns <= 0 {
			config.MaxTurns = defaults.MaxTurns
		}
		if config.MaxQuestions <= 0 {
			config.MaxQuestions = defaults.MaxQuestions
		}
		s.config = config
	}
}

// New creates an intake service enqueuing on queue.
func New(queue Enqueuer, opts ...Option) *Service {
	s := &Service{
		config:   DefaultConfig(),
		sessions: store.NewMemoryStore[string, Session](func(s *Session) string { return s.ID }).WithCopier((*Session).Clone),
		queue:    queue,
		logger:   logging.Named("intake"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Receive opens a session for msg and asks the clarifying questions.
func (s *Service) Receive(ctx context.Context, msg Message) (*Session, error) {
	topic := topicOf(msg.Text)
	if topic == "" {
		return nil, ErrEmptyRequest
	}
	now := clock.Now()
	session := &Session{
		ID:             idgen.Prefixed("session"),
		SenderID:       msg.SenderID,
		ChannelContext: msg.ChannelContext,
		Topic:          topic,
		State:          StateReceived,
		Answers:        map[Field]string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if goal, ok := goalCue(topic); ok {
		session.Answers[FieldGoal] = string(goal)
	}
	var open []Field
	for _, field := range Fields {
		if _, ok := session.Answers[field]; ok {
			continue
		}
		if len(open) == s.config.MaxQuestions {
			break
		}
		open = append(open, field)
	}
	session.Questions = s.questions(ctx, topic, open)
	session.State = StateAwaitingClarification
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(session.Questions) == 0 {
		if err := s.finalize(ctx, session); err != nil {
			return nil, err
		}
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Info("session opened", zap.String("session", session.ID), zap.String("sender", msg.SenderID), zap.Int("questions", len(session.Questions)))
	return session.Clone(), nil
}

// questions phrases one question per field, falling back to the built-in
// wording when the generator fails or returns the wrong number of lines.
func (s *Service) questions(ctx context.Context, topic string, fields []Field) []Question {
	ret := make([]Question, 0, len(fields))
	var texts []string
	for _, field := range fields {
		ret = append(ret, Question{Field: field, Text: defaultQuestions[field]})
		texts = append(texts, defaultQuestions[field])
	}
	if s.generator == nil || len(fields) == 0 {
		return ret
	}
	text, err := s.generator.Generate(ctx, llm.Prompt{
		Kind:        llm.KindQuestions,
		Instruction: fmt.Sprintf("Rephrase these clarifying questions for research on %q, one per line, same order.", topic),
		Context:     texts,
	})
	if err != nil {
		s.logger.Warn("question generation failed, using defaults", zap.Error(err))
		return ret
	}
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. ")); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) != len(ret) {
		return ret
	}
	for i := range ret {
		ret[i].Text = lines[i]
	}
	return ret
}

// Reply records an answer. It finalizes once every field is answered, the
// requester asks to proceed, or the turn limit is reached; remaining fields
// take their defaults.
func (s *Service) Reply(ctx context.Context, sessionID, text string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	if session.State.IsTerminal() {
		return session, ErrSessionClosed
	}
	if s.expired(session) {
		return s.reject(ctx, session, ErrClarificationTimeout)
	}
	cmd := command(text)
	if abandonWords[cmd] {
		return s.reject(ctx, session, ErrAbandoned)
	}
	session.Turns++
	session.UpdatedAt = clock.Now()
	session.State = StateClarifying
	switch {
	case proceedWords[cmd]:
		err = s.finalize(ctx, session)
	default:
		s.answer(session, text)
		if len(session.Open()) == 0 || session.Turns >= s.config.MaxTurns {
			err = s.finalize(ctx, session)
		}
	}
	if err != nil {
		return nil, err
	}
	if err = s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session.Clone(), nil
}

func (s *Service) answer(session *Session, text string) {
	if fields, ok := parseFieldLines(text); ok {
		for field, value := range fields {
			session.Answers[field] = value
		}
		return
	}
	open := session.Open()
	if len(open) == 0 {
		return
	}
	session.Answers[open[0].Field] = strings.TrimSpace(text)
}

// finalize builds the brief and enqueues its task. It runs once per session
// because the state leaves the open states before the session is saved.
func (s *Service) finalize(ctx context.Context, session *Session) error {
	brief := s.brief(session)
	if err := brief.Validate(); err != nil {
		s.logger.Warn("ignoring source exclusions", zap.String("session", session.ID), zap.Error(err))
		brief.Exclusions = nil
	}
	task, err := s.queue.Enqueue(ctx, brief)
	if err != nil {
		return fmt.Errorf("failed to enqueue brief: %w", err)
	}
	session.Brief = &task.Brief
	session.TaskID = task.ID
	session.State = StateFinalized
	session.UpdatedAt = clock.Now()
	s.logger.Info("session finalized", zap.String("session", session.ID), zap.String("task", task.ID))
	return nil
}

func (s *Service) brief(session *Session) model.Brief {
	brief := model.Brief{
		SessionID:  session.ID,
		SenderID:   session.SenderID,
		Channel:    session.ChannelContext,
		Topic:      session.Topic,
		Goal:       model.GoalOverview,
		DateFilter: model.DateAny,
		CreatedAt:  clock.Now(),
	}
	if focus, ok := session.Answers[FieldFocus]; ok {
		brief.FocusPoints = splitList(focus)
	}
	if goal, ok := model.ParseGoal(session.Answers[FieldGoal]); ok {
		brief.Goal = goal
	}
	brief.Priorities, brief.Exclusions = parseSources(session.Answers[FieldSources])
	brief.Audience = strings.TrimSpace(session.Answers[FieldAudience])
	var all []string
	all = append(all, session.Topic)
	for _, field := range Fields {
		all = append(all, session.Answers[field])
	}
	brief.DateFilter = parseDateFilter(strings.Join(all, " "))
	return brief
}

func (s *Service) reject(ctx context.Context, session *Session, reason error) (*Session, error) {
	session.State = StateRejected
	session.Reason = reason.Error()
	session.UpdatedAt = clock.Now()
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Info("session rejected", zap.String("session", session.ID), zap.String("reason", session.Reason))
	return session.Clone(), reason
}

func (s *Service) expired(session *Session) bool {
	return clock.Since(session.UpdatedAt) > s.config.Window
}

// Expire rejects every open session idle longer than the window.
func (s *Service) Expire(ctx context.Context) ([]*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return nil, err
	}
	var ret []*Session
	for _, session := range sessions {
		if session.State.IsTerminal() || !s.expired(session) {
			continue
		}
		rejected, _ := s.reject(ctx, session, ErrClarificationTimeout)
		if rejected != nil {
			ret = append(ret, rejected)
		}
	}
	return ret, nil
}

// Run sweeps expired sessions every interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if expired, err := s.Expire(ctx); err != nil {
				s.logger.Warn("session sweep failed", zap.Error(err))
			} else if len(expired) > 0 {
				s.logger.Info("sessions expired", zap.Int("count", len(expired)))
			}
		}
	}
}

// Get returns a session.
func (s *Service) Get(ctx context.Context, sessionID string) (*Session, error) {
	return s.sessions.Load(ctx, sessionID)
}

// OpenSession returns the most recent open session of sender.
func (s *Service) OpenSession(ctx context.Context, senderID string) (*Session, error) {
	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return nil, err
	}
	var ret *Session
	for _, session := range sessions {
		if session.SenderID != senderID || session.State.IsTerminal() {
			continue
		}
		if ret == nil || session.CreatedAt.After(ret.CreatedAt) {
			ret = session
		}
	}
	if ret == nil {
		return nil, dao.ErrNotFound
	}
	return ret, nil
}
