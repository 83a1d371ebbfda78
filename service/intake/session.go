package intake

import (
	"time"

	"github.com/viant/deepresearch/model"
)

// State is the position of a session in the clarification dialog.
type State string

const (
	StateReceived              State = "received"
	StateAwaitingClarification State = "awaiting_clarification"
	StateClarifying            State = "clarifying"
	StateFinalized             State = "finalized"
	StateRejected              State = "rejected"
)

// IsTerminal reports whether the session accepts no further replies.
func (s State) IsTerminal() bool {
	return s == StateFinalized || s == StateRejected
}

// Field is a brief attribute the dialog tries to resolve.
type Field string

const (
	FieldFocus    Field = "focus"
	FieldGoal     Field = "goal"
	FieldSources  Field = "sources"
	FieldAudience Field = "audience"
)

// Fields lists clarification fields in the order they are asked.
var Fields = []Field{FieldFocus, FieldGoal, FieldSources, FieldAudience}

// Message is one inbound chat message.
type Message struct {
	SenderID       string `json:"senderId"`
	ChannelContext string `json:"channelContext,omitempty"`
	Text           string `json:"text"`
}

// Question is a clarifying question bound to the field it resolves.
type Question struct {
	Field Field  `json:"field"`
	Text  string `json:"text"`
}

// Session is a clarification dialog keyed by its correlation id.
type Session struct {
	ID             string           `json:"id"`
	SenderID       string           `json:"senderId"`
	ChannelContext string           `json:"channelContext,omitempty"`
	Topic          string           `json:"topic"`
	State          State            `json:"state"`
	Turns          int              `json:"turns"`
	Questions      []Question       `json:"questions"`
	Answers        map[Field]string `json:"answers,omitempty"`
	Brief          *model.Brief     `json:"brief,omitempty"`
	TaskID         string           `json:"taskId,omitempty"`
	Reason         string           `json:"reason,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// Open returns the questions whose field is still unanswered.
func (s *Session) Open() []Question {
	var ret []Question
	for _, q := range s.Questions {
		if _, ok := s.Answers[q.Field]; !ok {
			ret = append(ret, q)
		}
	}
	return ret
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	ret := *s
	ret.Questions = append([]Question(nil), s.Questions...)
	ret.Answers = make(map[Field]string, len(s.Answers))
	for k, v := range s.Answers {
		ret.Answers[k] = v
	}
	if s.Brief != nil {
		brief := s.Brief.Clone()
		ret.Brief = &brief
	}
	return &ret
}
