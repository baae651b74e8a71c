package service

import (
	"context"
	"errors"
	"log"
	"time"

	"backtestgpt/internal/conversation"
	"backtestgpt/internal/domain"
	"backtestgpt/internal/extract"
	"backtestgpt/internal/validator"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TurnKind discriminates the three payload shapes a chat turn can produce.
type TurnKind int

const (
	TurnClarification TurnKind = iota
	TurnCompleted
	TurnError
)

// TurnResult is the outcome of one conversational turn. Exactly one shape is
// populated according to Kind.
type TurnResult struct {
	Kind     TurnKind
	Message  string
	Missing  []string
	Result   *domain.BacktestResult
	Warnings []string
}

type FragmentExtractor interface {
	Extract(ctx context.Context, text string, missing []string) (extract.Fragment, error)
}

type StrategyChecker interface {
	Validate(ctx context.Context, spec domain.StrategySpec) validator.Verdict
}

type BacktestRunner interface {
	Run(ctx context.Context, req RunRequest) (*domain.BacktestResult, []string, error)
}

type ConversationRecorder interface {
	AppendMessage(ctx context.Context, sessionKey, role, content string) error
}

// ChatService drives the accumulate-validate-execute loop for free-form
// messages. The recorder is optional; persistence failures never fail a turn.
type ChatService struct {
	tracer    trace.Tracer
	sessions  conversation.Store
	extractor FragmentExtractor
	checker   StrategyChecker
	runner    BacktestRunner
	recorder  ConversationRecorder
	now       func() time.Time
}

func NewChatService(
	tracer trace.Tracer,
	sessions conversation.Store,
	extractor FragmentExtractor,
	checker StrategyChecker,
	runner BacktestRunner,
	recorder ConversationRecorder,
) *ChatService {
	return &ChatService{
		tracer:    tracer,
		sessions:  sessions,
		extractor: extractor,
		checker:   checker,
		runner:    runner,
		recorder:  recorder,
		now:       time.Now,
	}
}

// HandleTurn processes one user message for a session. It either asks a
// follow-up question, reports a validation problem, runs the completed
// strategy exactly once, or surfaces an error.
func (s *ChatService) HandleTurn(ctx context.Context, sessionKey, text string) (TurnResult, error) {
	ctx, span := s.tracer.Start(ctx, "chat-service.handle-turn")
	defer span.End()
	span.SetAttributes(attribute.String("session", sessionKey))

	session, err := s.sessions.Get(ctx, sessionKey)
	if err != nil {
		return TurnResult{}, err
	}

	session.Lock()
	defer session.Unlock()
	defer session.Touch(s.now())

	s.record(ctx, session, "user", text)

	frag, err := s.extractor.Extract(ctx, text, session.Draft.MissingComponents())
	if err != nil {
		if errors.Is(err, extract.ErrRateLimited) {
			return s.reply(ctx, session, TurnResult{
				Kind:    TurnError,
				Message: "The assistant is temporarily rate limited. Please try again in a moment.",
			}), nil
		}
		return s.reply(ctx, session, TurnResult{
			Kind:    TurnError,
			Message: "I could not reach the language model. Please try again.",
		}), nil
	}

	session.Draft.Apply(frag)
	span.SetAttributes(attribute.String("stage", string(session.Draft.Stage)))

	if !session.Draft.Complete() {
		return s.reply(ctx, session, TurnResult{
			Kind:    TurnClarification,
			Message: session.Draft.FollowUp(),
			Missing: session.Draft.MissingComponents(),
		}), nil
	}

	verdict := s.checker.Validate(ctx, session.Draft.Spec)
	session.Draft.Spec = verdict.Spec
	if !verdict.Compatible {
		session.Draft.MarkNeedsClarification()
		return s.reply(ctx, session, TurnResult{
			Kind:    TurnClarification,
			Message: verdict.Message,
		}), nil
	}
	session.Draft.MarkValidated()

	result, warnings, err := s.runner.Run(ctx, RunRequest{
		Spec:       session.Draft.Spec,
		SessionKey: session.Key,
	})
	if err != nil {
		return s.reply(ctx, session, TurnResult{
			Kind:    TurnError,
			Message: "Backtest failed: " + err.Error(),
		}), nil
	}

	return s.reply(ctx, session, TurnResult{
		Kind:     TurnCompleted,
		Message:  "Backtest complete for " + result.Ticker + ".",
		Result:   result,
		Warnings: warnings,
	}), nil
}

func (s *ChatService) reply(ctx context.Context, session *conversation.Session, turn TurnResult) TurnResult {
	s.record(ctx, session, "assistant", turn.Message)
	return turn
}

func (s *ChatService) record(ctx context.Context, session *conversation.Session, role, content string) {
	session.Record(role, content, s.now())
	if s.recorder == nil {
		return
	}
	if err := s.recorder.AppendMessage(ctx, session.Key, role, content); err != nil {
		log.Printf("append %s message for session %s: %v", role, session.Key, err)
	}
}
