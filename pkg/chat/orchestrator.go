// Package chat runs one conversational turn: it decides whether a message
// answers a pending action batch or is a new request for the model, and
// drives the pending store, the model and the executor accordingly.
package chat

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/odvcencio/taskmate/pkg/actions"
	"github.com/odvcencio/taskmate/pkg/bus"
	"github.com/odvcencio/taskmate/pkg/confirm"
	apperrors "github.com/odvcencio/taskmate/pkg/errors"
	"github.com/odvcencio/taskmate/pkg/execution"
	"github.com/odvcencio/taskmate/pkg/model"
	"github.com/odvcencio/taskmate/pkg/pending"
	"github.com/odvcencio/taskmate/pkg/prompts"
	"github.com/odvcencio/taskmate/pkg/storage"
	"github.com/odvcencio/taskmate/pkg/telemetry"
)

// State is where a user sits in the confirmation flow.
type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingConfirmation State = "awaiting_confirmation"
)

// Outcome says which branch a turn took.
type Outcome string

const (
	OutcomeProposed   Outcome = "proposed"
	OutcomeReplied    Outcome = "replied"
	OutcomeExecuted   Outcome = "executed"
	OutcomeDeclined   Outcome = "declined"
	OutcomeReprompted Outcome = "reprompted"
	OutcomeGuarded    Outcome = "guarded"
	OutcomeStale      Outcome = "stale"
	OutcomeFailed     Outcome = "failed"
)

// Defaults for Config.
const (
	DefaultConfirmThreshold = 0.8
	DefaultMaxDestructive   = 5
	DefaultDestructiveToken = "DELETE"

	// strongConfidence separates exact-phrase confirmations from the
	// looser contextual and short-word tiers.
	strongConfidence = 0.9

	// PatternDestructiveToken marks a turn confirmed by the typed token.
	PatternDestructiveToken = "destructive_token"
	// PatternNewRequest marks a weak confirmation overridden because the
	// message reads as a fresh request.
	PatternNewRequest = "new_request_override"
)

// TurnContext carries conversation state the caller owns.
type TurnContext struct {
	ConversationID string
	History        []prompts.Turn
}

// TurnResult is everything the caller needs to render a turn.
type TurnResult struct {
	TurnID  string  `json:"turnId"`
	Reply   string  `json:"reply"`
	Outcome Outcome `json:"outcome"`
	State   State   `json:"state"`

	Confirmation confirm.Result `json:"confirmation"`

	// PendingSummary describes the batch awaiting confirmation, if any.
	PendingSummary string             `json:"pendingSummary,omitempty"`
	PendingActions []actions.Envelope `json:"pendingActions,omitempty"`
	// RequiresToken is set when the pending batch needs the typed token.
	RequiresToken bool `json:"requiresToken,omitempty"`

	ExecutedResults []execution.Result `json:"executedResults,omitempty"`
}

// Config tunes the orchestrator.
type Config struct {
	ConfirmThreshold float64
	// MaxDestructive is the largest delete count a plain confirmation can
	// apply. Larger batches need DestructiveToken typed exactly.
	MaxDestructive   int
	DestructiveToken string

	Temperature     *float32
	MaxOutputTokens int32
	// ContextItems bounds how many tasks and goals are loaded per prompt.
	ContextItems int
}

func (c *Config) applyDefaults() {
	if c.ConfirmThreshold <= 0 {
		c.ConfirmThreshold = DefaultConfirmThreshold
	}
	if c.MaxDestructive <= 0 {
		c.MaxDestructive = DefaultMaxDestructive
	}
	if strings.TrimSpace(c.DestructiveToken) == "" {
		c.DestructiveToken = DefaultDestructiveToken
	}
	if c.ContextItems <= 0 {
		c.ContextItems = 25
	}
}

// Deps are the collaborators of an Orchestrator. Store, Generator and
// Repository are required; the rest fall back to defaults or no-ops.
type Deps struct {
	Store      *pending.Store
	Generator  model.Generator
	Repository storage.Repository

	Detector  *confirm.Detector
	Parser    *actions.Parser
	Builder   *prompts.Builder
	Publisher *bus.Publisher
	Metrics   *telemetry.Metrics
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Orchestrator handles chat turns. It is safe for concurrent use; the
// pending store is its only shared state.
type Orchestrator struct {
	cfg       Config
	store     *pending.Store
	generator model.Generator
	repo      storage.Repository
	executor  *execution.Executor
	detector  *confirm.Detector
	parser    *actions.Parser
	builder   *prompts.Builder
	publisher *bus.Publisher
	metrics   *telemetry.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

// New validates deps and returns an Orchestrator.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Store == nil:
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, "chat: pending store is required")
	case deps.Generator == nil:
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, "chat: generator is required")
	case deps.Repository == nil:
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, "chat: repository is required")
	}
	cfg.applyDefaults()

	o := &Orchestrator{
		cfg:       cfg,
		store:     deps.Store,
		generator: deps.Generator,
		repo:      deps.Repository,
		executor:  execution.NewExecutor(deps.Repository, deps.Logger),
		detector:  deps.Detector,
		parser:    deps.Parser,
		builder:   deps.Builder,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       deps.Now,
	}
	if o.detector == nil {
		o.detector = confirm.NewDetector()
	}
	if o.parser == nil {
		o.parser = actions.NewParser(actions.WithLogger(deps.Logger))
	}
	if o.builder == nil {
		o.builder = prompts.NewBuilder()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// Stats reports pending store occupancy.
func (o *Orchestrator) Stats() pending.Stats {
	return o.store.Stats()
}

// Pending returns metadata for userID's batch, or nil.
func (o *Orchestrator) Pending(userID string) *pending.Metadata {
	return o.store.Metadata(userID)
}

// Discard drops userID's batch without executing it.
func (o *Orchestrator) Discard(userID string) bool {
	return o.store.Clear(userID)
}

// HandleTurn processes one user message. The only error returned for a
// well-formed request is a CHAT_PROCESSING failure when the model call fails;
// everything else degrades to a reply.
func (o *Orchestrator) HandleTurn(ctx context.Context, userID, message string, tc TurnContext) (*TurnResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "chat: missing user id")
	}
	if strings.TrimSpace(message) == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "chat: empty message").
			WithUserMessage("Please type a message.")
	}

	ctx, span := telemetry.StartSpan(ctx, "chat.HandleTurn")
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.AttrUserID.String(userID))

	turn := &TurnResult{TurnID: ulid.Make().String(), State: StateIdle}
	logger := o.logger.With().Str("user_id", userID).Str("turn_id", turn.TurnID).Logger()

	var err error
	if entry := o.store.Get(userID); entry != nil {
		err = o.answerPending(ctx, logger, userID, message, tc, entry, turn)
	} else {
		turn.Confirmation = o.detector.Detect(message, false)
		err = o.propose(ctx, logger, userID, message, tc, nil, turn)
	}
	if err != nil {
		telemetry.RecordError(ctx, err)
		o.metrics.ObserveTurn(string(OutcomeFailed))
		return nil, err
	}

	telemetry.SetAttributes(ctx,
		telemetry.AttrOutcome.String(string(turn.Outcome)),
		telemetry.AttrVerdict.String(string(turn.Confirmation.Type)),
	)
	o.metrics.ObserveTurn(string(turn.Outcome))
	o.metrics.SetPending(o.store.Stats().TotalEntries)
	logger.Debug().
		Str("outcome", string(turn.Outcome)).
		Str("verdict", string(turn.Confirmation.Type)).
		Str("pattern", turn.Confirmation.MatchedPattern).
		Msg("turn handled")
	return turn, nil
}

// answerPending routes a message received while a batch is waiting.
func (o *Orchestrator) answerPending(ctx context.Context, logger zerolog.Logger, userID, message string, tc TurnContext, entry *pending.Entry, turn *TurnResult) error {
	guarded := actions.CountDestructive(entry.Actions) > o.cfg.MaxDestructive

	if guarded && strings.TrimSpace(message) == o.cfg.DestructiveToken {
		turn.Confirmation = confirm.Result{Type: confirm.VerdictConfirm, Confidence: 1, MatchedPattern: PatternDestructiveToken}
		o.metrics.ObserveVerdict(string(turn.Confirmation.Type), turn.Confirmation.MatchedPattern)
		return o.execute(ctx, logger, userID, turn, true)
	}

	res := o.detector.Detect(message, true)
	if res.Type == confirm.VerdictConfirm && res.Confidence < strongConfidence && confirm.IsLikelyNewRequest(message) {
		res = confirm.Result{Type: confirm.VerdictNone, MatchedPattern: PatternNewRequest}
	}
	turn.Confirmation = res
	o.metrics.ObserveVerdict(string(res.Type), res.MatchedPattern)

	switch {
	case res.Type == confirm.VerdictConfirm && res.Confidence >= o.cfg.ConfirmThreshold:
		if guarded {
			o.store.Touch(userID)
			o.describePending(userID, turn)
			turn.Outcome = OutcomeGuarded
			turn.Reply = guardReply(actions.CountDestructive(entry.Actions), o.cfg.DestructiveToken)
			return nil
		}
		return o.execute(ctx, logger, userID, turn, false)

	case res.Type == confirm.VerdictDecline:
		o.store.Clear(userID)
		turn.Outcome = OutcomeDeclined
		turn.State = StateIdle
		turn.Reply = declineReply(len(entry.Actions))
		return nil

	case confirm.IsLikelyNewRequest(message):
		return o.propose(ctx, logger, userID, message, tc, entry, turn)

	default:
		o.store.Touch(userID)
		o.describePending(userID, turn)
		turn.Outcome = OutcomeReprompted
		turn.Reply = repromptReply(turn.PendingSummary, guarded, o.cfg.DestructiveToken)
		return nil
	}
}

// execute takes the batch and applies it. Taking guarantees a batch runs at
// most once even when two confirmations race. Unless tokenTyped, only a
// batch within the destructive limit is taken.
func (o *Orchestrator) execute(ctx context.Context, logger zerolog.Logger, userID string, turn *TurnResult, tokenTyped bool) error {
	var accept func(*pending.Entry) bool
	if !tokenTyped {
		accept = func(e *pending.Entry) bool {
			return actions.CountDestructive(e.Actions) <= o.cfg.MaxDestructive
		}
	}
	entry, taken := o.store.TakeIf(userID, accept)
	if entry != nil && !taken {
		o.store.Touch(userID)
		o.describePending(userID, turn)
		turn.Outcome = OutcomeGuarded
		turn.Reply = guardReply(actions.CountDestructive(entry.Actions), o.cfg.DestructiveToken)
		return nil
	}
	if entry == nil {
		turn.Outcome = OutcomeStale
		turn.State = StateIdle
		turn.Reply = staleReply
		return nil
	}

	// A taken batch cannot be re-queued, so a client disconnect must not
	// abandon it halfway.
	execCtx, span := telemetry.StartSpan(context.WithoutCancel(ctx), "chat.ExecuteBatch")
	telemetry.SetAttributes(execCtx, telemetry.AttrActionCount.Int(len(entry.Actions)))
	results := o.executor.ExecuteBatch(execCtx, userID, entry.Actions)
	span.End()

	for _, r := range results {
		o.metrics.ObserveAction(string(r.Kind), r.Success)
	}
	succeeded, failed := execution.Counts(results)
	logger.Info().
		Int("succeeded", succeeded).
		Int("failed", failed).
		Msg("pending actions executed")
	_ = o.publisher.Publish(ctx, bus.TypeActionsExecuted, userID, map[string]any{
		"conversationId": entry.ConversationID,
		"succeeded":      succeeded,
		"failed":         failed,
		"results":        results,
	})

	turn.Outcome = OutcomeExecuted
	turn.State = StateIdle
	turn.ExecutedResults = results
	turn.Reply = execution.Describe(results)
	return nil
}

// propose sends message to the model and stores any actions it returns.
// existing is the batch already pending, which survives unless replaced.
func (o *Orchestrator) propose(ctx context.Context, logger zerolog.Logger, userID, message string, tc TurnContext, existing *pending.Entry, turn *TurnResult) error {
	pc := prompts.Context{
		Now:     o.now(),
		Message: message,
		History: tc.History,
	}
	if existing != nil {
		pc.PendingSummary = confirm.DescribePending(existing.Actions)
	}

	tasks, err := o.repo.ListTasks(ctx, userID, o.cfg.ContextItems)
	if err != nil {
		logger.Warn().Err(err).Msg("load tasks for prompt")
	}
	goals, err := o.repo.ListGoals(ctx, userID, o.cfg.ContextItems)
	if err != nil {
		logger.Warn().Err(err).Msg("load goals for prompt")
	}
	pc.Tasks, pc.Goals = tasks, goals

	prompt := o.builder.Build(pc)
	req := prompt.Request(o.cfg.Temperature)
	req.MaxOutputTokens = o.cfg.MaxOutputTokens

	mctx, span := telemetry.StartSpan(ctx, "chat.Generate")
	start := time.Now()
	resp, err := o.generator.Generate(mctx, req)
	o.metrics.ObserveModel(time.Since(start), err)
	if err != nil {
		telemetry.RecordError(mctx, err)
		span.End()
		logger.Error().Err(err).Str("code", string(apperrors.GetCode(err))).Msg("model call failed")
		return apperrors.Wrap(err, apperrors.ErrCodeChatProcessing, "could not process message").
			WithUserMessage("Could not process message. Please try again.").
			WithRetryable(true)
	}
	telemetry.SetAttributes(mctx,
		telemetry.AttrModel.String(resp.Model),
		telemetry.AttrPromptTokens.Int(int(resp.Usage.PromptTokens)),
	)
	span.End()

	parsed := o.parser.Parse(resp.Text)
	turn.Reply = parsed.Message

	if len(parsed.Actions) == 0 {
		turn.Outcome = OutcomeReplied
		if o.store.HasPending(userID) {
			o.describePending(userID, turn)
		}
		if turn.Reply == "" {
			turn.Reply = emptyReply
		}
		return nil
	}

	if !o.store.Set(userID, parsed.Actions, tc.ConversationID) {
		// Parsed actions are never nil, so this only trips on a blank user.
		logger.Warn().Int("actions", len(parsed.Actions)).Msg("pending store rejected batch")
		turn.Outcome = OutcomeReplied
		return nil
	}
	logger.Info().
		Int("actions", len(parsed.Actions)).
		Int("destructive", actions.CountDestructive(parsed.Actions)).
		Msg("actions proposed")

	turn.Outcome = OutcomeProposed
	o.describePending(userID, turn)
	if turn.Reply == "" {
		turn.Reply = proposalReply(turn.PendingSummary)
	}
	if turn.RequiresToken {
		turn.Reply += "\n\n" + guardReply(actions.CountDestructive(parsed.Actions), o.cfg.DestructiveToken)
	}
	return nil
}

// describePending fills the pending fields of turn from the store.
func (o *Orchestrator) describePending(userID string, turn *TurnResult) {
	batch := o.store.GetActions(userID)
	if len(batch) == 0 {
		turn.State = StateIdle
		return
	}
	turn.State = StateAwaitingConfirmation
	turn.PendingSummary = confirm.DescribePending(batch)
	turn.RequiresToken = actions.CountDestructive(batch) > o.cfg.MaxDestructive
	envs, err := actions.EncodeAll(batch)
	if err != nil {
		o.logger.Warn().Err(err).Msg("encode pending actions")
		return
	}
	turn.PendingActions = envs
}
