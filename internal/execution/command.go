package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	"agorahub.app/backbone/internal/domain"
	"agorahub.app/backbone/internal/model"
	"agorahub.app/backbone/internal/store"
)

// StoreProvider gives typed access to every store. *store.Stores satisfies
// it; tests substitute mocks.
type StoreProvider interface {
	Events() store.EventLogStore
	Deliveries() store.DeliveryStore
	DeadLetters() store.DeadLetterStore
	Communities() store.CommunityStore
	Threads() store.ThreadStore
	Comments() store.CommentStore
	Xp() store.XpStore
	Feed() store.FeedStore
	Leaderboard() store.LeaderboardStore
	Contests() store.ContestStore
}

// TxRunner runs a function within a database transaction and provides stores
// bound to that transaction. The command's state write and event appends
// commit or roll back together; that atomicity is the core property of the
// whole backbone.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(s StoreProvider) error) error
}

// EventNotifier is the change-notifier signal emitted after a command
// commits. Delivery is best-effort; the relay's sweep covers losses.
type EventNotifier interface {
	Wake(ctx context.Context, events []model.Event) error
}

// Request carries the per-invocation inputs into a command or query body.
type Request[P any] struct {
	AggregateID *string
	Actor       domain.Actor
	Payload     P
}

// Command declares a named state mutation. Payload validation runs before the
// body via validator tags on P; the body receives transaction-bound stores
// and returns the new state plus the events to append.
type Command[P any] struct {
	Name     string
	Requires domain.Capability
	Body     func(ctx context.Context, s StoreProvider, req Request[P]) (any, []model.EventDraft, error)
}

// Query declares a named read. Same validation/authorization discipline as
// commands, but the body gets pool-bound stores and must not write.
type Query[P any] struct {
	Name     string
	Requires domain.Capability
	Body     func(ctx context.Context, s StoreProvider, req Request[P]) (any, error)
}

type registered struct {
	invoke  func(ctx context.Context, aggregateID *string, actor domain.Actor, raw json.RawMessage) (any, error)
	schema  *jsonschema.Schema
	command bool
}

// Bus executes commands and queries. Commands run inside one transaction
// covering state write and event append; the notifier fires after commit.
// Construct once at startup and register every operation before serving.
type Bus struct {
	tx       TxRunner
	reader   StoreProvider
	notifier EventNotifier
	validate *validator.Validate
	ops      map[string]registered
}

func NewBus(tx TxRunner, reader StoreProvider, notifier EventNotifier) *Bus {
	return &Bus{
		tx:       tx,
		reader:   reader,
		notifier: notifier,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		ops:      make(map[string]registered),
	}
}

// Execute runs a typed command invocation.
func Execute[P any](ctx context.Context, b *Bus, cmd Command[P], aggregateID *string, actor domain.Actor, payload P) (any, error) {
	if err := b.validate.Struct(payload); err != nil {
		return nil, &ValidationError{Msg: cmd.Name + " payload", Err: err}
	}
	if !actor.Can(cmd.Requires) {
		return nil, &AuthorizationError{Required: cmd.Requires}
	}

	var state any
	var committed []model.Event
	err := b.tx.WithTx(ctx, func(s StoreProvider) error {
		newState, drafts, err := cmd.Body(ctx, s, Request[P]{
			AggregateID: aggregateID,
			Actor:       actor,
			Payload:     payload,
		})
		if err != nil {
			return err
		}
		for _, draft := range drafts {
			evt, err := s.Events().Append(ctx, draft)
			if err != nil {
				return err
			}
			committed = append(committed, *evt)
		}
		state = newState
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The caller sees success now; listeners react through the relay.
	// A lost wake-up is recovered by the sweep, so failure here is only
	// logged.
	if len(committed) > 0 && b.notifier != nil {
		if err := b.notifier.Wake(ctx, committed); err != nil {
			slog.WarnContext(ctx, "event wake-up notification failed",
				"error", err,
				"command", cmd.Name,
				"event_count", len(committed))
		}
	}

	return state, nil
}

// Run executes a typed query invocation against pool-bound stores.
func Run[P any](ctx context.Context, b *Bus, q Query[P], actor domain.Actor, params P) (any, error) {
	if err := b.validate.Struct(params); err != nil {
		return nil, &ValidationError{Msg: q.Name + " params", Err: err}
	}
	if !actor.Can(q.Requires) {
		return nil, &AuthorizationError{Required: q.Requires}
	}
	return q.Body(ctx, b.reader, Request[P]{Actor: actor, Payload: params})
}

// RegisterCommand makes a command invocable by name with a raw JSON payload.
func RegisterCommand[P any](b *Bus, cmd Command[P]) {
	b.ops[cmd.Name] = registered{
		command: true,
		schema:  reflectSchema[P](),
		invoke: func(ctx context.Context, aggregateID *string, actor domain.Actor, raw json.RawMessage) (any, error) {
			payload, err := decodeStrict[P](raw)
			if err != nil {
				return nil, &ValidationError{Msg: cmd.Name + " payload", Err: err}
			}
			return Execute(ctx, b, cmd, aggregateID, actor, payload)
		},
	}
}

// RegisterQuery makes a query invocable by name with raw JSON params.
func RegisterQuery[P any](b *Bus, q Query[P]) {
	b.ops[q.Name] = registered{
		schema: reflectSchema[P](),
		invoke: func(ctx context.Context, _ *string, actor domain.Actor, raw json.RawMessage) (any, error) {
			params, err := decodeStrict[P](raw)
			if err != nil {
				return nil, &ValidationError{Msg: q.Name + " params", Err: err}
			}
			return Run(ctx, b, q, actor, params)
		},
	}
}

// InvokeCommand dispatches a raw command invocation by name. This is the
// inbound contract for transport adapters.
func (b *Bus) InvokeCommand(ctx context.Context, name string, aggregateID *string, actor domain.Actor, raw json.RawMessage) (any, error) {
	op, ok := b.ops[name]
	if !ok || !op.command {
		return nil, ErrUnknownOperation
	}
	return op.invoke(ctx, aggregateID, actor, raw)
}

// InvokeQuery dispatches a raw query invocation by name.
func (b *Bus) InvokeQuery(ctx context.Context, name string, actor domain.Actor, raw json.RawMessage) (any, error) {
	op, ok := b.ops[name]
	if !ok || op.command {
		return nil, ErrUnknownOperation
	}
	return op.invoke(ctx, nil, actor, raw)
}

// Schemas returns the JSON schema of every registered operation's payload,
// keyed by operation name. Serves the admin introspection endpoint.
func (b *Bus) Schemas() map[string]*jsonschema.Schema {
	out := make(map[string]*jsonschema.Schema, len(b.ops))
	for name, op := range b.ops {
		out[name] = op.schema
	}
	return out
}

func reflectSchema[P any]() *jsonschema.Schema {
	var p P
	r := jsonschema.Reflector{DoNotReference: true}
	return r.Reflect(&p)
}

func decodeStrict[P any](raw json.RawMessage) (P, error) {
	var p P
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, err
	}
	return p, nil
}
