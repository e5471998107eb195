package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/d60-Lab/ideagraph/internal/metrics"
	"github.com/d60-Lab/ideagraph/internal/model"
	"github.com/d60-Lab/ideagraph/internal/repository"
	"github.com/d60-Lab/ideagraph/pkg/apperror"
	"github.com/d60-Lab/ideagraph/pkg/logger"
)

var tracer = otel.Tracer("github.com/d60-Lab/ideagraph/internal/service")

// RepairScheduler 接收重试耗尽后仍未对齐的关系对
type RepairScheduler interface {
	Schedule(ctx context.Context, r Repair)
}

// CollaborateResult is the state after a collaborate toggle.
type CollaborateResult struct {
	Collaborating bool     `json:"collaborating"`
	Collaborators []string `json:"collaborators"`
}

// ToggleEngine 实现 follow/unfollow、collaborate、like 三类切换与 markSeen。
// 双侧写入整体重试（每侧幂等），重试耗尽后登记修复任务并返回 DependencyUnavailable。
type ToggleEngine struct {
	rel      *RelationshipStore
	eng      *EngagementStore
	users    repository.UserRepository
	ideas    repository.IdeaRepository
	messages repository.MessageRepository
	repairs  RepairScheduler
	metrics  *metrics.Metrics

	maxTries     uint
	retryInitial time.Duration
	retryMax     time.Duration
	now          func() time.Time
}

type ToggleOption func(*ToggleEngine)

// WithClock overrides the instant used for like events.
func WithClock(now func() time.Time) ToggleOption {
	return func(e *ToggleEngine) { e.now = now }
}

func WithMetrics(m *metrics.Metrics) ToggleOption {
	return func(e *ToggleEngine) { e.metrics = m }
}

// WithRetry bounds the side-write retry: tries attempts in total, backing off from initial.
func WithRetry(tries uint, initial time.Duration) ToggleOption {
	return func(e *ToggleEngine) {
		if tries > 0 {
			e.maxTries = tries
		}
		if initial > 0 {
			e.retryInitial = initial
			e.retryMax = 10 * initial
		}
	}
}

func NewToggleEngine(
	rel *RelationshipStore,
	eng *EngagementStore,
	users repository.UserRepository,
	ideas repository.IdeaRepository,
	messages repository.MessageRepository,
	repairs RepairScheduler,
	opts ...ToggleOption,
) *ToggleEngine {
	e := &ToggleEngine{
		rel:          rel,
		eng:          eng,
		users:        users,
		ideas:        ideas,
		messages:     messages,
		repairs:      repairs,
		maxTries:     3,
		retryInitial: 20 * time.Millisecond,
		retryMax:     200 * time.Millisecond,
		now:          time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Follow makes actor follow target.
func (e *ToggleEngine) Follow(ctx context.Context, actorID, targetID string) (err error) {
	ctx, span := e.start(ctx, "toggle.follow", actorID, targetID)
	defer func() { e.finish(span, "follow", err) }()

	if err := e.guardFollow(ctx, actorID, targetID); err != nil {
		return err
	}
	active, err := e.rel.IsFollowing(ctx, actorID, targetID)
	if err != nil {
		return apperror.Unavailable(err, "read following of %s", actorID)
	}
	if active {
		e.heal(ctx, followRepair(actorID, targetID))
		return apperror.AlreadyActive("%s already follows %s", actorID, targetID)
	}
	return e.applyPaired(ctx, followRepair(actorID, targetID), func() error {
		return e.rel.AddFollow(ctx, actorID, targetID)
	})
}

// Unfollow removes the follow edge from actor to target.
func (e *ToggleEngine) Unfollow(ctx context.Context, actorID, targetID string) (err error) {
	ctx, span := e.start(ctx, "toggle.unfollow", actorID, targetID)
	defer func() { e.finish(span, "unfollow", err) }()

	if err := e.guardFollow(ctx, actorID, targetID); err != nil {
		return err
	}
	active, err := e.rel.IsFollowing(ctx, actorID, targetID)
	if err != nil {
		return apperror.Unavailable(err, "read following of %s", actorID)
	}
	if !active {
		e.heal(ctx, followRepair(actorID, targetID))
		return apperror.AlreadyInactive("%s does not follow %s", actorID, targetID)
	}
	return e.applyPaired(ctx, followRepair(actorID, targetID), func() error {
		return e.rel.RemoveFollow(ctx, actorID, targetID)
	})
}

func (e *ToggleEngine) guardFollow(ctx context.Context, actorID, targetID string) error {
	if actorID == "" || targetID == "" {
		return apperror.Validation("actor and target user ids are required")
	}
	if actorID == targetID {
		return apperror.SelfReference("user %s cannot follow itself", actorID)
	}
	return e.requireUsers(ctx, actorID, targetID)
}

// requireUsers reports the first id with no user row.
func (e *ToggleEngine) requireUsers(ctx context.Context, ids ...string) error {
	found, err := e.users.FindByIDs(ctx, ids)
	if err != nil {
		return apperror.Unavailable(err, "look up users")
	}
	present := make(map[string]struct{}, len(found))
	for _, u := range found {
		present[u.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			return apperror.NotFound("user %s not found", id)
		}
	}
	return nil
}

// ToggleCollaborate flips actor's membership in the idea's collaborators and
// the matching wish on the owner. Calling it twice restores the original set.
func (e *ToggleEngine) ToggleCollaborate(ctx context.Context, ideaID, actorID string) (res CollaborateResult, err error) {
	ctx, span := e.start(ctx, "toggle.collaborate", actorID, ideaID)
	defer func() { e.finish(span, "collaborate", err) }()

	idea, err := e.loadIdea(ctx, ideaID, actorID)
	if err != nil {
		return res, err
	}
	active, err := e.eng.IsCollaborator(ctx, idea.ID, actorID)
	if err != nil {
		return res, apperror.Unavailable(err, "read collaborators of idea %s", ideaID)
	}
	repair := wishRepair(idea.OwnerID, actorID)
	if active {
		err = e.applyPaired(ctx, repair, func() error { return e.eng.RemoveCollaborator(ctx, idea, actorID) })
	} else {
		err = e.applyPaired(ctx, repair, func() error { return e.eng.AddCollaborator(ctx, idea, actorID) })
	}
	if err != nil {
		return res, err
	}
	ids, err := e.eng.Collaborators(ctx, idea.ID)
	if err != nil {
		return res, apperror.Unavailable(err, "read collaborators of idea %s", ideaID)
	}
	if ids == nil {
		ids = []string{}
	}
	return CollaborateResult{Collaborating: !active, Collaborators: ids}, nil
}

// ToggleLike flips actor's like on the idea. The like runs in one store
// transaction, so it is not retried.
func (e *ToggleEngine) ToggleLike(ctx context.Context, ideaID, actorID string) (res repository.LikeResult, err error) {
	ctx, span := e.start(ctx, "toggle.like", actorID, ideaID)
	defer func() { e.finish(span, "like", err) }()

	if _, err := e.loadIdea(ctx, ideaID, actorID); err != nil {
		return res, err
	}
	res, err = e.eng.ToggleLike(ctx, ideaID, actorID, e.now().UTC())
	if errors.Is(err, repository.ErrNotFound) {
		return res, apperror.NotFound("idea %s not found", ideaID)
	}
	if err != nil {
		return res, apperror.Unavailable(err, "toggle like on idea %s", ideaID)
	}
	return res, nil
}

// MarkSeen flips every unseen message from sender to receiver. Repeated calls
// have no further effect; the number of messages flipped is returned.
func (e *ToggleEngine) MarkSeen(ctx context.Context, senderID, receiverID string) (n int64, err error) {
	ctx, span := e.start(ctx, "toggle.mark_seen", receiverID, senderID)
	defer func() { e.finish(span, "mark_seen", err) }()

	if senderID == "" || receiverID == "" {
		return 0, apperror.Validation("sender and receiver ids are required")
	}
	n, err = e.messages.MarkSeen(ctx, senderID, receiverID)
	if err != nil {
		return 0, apperror.Unavailable(err, "mark messages from %s seen", senderID)
	}
	return n, nil
}

func (e *ToggleEngine) loadIdea(ctx context.Context, ideaID, actorID string) (*model.Idea, error) {
	if ideaID == "" || actorID == "" {
		return nil, apperror.Validation("idea id and user id are required")
	}
	idea, err := e.ideas.FindByID(ctx, ideaID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("idea %s not found", ideaID)
	}
	if err != nil {
		return nil, apperror.Unavailable(err, "read idea %s", ideaID)
	}
	return idea, nil
}

// applyPaired runs a two-sided write with bounded retry. When retries run out
// the pair is handed to the repair scheduler.
func (e *ToggleEngine) applyPaired(ctx context.Context, repair Repair, write func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.retryInitial
	b.MaxInterval = e.retryMax

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := write()
		if err != nil {
			logger.Debug("paired write failed",
				zap.String("kind", string(repair.Kind)),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(e.maxTries))
	if err == nil {
		return nil
	}

	if pe, ok := asPartial(err); ok {
		repair = pe.Repair
	}
	logger.Warn("paired write exhausted retries, scheduling repair",
		zap.String("kind", string(repair.Kind)),
		zap.String("subject", repair.SubjectID),
		zap.String("object", repair.ObjectID),
		zap.Error(err))
	if e.repairs != nil {
		e.repairs.Schedule(context.WithoutCancel(ctx), repair)
	}
	return apperror.Unavailable(err, "relation update did not complete, retry the request")
}

// heal re-derives the inverse side of a pair the caller already sees as
// settled, so a client retry after a partial failure converges.
func (e *ToggleEngine) heal(ctx context.Context, r Repair) {
	changed, err := e.rel.SyncFollowPair(ctx, r.SubjectID, r.ObjectID)
	if err != nil {
		logger.Warn("self-heal failed", zap.String("subject", r.SubjectID), zap.String("object", r.ObjectID), zap.Error(err))
		if e.repairs != nil {
			e.repairs.Schedule(context.WithoutCancel(ctx), r)
		}
		return
	}
	if changed {
		e.metrics.ObserveRepair("self_heal", string(r.Kind))
	}
}

func (e *ToggleEngine) start(ctx context.Context, name, actorID, targetID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("ideagraph.actor", actorID),
		attribute.String("ideagraph.target", targetID),
	))
}

func (e *ToggleEngine) finish(span trace.Span, op string, err error) {
	e.metrics.ObserveToggle(op, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperror.KindOf(err)))
		logger.Debug("toggle rejected", zap.String("op", op), zap.Error(err))
	} else {
		logger.Debug("toggle applied", zap.String("op", op))
	}
	span.End()
}
