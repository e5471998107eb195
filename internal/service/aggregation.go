package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/d60-Lab/ideagraph/internal/metrics"
	"github.com/d60-Lab/ideagraph/internal/model"
	"github.com/d60-Lab/ideagraph/internal/repository"
	"github.com/d60-Lab/ideagraph/pkg/apperror"
)

// LikeWindowDays is the length of the like-count series.
const LikeWindowDays = 30

// ProfileResolver resolves display snapshots; ids with no user row are absent
// from the result.
type ProfileResolver interface {
	Resolve(ctx context.Context, ids []string) (map[string]model.UserSnapshot, error)
}

// AggregationEngine 组合派生视图（feed / inbox / 点赞日序列）。
// 子查询互不依赖，并发执行后在 errgroup 处汇合；任一失败整体失败，不返回部分结果。
type AggregationEngine struct {
	rel      *RelationshipStore
	eng      *EngagementStore
	ideas    repository.IdeaRepository
	messages repository.MessageRepository
	profiles ProfileResolver
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewAggregationEngine(
	rel *RelationshipStore,
	eng *EngagementStore,
	ideas repository.IdeaRepository,
	messages repository.MessageRepository,
	profiles ProfileResolver,
	m *metrics.Metrics,
) *AggregationEngine {
	return &AggregationEngine{rel: rel, eng: eng, ideas: ideas, messages: messages, profiles: profiles, metrics: m, now: time.Now}
}

// SetClock overrides "today" for the like series.
func (a *AggregationEngine) SetClock(now func() time.Time) { a.now = now }

// Feed returns every idea newest first, annotated with whether the caller
// follows its owner. The caller's following set is read exactly once.
func (a *AggregationEngine) Feed(ctx context.Context, callerID string) (items []model.FeedItem, err error) {
	ctx, done := a.begin(ctx, "feed", callerID)
	defer func() { done(err) }()

	if callerID == "" {
		return nil, apperror.Validation("caller id is required")
	}
	var (
		ideas     []*model.Idea
		following []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ideas, err = a.ideas.ListNewest(gctx)
		return wrapSub(err, "list ideas")
	})
	g.Go(func() error {
		var err error
		following, err = a.rel.Following(gctx, callerID)
		return wrapSub(err, "read following")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	followed := make(map[string]struct{}, len(following))
	for _, id := range following {
		followed[id] = struct{}{}
	}
	return a.annotate(ctx, ideas, func(ownerID string) bool {
		_, ok := followed[ownerID]
		return ok
	})
}

// FollowedFeed returns ideas owned by users the caller follows, newest first.
func (a *AggregationEngine) FollowedFeed(ctx context.Context, callerID string) (items []model.FeedItem, err error) {
	ctx, done := a.begin(ctx, "followed_feed", callerID)
	defer func() { done(err) }()

	if callerID == "" {
		return nil, apperror.Validation("caller id is required")
	}
	following, err := a.rel.Following(ctx, callerID)
	if err != nil {
		return nil, wrapSub(err, "read following")
	}
	ideas, err := a.ideas.ListByOwners(ctx, following)
	if err != nil {
		return nil, wrapSub(err, "list ideas of followed users")
	}
	return a.annotate(ctx, ideas, func(string) bool { return true })
}

func (a *AggregationEngine) annotate(ctx context.Context, ideas []*model.Idea, followed func(ownerID string) bool) ([]model.FeedItem, error) {
	ids := make([]string, len(ideas))
	for i, idea := range ideas {
		ids[i] = idea.ID
	}
	collabs, err := a.eng.CollaboratorsByIdea(ctx, ids)
	if err != nil {
		return nil, wrapSub(err, "read collaborators")
	}
	items := make([]model.FeedItem, len(ideas))
	for i, idea := range ideas {
		c := collabs[idea.ID]
		if c == nil {
			c = []string{}
		}
		items[i] = model.FeedItem{Idea: *idea, Followed: followed(idea.OwnerID), Collaborators: c}
	}
	return items, nil
}

// Inbox unions the caller's following set, message counterparts, wishes
// received and wishes given. Each counterpart appears once.
func (a *AggregationEngine) Inbox(ctx context.Context, callerID string) (entries []model.InboxEntry, err error) {
	ctx, done := a.begin(ctx, "inbox", callerID)
	defer func() { done(err) }()

	if callerID == "" {
		return nil, apperror.Validation("caller id is required")
	}
	var (
		following    []string
		counterparts []string
		received     []string
		given        []string
		unseen       map[string]int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		following, err = a.rel.Following(gctx, callerID)
		return wrapSub(err, "read following")
	})
	g.Go(func() error {
		var err error
		counterparts, err = a.messages.CounterpartIDs(gctx, callerID)
		return wrapSub(err, "read message counterparts")
	})
	g.Go(func() error {
		var err error
		received, err = a.rel.CollabWishes(gctx, callerID)
		return wrapSub(err, "read collaboration wishes")
	})
	g.Go(func() error {
		var err error
		given, err = a.rel.WishedBy(gctx, callerID)
		return wrapSub(err, "read wishes given")
	})
	g.Go(func() error {
		var err error
		unseen, err = a.messages.UnseenCounts(gctx, callerID)
		return wrapSub(err, "count unseen messages")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	union := make([]string, 0, len(following)+len(counterparts)+len(received)+len(given))
	seen := map[string]struct{}{callerID: {}}
	for _, src := range [][]string{following, counterparts, received, given} {
		for _, id := range src {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			union = append(union, id)
		}
	}
	wishesTo := toSet(received)
	wishedBy := toSet(given)

	snaps, err := a.profiles.Resolve(ctx, union)
	if err != nil {
		return nil, wrapSub(err, "resolve profiles")
	}
	entries = make([]model.InboxEntry, 0, len(union))
	for _, id := range union {
		snap, ok := snaps[id]
		if !ok {
			continue
		}
		_, w := wishesTo[id]
		_, wb := wishedBy[id]
		entries = append(entries, model.InboxEntry{
			ID:                  id,
			Name:                snap.Name,
			UnseenCount:         unseen[id],
			WishesToCollaborate: w,
			WishedByCurrentUser: wb,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].UnseenCount != entries[j].UnseenCount {
			return entries[i].UnseenCount > entries[j].UnseenCount
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

// LikeSeries returns one entry per day for the trailing window ending today,
// oldest first, with zero for days without likes.
func (a *AggregationEngine) LikeSeries(ctx context.Context, ideaID string) (series []model.LikeCount, err error) {
	ctx, done := a.begin(ctx, "like_series", ideaID)
	defer func() { done(err) }()

	if ideaID == "" {
		return nil, apperror.Validation("idea id is required")
	}
	dates := windowDates(a.now(), a.eng.Location(), LikeWindowDays)

	var counts map[string]int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := a.ideas.FindByID(gctx, ideaID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("idea %s not found", ideaID)
		}
		return wrapSub(err, "read idea")
	})
	g.Go(func() error {
		var err error
		counts, err = a.eng.LikeCounts(gctx, ideaID, dates[0], dates[len(dates)-1])
		return wrapSub(err, "count likes")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	series = make([]model.LikeCount, len(dates))
	for i, d := range dates {
		series[i] = model.LikeCount{Date: d, Count: counts[d]}
	}
	return series, nil
}

// windowDates lists n calendar dates ending at now's date in loc, ascending.
func windowDates(now time.Time, loc *time.Location, n int) []string {
	local := now.In(loc)
	// 以当地正午为锚，避免夏令时切换日出现重复或缺失的日期
	anchor := time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, loc)
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = anchor.AddDate(0, 0, i-(n-1)).Format(model.DateLayout)
	}
	return out
}

func wrapSub(err error, what string) error {
	if err == nil {
		return nil
	}
	var ae *apperror.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperror.Unavailable(err, "%s failed", what)
}

func toSet(ids []string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (a *AggregationEngine) begin(ctx context.Context, view, subject string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "aggregate."+view, trace.WithAttributes(attribute.String("ideagraph.subject", subject)))
	return ctx, func(err error) {
		a.metrics.ObserveAggregation(view, start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(apperror.KindOf(err)))
		}
		span.End()
	}
}
