package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/ideagraph/internal/cacheperf"
	"github.com/d60-Lab/ideagraph/internal/model"
	"github.com/d60-Lab/ideagraph/internal/repository"
	"github.com/d60-Lab/ideagraph/pkg/database"
)

var errFlaky = errors.New("store temporarily unavailable")

// failCounter hands out a fixed number of failures.
type failCounter struct {
	mu        sync.Mutex
	remaining int
}

func (f *failCounter) set(n int) {
	f.mu.Lock()
	f.remaining = n
	f.mu.Unlock()
}

func (f *failCounter) next() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remaining > 0 {
		f.remaining--
		return errFlaky
	}
	return nil
}

type flakyFans struct {
	repository.FanRepository
	failCounter
}

func (f *flakyFans) Create(ctx context.Context, userID, fanID string) error {
	if err := f.next(); err != nil {
		return err
	}
	return f.FanRepository.Create(ctx, userID, fanID)
}

func (f *flakyFans) Delete(ctx context.Context, userID, fanID string) error {
	if err := f.next(); err != nil {
		return err
	}
	return f.FanRepository.Delete(ctx, userID, fanID)
}

type flakyWishes struct {
	repository.WishRepository
	failCounter
}

func (f *flakyWishes) Add(ctx context.Context, userID, wisherID string) error {
	if err := f.next(); err != nil {
		return err
	}
	return f.WishRepository.Add(ctx, userID, wisherID)
}

func (f *flakyWishes) Remove(ctx context.Context, userID, wisherID string) error {
	if err := f.next(); err != nil {
		return err
	}
	return f.WishRepository.Remove(ctx, userID, wisherID)
}

// countingFollows counts full following-set reads and can fail them.
type countingFollows struct {
	repository.FollowRepository
	mu      sync.Mutex
	lookups int
	failErr error
}

func (c *countingFollows) FolloweeIDs(ctx context.Context, followerID string) ([]string, error) {
	c.mu.Lock()
	c.lookups++
	failErr := c.failErr
	c.mu.Unlock()
	if failErr != nil {
		return nil, failErr
	}
	return c.FollowRepository.FolloweeIDs(ctx, followerID)
}

func (c *countingFollows) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookups
}

type recordingScheduler struct {
	mu      sync.Mutex
	repairs []Repair
}

func (r *recordingScheduler) Schedule(_ context.Context, rp Repair) {
	r.mu.Lock()
	r.repairs = append(r.repairs, rp)
	r.mu.Unlock()
}

func (r *recordingScheduler) scheduled() []Repair {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Repair(nil), r.repairs...)
}

type harness struct {
	db       *gorm.DB
	users    repository.UserRepository
	ideas    repository.IdeaRepository
	messages repository.MessageRepository
	outbox   repository.OutboxRepository
	engRepo  repository.EngagementRepository
	follows  *countingFollows
	fans     *flakyFans
	wishes   *flakyWishes

	rel      *RelationshipStore
	eng      *EngagementStore
	profiles *cacheperf.ProfileCache
	sched    *recordingScheduler
	toggles  *ToggleEngine
	agg      *AggregationEngine
	chat     *ChatService

	now time.Time
}

var baseTime = time.Date(2026, 10, 18, 15, 4, 5, 0, time.UTC)

func newHarness(t *testing.T, userIDs ...string) *harness {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	h := &harness{
		db:       db,
		users:    repository.NewUserRepository(db),
		ideas:    repository.NewIdeaRepository(db),
		messages: repository.NewMessageRepository(db),
		outbox:   repository.NewOutboxRepository(db),
		engRepo:  repository.NewEngagementRepository(db),
		follows:  &countingFollows{FollowRepository: repository.NewFollowRepository(db)},
		fans:     &flakyFans{FanRepository: repository.NewFanRepository(db)},
		wishes:   &flakyWishes{WishRepository: repository.NewWishRepository(db)},
		sched:    &recordingScheduler{},
		now:      baseTime,
	}
	h.rel = NewRelationshipStore(h.follows, h.fans, h.wishes)
	h.eng = NewEngagementStore(h.engRepo, h.rel, time.UTC)
	h.profiles = cacheperf.NewProfileCache(h.users, nil, 0)
	clock := func() time.Time { return h.now }
	h.toggles = NewToggleEngine(h.rel, h.eng, h.users, h.ideas, h.messages, h.sched,
		WithClock(clock), WithRetry(3, time.Millisecond))
	h.agg = NewAggregationEngine(h.rel, h.eng, h.ideas, h.messages, h.profiles, nil)
	h.agg.SetClock(clock)
	h.chat = NewChatService(h.messages, h.users)

	ctx := context.Background()
	for _, id := range userIDs {
		require.NoError(t, h.users.Upsert(ctx, &model.User{ID: id, Name: "name-" + id, Email: id + "@example.com"}))
	}
	return h
}

// idea stores an idea owned by ownerID, created minutesAgo before baseTime.
func (h *harness) idea(t *testing.T, id, ownerID string, minutesAgo int) *model.Idea {
	t.Helper()
	idea := &model.Idea{
		ID:        id,
		OwnerID:   ownerID,
		Title:     "idea " + id,
		CreatedAt: baseTime.Add(-time.Duration(minutesAgo) * time.Minute),
	}
	require.NoError(t, h.ideas.Create(context.Background(), idea))
	return idea
}

// assertSymmetric checks following/followers agreement for every ordered pair.
func (h *harness) assertSymmetric(t *testing.T, ids ...string) {
	t.Helper()
	ctx := context.Background()
	for _, a := range ids {
		for _, b := range ids {
			if a == b {
				continue
			}
			following, err := h.rel.IsFollowing(ctx, a, b)
			require.NoError(t, err)
			fan, err := h.rel.HasFollower(ctx, b, a)
			require.NoError(t, err)
			require.Equalf(t, following, fan, "%s->%s following=%v followers=%v", a, b, following, fan)
		}
	}
}
