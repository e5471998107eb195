package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/ideagraph/internal/model"
	"github.com/d60-Lab/ideagraph/pkg/database"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedIdea(t *testing.T, db *gorm.DB, id, ownerID string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&model.Idea{ID: id, OwnerID: ownerID, Title: id, CreatedAt: createdAt.UTC()}).Error)
}

func TestFollowAndFanCreateAreIdempotent(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	follows := NewFollowRepository(db)
	fans := NewFanRepository(db)

	require.NoError(t, follows.Create(ctx, "a", "b"))
	require.NoError(t, follows.Create(ctx, "a", "b"))
	require.NoError(t, fans.Create(ctx, "b", "a"))
	require.NoError(t, fans.Create(ctx, "b", "a"))

	ids, err := follows.FolloweeIDs(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)

	list, err := fans.ListFans(ctx, "b", 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].FanID)

	require.NoError(t, follows.Delete(ctx, "a", "b"))
	require.NoError(t, follows.Delete(ctx, "a", "b"))
	ok, err := follows.Exists(ctx, "a", "b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWishReverseLookup(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	wishes := NewWishRepository(db)

	// d 希望参与 a 的创意；a 希望参与 e 的创意
	require.NoError(t, wishes.Add(ctx, "a", "d"))
	require.NoError(t, wishes.Add(ctx, "a", "d"))
	require.NoError(t, wishes.Add(ctx, "e", "a"))

	received, err := wishes.WisherIDs(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, received)

	given, err := wishes.WishedUserIDs(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"e"}, given)
}

func TestUserUpsertAndNotFound(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	users := NewUserRepository(db)

	require.NoError(t, users.Upsert(ctx, &model.User{ID: "u1", Name: "Old", Email: "u1@example.com"}))
	require.NoError(t, users.Upsert(ctx, &model.User{ID: "u1", Name: "New", Email: "u1@example.com"}))

	u, err := users.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "New", u.Name)

	_, err = users.FindByID(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	n, err := users.CountExisting(ctx, "u1", "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestToggleLikeMaintainsCounterAndBuckets(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	eng := NewEngagementRepository(db)
	seedIdea(t, db, "i1", "owner", time.Now())

	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	res, err := eng.ToggleLike(ctx, "i1", "u1", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, LikeResult{Liked: true, Likes: 1}, res)

	res, err = eng.ToggleLike(ctx, "i1", "u2", now.Add(time.Minute), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Likes)

	lt, err := eng.LikeTimestamps(ctx, "i1", "")
	require.NoError(t, err)
	assert.Equal(t, 2, lt.Count("2026-05-01"))

	// 取消点赞的时刻与记录不一致：计数减一，分桶保持不变
	res, err = eng.ToggleLike(ctx, "i1", "u1", now.Add(time.Hour), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, LikeResult{Liked: false, Likes: 1}, res)
	lt, err = eng.LikeTimestamps(ctx, "i1", "")
	require.NoError(t, err)
	assert.Equal(t, 2, lt.Count("2026-05-01"))

	// 时刻完全一致时删除对应条目
	res, err = eng.ToggleLike(ctx, "i1", "u2", now.Add(time.Minute), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Likes)
	lt, err = eng.LikeTimestamps(ctx, "i1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, lt.Count("2026-05-01"))

	_, err = eng.ToggleLike(ctx, "missing", "u1", now, time.UTC)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCountLikesByDateWindow(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	eng := NewEngagementRepository(db)
	seedIdea(t, db, "i1", "owner", time.Now())

	day := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	_, err := eng.ToggleLike(ctx, "i1", "u1", day, time.UTC)
	require.NoError(t, err)
	_, err = eng.ToggleLike(ctx, "i1", "u2", day.Add(24*time.Hour), time.UTC)
	require.NoError(t, err)
	_, err = eng.ToggleLike(ctx, "i1", "u3", day.AddDate(0, 0, -40), time.UTC)
	require.NoError(t, err)

	counts, err := eng.CountLikesByDate(ctx, "i1", "2026-04-10", "2026-05-09")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"2026-05-01": 1, "2026-05-02": 1}, counts)
}

func TestRecountLikesFixesDrift(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	eng := NewEngagementRepository(db)
	seedIdea(t, db, "i1", "owner", time.Now())
	_, err := eng.ToggleLike(ctx, "i1", "u1", time.Now(), time.UTC)
	require.NoError(t, err)
	require.NoError(t, db.Model(&model.Idea{}).Where("id = ?", "i1").Update("likes", 7).Error)

	fixed, err := eng.RecountLikes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), fixed)

	var idea model.Idea
	require.NoError(t, db.First(&idea, "id = ?", "i1").Error)
	assert.Equal(t, int64(1), idea.Likes)
}

func TestCollaboratorQueries(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	eng := NewEngagementRepository(db)
	seedIdea(t, db, "i1", "o", time.Now())
	seedIdea(t, db, "i2", "o", time.Now())

	require.NoError(t, eng.AddCollaborator(ctx, "i1", "u1"))
	require.NoError(t, eng.AddCollaborator(ctx, "i1", "u1"))
	require.NoError(t, eng.AddCollaborator(ctx, "i2", "u1"))
	require.NoError(t, eng.AddCollaborator(ctx, "i2", "u2"))

	byIdea, err := eng.CollaboratorsByIdea(ctx, []string{"i1", "i2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, byIdea["i1"])
	assert.ElementsMatch(t, []string{"u1", "u2"}, byIdea["i2"])

	require.NoError(t, eng.RemoveCollaborator(ctx, "i1", "u1"))
	still, err := eng.CollaboratesWithOwner(ctx, "o", "u1")
	require.NoError(t, err)
	assert.True(t, still)

	rows, err := eng.ScanCollaborations(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "o", rows[0].OwnerID)
}

func TestIdeaListingAndTop(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	ideas := NewIdeaRepository(db)
	eng := NewEngagementRepository(db)
	base := time.Now().Add(-time.Hour)
	seedIdea(t, db, "old", "o1", base)
	seedIdea(t, db, "new", "o2", base.Add(time.Minute))

	list, err := ideas.ListNewest(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)

	top, err := ideas.Top(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", top.ID)

	_, err = eng.ToggleLike(ctx, "old", "u1", time.Now(), time.UTC)
	require.NoError(t, err)
	top, err = ideas.Top(ctx)
	require.NoError(t, err)
	assert.Equal(t, "old", top.ID)

	liked, err := ideas.ListLikedBy(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, liked, 1)

	byOwner, err := ideas.ListByOwners(ctx, []string{"o2"})
	require.NoError(t, err)
	require.Len(t, byOwner, 1)

	n, err := ideas.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestMessageLog(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	msgs := NewMessageRepository(db)
	t0 := time.Now().UTC().Add(-time.Hour)

	for i, m := range []model.Message{
		{ID: "m1", SenderID: "c", ReceiverID: "a", Text: "hi", Timestamp: t0},
		{ID: "m2", SenderID: "a", ReceiverID: "c", Text: "hey", Timestamp: t0.Add(time.Minute)},
		{ID: "m3", SenderID: "c", ReceiverID: "a", Text: "?", Timestamp: t0.Add(2 * time.Minute)},
		{ID: "m4", SenderID: "a", ReceiverID: "f", Text: "yo", Timestamp: t0.Add(3 * time.Minute)},
	} {
		m := m
		require.NoError(t, msgs.Create(ctx, &m), i)
	}

	conv, err := msgs.Between(ctx, "a", "c")
	require.NoError(t, err)
	require.Len(t, conv, 3)
	assert.Equal(t, "m1", conv[0].ID)
	assert.Equal(t, "m3", conv[2].ID)

	ids, err := msgs.CounterpartIDs(ctx, "a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c", "f"}, ids)

	unseen, err := msgs.UnseenCounts(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"c": 2}, unseen)

	n, err := msgs.MarkSeen(ctx, "c", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	n, err = msgs.MarkSeen(ctx, "c", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestOutboxClaimAndRelease(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	ob := NewOutboxRepository(db)

	require.NoError(t, ob.Enqueue(ctx, model.RepairFollowPair, "a", "b"))
	require.NoError(t, ob.Enqueue(ctx, model.RepairWishPair, "o", "u"))

	claimed, err := ob.Claim(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	again, err := ob.Claim(ctx, 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, ob.MarkDone(ctx, claimed[0].ID))
	require.NoError(t, ob.Release(ctx, claimed[1].ID, errors.New("db down")))

	pending, err := ob.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)

	retry, err := ob.Claim(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, retry, 1)
	assert.Equal(t, 1, retry[0].Attempts)
	assert.Equal(t, "db down", retry[0].LastError)
}
