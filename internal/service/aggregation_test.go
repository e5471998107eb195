package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/ideagraph/internal/model"
	"github.com/d60-Lab/ideagraph/pkg/apperror"
)

func TestInboxUnionsAllSources(t *testing.T) {
	h := newHarness(t, "A", "B", "C", "D", "E")
	ctx := context.Background()
	h.idea(t, "idea-of-A", "A", 2)
	h.idea(t, "idea-of-D", "D", 1)

	// A follows B and D; C messages A; A wished to join D's idea; E wished to join A's idea
	require.NoError(t, h.toggles.Follow(ctx, "A", "B"))
	require.NoError(t, h.toggles.Follow(ctx, "A", "D"))
	_, err := h.chat.Send(ctx, "C", "A", "hello")
	require.NoError(t, err)
	_, err = h.chat.Send(ctx, "A", "B", "hey")
	require.NoError(t, err)
	_, err = h.toggles.ToggleCollaborate(ctx, "idea-of-D", "A")
	require.NoError(t, err)
	_, err = h.toggles.ToggleCollaborate(ctx, "idea-of-A", "E")
	require.NoError(t, err)

	entries, err := h.agg.Inbox(ctx, "A")
	require.NoError(t, err)
	require.Len(t, entries, 4)

	byID := make(map[string]model.InboxEntry, len(entries))
	for _, e := range entries {
		_, dup := byID[e.ID]
		require.Falsef(t, dup, "%s listed twice", e.ID)
		byID[e.ID] = e
	}
	assert.ElementsMatch(t, []string{"B", "C", "D", "E"}, keys(byID))

	assert.EqualValues(t, 1, byID["C"].UnseenCount)
	assert.EqualValues(t, 0, byID["B"].UnseenCount)
	assert.Equal(t, "name-C", byID["C"].Name)

	assert.True(t, byID["E"].WishesToCollaborate)
	assert.False(t, byID["E"].WishedByCurrentUser)
	assert.True(t, byID["D"].WishedByCurrentUser)
	assert.False(t, byID["D"].WishesToCollaborate)
	assert.False(t, byID["B"].WishesToCollaborate || byID["B"].WishedByCurrentUser)

	// unseen first
	assert.Equal(t, "C", entries[0].ID)
}

func TestInboxSkipsSelfAndUnknownUsers(t *testing.T) {
	h := newHarness(t, "A")
	ctx := context.Background()
	require.NoError(t, h.messages.Create(ctx, &model.Message{ID: "m1", SenderID: "ghost", ReceiverID: "A", Text: "x", Timestamp: baseTime}))
	require.NoError(t, h.messages.Create(ctx, &model.Message{ID: "m2", SenderID: "A", ReceiverID: "A", Text: "note", Timestamp: baseTime}))

	entries, err := h.agg.Inbox(ctx, "A")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFeedAnnotatesFollowAndFlattensCollaborators(t *testing.T) {
	h := newHarness(t, "caller", "O", "N", "P")
	ctx := context.Background()
	h.idea(t, "by-O", "O", 5)
	h.idea(t, "by-N", "N", 1)
	require.NoError(t, h.toggles.Follow(ctx, "caller", "O"))
	_, err := h.toggles.ToggleCollaborate(ctx, "by-O", "P")
	require.NoError(t, err)

	before := h.follows.count()
	items, err := h.agg.Feed(ctx, "caller")
	require.NoError(t, err)
	assert.Equal(t, 1, h.follows.count()-before)

	require.Len(t, items, 2)
	assert.Equal(t, "by-N", items[0].ID)
	assert.False(t, items[0].Followed)
	assert.Equal(t, []string{}, items[0].Collaborators)
	assert.Equal(t, "by-O", items[1].ID)
	assert.True(t, items[1].Followed)
	assert.Equal(t, []string{"P"}, items[1].Collaborators)
}

func TestFeedReadsFollowingOnceForManyIdeas(t *testing.T) {
	h := newHarness(t, "caller", "O")
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		h.idea(t, fmt.Sprintf("i%02d", i), "O", i)
	}
	items, err := h.agg.Feed(ctx, "caller")
	require.NoError(t, err)
	assert.Len(t, items, 25)
	assert.Equal(t, 1, h.follows.count())
}

func TestFeedFailsWholeReadWhenSubQueryFails(t *testing.T) {
	h := newHarness(t, "caller")
	h.idea(t, "i1", "caller", 0)
	h.follows.failErr = errors.New("relationship store down")

	items, err := h.agg.Feed(context.Background(), "caller")
	assert.Nil(t, items)
	assert.ErrorIs(t, err, apperror.ErrDependencyUnavailable)

	_, err = h.agg.Inbox(context.Background(), "caller")
	assert.ErrorIs(t, err, apperror.ErrDependencyUnavailable)
}

func TestFollowedFeed(t *testing.T) {
	h := newHarness(t, "caller", "O", "N")
	ctx := context.Background()

	items, err := h.agg.FollowedFeed(ctx, "caller")
	require.NoError(t, err)
	assert.Empty(t, items)

	h.idea(t, "by-O", "O", 3)
	h.idea(t, "by-N", "N", 1)
	require.NoError(t, h.toggles.Follow(ctx, "caller", "O"))

	items, err = h.agg.FollowedFeed(ctx, "caller")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "by-O", items[0].ID)
	assert.True(t, items[0].Followed)
}

func TestLikeSeriesCoversThirtyDays(t *testing.T) {
	h := newHarness(t, "owner", "u1", "u2")
	ctx := context.Background()
	h.idea(t, "i1", "owner", 0)

	dates := windowDates(baseTime, time.UTC, LikeWindowDays)
	require.Len(t, dates, 30)
	assert.Equal(t, "2026-09-19", dates[0])
	assert.Equal(t, "2026-10-18", dates[29])

	h.now = baseTime.AddDate(0, 0, -(29 - 3))
	_, err := h.toggles.ToggleLike(ctx, "i1", "u1")
	require.NoError(t, err)
	h.now = baseTime.AddDate(0, 0, -(29 - 10))
	_, err = h.toggles.ToggleLike(ctx, "i1", "u2")
	require.NoError(t, err)
	// 窗口之外的点赞不计入
	h.now = baseTime.AddDate(0, 0, -45)
	_, err = h.toggles.ToggleLike(ctx, "i1", "owner")
	require.NoError(t, err)

	h.now = baseTime
	series, err := h.agg.LikeSeries(ctx, "i1")
	require.NoError(t, err)
	require.Len(t, series, 30)
	for i, point := range series {
		assert.Equal(t, dates[i], point.Date)
		want := 0
		if i == 3 || i == 10 {
			want = 1
		}
		assert.Equalf(t, want, point.Count, "offset %d", i)
	}
}

func TestLikeSeriesUsesConfiguredCalendar(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	// 2026-10-18 15:04 UTC 是当地 10-19 凌晨
	dates := windowDates(baseTime, loc, LikeWindowDays)
	assert.Equal(t, "2026-10-19", dates[29])
	assert.Equal(t, "2026-09-20", dates[0])
}

func TestLikeSeriesErrors(t *testing.T) {
	h := newHarness(t)
	_, err := h.agg.LikeSeries(context.Background(), "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = h.agg.LikeSeries(context.Background(), "")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func keys(m map[string]model.InboxEntry) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
