package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/ideagraph/internal/api/middleware"
	"github.com/d60-Lab/ideagraph/internal/cacheperf"
	"github.com/d60-Lab/ideagraph/internal/model"
	"github.com/d60-Lab/ideagraph/internal/repository"
	"github.com/d60-Lab/ideagraph/internal/service"
	"github.com/d60-Lab/ideagraph/pkg/database"
)

type envelope struct {
	Code    int             `json:"code"`
	Kind    string          `json:"kind"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	engine *gin.Engine
	users  repository.UserRepository
	ideas  repository.IdeaRepository
}

// newTestServer wires real services over in-memory sqlite. The caller is taken
// from the X-Caller header instead of a signed token.
func newTestServer(t *testing.T, userIDs ...string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	users := repository.NewUserRepository(db)
	ideas := repository.NewIdeaRepository(db)
	messages := repository.NewMessageRepository(db)
	rel := service.NewRelationshipStore(repository.NewFollowRepository(db), repository.NewFanRepository(db), repository.NewWishRepository(db))
	eng := service.NewEngagementStore(repository.NewEngagementRepository(db), rel, time.UTC)
	profiles := cacheperf.NewProfileCache(users, nil, 0)
	repl := service.NewReplicator(rel, eng, repository.NewOutboxRepository(db), nil, 16)

	h := NewHandler(
		service.NewRelationshipService(rel, users, profiles, profiles),
		service.NewToggleEngine(rel, eng, users, ideas, messages, repl, service.WithRetry(2, time.Millisecond)),
		service.NewAggregationEngine(rel, eng, ideas, messages, profiles, nil),
		service.NewIdeaService(ideas, users, eng, profiles),
		service.NewChatService(messages, users),
	)

	r := gin.New()
	api := r.Group("/api/v1", func(c *gin.Context) {
		if id := c.GetHeader("X-Caller"); id != "" {
			middleware.SetCaller(c, middleware.Caller{ID: id, Email: id + "@example.com"})
		}
		c.Next()
	})
	api.PUT("/users/me", h.RegisterMe)
	api.POST("/relations/follow", h.Follow)
	api.POST("/relations/unfollow", h.Unfollow)
	api.GET("/relations/:user_id/following", h.ListFollowing)
	api.GET("/relations/:user_id/followers", h.ListFollowers)
	api.POST("/ideas", h.SubmitIdea)
	api.GET("/ideas/count", h.CountIdeas)
	api.GET("/ideas/feed", h.Feed)
	api.POST("/ideas/:idea_id/like", h.ToggleLike)
	api.POST("/ideas/:idea_id/collaborate", h.ToggleCollaborate)
	api.GET("/ideas/:idea_id/likes-per-day", h.LikesPerDay)
	api.POST("/chat/messages", h.SendMessage)
	api.POST("/chat/mark-seen", h.MarkSeen)
	api.GET("/chat/inbox", h.Inbox)

	ctx := context.Background()
	for _, id := range userIDs {
		require.NoError(t, users.Upsert(ctx, &model.User{ID: id, Name: "name-" + id, Email: id + "@example.com"}))
	}
	return &testServer{engine: r, users: users, ideas: ideas}
}

func (s *testServer) do(t *testing.T, method, path, caller string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set("X-Caller", caller)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestFollowStatusMapping(t *testing.T) {
	s := newTestServer(t, "a", "b")

	code, _ := s.do(t, http.MethodPost, "/api/v1/relations/follow", "a", gin.H{"user_id": "b"})
	assert.Equal(t, http.StatusOK, code)

	code, env := s.do(t, http.MethodPost, "/api/v1/relations/follow", "a", gin.H{"user_id": "b"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_active", env.Kind)

	code, env = s.do(t, http.MethodPost, "/api/v1/relations/follow", "a", gin.H{"user_id": "a"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "self_reference", env.Kind)

	code, env = s.do(t, http.MethodPost, "/api/v1/relations/follow", "a", gin.H{"user_id": "ghost"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", env.Kind)

	code, env = s.do(t, http.MethodPost, "/api/v1/relations/follow", "a", gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", env.Kind)

	code, _ = s.do(t, http.MethodPost, "/api/v1/relations/unfollow", "a", gin.H{"user_id": "b"})
	assert.Equal(t, http.StatusOK, code)
	code, env = s.do(t, http.MethodPost, "/api/v1/relations/unfollow", "a", gin.H{"user_id": "b"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_inactive", env.Kind)
}

func TestMissingCallerIsUnauthorized(t *testing.T) {
	s := newTestServer(t, "a")
	code, _ := s.do(t, http.MethodGet, "/api/v1/chat/inbox", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestFollowersListing(t *testing.T) {
	s := newTestServer(t, "a", "b", "c")
	for _, fan := range []string{"a", "c"} {
		code, _ := s.do(t, http.MethodPost, "/api/v1/relations/follow", fan, gin.H{"user_id": "b"})
		require.Equal(t, http.StatusOK, code)
	}

	code, env := s.do(t, http.MethodGet, "/api/v1/relations/b/followers?page=1&page_size=10", "a", nil)
	require.Equal(t, http.StatusOK, code)
	var page struct {
		List []model.UserSnapshot `json:"list"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	ids := make([]string, 0, len(page.List))
	for _, u := range page.List {
		ids = append(ids, u.ID)
	}
	assert.ElementsMatch(t, []string{"a", "c"}, ids)

	code, _ = s.do(t, http.MethodGet, "/api/v1/relations/ghost/following", "a", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSubmitIdeaValidation(t *testing.T) {
	s := newTestServer(t, "a")

	code, env := s.do(t, http.MethodPost, "/api/v1/ideas", "a", gin.H{"title": "only a title"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", env.Kind)

	code, env = s.do(t, http.MethodPost, "/api/v1/ideas", "a", gin.H{
		"title":         "Solar kiosks",
		"description":   "Charging stations for markets",
		"domain":        "energy",
		"budget":        1200,
		"project_stage": "prototype",
		"location":      "Nairobi",
	})
	require.Equal(t, http.StatusCreated, code)
	var idea model.Idea
	require.NoError(t, json.Unmarshal(env.Data, &idea))
	assert.NotEmpty(t, idea.ID)
	assert.Equal(t, "a", idea.OwnerID)

	code, env = s.do(t, http.MethodGet, "/api/v1/ideas/count", "a", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"count":1}`, string(env.Data))
}

func TestLikeAndCollaborate(t *testing.T) {
	s := newTestServer(t, "owner", "fan")
	require.NoError(t, s.ideas.Create(context.Background(), &model.Idea{
		ID: "i1", OwnerID: "owner", Title: "idea", CreatedAt: time.Now().UTC(),
	}))

	code, env := s.do(t, http.MethodPost, "/api/v1/ideas/i1/like", "fan", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"liked":true,"likes":1}`, string(env.Data))

	code, env = s.do(t, http.MethodGet, "/api/v1/ideas/i1/likes-per-day", "fan", nil)
	require.Equal(t, http.StatusOK, code)
	var series []model.LikeCount
	require.NoError(t, json.Unmarshal(env.Data, &series))
	require.Len(t, series, 30)
	assert.Equal(t, 1, series[29].Count)

	code, env = s.do(t, http.MethodPost, "/api/v1/ideas/i1/collaborate", "fan", nil)
	require.Equal(t, http.StatusOK, code)
	var res service.CollaborateResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.Collaborating)
	assert.Equal(t, []string{"fan"}, res.Collaborators)

	code, env = s.do(t, http.MethodPost, "/api/v1/ideas/missing/like", "fan", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", env.Kind)
}

func TestInboxAndMarkSeen(t *testing.T) {
	s := newTestServer(t, "a", "b")

	code, _ := s.do(t, http.MethodPost, "/api/v1/chat/messages", "b", gin.H{"receiver_id": "a", "text": "hi"})
	require.Equal(t, http.StatusCreated, code)
	code, _ = s.do(t, http.MethodPost, "/api/v1/chat/messages", "b", gin.H{"receiver_id": "a", "text": "there"})
	require.Equal(t, http.StatusCreated, code)

	code, env := s.do(t, http.MethodGet, "/api/v1/chat/inbox", "a", nil)
	require.Equal(t, http.StatusOK, code)
	var inbox []model.InboxEntry
	require.NoError(t, json.Unmarshal(env.Data, &inbox))
	require.Len(t, inbox, 1)
	assert.Equal(t, "b", inbox[0].ID)
	assert.Equal(t, int64(2), inbox[0].UnseenCount)

	code, env = s.do(t, http.MethodPost, "/api/v1/chat/mark-seen", "a", gin.H{"sender_id": "b"})
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"updated":2}`, string(env.Data))

	code, env = s.do(t, http.MethodGet, "/api/v1/chat/inbox", "a", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &inbox))
	require.Len(t, inbox, 1)
	assert.Zero(t, inbox[0].UnseenCount)
}

func TestRegisterMe(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodPut, "/api/v1/users/me", "newbie", gin.H{"name": "Newbie"})
	require.Equal(t, http.StatusOK, code)
	var snap model.UserSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, model.UserSnapshot{ID: "newbie", Name: "Newbie", Email: "newbie@example.com"}, snap)

	u, err := s.users.FindByID(context.Background(), "newbie")
	require.NoError(t, err)
	assert.Equal(t, "Newbie", u.Name)
}
