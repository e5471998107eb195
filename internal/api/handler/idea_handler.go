package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/ideagraph/internal/service"
	"github.com/d60-Lab/ideagraph/pkg/response"
)

// SubmitIdea 发布创意
// @Summary 发布创意
// @Tags 创意
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.IdeaInput true "创意内容"
// @Success 201 {object} response.Response{data=model.Idea}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/ideas [post]
func (h *Handler) SubmitIdea(c *gin.Context) {
	cl, ok := caller(c)
	if !ok {
		return
	}
	var in service.IdeaInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	idea, err := h.ideas.Submit(c.Request.Context(), cl.ID, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, idea)
}

// CountIdeas 创意总数
// @Summary 创意总数
// @Tags 创意
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /api/v1/ideas/count [get]
func (h *Handler) CountIdeas(c *gin.Context) {
	n, err := h.ideas.Count(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"count": n})
}

// IdeaOfTheDay 点赞最多的创意
// @Summary 今日创意
// @Tags 创意
// @Security BearerAuth
// @Success 200 {object} response.Response{data=model.Idea}
// @Failure 404 {object} response.Response
// @Router /api/v1/ideas/idea-of-the-day [get]
func (h *Handler) IdeaOfTheDay(c *gin.Context) {
	idea, err := h.ideas.IdeaOfTheDay(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, idea)
}

// Feed 全部创意（最新在前），标注是否关注作者
// @Summary 信息流
// @Tags 创意
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]model.FeedItem}
// @Failure 503 {object} response.Response
// @Router /api/v1/ideas/feed [get]
func (h *Handler) Feed(c *gin.Context) {
	cl, ok := caller(c)
	if !ok {
		return
	}
	items, err := h.agg.Feed(c.Request.Context(), cl.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, items)
}

// FollowedFeed 关注的人发布的创意
// @Summary 关注流
// @Tags 创意
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]model.FeedItem}
// @Failure 503 {object} response.Response
// @Router /api/v1/ideas/followed [get]
func (h *Handler) FollowedFeed(c *gin.Context) {
	cl, ok := caller(c)
	if !ok {
		return
	}
	items, err := h.agg.FollowedFeed(c.Request.Context(), cl.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, items)
}

// MyIdeas 当前用户发布的创意
// @Summary 我的创意
// @Tags 创意
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]model.Idea}
// @Router /api/v1/ideas/mine [get]
func (h *Handler) MyIdeas(c *gin.Context) {
	cl, ok := caller(c)
	if !ok {
		return
	}
	h.listByOwner(c, cl.ID)
}

// IdeasByUser 某用户发布的创意
// @Summary 用户的创意
// @Tags 创意
// @Security BearerAuth
// @Param user_id path string true "用户ID"
// @Success 200 {object} response.Response{data=[]model.Idea}
// @Router /api/v1/ideas/by-user/{user_id} [get]
func (h *Handler) IdeasByUser(c *gin.Context) {
	h.listByOwner(c, c.Param("user_id"))
}

func (h *Handler) listByOwner(c *gin.Context, ownerID string) {
	ideas, err := h.ideas.ListByOwner(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ideas)
}

// IdeasLikedBy 某用户点赞过的创意
// @Summary 用户点赞的创意
// @Tags 创意
// @Security BearerAuth
// @Param user_id path string true "用户ID"
// @Success 200 {object} response.Response{data=[]model.Idea}
// @Router /api/v1/ideas/liked-by/{user_id} [get]
func (h *Handler) IdeasLikedBy(c *gin.Context) {
	ideas, err := h.ideas.ListLikedBy(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ideas)
}

// ToggleLike 点赞 / 取消点赞
// @Summary 切换点赞
// @Tags 互动
// @Security BearerAuth
// @Param idea_id path string true "创意ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/ideas/{idea_id}/like [post]
func (h *Handler) ToggleLike(c *gin.Context) {
	cl, ok := caller(c)
	if !ok {
		return
	}
	res, err := h.toggles.ToggleLike(c.Request.Context(), c.Param("idea_id"), cl.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"liked": res.Liked, "likes": res.Likes})
}

// ToggleCollaborate 申请协作 / 撤回
// @Summary 切换协作意向
// @Tags 互动
// @Security BearerAuth
// @Param idea_id path string true "创意ID"
// @Success 200 {object} response.Response{data=service.CollaborateResult}
// @Failure 404 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /api/v1/ideas/{idea_id}/collaborate [post]
func (h *Handler) ToggleCollaborate(c *gin.Context) {
	cl, ok := caller(c)
	if !ok {
		return
	}
	res, err := h.toggles.ToggleCollaborate(c.Request.Context(), c.Param("idea_id"), cl.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// Collaborators 创意的协作者
// @Summary 协作者列表
// @Tags 互动
// @Security BearerAuth
// @Param idea_id path string true "创意ID"
// @Success 200 {object} response.Response{data=[]model.UserSnapshot}
// @Failure 404 {object} response.Response
// @Router /api/v1/ideas/{idea_id}/collaborators [get]
func (h *Handler) Collaborators(c *gin.Context) {
	list, err := h.ideas.Collaborators(c.Request.Context(), c.Param("idea_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

// LikesPerDay 近 30 天每日点赞数
// @Summary 点赞日序列
// @Tags 互动
// @Security BearerAuth
// @Param idea_id path string true "创意ID"
// @Success 200 {object} response.Response{data=[]model.LikeCount}
// @Failure 404 {object} response.Response
// @Router /api/v1/ideas/{idea_id}/likes-per-day [get]
func (h *Handler) LikesPerDay(c *gin.Context) {
	series, err := h.agg.LikeSeries(c.Request.Context(), c.Param("idea_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, series)
}
