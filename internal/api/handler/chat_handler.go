package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/ideagraph/pkg/response"
)

type sendMessageRequest struct {
	ReceiverID string `json:"receiver_id" binding:"required"`
	Text       string `json:"text" binding:"required"`
}

type markSeenRequest struct {
	SenderID string `json:"sender_id" binding:"required"`
}

// SendMessage 发送私信
// @Summary 发送私信
// @Tags 私信
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body sendMessageRequest true "消息"
// @Success 201 {object} response.Response{data=model.Message}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/chat/messages [post]
func (h *Handler) SendMessage(c *gin.Context) {
	cl, ok := caller(c)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	msg, err := h.chat.Send(c.Request.Context(), cl.ID, req.ReceiverID, req.Text)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}

// MarkSeen 将对方发来的消息全部标记为已读
// @Summary 标记已读
// @Tags 私信
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body markSeenRequest true "发送方"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/v1/chat/mark-seen [post]
func (h *Handler) MarkSeen(c *gin.Context) {
	cl, ok := caller(c)
	if !ok {
		return
	}
	var req markSeenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	n, err := h.toggles.MarkSeen(c.Request.Context(), req.SenderID, cl.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"updated": n})
}

// Inbox 聊天收件箱
// @Summary 收件箱
// @Description 关注的人、有消息往来的人、协作意向双方的并集，附未读数
// @Tags 私信
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]model.InboxEntry}
// @Failure 503 {object} response.Response
// @Router /api/v1/chat/inbox [get]
func (h *Handler) Inbox(c *gin.Context) {
	cl, ok := caller(c)
	if !ok {
		return
	}
	entries, err := h.agg.Inbox(c.Request.Context(), cl.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, entries)
}

// Conversation 与某用户的会话
// @Summary 会话记录
// @Tags 私信
// @Security BearerAuth
// @Param user_id path string true "对方用户ID"
// @Success 200 {object} response.Response{data=[]model.Message}
// @Router /api/v1/chat/{user_id} [get]
func (h *Handler) Conversation(c *gin.Context) {
	cl, ok := caller(c)
	if !ok {
		return
	}
	msgs, err := h.chat.Conversation(c.Request.Context(), cl.ID, c.Param("user_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, msgs)
}
