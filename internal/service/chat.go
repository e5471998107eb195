package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/ideagraph/internal/model"
	"github.com/d60-Lab/ideagraph/internal/repository"
	"github.com/d60-Lab/ideagraph/pkg/apperror"
)

// ChatService 私信写入与会话查询；已读翻转走 ToggleEngine.MarkSeen
type ChatService struct {
	messages repository.MessageRepository
	users    repository.UserRepository
	now      func() time.Time
}

func NewChatService(messages repository.MessageRepository, users repository.UserRepository) *ChatService {
	return &ChatService{messages: messages, users: users, now: time.Now}
}

// Send appends an unseen message from sender to receiver.
func (s *ChatService) Send(ctx context.Context, senderID, receiverID, text string) (*model.Message, error) {
	if senderID == "" || receiverID == "" {
		return nil, apperror.Validation("sender and receiver ids are required")
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperror.Validation("message text is required")
	}
	if _, err := s.users.FindByID(ctx, receiverID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("user %s not found", receiverID)
		}
		return nil, apperror.Unavailable(err, "read user %s", receiverID)
	}
	m := &model.Message{
		ID:         uuid.New().String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Timestamp:  s.now().UTC(),
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, apperror.Unavailable(err, "store message")
	}
	return m, nil
}

// Conversation returns messages between two users in either direction, oldest first.
func (s *ChatService) Conversation(ctx context.Context, userA, userB string) ([]*model.Message, error) {
	if userA == "" || userB == "" {
		return nil, apperror.Validation("both user ids are required")
	}
	msgs, err := s.messages.Between(ctx, userA, userB)
	if err != nil {
		return nil, apperror.Unavailable(err, "read conversation")
	}
	return msgs, nil
}
