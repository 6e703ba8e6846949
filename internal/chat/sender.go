package chat

import (
	"context"
	"strings"

	"roomchat/internal/models"
	"roomchat/internal/repositories"
)

// Sender posts messages. A sent message is not handed to any open stream; streams
// see it through the change feed like every other write.
type Sender struct {
	rooms    repositories.RoomRepository
	messages repositories.MessageRepository
}

func NewSender(rooms repositories.RoomRepository, messages repositories.MessageRepository) *Sender {
	return &Sender{rooms: rooms, messages: messages}
}

// Send inserts a message from the principal into the room.
func (s *Sender) Send(ctx context.Context, roomID string, principal models.Principal, content string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, ErrEmptyMessage
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return models.Message{}, err
	}

	return s.messages.CreateMessage(ctx, models.NewMessage{
		RoomID:     room.ID,
		UserID:     principal.ID,
		UserName:   principal.SenderName(),
		UserAvatar: principal.Avatar(),
		Content:    content,
	})
}
