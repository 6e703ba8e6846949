package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"roomchat/internal/models"
)

// MessageRepository defines interactions for room messages.
type MessageRepository interface {
	ListMessages(ctx context.Context, roomID string) ([]models.Message, error)
	CreateMessage(ctx context.Context, msg models.NewMessage) (models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, room_id, user_id, user_name, user_avatar, content, created_at`

// ListMessages returns the room's messages ordered by creation, oldest first.
func (r *MessageRepo) ListMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages WHERE room_id=$1 ORDER BY created_at ASC, id ASC`, roomID)
	if isInvalidID(err) {
		return nil, ErrRoomNotFound
	}
	return msgs, err
}

// CreateMessage appends a message to a room.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.NewMessage) (models.Message, error) {
	var created models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (room_id, user_id, user_name, user_avatar, content) VALUES ($1, $2, $3, $4, $5) RETURNING `+messageColumns,
		msg.RoomID, msg.UserID, msg.UserName, msg.UserAvatar, msg.Content).StructScan(&created)
	return created, err
}
