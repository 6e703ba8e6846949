package chat

import (
	"context"
	"strings"

	"roomchat/internal/models"
	"roomchat/internal/repositories"
)

type Creator struct {
	rooms repositories.RoomRepository
}

func NewCreator(rooms repositories.RoomRepository) *Creator {
	return &Creator{rooms: rooms}
}

// CreateRoom inserts a room owned by the principal. A blank name is rejected before
// the store is touched.
func (c *Creator) CreateRoom(ctx context.Context, principal models.Principal, name, description string) (models.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Room{}, ErrEmptyRoomName
	}

	var desc *string
	if d := strings.TrimSpace(description); d != "" {
		desc = &d
	}
	return c.rooms.CreateRoom(ctx, models.NewRoom{Name: name, Description: desc, CreatedBy: principal.ID})
}
