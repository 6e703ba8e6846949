package chat

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"roomchat/internal/models"
	"roomchat/internal/repositories"
)

// Directory answers room discovery queries.
type Directory struct {
	rooms   repositories.RoomRepository
	members repositories.MemberRepository
}

func NewDirectory(rooms repositories.RoomRepository, members repositories.MemberRepository) *Directory {
	return &Directory{rooms: rooms, members: members}
}

// ListRooms returns every room, newest first.
func (d *Directory) ListRooms(ctx context.Context) ([]models.Room, error) {
	return d.rooms.ListRooms(ctx)
}

// CountMembers fetches the whole membership list of a room and returns its size.
func (d *Directory) CountMembers(ctx context.Context, roomID string) (int, error) {
	members, err := d.members.ListMembers(ctx, roomID)
	if err != nil {
		return 0, err
	}
	return len(members), nil
}

// ListRoomSummaries lists rooms with their membership counts. Counts are fetched
// concurrently and the first failure aborts the listing.
func (d *Directory) ListRoomSummaries(ctx context.Context) ([]models.RoomSummary, error) {
	rooms, err := d.rooms.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	summaries := make([]models.RoomSummary, len(rooms))
	g, gctx := errgroup.WithContext(ctx)
	for i, room := range rooms {
		summaries[i].Room = room
		g.Go(func() error {
			n, err := d.CountMembers(gctx, room.ID)
			if err != nil {
				return fmt.Errorf("count members of %s: %w", room.ID, err)
			}
			summaries[i].MemberCount = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// ListRoomsForUser returns the rooms a principal is a member of, newest first.
func (d *Directory) ListRoomsForUser(ctx context.Context, userID string) ([]models.Room, error) {
	return d.rooms.ListRoomsForUser(ctx, userID)
}

// ListMembers returns the membership rows of an existing room.
func (d *Directory) ListMembers(ctx context.Context, roomID string) ([]models.RoomMember, error) {
	if _, err := d.rooms.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return d.members.ListMembers(ctx, roomID)
}
