package chat

import (
	"context"
	"errors"
	"fmt"
	"log"

	"roomchat/internal/models"
	"roomchat/internal/repositories"
)

// RoomView is what a principal sees after opening a room.
type RoomView struct {
	Room        models.Room         `json:"room"`
	Members     []models.RoomMember `json:"members"`
	MemberCount int                 `json:"member_count"`
	Joined      bool                `json:"joined"`
}

// Joiner implements the room join flow.
//
// The membership check and the insert are separate store calls. Two concurrent
// opens by the same principal can both see "not a member" and both insert.
type Joiner struct {
	rooms   repositories.RoomRepository
	members repositories.MemberRepository
	strict  bool
}

// NewJoiner builds a Joiner. With strict set, genuine membership lookup failures abort
// the join instead of being treated as "not a member".
func NewJoiner(rooms repositories.RoomRepository, members repositories.MemberRepository, strict bool) *Joiner {
	return &Joiner{rooms: rooms, members: members, strict: strict}
}

// OpenRoom loads a room and makes the principal a member of it if needed. Everything
// after the lookup uses the stored room id.
func (j *Joiner) OpenRoom(ctx context.Context, roomID string, principal models.Principal) (RoomView, error) {
	room, err := j.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return RoomView{}, err
	}
	roomID = room.ID

	members, err := j.members.ListMembers(ctx, roomID)
	if err != nil {
		return RoomView{}, fmt.Errorf("list members: %w", err)
	}

	var member bool
	if j.strict {
		if member, err = j.CheckMembership(ctx, roomID, principal.ID); err != nil {
			return RoomView{}, fmt.Errorf("check membership: %w", err)
		}
	} else {
		member = j.IsMember(ctx, roomID, principal.ID)
	}

	view := RoomView{Room: room, Members: members}
	if !member {
		if _, err := j.members.AddMember(ctx, roomID, principal.ID); err != nil {
			return RoomView{}, fmt.Errorf("add member: %w", err)
		}
		view.Joined = true

		if view.Members, err = j.members.ListMembers(ctx, roomID); err != nil {
			return RoomView{}, fmt.Errorf("list members: %w", err)
		}
	}
	view.MemberCount = len(view.Members)
	return view, nil
}

// CheckMembership reports whether the principal has a membership row. "No row" is
// (false, nil); any other lookup failure is returned.
func (j *Joiner) CheckMembership(ctx context.Context, roomID, userID string) (bool, error) {
	_, err := j.members.GetMembership(ctx, roomID, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repositories.ErrMembershipNotFound):
		return false, nil
	default:
		return false, err
	}
}

// IsMember is CheckMembership with lookup failures logged and read as "not a member".
func (j *Joiner) IsMember(ctx context.Context, roomID, userID string) bool {
	member, err := j.CheckMembership(ctx, roomID, userID)
	if err != nil {
		log.Printf("membership check failed room_id=%s user_id=%s: %v", roomID, userID, err)
		return false
	}
	return member
}

// Leave removes every membership row of the principal in the room.
func (j *Joiner) Leave(ctx context.Context, roomID, userID string) error {
	if _, err := j.rooms.GetRoom(ctx, roomID); err != nil {
		return err
	}
	return j.members.RemoveMember(ctx, roomID, userID)
}
