package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"roomchat/internal/models"
)

// ErrMembershipNotFound is the "no row" answer of a membership lookup.
var ErrMembershipNotFound = errors.New("membership not found")

// MemberRepository abstracts room membership persistence.
type MemberRepository interface {
	ListMembers(ctx context.Context, roomID string) ([]models.RoomMember, error)
	GetMembership(ctx context.Context, roomID string, userID string) (models.RoomMember, error)
	AddMember(ctx context.Context, roomID string, userID string) (models.RoomMember, error)
	RemoveMember(ctx context.Context, roomID string, userID string) error
}

// MemberRepo is a sqlx implementation of MemberRepository.
type MemberRepo struct {
	db *sqlx.DB
}

// NewMemberRepo constructs a MemberRepo.
func NewMemberRepo(db *sqlx.DB) *MemberRepo {
	return &MemberRepo{db: db}
}

// ListMembers returns every membership row of the room in join order.
func (r *MemberRepo) ListMembers(ctx context.Context, roomID string) ([]models.RoomMember, error) {
	members := []models.RoomMember{}
	err := r.db.SelectContext(ctx, &members, `SELECT id, room_id, user_id, joined_at FROM room_members WHERE room_id=$1 ORDER BY joined_at ASC, id ASC`, roomID)
	if isInvalidID(err) {
		return nil, ErrRoomNotFound
	}
	return members, err
}

// GetMembership returns the earliest membership row for (room, user).
func (r *MemberRepo) GetMembership(ctx context.Context, roomID string, userID string) (models.RoomMember, error) {
	var member models.RoomMember
	err := r.db.GetContext(ctx, &member, `SELECT id, room_id, user_id, joined_at FROM room_members
        WHERE room_id=$1 AND user_id=$2 ORDER BY joined_at ASC, id ASC LIMIT 1`, roomID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RoomMember{}, ErrMembershipNotFound
	}
	return member, err
}

// AddMember inserts a membership row. It does not check for an existing row.
func (r *MemberRepo) AddMember(ctx context.Context, roomID string, userID string) (models.RoomMember, error) {
	var member models.RoomMember
	err := r.db.QueryRowxContext(ctx, `INSERT INTO room_members (room_id, user_id) VALUES ($1, $2) RETURNING id, room_id, user_id, joined_at`, roomID, userID).
		StructScan(&member)
	return member, err
}

// RemoveMember deletes every membership row of the user in the room.
func (r *MemberRepo) RemoveMember(ctx context.Context, roomID string, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM room_members WHERE room_id=$1 AND user_id=$2`, roomID, userID)
	if isInvalidID(err) {
		return ErrRoomNotFound
	}
	return err
}
