package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"roomchat/internal/models"
)

var ErrRoomNotFound = errors.New("room not found")

// RoomRepository abstracts room persistence.
type RoomRepository interface {
	ListRooms(ctx context.Context) ([]models.Room, error)
	GetRoom(ctx context.Context, roomID string) (models.Room, error)
	CreateRoom(ctx context.Context, room models.NewRoom) (models.Room, error)
	ListRoomsForUser(ctx context.Context, userID string) ([]models.Room, error)
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

const roomColumns = `id, name, description, created_by, created_at`

// ListRooms returns every room, newest first.
func (r *RoomRepo) ListRooms(ctx context.Context) ([]models.Room, error) {
	rooms := []models.Room{}
	err := r.db.SelectContext(ctx, &rooms, `SELECT `+roomColumns+` FROM rooms ORDER BY created_at DESC, id DESC`)
	return rooms, err
}

// GetRoom fetches a single room.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID string) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM rooms WHERE id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
		return models.Room{}, ErrRoomNotFound
	}
	return room, err
}

// CreateRoom inserts a room and returns the stored row.
func (r *RoomRepo) CreateRoom(ctx context.Context, room models.NewRoom) (models.Room, error) {
	var created models.Room
	err := r.db.QueryRowxContext(ctx, `INSERT INTO rooms (name, description, created_by) VALUES ($1, $2, $3) RETURNING `+roomColumns,
		room.Name, room.Description, room.CreatedBy).StructScan(&created)
	return created, err
}

// ListRoomsForUser returns the rooms the user has joined, newest first.
func (r *RoomRepo) ListRoomsForUser(ctx context.Context, userID string) ([]models.Room, error) {
	rooms := []models.Room{}
	err := r.db.SelectContext(ctx, &rooms, `SELECT `+roomColumns+` FROM rooms
        WHERE id IN (SELECT room_id FROM room_members WHERE user_id=$1)
        ORDER BY created_at DESC, id DESC`, userID)
	return rooms, err
}

// isInvalidID reports whether postgres rejected an id that is not a uuid.
func isInvalidID(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "22P02"
}
