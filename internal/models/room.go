package models

import "time"

// Room is a named chat channel.
type Room struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// NewRoom holds the caller supplied columns of a room insert.
type NewRoom struct {
	Name        string
	Description *string
	CreatedBy   string
}

// RoomMember records that a principal participates in a room.
type RoomMember struct {
	ID       string    `db:"id" json:"id"`
	RoomID   string    `db:"room_id" json:"room_id"`
	UserID   string    `db:"user_id" json:"user_id"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// RoomSummary is a room together with its membership count.
type RoomSummary struct {
	Room
	MemberCount int `json:"member_count"`
}
