package models

import "time"

// Message is a chat message posted to a room. Messages are append-only.
type Message struct {
	ID         string    `db:"id" json:"id"`
	RoomID     string    `db:"room_id" json:"room_id"`
	UserID     string    `db:"user_id" json:"user_id"`
	UserName   string    `db:"user_name" json:"user_name"`
	UserAvatar *string   `db:"user_avatar" json:"user_avatar,omitempty"`
	Content    string    `db:"content" json:"content"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// NewMessage holds the caller supplied columns of a message insert.
type NewMessage struct {
	RoomID     string
	UserID     string
	UserName   string
	UserAvatar *string
	Content    string
}

// RoomEvent is pushed over websocket connections watching a single room.
type RoomEvent struct {
	Type     string    `json:"type"`
	RoomID   string    `json:"room_id,omitempty"`
	Messages []Message `json:"messages,omitempty"`
}

// DirectoryEvent is pushed over websocket connections watching the room list.
type DirectoryEvent struct {
	Type  string        `json:"type"`
	Rooms []RoomSummary `json:"rooms"`
}
