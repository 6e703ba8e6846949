package chat

import "errors"

var (
	ErrUnauthenticated = errors.New("not signed in")
	ErrEmptyRoomName   = errors.New("room name is required")
	ErrEmptyMessage    = errors.New("message content is required")
	ErrStreamStarted   = errors.New("stream already started")
)
