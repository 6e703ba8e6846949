package models

// Collections watched by the change feed.
const (
	CollectionRooms    = "rooms"
	CollectionMembers  = "room_members"
	CollectionMessages = "messages"
)

// Change operations. OpResync is emitted when notifications may have been lost.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
	OpResync = "RESYNC"
)

// ChangeEvent signals that a row of a watched collection changed. Row carries the
// identifying columns only; subscribers refetch what they need.
type ChangeEvent struct {
	Table string            `json:"table"`
	Op    string            `json:"op"`
	Row   map[string]string `json:"row,omitempty"`
}
