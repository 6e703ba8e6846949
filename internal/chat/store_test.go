package chat

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"roomchat/internal/models"
	"roomchat/internal/realtime"
	"roomchat/internal/repositories"
)

// memStore is an in-memory stand-in for the three repositories. Inserts publish to the
// feed the way the database triggers do.
type memStore struct {
	mu       sync.Mutex
	feed     *realtime.Feed
	rooms    []models.Room
	members  []models.RoomMember
	messages []models.Message
	seq      int
	clock    time.Time
	calls    int

	membershipErr   error
	listMessagesErr error
	listMembersErr  error

	// afterMembershipCheck runs between a membership lookup and its return.
	afterMembershipCheck func()
}

func newMemStore(feed *realtime.Feed) *memStore {
	return &memStore{feed: feed, clock: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (s *memStore) next() (string, time.Time) {
	s.seq++
	s.clock = s.clock.Add(time.Millisecond)
	return fmt.Sprintf("id-%03d", s.seq), s.clock
}

func (s *memStore) publish(table, id, roomID string) {
	if s.feed == nil {
		return
	}
	s.feed.Publish(models.ChangeEvent{
		Table: table,
		Op:    models.OpInsert,
		Row:   map[string]string{"id": id, "room_id": roomID},
	})
}

func (s *memStore) storeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *memStore) ListRooms(context.Context) ([]models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	rooms := append([]models.Room(nil), s.rooms...)
	sort.SliceStable(rooms, func(i, j int) bool { return rooms[i].CreatedAt.After(rooms[j].CreatedAt) })
	return rooms, nil
}

func (s *memStore) GetRoom(_ context.Context, roomID string) (models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	for _, r := range s.rooms {
		if r.ID == roomID {
			return r, nil
		}
	}
	return models.Room{}, repositories.ErrRoomNotFound
}

func (s *memStore) CreateRoom(_ context.Context, room models.NewRoom) (models.Room, error) {
	s.mu.Lock()
	s.calls++
	id, now := s.next()
	created := models.Room{ID: id, Name: room.Name, Description: room.Description, CreatedBy: room.CreatedBy, CreatedAt: now}
	s.rooms = append(s.rooms, created)
	s.mu.Unlock()

	s.publish(models.CollectionRooms, id, id)
	return created, nil
}

func (s *memStore) ListRoomsForUser(_ context.Context, userID string) ([]models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	var rooms []models.Room
	for i := len(s.rooms) - 1; i >= 0; i-- {
		for _, m := range s.members {
			if m.RoomID == s.rooms[i].ID && m.UserID == userID {
				rooms = append(rooms, s.rooms[i])
				break
			}
		}
	}
	return rooms, nil
}

func (s *memStore) ListMembers(_ context.Context, roomID string) ([]models.RoomMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.listMembersErr != nil {
		return nil, s.listMembersErr
	}
	var members []models.RoomMember
	for _, m := range s.members {
		if m.RoomID == roomID {
			members = append(members, m)
		}
	}
	return members, nil
}

func (s *memStore) GetMembership(_ context.Context, roomID, userID string) (models.RoomMember, error) {
	s.mu.Lock()
	s.calls++
	hook := s.afterMembershipCheck
	member, err := models.RoomMember{}, s.membershipErr
	if err == nil {
		err = repositories.ErrMembershipNotFound
		for _, m := range s.members {
			if m.RoomID == roomID && m.UserID == userID {
				member, err = m, nil
				break
			}
		}
	}
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return member, err
}

func (s *memStore) AddMember(_ context.Context, roomID, userID string) (models.RoomMember, error) {
	s.mu.Lock()
	s.calls++
	id, now := s.next()
	member := models.RoomMember{ID: id, RoomID: roomID, UserID: userID, JoinedAt: now}
	s.members = append(s.members, member)
	s.mu.Unlock()

	s.publish(models.CollectionMembers, id, roomID)
	return member, nil
}

func (s *memStore) RemoveMember(_ context.Context, roomID, userID string) error {
	s.mu.Lock()
	s.calls++
	kept := s.members[:0]
	for _, m := range s.members {
		if m.RoomID != roomID || m.UserID != userID {
			kept = append(kept, m)
		}
	}
	s.members = kept
	s.mu.Unlock()

	s.publish(models.CollectionMembers, "", roomID)
	return nil
}

func (s *memStore) ListMessages(_ context.Context, roomID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.listMessagesErr != nil {
		return nil, s.listMessagesErr
	}
	var messages []models.Message
	for _, m := range s.messages {
		if m.RoomID == roomID {
			messages = append(messages, m)
		}
	}
	return messages, nil
}

func (s *memStore) CreateMessage(_ context.Context, msg models.NewMessage) (models.Message, error) {
	s.mu.Lock()
	s.calls++
	id, now := s.next()
	created := models.Message{
		ID:         id,
		RoomID:     msg.RoomID,
		UserID:     msg.UserID,
		UserName:   msg.UserName,
		UserAvatar: msg.UserAvatar,
		Content:    msg.Content,
		CreatedAt:  now,
	}
	s.messages = append(s.messages, created)
	s.mu.Unlock()

	s.publish(models.CollectionMessages, id, msg.RoomID)
	return created, nil
}

func (s *memStore) setListMessagesErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listMessagesErr = err
}
