package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomchat/internal/models"
	"roomchat/internal/repositories"
)

var (
	alice = models.Principal{ID: "u-alice", DisplayName: "Alice"}
	bob   = models.Principal{ID: "u-bob", Email: "bob@example.com"}
)

func TestCountMembersMatchesMembershipRows(t *testing.T) {
	store := newMemStore(nil)
	ctx := context.Background()
	room, err := store.CreateRoom(ctx, models.NewRoom{Name: "General", CreatedBy: alice.ID})
	require.NoError(t, err)

	dir := NewDirectory(store, store)
	for i, user := range []string{"u-1", "u-2", "u-2"} {
		_, err := store.AddMember(ctx, room.ID, user)
		require.NoError(t, err)

		n, err := dir.CountMembers(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, i+1, n)
	}
}

func TestListRoomSummariesNewestFirst(t *testing.T) {
	store := newMemStore(nil)
	ctx := context.Background()
	older, _ := store.CreateRoom(ctx, models.NewRoom{Name: "older", CreatedBy: alice.ID})
	newer, _ := store.CreateRoom(ctx, models.NewRoom{Name: "newer", CreatedBy: alice.ID})
	_, _ = store.AddMember(ctx, older.ID, alice.ID)
	_, _ = store.AddMember(ctx, older.ID, bob.ID)

	summaries, err := NewDirectory(store, store).ListRoomSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, newer.ID, summaries[0].ID)
	assert.Equal(t, 0, summaries[0].MemberCount)
	assert.Equal(t, older.ID, summaries[1].ID)
	assert.Equal(t, 2, summaries[1].MemberCount)
}

func TestListRoomSummariesSurfacesCountFailure(t *testing.T) {
	store := newMemStore(nil)
	ctx := context.Background()
	_, _ = store.CreateRoom(ctx, models.NewRoom{Name: "General", CreatedBy: alice.ID})
	store.listMembersErr = errors.New("connection reset")

	_, err := NewDirectory(store, store).ListRoomSummaries(ctx)
	assert.ErrorContains(t, err, "connection reset")
}

func TestListRoomsForUser(t *testing.T) {
	store := newMemStore(nil)
	ctx := context.Background()
	a, _ := store.CreateRoom(ctx, models.NewRoom{Name: "a", CreatedBy: alice.ID})
	_, _ = store.CreateRoom(ctx, models.NewRoom{Name: "b", CreatedBy: alice.ID})
	c, _ := store.CreateRoom(ctx, models.NewRoom{Name: "c", CreatedBy: alice.ID})
	_, _ = store.AddMember(ctx, a.ID, bob.ID)
	_, _ = store.AddMember(ctx, c.ID, bob.ID)

	rooms, err := NewDirectory(store, store).ListRoomsForUser(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, c.ID, rooms[0].ID)
	assert.Equal(t, a.ID, rooms[1].ID)
}

func TestOpenRoomSequentialJoinIsIdempotent(t *testing.T) {
	store := newMemStore(nil)
	ctx := context.Background()
	room, _ := store.CreateRoom(ctx, models.NewRoom{Name: "General", CreatedBy: alice.ID})
	joiner := NewJoiner(store, store, false)

	first, err := joiner.OpenRoom(ctx, room.ID, bob)
	require.NoError(t, err)
	assert.True(t, first.Joined)
	assert.Equal(t, 1, first.MemberCount)

	second, err := joiner.OpenRoom(ctx, room.ID, bob)
	require.NoError(t, err)
	assert.False(t, second.Joined)
	assert.Equal(t, 1, second.MemberCount)

	members, _ := store.ListMembers(ctx, room.ID)
	assert.Len(t, members, 1)
}

// Two opens that both pass the membership check before either inserts produce two
// membership rows. This is the current behaviour of the join flow.
func TestOpenRoomConcurrentJoinCanDuplicate(t *testing.T) {
	store := newMemStore(nil)
	ctx := context.Background()
	room, _ := store.CreateRoom(ctx, models.NewRoom{Name: "General", CreatedBy: alice.ID})

	var barrier sync.WaitGroup
	barrier.Add(2)
	store.afterMembershipCheck = func() {
		barrier.Done()
		barrier.Wait()
	}

	joiner := NewJoiner(store, store, false)
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = joiner.OpenRoom(ctx, room.ID, bob)
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	members, _ := store.ListMembers(ctx, room.ID)
	assert.Len(t, members, 2)
}

func TestOpenRoomNotFoundFetchesNothingElse(t *testing.T) {
	store := newMemStore(nil)

	_, err := NewJoiner(store, store, false).OpenRoom(context.Background(), "missing", bob)
	assert.ErrorIs(t, err, repositories.ErrRoomNotFound)
	assert.Equal(t, 1, store.storeCalls())
}

func TestMembershipLookupFailure(t *testing.T) {
	store := newMemStore(nil)
	ctx := context.Background()
	room, _ := store.CreateRoom(ctx, models.NewRoom{Name: "General", CreatedBy: alice.ID})
	_, _ = store.AddMember(ctx, room.ID, bob.ID)
	store.membershipErr = errors.New("timeout")

	joiner := NewJoiner(store, store, false)
	member, err := joiner.CheckMembership(ctx, room.ID, bob.ID)
	assert.False(t, member)
	assert.ErrorContains(t, err, "timeout")
	assert.False(t, joiner.IsMember(ctx, room.ID, bob.ID))

	// default flow reads the failure as "not a member" and inserts again
	view, err := joiner.OpenRoom(ctx, room.ID, bob)
	require.NoError(t, err)
	assert.True(t, view.Joined)
	assert.Equal(t, 2, view.MemberCount)

	_, err = NewJoiner(store, store, true).OpenRoom(ctx, room.ID, bob)
	assert.ErrorContains(t, err, "check membership")
}

func TestCheckMembershipNoRowIsNotAnError(t *testing.T) {
	store := newMemStore(nil)
	ctx := context.Background()
	room, _ := store.CreateRoom(ctx, models.NewRoom{Name: "General", CreatedBy: alice.ID})

	member, err := NewJoiner(store, store, true).CheckMembership(ctx, room.ID, bob.ID)
	assert.NoError(t, err)
	assert.False(t, member)
}

func TestLeaveRemovesDuplicates(t *testing.T) {
	store := newMemStore(nil)
	ctx := context.Background()
	room, _ := store.CreateRoom(ctx, models.NewRoom{Name: "General", CreatedBy: alice.ID})
	_, _ = store.AddMember(ctx, room.ID, bob.ID)
	_, _ = store.AddMember(ctx, room.ID, bob.ID)
	_, _ = store.AddMember(ctx, room.ID, alice.ID)

	joiner := NewJoiner(store, store, false)
	require.NoError(t, joiner.Leave(ctx, room.ID, bob.ID))

	members, _ := store.ListMembers(ctx, room.ID)
	require.Len(t, members, 1)
	assert.Equal(t, alice.ID, members[0].UserID)

	assert.ErrorIs(t, joiner.Leave(ctx, "missing", bob.ID), repositories.ErrRoomNotFound)
}

func TestCreateRoomRejectsBlankNameWithoutStoreCall(t *testing.T) {
	store := newMemStore(nil)

	_, err := NewCreator(store).CreateRoom(context.Background(), alice, "   ", "desc")
	assert.ErrorIs(t, err, ErrEmptyRoomName)
	assert.Equal(t, 0, store.storeCalls())
}

func TestCreateRoom(t *testing.T) {
	store := newMemStore(nil)

	room, err := NewCreator(store).CreateRoom(context.Background(), alice, " General ", "")
	require.NoError(t, err)
	assert.Equal(t, "General", room.Name)
	assert.Nil(t, room.Description)
	assert.Equal(t, alice.ID, room.CreatedBy)
	assert.NotEmpty(t, room.ID)
}

func TestSendValidation(t *testing.T) {
	store := newMemStore(nil)
	ctx := context.Background()
	sender := NewSender(store, store)

	_, err := sender.Send(ctx, "missing", bob, " \n ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Equal(t, 0, store.storeCalls())

	_, err = sender.Send(ctx, "missing", bob, "hi")
	assert.ErrorIs(t, err, repositories.ErrRoomNotFound)
}

func TestSendSnapshotsSenderName(t *testing.T) {
	store := newMemStore(nil)
	ctx := context.Background()
	room, _ := store.CreateRoom(ctx, models.NewRoom{Name: "General", CreatedBy: alice.ID})
	sender := NewSender(store, store)

	msg, err := sender.Send(ctx, room.ID, bob, "hi")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", msg.UserName)
	assert.Nil(t, msg.UserAvatar)

	msg, err = sender.Send(ctx, room.ID, models.Principal{ID: "u-anon", AvatarURL: "https://a/x.png"}, "yo")
	require.NoError(t, err)
	assert.Equal(t, "Anonymous", msg.UserName)
	require.NotNil(t, msg.UserAvatar)
	assert.Equal(t, "https://a/x.png", *msg.UserAvatar)
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		var zero T
		return zero
	}
}

func assertQuiet[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected delivery: %v", v)
	case <-time.After(100 * time.Millisecond):
	}
}
