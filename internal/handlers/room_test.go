package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"roomchat/internal/chat"
	"roomchat/internal/identity"
	"roomchat/internal/middleware"
	"roomchat/internal/mocks"
	"roomchat/internal/models"
	"roomchat/internal/repositories"
)

var testPrincipal = models.Principal{ID: "u-alice", DisplayName: "Alice"}

func asPrincipal(c *gin.Context) {
	middleware.SetPrincipal(c, testPrincipal)
	c.Next()
}

func setupRoomRouter(roomRepo *mocks.RoomRepositoryMock, memberRepo *mocks.MemberRepositoryMock, auth gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewRoomHandler(
		chat.NewDirectory(roomRepo, memberRepo),
		chat.NewJoiner(roomRepo, memberRepo, false),
		chat.NewCreator(roomRepo),
		nil,
	)

	r := gin.New()
	r.GET("/rooms", auth, handler.ListRooms)
	r.POST("/rooms", auth, handler.CreateRoom)
	r.GET("/rooms/:room_id", auth, handler.OpenRoom)
	r.GET("/rooms/:room_id/members", auth, handler.ListMembers)
	r.DELETE("/rooms/:room_id/members/me", auth, handler.LeaveRoom)
	r.GET("/me/rooms", auth, handler.ListMyRooms)
	return r
}

func TestListRoomsSuccess(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	memberRepo := new(mocks.MemberRepositoryMock)
	router := setupRoomRouter(roomRepo, memberRepo, asPrincipal)

	roomRepo.On("ListRooms", mock.Anything).Return([]models.Room{{ID: "r2", Name: "new"}, {ID: "r1", Name: "old"}}, nil).Once()
	memberRepo.On("ListMembers", mock.Anything, "r2").Return([]models.RoomMember{}, nil).Once()
	memberRepo.On("ListMembers", mock.Anything, "r1").Return([]models.RoomMember{{ID: "m1"}, {ID: "m2"}}, nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Rooms []models.RoomSummary `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Rooms, 2)
	assert.Equal(t, "r2", resp.Rooms[0].ID)
	assert.Equal(t, 0, resp.Rooms[0].MemberCount)
	assert.Equal(t, 2, resp.Rooms[1].MemberCount)

	roomRepo.AssertExpectations(t)
	memberRepo.AssertExpectations(t)
}

func TestListRoomsCountError(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	memberRepo := new(mocks.MemberRepositoryMock)
	router := setupRoomRouter(roomRepo, memberRepo, asPrincipal)

	roomRepo.On("ListRooms", mock.Anything).Return([]models.Room{{ID: "r1"}}, nil).Once()
	memberRepo.On("ListMembers", mock.Anything, "r1").Return(([]models.RoomMember)(nil), assert.AnError).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	memberRepo.AssertExpectations(t)
}

func TestCreateRoomSuccess(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	router := setupRoomRouter(roomRepo, new(mocks.MemberRepositoryMock), asPrincipal)

	roomRepo.On("CreateRoom", mock.Anything, models.NewRoom{Name: "General", CreatedBy: "u-alice"}).
		Return(models.Room{ID: "r1", Name: "General", CreatedBy: "u-alice", CreatedAt: time.Now()}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms", bytes.NewBufferString(`{"name":" General "}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/rooms/r1", rec.Header().Get("Location"))
	roomRepo.AssertExpectations(t)
}

func TestCreateRoomBlankNameSkipsStore(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	router := setupRoomRouter(roomRepo, new(mocks.MemberRepositoryMock), asPrincipal)

	req := httptest.NewRequest(http.MethodPost, "/rooms", bytes.NewBufferString(`{"name":"  "}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, roomRepo.Calls)
}

func TestCreateRoomStoreError(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	router := setupRoomRouter(roomRepo, new(mocks.MemberRepositoryMock), asPrincipal)

	roomRepo.On("CreateRoom", mock.Anything, mock.Anything).Return(models.Room{}, assert.AnError).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms", bytes.NewBufferString(`{"name":"General"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	roomRepo.AssertExpectations(t)
}

func TestOpenRoomJoinsNewMember(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	memberRepo := new(mocks.MemberRepositoryMock)
	router := setupRoomRouter(roomRepo, memberRepo, asPrincipal)

	member := models.RoomMember{ID: "m1", RoomID: "r1", UserID: "u-alice"}
	roomRepo.On("GetRoom", mock.Anything, "r1").Return(models.Room{ID: "r1", Name: "General"}, nil).Once()
	memberRepo.On("ListMembers", mock.Anything, "r1").Return([]models.RoomMember{}, nil).Once()
	memberRepo.On("GetMembership", mock.Anything, "r1", "u-alice").Return(nil, repositories.ErrMembershipNotFound).Once()
	memberRepo.On("AddMember", mock.Anything, "r1", "u-alice").Return(member, nil).Once()
	memberRepo.On("ListMembers", mock.Anything, "r1").Return([]models.RoomMember{member}, nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/r1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var view chat.RoomView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.True(t, view.Joined)
	assert.Equal(t, 1, view.MemberCount)
	roomRepo.AssertExpectations(t)
	memberRepo.AssertExpectations(t)
}

func TestOpenRoomExistingMember(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	memberRepo := new(mocks.MemberRepositoryMock)
	router := setupRoomRouter(roomRepo, memberRepo, asPrincipal)

	member := models.RoomMember{ID: "m1", RoomID: "r1", UserID: "u-alice"}
	roomRepo.On("GetRoom", mock.Anything, "r1").Return(models.Room{ID: "r1"}, nil).Once()
	memberRepo.On("ListMembers", mock.Anything, "r1").Return([]models.RoomMember{member}, nil).Once()
	memberRepo.On("GetMembership", mock.Anything, "r1", "u-alice").Return(member, nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/r1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	memberRepo.AssertNotCalled(t, "AddMember", mock.Anything, mock.Anything, mock.Anything)
	memberRepo.AssertExpectations(t)
}

func TestOpenRoomNotFound(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	memberRepo := new(mocks.MemberRepositoryMock)
	router := setupRoomRouter(roomRepo, memberRepo, asPrincipal)

	roomRepo.On("GetRoom", mock.Anything, "nope").Return(nil, repositories.ErrRoomNotFound).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/nope", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "/rooms", body["back"])
	assert.Empty(t, memberRepo.Calls)
}

func TestOpenRoomUnauthenticatedFetchesNothing(t *testing.T) {
	hash, err := identity.HashPassword("pw", bcrypt.MinCost)
	require.NoError(t, err)
	provider := identity.NewProvider(
		identity.NewStaticAccounts([]identity.Account{{ID: "u-alice", Email: "a@x.io", PasswordHash: hash}}),
		identity.NewTokenIssuer("secret", time.Hour), nil, nil,
	)

	roomRepo := new(mocks.RoomRepositoryMock)
	memberRepo := new(mocks.MemberRepositoryMock)
	router := setupRoomRouter(roomRepo, memberRepo, middleware.AuthMiddleware(chat.NewGate(provider)))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/r1", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "/login", body["redirect"])
	assert.Empty(t, roomRepo.Calls)
	assert.Empty(t, memberRepo.Calls)
}

func TestListMembers(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	memberRepo := new(mocks.MemberRepositoryMock)
	router := setupRoomRouter(roomRepo, memberRepo, asPrincipal)

	roomRepo.On("GetRoom", mock.Anything, "r1").Return(models.Room{ID: "r1"}, nil).Once()
	memberRepo.On("ListMembers", mock.Anything, "r1").Return([]models.RoomMember{{ID: "m1"}, {ID: "m2"}}, nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/r1/members", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.EqualValues(t, 2, resp["member_count"])
}

func TestLeaveRoom(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	memberRepo := new(mocks.MemberRepositoryMock)
	router := setupRoomRouter(roomRepo, memberRepo, asPrincipal)

	roomRepo.On("GetRoom", mock.Anything, "r1").Return(models.Room{ID: "r1"}, nil).Once()
	memberRepo.On("RemoveMember", mock.Anything, "r1", "u-alice").Return(nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/rooms/r1/members/me", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	memberRepo.AssertExpectations(t)
}

func TestListMyRooms(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	router := setupRoomRouter(roomRepo, new(mocks.MemberRepositoryMock), asPrincipal)

	roomRepo.On("ListRoomsForUser", mock.Anything, "u-alice").Return([]models.Room{{ID: "r1"}}, nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me/rooms", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	roomRepo.AssertExpectations(t)
}
