package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roomchat/internal/chat"
	"roomchat/internal/telemetry"
)

// RoomHandler manages room discovery, creation and membership endpoints.
type RoomHandler struct {
	directory *chat.Directory
	joiner    *chat.Joiner
	creator   *chat.Creator
	audit     *telemetry.AuditEmitter
}

// NewRoomHandler constructs a RoomHandler.
func NewRoomHandler(directory *chat.Directory, joiner *chat.Joiner, creator *chat.Creator, audit *telemetry.AuditEmitter) *RoomHandler {
	return &RoomHandler{directory: directory, joiner: joiner, creator: creator, audit: audit}
}

// ListRooms handles GET /rooms.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	summaries, err := h.directory.ListRoomSummaries(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to load rooms")
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": summaries})
}

// CreateRoom handles POST /rooms and points the caller at the new room.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.creator.CreateRoom(c.Request.Context(), principal, req.Name, req.Description)
	if err != nil {
		emitAudit(c, h.audit, "ERROR", telemetry.ActionRequestFailed, "", "create room: "+err.Error())
		respondError(c, err, "could not create room")
		return
	}

	emitAudit(c, h.audit, "INFO", telemetry.ActionRoomCreated, room.ID, "room created")
	c.Header("Location", RoomListPath+"/"+room.ID)
	c.JSON(http.StatusCreated, gin.H{"room": room})
}

// OpenRoom handles GET /rooms/:room_id, joining the caller if needed.
func (h *RoomHandler) OpenRoom(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	view, err := h.joiner.OpenRoom(c.Request.Context(), c.Param("room_id"), principal)
	if err != nil {
		respondError(c, err, "failed to open room")
		return
	}

	if view.Joined {
		emitAudit(c, h.audit, "INFO", telemetry.ActionRoomJoined, view.Room.ID, "joined room")
	}
	c.JSON(http.StatusOK, view)
}

// ListMembers handles GET /rooms/:room_id/members.
func (h *RoomHandler) ListMembers(c *gin.Context) {
	members, err := h.directory.ListMembers(c.Request.Context(), c.Param("room_id"))
	if err != nil {
		respondError(c, err, "failed to load members")
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members, "member_count": len(members)})
}

// LeaveRoom handles DELETE /rooms/:room_id/members/me.
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	roomID := c.Param("room_id")
	if err := h.joiner.Leave(c.Request.Context(), roomID, principal.ID); err != nil {
		respondError(c, err, "could not leave room")
		return
	}

	emitAudit(c, h.audit, "INFO", telemetry.ActionRoomLeft, roomID, "left room")
	c.Status(http.StatusNoContent)
}

// ListMyRooms handles GET /me/rooms.
func (h *RoomHandler) ListMyRooms(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	rooms, err := h.directory.ListRoomsForUser(c.Request.Context(), principal.ID)
	if err != nil {
		respondError(c, err, "failed to load rooms")
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}
