package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"roomchat/internal/chat"
	"roomchat/internal/middleware"
	"roomchat/internal/models"
	"roomchat/internal/repositories"
)

// RoomListPath is the way back offered with not-found errors.
const RoomListPath = "/rooms"

func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, repositories.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found", "back": RoomListPath})
	case errors.Is(err, chat.ErrEmptyRoomName), errors.Is(err, chat.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("%s: %v", fallback, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func currentPrincipal(c *gin.Context) (models.Principal, bool) {
	principal, ok := middleware.Principal(c)
	if !ok {
		middleware.Unauthorized(c, "missing authorization")
	}
	return principal, ok
}
