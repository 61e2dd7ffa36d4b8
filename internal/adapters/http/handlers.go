package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Call/internal/app"
	"github.com/dkeye/Call/internal/core"
	"github.com/dkeye/Call/internal/domain"
)

type RegisterRequest struct {
	Name string `json:"name"`
}

type RegisterResponse struct {
	ID    domain.MemberID `json:"id"`
	Name  string          `json:"name"`
	Token string          `json:"token"`
}

type CreateRoomRequest struct {
	CreatorID domain.MemberID `json:"creatorId"`
	GuestID   domain.MemberID `json:"guestId,omitempty"`
}

type CreateRoomResponse struct {
	RoomCode domain.RoomCode `json:"roomCode"`
	ID       domain.RoomID   `json:"id"`
}

type AddGuestRequest struct {
	MemberID domain.MemberID `json:"memberId"`
}

type DeleteRoomResponse struct {
	Success       bool          `json:"success"`
	Message       string        `json:"message"`
	DeletedRoomID domain.RoomID `json:"deletedRoomId,omitempty"`
}

type Handlers struct {
	Members    *app.MemberDirectory
	Rooms      *app.RoomDirectory
	Tokens     *TokenIssuer
	ICEServers []webrtc.ICEServer
	// Sessions reports live fabric connections for /healthz.
	Sessions func() int
}

func (h *Handlers) registerMember(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "missing or invalid name")
		return
	}
	m, err := h.Members.Register(c.Request.Context(), req.Name)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	token, err := h.Tokens.Issue(m.ID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	rememberMember(c, m.ID)
	c.JSON(http.StatusOK, RegisterResponse{ID: m.ID, Name: m.Name, Token: token})
}

func (h *Handlers) createRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CreatorID <= 0 || req.GuestID < 0 {
		ErrorResponse(c, http.StatusBadRequest, "creatorId required")
		return
	}
	var (
		room *domain.Room
		err  error
	)
	if req.GuestID > 0 {
		room, err = h.Rooms.CreatePaired(c.Request.Context(), req.CreatorID, req.GuestID)
	} else {
		room, err = h.Rooms.CreateOpen(c.Request.Context(), req.CreatorID)
	}
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, CreateRoomResponse{RoomCode: room.Code, ID: room.ID})
}

func (h *Handlers) addGuest(c *gin.Context) {
	var req AddGuestRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.MemberID <= 0 {
		ErrorResponse(c, http.StatusBadRequest, "memberId required")
		return
	}
	id, err := h.Rooms.AddGuest(c.Request.Context(), roomCode(c), req.MemberID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *Handlers) getRoom(c *gin.Context) {
	info, err := h.Rooms.Info(c.Request.Context(), roomCode(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handlers) deleteRoom(c *gin.Context) {
	code := roomCode(c)
	id, err := h.Rooms.Remove(c.Request.Context(), code)
	switch {
	case err == nil:
		log.Info().Str("module", "adapters.http").Str("room", string(code)).Msg("room deleted by admin")
		c.JSON(http.StatusOK, DeleteRoomResponse{
			Success:       true,
			Message:       "Room deleted successfully",
			DeletedRoomID: id,
		})
	case errors.Is(err, core.ErrNotFound):
		c.JSON(http.StatusNotFound, DeleteRoomResponse{
			Message: fmt.Sprintf("Room with code %s not found", code),
		})
	default:
		HandleServiceError(c, err)
	}
}

func (h *Handlers) listRooms(c *gin.Context) {
	rooms, err := h.Rooms.List(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *Handlers) iceServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.ICEServers})
}

func (h *Handlers) healthz(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.Sessions != nil {
		resp["sessions"] = h.Sessions()
	}
	c.JSON(http.StatusOK, resp)
}

func roomCode(c *gin.Context) domain.RoomCode {
	return domain.NormalizeRoomCode(c.Param("code"))
}
