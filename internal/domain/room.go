package domain

import (
	"strings"
	"time"
)

const (
	RoomCodeLen      = 6
	RoomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type (
	RoomID   int64
	RoomCode string
)

// NormalizeRoomCode is applied at every edge before a lookup; the directory
// itself matches codes exactly.
func NormalizeRoomCode(s string) RoomCode {
	return RoomCode(strings.ToUpper(strings.TrimSpace(s)))
}

// Valid reports whether the code has the generated shape.
func (c RoomCode) Valid() bool {
	if len(c) != RoomCodeLen {
		return false
	}
	for i := 0; i < len(c); i++ {
		if strings.IndexByte(RoomCodeAlphabet, c[i]) < 0 {
			return false
		}
	}
	return true
}

// Room is one pending or in-progress 1:1 call.
// GuestID is zero while the room is open.
type Room struct {
	ID        RoomID    `json:"id"`
	Code      RoomCode  `json:"roomCode"`
	CreatorID MemberID  `json:"creatorId"`
	GuestID   MemberID  `json:"guestId,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r *Room) IsFull() bool { return r.GuestID != 0 }

// HasParticipant reports whether id is the creator or the guest.
func (r *Room) HasParticipant(id MemberID) bool {
	return id != 0 && (r.CreatorID == id || r.GuestID == id)
}
