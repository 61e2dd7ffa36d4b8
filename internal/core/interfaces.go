package core

import (
	"context"

	"github.com/dkeye/Call/internal/domain"
)

// RoomStore is a keyed store over room codes with per-key atomic mutation.
// Implementations hand out copies; callers never share a *domain.Room with the store.
type RoomStore interface {
	// Insert is create-if-absent on room.Code. It assigns room.ID and
	// returns ErrCodeTaken without touching the existing entry.
	Insert(ctx context.Context, room *domain.Room) (domain.RoomID, error)
	// Get returns ErrRoomNotFound for an unknown code.
	Get(ctx context.Context, code domain.RoomCode) (*domain.Room, error)
	// Update runs fn on a copy and commits it atomically. An error from fn
	// aborts the write and is returned as is.
	Update(ctx context.Context, code domain.RoomCode, fn func(*domain.Room) error) (*domain.Room, error)
	// Delete is remove-if-present: among concurrent callers exactly one
	// receives the removed room, the others ErrRoomNotFound.
	Delete(ctx context.Context, code domain.RoomCode) (*domain.Room, error)
	List(ctx context.Context) ([]domain.Room, error)
}

// MemberStore holds registered participants.
type MemberStore interface {
	Insert(ctx context.Context, m *domain.Member) (domain.MemberID, error)
	Get(ctx context.Context, id domain.MemberID) (*domain.Member, error)
}
