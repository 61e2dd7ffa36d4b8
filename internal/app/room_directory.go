package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Call/internal/core"
	"github.com/dkeye/Call/internal/domain"
)

const DefaultCodeAttempts = 5

// MemberResolver is the part of the identity directory rooms depend on.
type MemberResolver interface {
	Get(ctx context.Context, id domain.MemberID) (*domain.Member, error)
}

// RoomInfo is the administrative view of a room.
type RoomInfo struct {
	ID          domain.RoomID   `json:"id"`
	Code        domain.RoomCode `json:"roomCode"`
	CreatorName string          `json:"creatorName"`
	GuestName   string          `json:"guestName"`
	Active      bool            `json:"active"`
}

// RoomDirectory is the only owner of room lifetime. Every call goes to the
// store, there is no cache, so reads always observe prior writes.
type RoomDirectory struct {
	rooms    core.RoomStore
	members  MemberResolver
	newCode  CodeGenerator
	attempts int
	now      func() time.Time

	mu        sync.RWMutex
	onRemoved []func(domain.RoomCode)
}

type DirectoryOption func(*RoomDirectory)

func WithCodeGenerator(gen CodeGenerator) DirectoryOption {
	return func(d *RoomDirectory) { d.newCode = gen }
}

// WithCodeAttempts bounds how many codes are drawn when the store reports a
// collision.
func WithCodeAttempts(n int) DirectoryOption {
	return func(d *RoomDirectory) {
		if n > 0 {
			d.attempts = n
		}
	}
}

func NewRoomDirectory(rooms core.RoomStore, members MemberResolver, opts ...DirectoryOption) *RoomDirectory {
	d := &RoomDirectory{
		rooms:    rooms,
		members:  members,
		newCode:  NewRoomCode,
		attempts: DefaultCodeAttempts,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnRemoved registers fn to run after a room has been removed.
func (d *RoomDirectory) OnRemoved(fn func(domain.RoomCode)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onRemoved = append(d.onRemoved, fn)
}

// CreatePaired opens a room with both participants known up front.
func (d *RoomDirectory) CreatePaired(ctx context.Context, creatorID, guestID domain.MemberID) (*domain.Room, error) {
	if _, err := d.members.Get(ctx, creatorID); err != nil {
		return nil, fmt.Errorf("creator %d: %w", creatorID, err)
	}
	if _, err := d.members.Get(ctx, guestID); err != nil {
		return nil, fmt.Errorf("guest %d: %w", guestID, err)
	}
	return d.create(ctx, creatorID, guestID)
}

// CreateOpen opens a room with only its creator; AddGuest fills it later.
func (d *RoomDirectory) CreateOpen(ctx context.Context, creatorID domain.MemberID) (*domain.Room, error) {
	if _, err := d.members.Get(ctx, creatorID); err != nil {
		return nil, fmt.Errorf("creator %d: %w", creatorID, err)
	}
	return d.create(ctx, creatorID, 0)
}

func (d *RoomDirectory) create(ctx context.Context, creatorID, guestID domain.MemberID) (*domain.Room, error) {
	var lastErr error
	for i := 0; i < d.attempts; i++ {
		code, err := d.newCode()
		if err != nil {
			return nil, fmt.Errorf("generate room code: %w", err)
		}
		room := &domain.Room{
			Code:      code,
			CreatorID: creatorID,
			GuestID:   guestID,
			Active:    true,
			CreatedAt: d.now().UTC(),
		}
		_, err = d.rooms.Insert(ctx, room)
		if errors.Is(err, core.ErrCodeTaken) {
			log.Warn().Str("module", "app.rooms").Str("code", string(code)).Int("attempt", i+1).Msg("room code collision")
			lastErr = err
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create room: %w", err)
		}
		log.Info().Str("module", "app.rooms").Str("code", string(room.Code)).Int64("id", int64(room.ID)).
			Int64("creator", int64(creatorID)).Int64("guest", int64(guestID)).Msg("room created")
		return room, nil
	}
	return nil, fmt.Errorf("create room after %d attempts: %w", d.attempts, lastErr)
}

// FindByCode matches the code exactly; callers normalize first. A code that
// could never have been generated is not found without asking the store.
func (d *RoomDirectory) FindByCode(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	if !code.Valid() {
		return nil, core.ErrRoomNotFound
	}
	return d.rooms.Get(ctx, code)
}

// AddGuest fills an open room. The full and inactive checks run inside the
// store's atomic update, so of two racing joins exactly one wins.
func (d *RoomDirectory) AddGuest(ctx context.Context, code domain.RoomCode, memberID domain.MemberID) (domain.RoomID, error) {
	if !code.Valid() {
		return 0, core.ErrRoomNotFound
	}
	room, err := d.rooms.Update(ctx, code, func(r *domain.Room) error {
		if r.IsFull() {
			return core.ErrRoomFull
		}
		if !r.Active {
			return core.ErrRoomInactive
		}
		if _, err := d.members.Get(ctx, memberID); err != nil {
			return fmt.Errorf("guest %d: %w", memberID, err)
		}
		r.GuestID = memberID
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.Info().Str("module", "app.rooms").Str("code", string(code)).Int64("guest", int64(memberID)).Msg("guest joined")
	return room.ID, nil
}

// Remove destroys the room. A second call on the same code fails with
// ErrRoomNotFound; callers tearing down idempotently treat that as done.
func (d *RoomDirectory) Remove(ctx context.Context, code domain.RoomCode) (domain.RoomID, error) {
	if !code.Valid() {
		return 0, core.ErrRoomNotFound
	}
	room, err := d.rooms.Delete(ctx, code)
	if err != nil {
		return 0, err
	}
	log.Info().Str("module", "app.rooms").Str("code", string(code)).Int64("id", int64(room.ID)).Msg("room removed")

	d.mu.RLock()
	hooks := d.onRemoved
	d.mu.RUnlock()
	for _, fn := range hooks {
		fn(code)
	}
	return room.ID, nil
}

func (d *RoomDirectory) List(ctx context.Context) ([]domain.Room, error) {
	return d.rooms.List(ctx)
}

// Info resolves participant names for the administrative surface.
func (d *RoomDirectory) Info(ctx context.Context, code domain.RoomCode) (*RoomInfo, error) {
	room, err := d.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	info := &RoomInfo{ID: room.ID, Code: room.Code, Active: room.Active}
	creator, err := d.members.Get(ctx, room.CreatorID)
	if err != nil {
		return nil, fmt.Errorf("creator %d: %w", room.CreatorID, err)
	}
	info.CreatorName = creator.Name
	if room.IsFull() {
		guest, err := d.members.Get(ctx, room.GuestID)
		if err != nil {
			return nil, fmt.Errorf("guest %d: %w", room.GuestID, err)
		}
		info.GuestName = guest.Name
	}
	return info, nil
}
