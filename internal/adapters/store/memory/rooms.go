// Package memory is the in-process keyed store. Entries are immutable
// snapshots swapped atomically per key, so lookups never block mutations of
// unrelated rooms.
package memory

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/go4org/hashtriemap"

	"github.com/dkeye/Call/internal/core"
	"github.com/dkeye/Call/internal/domain"
)

type RoomStore struct {
	seq   atomic.Int64
	rooms hashtriemap.HashTrieMap[domain.RoomCode, *domain.Room]
}

func NewRoomStore() *RoomStore {
	return &RoomStore{}
}

var _ core.RoomStore = (*RoomStore)(nil)

func (s *RoomStore) Insert(_ context.Context, room *domain.Room) (domain.RoomID, error) {
	rec := *room
	rec.ID = domain.RoomID(s.seq.Add(1))
	if _, loaded := s.rooms.LoadOrStore(rec.Code, &rec); loaded {
		return 0, core.ErrCodeTaken
	}
	room.ID = rec.ID
	return rec.ID, nil
}

func (s *RoomStore) Get(_ context.Context, code domain.RoomCode) (*domain.Room, error) {
	rec, ok := s.rooms.Load(code)
	if !ok {
		return nil, core.ErrRoomNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *RoomStore) Update(ctx context.Context, code domain.RoomCode, fn func(*domain.Room) error) (*domain.Room, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		old, ok := s.rooms.Load(code)
		if !ok {
			return nil, core.ErrRoomNotFound
		}
		next := *old
		if err := fn(&next); err != nil {
			return nil, err
		}
		// The code is the key; a mutation must not move the entry.
		next.Code = old.Code
		next.ID = old.ID
		if s.rooms.CompareAndSwap(code, old, &next) {
			cp := next
			return &cp, nil
		}
	}
}

func (s *RoomStore) Delete(_ context.Context, code domain.RoomCode) (*domain.Room, error) {
	rec, ok := s.rooms.LoadAndDelete(code)
	if !ok {
		return nil, core.ErrRoomNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *RoomStore) List(_ context.Context) ([]domain.Room, error) {
	out := make([]domain.Room, 0)
	s.rooms.Range(func(_ domain.RoomCode, rec *domain.Room) bool {
		out = append(out, *rec)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
