package app

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Call/internal/adapters/store/memory"
	"github.com/dkeye/Call/internal/core"
	"github.com/dkeye/Call/internal/domain"
)

var codeShape = regexp.MustCompile(`^[A-Z0-9]{6}$`)

type fixture struct {
	members *MemberDirectory
	rooms   *RoomDirectory
	alice   *domain.Member
	bob     *domain.Member
	carol   *domain.Member
}

func newFixture(t *testing.T, opts ...DirectoryOption) *fixture {
	t.Helper()
	ctx := context.Background()
	members := NewMemberDirectory(memory.NewMemberStore())
	f := &fixture{
		members: members,
		rooms:   NewRoomDirectory(memory.NewRoomStore(), members, opts...),
	}
	var err error
	f.alice, err = members.Register(ctx, "alice")
	require.NoError(t, err)
	f.bob, err = members.Register(ctx, "bob")
	require.NoError(t, err)
	f.carol, err = members.Register(ctx, "carol")
	require.NoError(t, err)
	return f
}

func fixedCodes(codes ...domain.RoomCode) CodeGenerator {
	var mu sync.Mutex
	return func() (domain.RoomCode, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[0]
		if len(codes) > 1 {
			codes = codes[1:]
		}
		return c, nil
	}
}

func TestCreatePaired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	room, err := f.rooms.CreatePaired(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	assert.Regexp(t, codeShape, string(room.Code))
	assert.NotZero(t, room.ID)

	found, err := f.rooms.FindByCode(ctx, room.Code)
	require.NoError(t, err)
	assert.True(t, found.IsFull())
	assert.True(t, found.Active)
	assert.Equal(t, f.alice.ID, found.CreatorID)
	assert.Equal(t, f.bob.ID, found.GuestID)
}

func TestCreatePairedUnknownMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.rooms.CreatePaired(ctx, f.alice.ID, 404)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = f.rooms.CreatePaired(ctx, 404, f.alice.ID)
	assert.ErrorIs(t, err, core.ErrMemberNotFound)
	_, err = f.rooms.CreateOpen(ctx, 404)
	assert.ErrorIs(t, err, core.ErrMemberNotFound)

	rooms, err := f.rooms.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestCreateOpenThenAddGuest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	room, err := f.rooms.CreateOpen(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.False(t, room.IsFull())

	id, err := f.rooms.AddGuest(ctx, room.Code, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, id)

	found, err := f.rooms.FindByCode(ctx, room.Code)
	require.NoError(t, err)
	assert.True(t, found.IsFull())

	_, err = f.rooms.AddGuest(ctx, room.Code, f.carol.ID)
	assert.ErrorIs(t, err, core.ErrRoomFull)
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestAddGuestFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.rooms.AddGuest(ctx, "ZZ99ZZ", f.bob.ID)
	assert.ErrorIs(t, err, core.ErrRoomNotFound)

	room, err := f.rooms.CreateOpen(ctx, f.alice.ID)
	require.NoError(t, err)
	_, err = f.rooms.AddGuest(ctx, room.Code, 404)
	assert.ErrorIs(t, err, core.ErrMemberNotFound)

	found, err := f.rooms.FindByCode(ctx, room.Code)
	require.NoError(t, err)
	assert.False(t, found.IsFull())
}

func TestAddGuestInactiveRoom(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRoomStore()
	members := NewMemberDirectory(memory.NewMemberStore())
	alice, _ := members.Register(ctx, "alice")
	bob, _ := members.Register(ctx, "bob")
	_, err := store.Insert(ctx, &domain.Room{Code: "AB12CD", CreatorID: alice.ID, Active: false})
	require.NoError(t, err)

	rooms := NewRoomDirectory(store, members)
	_, err = rooms.AddGuest(ctx, "AB12CD", bob.ID)
	assert.ErrorIs(t, err, core.ErrRoomInactive)
}

func TestConcurrentAddGuestOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	room, err := f.rooms.CreateOpen(ctx, f.alice.ID)
	require.NoError(t, err)

	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for _, guest := range []domain.MemberID{f.bob.ID, f.carol.ID} {
		wg.Add(1)
		go func(id domain.MemberID) {
			defer wg.Done()
			_, err := f.rooms.AddGuest(ctx, room.Code, id)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, core.ErrConflict):
				conflicts.Add(1)
			}
		}(guest)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(1), conflicts.Load())
}

func TestRemoveSucceedsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	room, err := f.rooms.CreatePaired(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)

	var removed []domain.RoomCode
	f.rooms.OnRemoved(func(code domain.RoomCode) { removed = append(removed, code) })

	id, err := f.rooms.Remove(ctx, room.Code)
	require.NoError(t, err)
	assert.Equal(t, room.ID, id)

	_, err = f.rooms.FindByCode(ctx, room.Code)
	assert.ErrorIs(t, err, core.ErrRoomNotFound)

	_, err = f.rooms.Remove(ctx, room.Code)
	assert.ErrorIs(t, err, core.ErrRoomNotFound)
	assert.Equal(t, []domain.RoomCode{room.Code}, removed)
}

func TestConcurrentRemoveOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	room, err := f.rooms.CreatePaired(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)

	var wins, misses atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.rooms.Remove(ctx, room.Code); err == nil {
				wins.Add(1)
			} else if errors.Is(err, core.ErrNotFound) {
				misses.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(1), misses.Load())
}

func TestCodeCollisionRetries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithCodeGenerator(fixedCodes("AAAAAA", "AAAAAA", "BBBBBB")))

	first, err := f.rooms.CreateOpen(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomCode("AAAAAA"), first.Code)

	second, err := f.rooms.CreateOpen(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomCode("BBBBBB"), second.Code)

	kept, err := f.rooms.FindByCode(ctx, "AAAAAA")
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, kept.CreatorID)
}

func TestCodeCollisionGivesUp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithCodeGenerator(fixedCodes("AAAAAA")), WithCodeAttempts(3))

	_, err := f.rooms.CreateOpen(ctx, f.alice.ID)
	require.NoError(t, err)
	_, err = f.rooms.CreateOpen(ctx, f.bob.ID)
	assert.ErrorIs(t, err, core.ErrCodeTaken)
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestInfo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	open, err := f.rooms.CreateOpen(ctx, f.alice.ID)
	require.NoError(t, err)
	info, err := f.rooms.Info(ctx, open.Code)
	require.NoError(t, err)
	assert.Equal(t, "alice", info.CreatorName)
	assert.Empty(t, info.GuestName)
	assert.True(t, info.Active)

	paired, err := f.rooms.CreatePaired(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	info, err = f.rooms.Info(ctx, paired.Code)
	require.NoError(t, err)
	assert.Equal(t, paired.ID, info.ID)
	assert.Equal(t, "bob", info.GuestName)

	_, err = f.rooms.Info(ctx, "ZZ99ZZ")
	assert.ErrorIs(t, err, core.ErrRoomNotFound)
}

func TestNewRoomCodeShape(t *testing.T) {
	seen := make(map[domain.RoomCode]struct{})
	for i := 0; i < 200; i++ {
		code, err := NewRoomCode()
		require.NoError(t, err)
		assert.Regexp(t, codeShape, string(code))
		assert.True(t, code.Valid())
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 190)
}

type countingStore struct {
	core.RoomStore
	calls atomic.Int32
}

func (s *countingStore) Get(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	s.calls.Add(1)
	return s.RoomStore.Get(ctx, code)
}

func (s *countingStore) Update(ctx context.Context, code domain.RoomCode, fn func(*domain.Room) error) (*domain.Room, error) {
	s.calls.Add(1)
	return s.RoomStore.Update(ctx, code, fn)
}

func (s *countingStore) Delete(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	s.calls.Add(1)
	return s.RoomStore.Delete(ctx, code)
}

func TestMalformedCodesNeverReachStore(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{RoomStore: memory.NewRoomStore()}
	members := NewMemberDirectory(memory.NewMemberStore())
	rooms := NewRoomDirectory(store, members)

	for _, code := range []domain.RoomCode{"", "ab12cd", "AB12C", "AB-2CD", "AB12CDE"} {
		_, err := rooms.FindByCode(ctx, code)
		assert.ErrorIs(t, err, core.ErrRoomNotFound, code)
		_, err = rooms.Info(ctx, code)
		assert.ErrorIs(t, err, core.ErrRoomNotFound, code)
		_, err = rooms.AddGuest(ctx, code, 1)
		assert.ErrorIs(t, err, core.ErrRoomNotFound, code)
		_, err = rooms.Remove(ctx, code)
		assert.ErrorIs(t, err, core.ErrRoomNotFound, code)
	}
	assert.Zero(t, store.calls.Load())

	_, err := rooms.FindByCode(ctx, "AB12CD")
	assert.ErrorIs(t, err, core.ErrRoomNotFound)
	assert.EqualValues(t, 1, store.calls.Load())
}
