// Package redisstore keeps rooms and members in Redis so several server
// processes can share one directory. Every room lives under its own key;
// mutations use SETNX, WATCH/MULTI and GETDEL so they stay atomic per code.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Call/internal/core"
	"github.com/dkeye/Call/internal/domain"
)

const maxTxRetries = 16

type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

func NewClient(opt Options) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opt.Addr,
		Password: opt.Password,
		DB:       opt.DB,
	})
}

type keys struct{ prefix string }

func (k keys) room(code domain.RoomCode) string { return k.prefix + "room:code:" + string(code) }
func (k keys) roomPattern() string              { return k.prefix + "room:code:*" }
func (k keys) roomSeq() string                  { return k.prefix + "room:seq" }
func (k keys) member(id domain.MemberID) string { return k.prefix + "member:" + id.String() }
func (k keys) memberSeq() string                { return k.prefix + "member:seq" }

type RoomStore struct {
	rdb  *redis.Client
	keys keys
}

func NewRoomStore(rdb *redis.Client, prefix string) *RoomStore {
	return &RoomStore{rdb: rdb, keys: keys{prefix: prefix}}
}

var _ core.RoomStore = (*RoomStore)(nil)

func (s *RoomStore) Insert(ctx context.Context, room *domain.Room) (domain.RoomID, error) {
	seq, err := s.rdb.Incr(ctx, s.keys.roomSeq()).Result()
	if err != nil {
		return 0, fmt.Errorf("room sequence: %w", err)
	}
	rec := *room
	rec.ID = domain.RoomID(seq)
	b, err := json.Marshal(rec)
	if err != nil {
		return 0, err
	}
	ok, err := s.rdb.SetNX(ctx, s.keys.room(rec.Code), b, 0).Result()
	if err != nil {
		return 0, fmt.Errorf("insert room %s: %w", rec.Code, err)
	}
	if !ok {
		return 0, core.ErrCodeTaken
	}
	room.ID = rec.ID
	return rec.ID, nil
}

func (s *RoomStore) Get(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	b, err := s.rdb.Get(ctx, s.keys.room(code)).Bytes()
	if err != nil {
		return nil, roomErr(code, err)
	}
	return decodeRoom(b)
}

func (s *RoomStore) Update(ctx context.Context, code domain.RoomCode, fn func(*domain.Room) error) (*domain.Room, error) {
	key := s.keys.room(code)
	var out *domain.Room
	txf := func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			return roomErr(code, err)
		}
		room, err := decodeRoom(b)
		if err != nil {
			return err
		}
		id := room.ID
		if err := fn(room); err != nil {
			return err
		}
		room.Code = code
		room.ID = id
		next, err := json.Marshal(room)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		if err == nil {
			out = room
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			log.Debug().Str("module", "store.redis").Str("code", string(code)).Int("attempt", i).Msg("update raced, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("update room %s: %w", code, redis.TxFailedErr)
}

func (s *RoomStore) Delete(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	b, err := s.rdb.GetDel(ctx, s.keys.room(code)).Bytes()
	if err != nil {
		return nil, roomErr(code, err)
	}
	return decodeRoom(b)
}

func (s *RoomStore) List(ctx context.Context) ([]domain.Room, error) {
	out := make([]domain.Room, 0)
	iter := s.rdb.Scan(ctx, 0, s.keys.roomPattern(), 100).Iterator()
	for iter.Next(ctx) {
		b, err := s.rdb.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // removed while scanning
		}
		if err != nil {
			return nil, err
		}
		room, err := decodeRoom(b)
		if err != nil {
			return nil, err
		}
		out = append(out, *room)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type MemberStore struct {
	rdb  *redis.Client
	keys keys
}

func NewMemberStore(rdb *redis.Client, prefix string) *MemberStore {
	return &MemberStore{rdb: rdb, keys: keys{prefix: prefix}}
}

var _ core.MemberStore = (*MemberStore)(nil)

func (s *MemberStore) Insert(ctx context.Context, m *domain.Member) (domain.MemberID, error) {
	seq, err := s.rdb.Incr(ctx, s.keys.memberSeq()).Result()
	if err != nil {
		return 0, fmt.Errorf("member sequence: %w", err)
	}
	rec := *m
	rec.ID = domain.MemberID(seq)
	b, err := json.Marshal(rec)
	if err != nil {
		return 0, err
	}
	if err := s.rdb.Set(ctx, s.keys.member(rec.ID), b, 0).Err(); err != nil {
		return 0, fmt.Errorf("insert member %s: %w", strconv.FormatInt(seq, 10), err)
	}
	m.ID = rec.ID
	return rec.ID, nil
}

func (s *MemberStore) Get(ctx context.Context, id domain.MemberID) (*domain.Member, error) {
	b, err := s.rdb.Get(ctx, s.keys.member(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	var m domain.Member
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func roomErr(code domain.RoomCode, err error) error {
	if errors.Is(err, redis.Nil) {
		return core.ErrRoomNotFound
	}
	return fmt.Errorf("room %s: %w", code, err)
}

func decodeRoom(b []byte) (*domain.Room, error) {
	var r domain.Room
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	return &r, nil
}
