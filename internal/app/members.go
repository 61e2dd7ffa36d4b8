package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Call/internal/core"
	"github.com/dkeye/Call/internal/domain"
)

// MemberDirectory resolves member ids to registered participants.
type MemberDirectory struct {
	store core.MemberStore
}

func NewMemberDirectory(store core.MemberStore) *MemberDirectory {
	return &MemberDirectory{store: store}
}

func (d *MemberDirectory) Register(ctx context.Context, name string) (*domain.Member, error) {
	m, err := domain.NewMember(name)
	if err != nil {
		return nil, err
	}
	if _, err := d.store.Insert(ctx, m); err != nil {
		return nil, fmt.Errorf("register member: %w", err)
	}
	log.Info().Str("module", "app.members").Int64("member", int64(m.ID)).Str("name", m.Name).Msg("member registered")
	return m, nil
}

func (d *MemberDirectory) Get(ctx context.Context, id domain.MemberID) (*domain.Member, error) {
	return d.store.Get(ctx, id)
}
