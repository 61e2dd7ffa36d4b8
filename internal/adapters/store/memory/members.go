package memory

import (
	"context"
	"sync"

	"github.com/dkeye/Call/internal/core"
	"github.com/dkeye/Call/internal/domain"
)

type MemberStore struct {
	mu      sync.RWMutex
	next    domain.MemberID
	members map[domain.MemberID]domain.Member
}

func NewMemberStore() *MemberStore {
	return &MemberStore{members: make(map[domain.MemberID]domain.Member)}
}

var _ core.MemberStore = (*MemberStore)(nil)

func (s *MemberStore) Insert(_ context.Context, m *domain.Member) (domain.MemberID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	m.ID = s.next
	s.members[m.ID] = *m
	return m.ID, nil
}

func (s *MemberStore) Get(_ context.Context, id domain.MemberID) (*domain.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	if !ok {
		return nil, core.ErrMemberNotFound
	}
	return &m, nil
}
