package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Call/internal/core"
	"github.com/dkeye/Call/internal/domain"
)

type sessionEntry struct {
	Session core.MemberSession
	Topics  map[string]struct{}
	Cancel  context.CancelFunc
}

// Registry indexes live sessions by id, by member and by subscribed topic.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	byMember map[domain.MemberID]map[core.SessionID]struct{}
	topics   map[string]map[core.SessionID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
		byMember: make(map[domain.MemberID]map[core.SessionID]struct{}),
		topics:   make(map[string]map[core.SessionID]struct{}),
	}
}

func (r *Registry) BindSignal(sid core.SessionID, sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{Session: sess, Topics: make(map[string]struct{}), Cancel: cancel}
	m := sess.Member()
	if r.byMember[m] == nil {
		r.byMember[m] = make(map[core.SessionID]struct{})
	}
	r.byMember[m][sid] = struct{}{}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Int64("member", int64(m)).Msg("bound signal")
}

// Unbind forgets the session and all its subscriptions.
func (r *Registry) Unbind(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return
	}
	for topic := range e.Topics {
		r.removeSubscriber(topic, sid)
	}
	m := e.Session.Member()
	delete(r.byMember[m], sid)
	if len(r.byMember[m]) == 0 {
		delete(r.byMember, m)
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
}

func (r *Registry) Subscribe(sid core.SessionID, topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.Topics[topic] = struct{}{}
	if r.topics[topic] == nil {
		r.topics[topic] = make(map[core.SessionID]struct{})
	}
	r.topics[topic][sid] = struct{}{}
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Str("topic", topic).Msg("subscribed")
	return true
}

func (r *Registry) Unsubscribe(sid core.SessionID, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		delete(e.Topics, topic)
	}
	r.removeSubscriber(topic, sid)
}

// DropTopic removes every subscription to topic, used once a room is gone so
// a later room reusing the code starts with no listeners.
func (r *Registry) DropTopic(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := r.topics[topic]
	for sid := range subs {
		if e, ok := r.sessions[sid]; ok {
			delete(e.Topics, topic)
		}
	}
	delete(r.topics, topic)
	if len(subs) > 0 {
		log.Info().Str("module", "app.registry").Str("topic", topic).Int("subscribers", len(subs)).Msg("dropped topic")
	}
	return len(subs)
}

func (r *Registry) removeSubscriber(topic string, sid core.SessionID) {
	subs, ok := r.topics[topic]
	if !ok {
		return
	}
	delete(subs, sid)
	if len(subs) == 0 {
		delete(r.topics, topic)
	}
}

// SessionSnap is a point-in-time view of one bound session.
type SessionSnap struct {
	SID     core.SessionID
	Session core.MemberSession
}

// SessionsOf returns every live session of one member.
func (r *Registry) SessionsOf(member domain.MemberID) []SessionSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionSnap, 0, len(r.byMember[member]))
	for sid := range r.byMember[member] {
		out = append(out, SessionSnap{SID: sid, Session: r.sessions[sid].Session})
	}
	return out
}

func (r *Registry) Subscribers(topic string) []SessionSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionSnap, 0, len(r.topics[topic]))
	for sid := range r.topics[topic] {
		out = append(out, SessionSnap{SID: sid, Session: r.sessions[sid].Session})
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
