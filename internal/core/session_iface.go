package core

import "github.com/dkeye/Call/internal/domain"

type SessionID string

// MemberSession binds an authenticated member to one transport endpoint.
// A member may hold several sessions at once (tabs, devices).
type MemberSession interface {
	Member() domain.MemberID
	Signal() SignalConnection
}
