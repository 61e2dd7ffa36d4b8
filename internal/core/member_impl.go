package core

import "github.com/dkeye/Call/internal/domain"

// memberSession implements MemberSession by pairing identity + transport.
type memberSession struct {
	member domain.MemberID
	conn   SignalConnection
}

func NewMemberSession(member domain.MemberID, conn SignalConnection) MemberSession {
	return &memberSession{member: member, conn: conn}
}

func (m *memberSession) Member() domain.MemberID  { return m.member }
func (m *memberSession) Signal() SignalConnection { return m.conn }
