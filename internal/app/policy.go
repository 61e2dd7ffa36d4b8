package app

import (
	"fmt"

	"github.com/dkeye/Call/internal/core"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickSession
)

// Policy decides what happens to a session whose send buffer is full.
type Policy interface {
	OnBackPressure(sess core.MemberSession) BackpressureAction
}

// SimplePolicy disconnects slow sessions; the client reconnects and
// renegotiates instead of silently missing signaling frames.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.MemberSession) BackpressureAction {
	return KickSession
}

// DropPolicy keeps the session and loses the frame.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(core.MemberSession) BackpressureAction {
	return DropFrame
}

// NewPolicy maps the backpressure config value to a Policy.
func NewPolicy(name string) (Policy, error) {
	switch name {
	case "", "kick":
		return SimplePolicy{}, nil
	case "drop":
		return DropPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown backpressure policy %q", name)
	}
}
