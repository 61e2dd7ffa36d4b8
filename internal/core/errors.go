package core

import (
	"errors"
	"fmt"
)

// Categories. Callers branch on these with errors.Is.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

var (
	ErrRoomNotFound   = fmt.Errorf("room %w", ErrNotFound)
	ErrMemberNotFound = fmt.Errorf("member %w", ErrNotFound)
	ErrRoomFull       = fmt.Errorf("%w: room is full", ErrConflict)
	ErrRoomInactive   = fmt.Errorf("%w: room is inactive", ErrConflict)
	ErrCodeTaken      = fmt.Errorf("%w: room code taken", ErrConflict)
)
