// Package domain contains entities without transport or storage logic, just meta-data.
package domain

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"
)

const MaxMemberNameLen = 64

var (
	ErrMemberNameEmpty   = errors.New("member name empty")
	ErrMemberNameTooLong = errors.New("member name too long")
)

// MemberID is assigned once at registration and never reused.
type MemberID int64

func (id MemberID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseMemberID accepts the decimal form used in addresses and tokens.
func ParseMemberID(s string) (MemberID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("member id must be positive")
	}
	return MemberID(n), nil
}

// Member is a registered caller or callee. Immutable after registration.
type Member struct {
	ID   MemberID `json:"id"`
	Name string   `json:"name"`
}

// NewMember validates the display name; the id is assigned by the store.
func NewMember(name string) (*Member, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrMemberNameEmpty
	}
	if utf8.RuneCountInString(name) > MaxMemberNameLen {
		return nil, ErrMemberNameTooLong
	}
	return &Member{Name: name}, nil
}
