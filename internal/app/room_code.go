package app

import (
	"crypto/rand"
	"math/big"

	"github.com/dkeye/Call/internal/domain"
)

// CodeGenerator draws a fresh public room code.
type CodeGenerator func() (domain.RoomCode, error)

var alphabetLen = big.NewInt(int64(len(domain.RoomCodeAlphabet)))

// NewRoomCode returns RoomCodeLen characters drawn uniformly from
// RoomCodeAlphabet. The space is 36^6 (about 2.2e9); uniqueness is enforced
// by the store, not here.
func NewRoomCode() (domain.RoomCode, error) {
	buf := make([]byte, domain.RoomCodeLen)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		buf[i] = domain.RoomCodeAlphabet[n.Int64()]
	}
	return domain.RoomCode(buf), nil
}
