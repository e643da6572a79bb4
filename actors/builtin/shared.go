package builtin

import (
	"strings"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
)

///// Code shared by the vesting packages. /////

const DefaultHamtBitwidth = 5
const DefaultAmtBitwidth = 3

// Identifier of a balance lock, exactly eight bytes, right padded with spaces.
type LockID [8]byte

// Lock placed on an account by the vesting module.
var VestingLockID = NewLockID("vesting")

// NewLockID pads or truncates name to the eight bytes of a lock identifier.
func NewLockID(name string) LockID {
	var id LockID
	copy(id[:], strings.Repeat(" ", len(id)))
	copy(id[:], name)
	return id
}

func (id LockID) String() string {
	return string(id[:])
}

// Which kinds of withdrawal a lock applies to.
type LockReasons uint64

const (
	LockReasonsFee LockReasons = 1 << iota
	LockReasonsMisc
	LockReasonsAll = LockReasonsFee | LockReasonsMisc
)

// BalanceLock is a single named lock held against an account balance.
type BalanceLock struct {
	ID      LockID
	Amount  abi.TokenAmount
	Reasons LockReasons
}

// FindLock returns the amount held under id, or zero when no such lock exists.
func FindLock(locks []BalanceLock, id LockID) (abi.TokenAmount, bool) {
	for _, l := range locks {
		if l.ID == id {
			return l.Amount, true
		}
	}
	return big.Zero(), false
}
