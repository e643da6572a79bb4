package vesting

import (
	"golang.org/x/xerrors"
)

// ClaimPolicy selects how the amount already released by earlier unlock calls is derived.
type ClaimPolicy int

const (
	// The amount claimed before is the difference between the total scheduled and the
	// amount the chain still reports under the vesting lock.
	ClaimFromLockDelta ClaimPolicy = iota
	// Everything vested so far is claimable; prior unlocks are not tracked.
	ClaimVestedTotal
)

func (p ClaimPolicy) String() string {
	switch p {
	case ClaimFromLockDelta:
		return "lock-delta"
	case ClaimVestedTotal:
		return "vested-total"
	default:
		return "unknown"
	}
}

// ParseClaimPolicy is the inverse of ClaimPolicy.String.
func ParseClaimPolicy(s string) (ClaimPolicy, error) {
	switch s {
	case "lock-delta":
		return ClaimFromLockDelta, nil
	case "vested-total":
		return ClaimVestedTotal, nil
	}
	return 0, xerrors.Errorf("unknown claim policy %q", s)
}

// Maximum number of schedules an account may carry at once.
const MaxVestingSchedules = 28

var (
	ErrInvalidInput  = xerrors.New("invalid input")
	ErrNotVesting    = xerrors.New("account has no vesting schedule")
	ErrAtMaxSchedule = xerrors.New("account already has the maximum number of vesting schedules")
)
