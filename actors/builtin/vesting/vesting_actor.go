package vesting

import (
	"github.com/filecoin-project/go-bitfield"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	xerrors "golang.org/x/xerrors"
)

// VestResult is the effect of releasing vested funds at a given height.
type VestResult struct {
	Remaining []VestingSchedule // Schedules still holding funds, in their original order.
	Locked    abi.TokenAmount   // New amount under the vesting lock. Zero removes the lock.
	Unlocked  abi.TokenAmount   // Amount released by this call.
	Removed   bitfield.BitField // Indices of schedules that finished and were dropped.
}

// Vest releases everything vested by now. currLock is the amount held under the vesting
// lock before the call.
func Vest(schedules []VestingSchedule, now abi.ChainEpoch, currLock abi.TokenAmount) (*VestResult, error) {
	if len(schedules) == 0 {
		return nil, ErrNotVesting
	}
	if now < 0 {
		return nil, xerrors.Errorf("negative block height %d: %w", now, ErrInvalidInput)
	}

	locked := big.Zero()
	var remaining []VestingSchedule
	var removed []uint64
	for i := range schedules {
		s := schedules[i]
		if err := s.Validate(); err != nil {
			return nil, xerrors.Errorf("schedule %d: %w", i, err)
		}
		stillLocked := s.LockedAt(now)
		if stillLocked.IsZero() {
			removed = append(removed, uint64(i))
			continue
		}
		locked = big.Add(locked, stillLocked)
		remaining = append(remaining, s)
	}

	unlocked := big.Zero()
	if !currLock.Nil() {
		unlocked = big.Max(big.Sub(currLock, locked), big.Zero())
	}

	return &VestResult{
		Remaining: remaining,
		Locked:    locked,
		Unlocked:  unlocked,
		Removed:   bitfield.NewFromSet(removed),
	}, nil
}

// AddSchedule appends s to an account's schedules, as a vested transfer does.
func AddSchedule(schedules []VestingSchedule, s VestingSchedule) ([]VestingSchedule, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.Locked.IsZero() || s.PerBlock.IsZero() {
		return nil, xerrors.Errorf("schedule must lock and release a positive amount: %w", ErrInvalidInput)
	}
	if len(schedules) >= MaxVestingSchedules {
		return nil, ErrAtMaxSchedule
	}
	out := make([]VestingSchedule, len(schedules), len(schedules)+1)
	copy(out, schedules)
	return append(out, s), nil
}

// LockedAt sums the amount all schedules still hold at epoch.
func LockedAt(schedules []VestingSchedule, epoch abi.ChainEpoch) abi.TokenAmount {
	locked := big.Zero()
	for i := range schedules {
		locked = big.Add(locked, schedules[i].LockedAt(epoch))
	}
	return locked
}
