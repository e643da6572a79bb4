package vesting

import (
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	xerrors "golang.org/x/xerrors"
)

// VestingSchedule releases Locked linearly, PerBlock at a time, from StartingBlock on.
type VestingSchedule struct {
	Locked        abi.TokenAmount // Total amount locked by this schedule.
	PerBlock      abi.TokenAmount // Amount released for every block elapsed since StartingBlock.
	StartingBlock abi.ChainEpoch  // Height at which release begins.
}

func NewVestingSchedule(locked, perBlock abi.TokenAmount, start abi.ChainEpoch) VestingSchedule {
	return VestingSchedule{
		Locked:        locked,
		PerBlock:      perBlock,
		StartingBlock: start,
	}
}

func (s VestingSchedule) Validate() error {
	if s.Locked.Nil() || s.PerBlock.Nil() {
		return xerrors.Errorf("schedule amount not set: %w", ErrInvalidInput)
	}
	if s.Locked.LessThan(big.Zero()) {
		return xerrors.Errorf("negative locked amount %s: %w", s.Locked, ErrInvalidInput)
	}
	if s.PerBlock.LessThan(big.Zero()) {
		return xerrors.Errorf("negative per block amount %s: %w", s.PerBlock, ErrInvalidInput)
	}
	if s.StartingBlock < 0 {
		return xerrors.Errorf("negative starting block %d: %w", s.StartingBlock, ErrInvalidInput)
	}
	return nil
}

// VestedAt returns the amount released by epoch. The schedule must be valid.
func (s VestingSchedule) VestedAt(epoch abi.ChainEpoch) abi.TokenAmount {
	elapsed := epoch - s.StartingBlock
	if elapsed <= 0 {
		return big.Zero()
	}
	return big.Min(big.Mul(s.PerBlock, big.NewInt(int64(elapsed))), s.Locked)
}

// LockedAt returns the amount still held by the schedule at epoch.
func (s VestingSchedule) LockedAt(epoch abi.ChainEpoch) abi.TokenAmount {
	return big.Sub(s.Locked, s.VestedAt(epoch))
}

// EndingBlock returns the first epoch at which the whole amount is vested.
// A schedule releasing nothing per block never ends unless it locks nothing.
func (s VestingSchedule) EndingBlock() (abi.ChainEpoch, bool) {
	if s.Locked.IsZero() {
		return s.StartingBlock, true
	}
	if s.PerBlock.IsZero() {
		return 0, false
	}
	// ceil(locked / perBlock)
	blocks := big.Div(big.Add(s.Locked, big.Sub(s.PerBlock, big.NewInt(1))), s.PerBlock)
	if !blocks.IsInt64() {
		return 0, false
	}
	return s.StartingBlock + abi.ChainEpoch(blocks.Int64()), true
}

// VestingState is derived from a schedule snapshot and a block height. It is never persisted.
type VestingState struct {
	TotalLocked     abi.TokenAmount // Sum of all schedules' locked amounts.
	TotalVested     abi.TokenAmount // Sum of all schedules' vested amounts.
	RemainingLocked abi.TokenAmount // TotalLocked - TotalVested.
	ClaimedBefore   abi.TokenAmount // Released by earlier unlock calls.
	ClaimableNow    abi.TokenAmount // Vested but not yet released.
	LockedOnChain   abi.TokenAmount // Amount the chain reports under the vesting lock.
}

func zeroState() *VestingState {
	return &VestingState{
		TotalLocked:     big.Zero(),
		TotalVested:     big.Zero(),
		RemainingLocked: big.Zero(),
		ClaimedBefore:   big.Zero(),
		ClaimableNow:    big.Zero(),
		LockedOnChain:   big.Zero(),
	}
}

// Calculator derives a VestingState under an explicit claim policy.
type Calculator struct {
	Policy ClaimPolicy
}

// Compute derives the vesting state with the amount claimed before taken from the chain's
// vesting lock. lockedOnChain is the amount the chain still reports under that lock.
func Compute(schedules []VestingSchedule, currEpoch abi.ChainEpoch, lockedOnChain abi.TokenAmount) (*VestingState, error) {
	return Calculator{Policy: ClaimFromLockDelta}.Compute(schedules, currEpoch, lockedOnChain)
}

// Compute is a pure function of its inputs. lockedOnChain is ignored by ClaimVestedTotal.
func (c Calculator) Compute(schedules []VestingSchedule, currEpoch abi.ChainEpoch, lockedOnChain abi.TokenAmount) (*VestingState, error) {
	if currEpoch < 0 {
		return nil, xerrors.Errorf("negative block height %d: %w", currEpoch, ErrInvalidInput)
	}

	st := zeroState()
	for i := range schedules {
		s := &schedules[i]
		if err := s.Validate(); err != nil {
			return nil, xerrors.Errorf("schedule %d: %w", i, err)
		}
		st.TotalLocked = big.Add(st.TotalLocked, s.Locked)
		st.TotalVested = big.Add(st.TotalVested, s.VestedAt(currEpoch))
	}
	st.RemainingLocked = big.Sub(st.TotalLocked, st.TotalVested)

	switch c.Policy {
	case ClaimVestedTotal:
		st.ClaimableNow = st.TotalVested
		if !lockedOnChain.Nil() && lockedOnChain.GreaterThanEqual(big.Zero()) {
			st.LockedOnChain = lockedOnChain
		}
	case ClaimFromLockDelta:
		if lockedOnChain.Nil() {
			return nil, xerrors.Errorf("lock amount not set: %w", ErrInvalidInput)
		}
		if lockedOnChain.LessThan(big.Zero()) {
			return nil, xerrors.Errorf("negative lock amount %s: %w", lockedOnChain, ErrInvalidInput)
		}
		st.LockedOnChain = lockedOnChain
		if st.TotalVested.IsZero() {
			break
		}
		st.ClaimedBefore = big.Max(big.Sub(st.TotalLocked, lockedOnChain), big.Zero())
		st.ClaimableNow = big.Max(big.Sub(st.TotalVested, st.ClaimedBefore), big.Zero())
	default:
		return nil, xerrors.Errorf("unknown claim policy %d: %w", c.Policy, ErrInvalidInput)
	}
	return st, nil
}
