package vesting

import (
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"

	"github.com/EpiK-Protocol/go-epik-vesting/actors/builtin"
)

// Checks internal invariants of a vesting state derived from schedules at epoch.
func CheckStateInvariants(st *VestingState, schedules []VestingSchedule, epoch abi.ChainEpoch) *builtin.MessageAccumulator {
	acc := &builtin.MessageAccumulator{}

	acc.Require(st.TotalVested.LessThanEqual(st.TotalLocked), "total vested %s exceeds total locked %s", st.TotalVested, st.TotalLocked)
	acc.Require(st.RemainingLocked.GreaterThanEqual(big.Zero()), "remaining locked %s is negative", st.RemainingLocked)
	acc.Require(big.Add(st.RemainingLocked, st.TotalVested).Equals(st.TotalLocked),
		"remaining %s plus vested %s does not equal locked %s", st.RemainingLocked, st.TotalVested, st.TotalLocked)
	acc.Require(st.ClaimedBefore.GreaterThanEqual(big.Zero()), "claimed before %s is negative", st.ClaimedBefore)
	acc.Require(st.ClaimableNow.GreaterThanEqual(big.Zero()), "claimable %s is negative", st.ClaimableNow)
	acc.Require(st.ClaimableNow.LessThanEqual(st.TotalVested), "claimable %s exceeds vested %s", st.ClaimableNow, st.TotalVested)

	locked, vested := big.Zero(), big.Zero()
	for i, s := range schedules {
		sacc := acc.WithPrefix("schedule %d: ", i)
		if err := s.Validate(); err != nil {
			sacc.RequireNoError(err, "invalid schedule")
			continue
		}
		v := s.VestedAt(epoch)
		sacc.Require(v.LessThanEqual(s.Locked), "vested %s exceeds locked %s", v, s.Locked)
		locked = big.Add(locked, s.Locked)
		vested = big.Add(vested, v)
	}
	acc.Require(locked.Equals(st.TotalLocked), "schedules lock %s, state reports %s", locked, st.TotalLocked)
	acc.Require(vested.Equals(st.TotalVested), "schedules vested %s, state reports %s", vested, st.TotalVested)

	return acc
}
