package monitor

import (
	"fmt"
	"io"

	"github.com/filecoin-project/go-state-types/big"

	"github.com/EpiK-Protocol/go-epik-vesting/actors/builtin/vesting"
	"github.com/EpiK-Protocol/go-epik-vesting/actors/util/format"
)

const NoVestingText = "No vesting schedules found for this account."

type Label struct {
	Name  string
	Value string
}

// Labels lists the display rows for a snapshot, amounts formatted with opts.
func Labels(s Snapshot, opts format.Options) []Label {
	if !s.HasVesting {
		return []Label{{Name: "Vesting", Value: NoVestingText}}
	}
	if s.State == nil {
		msg := "unavailable"
		if s.Err != nil {
			msg = s.Err.Error()
		}
		return []Label{{Name: "Error", Value: msg}}
	}

	amount := func(a big.Int) string { return format.FormatBalance(a, opts) }
	st := s.State
	labels := []Label{
		{Name: "Total Locked", Value: amount(st.TotalLocked)},
		{Name: "Current Block", Value: fmt.Sprintf("%d", s.CurrentBlock)},
		{Name: "Total Vested", Value: amount(st.TotalVested)},
	}
	if s.Policy == vesting.ClaimFromLockDelta {
		labels = append(labels, Label{Name: "Amount Claimed Before", Value: amount(st.ClaimedBefore)})
	}
	labels = append(labels,
		Label{Name: "Amount to Unlock Now", Value: amount(st.ClaimableNow)},
		Label{Name: "Remaining Locked", Value: amount(st.RemainingLocked)},
		Label{Name: "Locked On Chain", Value: amount(s.LockedOnChain)},
	)
	return labels
}

// Render writes the labels of s, one per line, followed by the raw schedules and the
// transaction status if there is one.
func Render(w io.Writer, s Snapshot, opts format.Options) error {
	for _, l := range Labels(s, opts) {
		if _, err := fmt.Fprintf(w, "%s: %s\n", l.Name, l.Value); err != nil {
			return err
		}
	}
	for i, sched := range s.Schedules {
		if _, err := fmt.Fprintf(w, "Schedule %d: %s locked, %s per block from block %d\n", i,
			format.FormatBalance(sched.Locked, opts), format.FormatBalance(sched.PerBlock, opts), sched.StartingBlock); err != nil {
			return err
		}
	}
	if s.Status != "" {
		if _, err := fmt.Fprintf(w, "Status: %s\n", s.Status); err != nil {
			return err
		}
	}
	return nil
}
