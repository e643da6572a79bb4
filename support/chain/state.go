package chain

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/ipfs/go-cid"
	cbg "github.com/whyrusleeping/cbor-gen"
	"golang.org/x/xerrors"

	"github.com/EpiK-Protocol/go-epik-vesting/actors/builtin"
	"github.com/EpiK-Protocol/go-epik-vesting/actors/builtin/vesting"
	"github.com/EpiK-Protocol/go-epik-vesting/actors/util/adt"
)

// State is the slice of chain state the simulator maintains.
type State struct {
	Vestings cid.Cid // Map, HAMT[address]AMT[index]VestingSchedule
	Locks    cid.Cid // Map, HAMT[address]BalanceLocks
}

// BalanceLocks are the locks held against one account.
type BalanceLocks struct {
	Locks []builtin.BalanceLock
}

func ConstructState(store adt.Store) (*State, error) {
	emptyMapCid, err := adt.StoreEmptyMap(store, builtin.DefaultHamtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty map: %w", err)
	}
	return &State{
		Vestings: emptyMapCid,
		Locks:    emptyMapCid,
	}, nil
}

func (st *State) LoadSchedules(store adt.Store, who addr.Address) ([]vesting.VestingSchedule, bool, error) {
	vestings, err := adt.AsMap(store, st.Vestings, builtin.DefaultHamtBitwidth)
	if err != nil {
		return nil, false, xerrors.Errorf("failed to load vestings: %w", err)
	}

	var root cbg.CborCid
	found, err := vestings.Get(abi.AddrKey(who), &root)
	if err != nil {
		return nil, false, xerrors.Errorf("failed to get vesting of %s: %w", who, err)
	}
	if !found {
		return nil, false, nil
	}

	arr, err := adt.AsArray(store, cid.Cid(root), builtin.DefaultAmtBitwidth)
	if err != nil {
		return nil, false, xerrors.Errorf("failed to load schedules of %s: %w", who, err)
	}
	schedules := make([]vesting.VestingSchedule, 0, arr.Length())
	var s vesting.VestingSchedule
	err = arr.ForEach(&s, func(i int64) error {
		schedules = append(schedules, s)
		return nil
	})
	if err != nil {
		return nil, false, xerrors.Errorf("failed to iterate schedules of %s: %w", who, err)
	}
	return schedules, true, nil
}

// SaveSchedules replaces the account's schedules. An empty list removes the vesting entry.
func (st *State) SaveSchedules(store adt.Store, who addr.Address, schedules []vesting.VestingSchedule) error {
	vestings, err := adt.AsMap(store, st.Vestings, builtin.DefaultHamtBitwidth)
	if err != nil {
		return xerrors.Errorf("failed to load vestings: %w", err)
	}

	if len(schedules) == 0 {
		if _, err := vestings.TryDelete(abi.AddrKey(who)); err != nil {
			return xerrors.Errorf("failed to delete vesting of %s: %w", who, err)
		}
	} else {
		arr, err := adt.MakeEmptyArray(store, builtin.DefaultAmtBitwidth)
		if err != nil {
			return xerrors.Errorf("failed to create schedules: %w", err)
		}
		for i := range schedules {
			if err := arr.AppendContinuous(&schedules[i]); err != nil {
				return xerrors.Errorf("failed to append schedule %d of %s: %w", i, who, err)
			}
		}
		root, err := arr.Root()
		if err != nil {
			return xerrors.Errorf("failed to flush schedules of %s: %w", who, err)
		}
		croot := cbg.CborCid(root)
		if err := vestings.Put(abi.AddrKey(who), &croot); err != nil {
			return xerrors.Errorf("failed to put vesting of %s: %w", who, err)
		}
	}

	st.Vestings, err = vestings.Root()
	if err != nil {
		return xerrors.Errorf("failed to flush vestings: %w", err)
	}
	return nil
}

func (st *State) LoadLocks(store adt.Store, who addr.Address) ([]builtin.BalanceLock, error) {
	locks, err := adt.AsMap(store, st.Locks, builtin.DefaultHamtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to load locks: %w", err)
	}
	var out BalanceLocks
	if _, err := locks.Get(abi.AddrKey(who), &out); err != nil {
		return nil, xerrors.Errorf("failed to get locks of %s: %w", who, err)
	}
	return out.Locks, nil
}

// SetLock sets the amount under lock id, removing the lock when amount is zero.
func (st *State) SetLock(store adt.Store, who addr.Address, id builtin.LockID, amount abi.TokenAmount) error {
	if amount.LessThan(big.Zero()) {
		return xerrors.Errorf("negative lock amount %s", amount)
	}

	current, err := st.LoadLocks(store, who)
	if err != nil {
		return err
	}
	var next BalanceLocks
	for _, l := range current {
		if l.ID != id {
			next.Locks = append(next.Locks, l)
		}
	}
	if !amount.IsZero() {
		next.Locks = append(next.Locks, builtin.BalanceLock{ID: id, Amount: amount, Reasons: builtin.LockReasonsAll})
	}

	locks, err := adt.AsMap(store, st.Locks, builtin.DefaultHamtBitwidth)
	if err != nil {
		return xerrors.Errorf("failed to load locks: %w", err)
	}
	if len(next.Locks) == 0 {
		if _, err := locks.TryDelete(abi.AddrKey(who)); err != nil {
			return xerrors.Errorf("failed to delete locks of %s: %w", who, err)
		}
	} else if err := locks.Put(abi.AddrKey(who), &next); err != nil {
		return xerrors.Errorf("failed to put locks of %s: %w", who, err)
	}

	st.Locks, err = locks.Root()
	if err != nil {
		return xerrors.Errorf("failed to flush locks: %w", err)
	}
	return nil
}
