package chain_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/EpiK-Protocol/go-epik-vesting/actors/builtin"
	"github.com/EpiK-Protocol/go-epik-vesting/actors/builtin/vesting"
	"github.com/EpiK-Protocol/go-epik-vesting/actors/runtime"
	"github.com/EpiK-Protocol/go-epik-vesting/support/chain"
	tutils "github.com/EpiK-Protocol/go-epik-vesting/support/testing"
)

func TestSubscriptions(t *testing.T) {
	ctx := context.Background()
	sim := newSim(t)
	alice := tutils.NewIDAddr(t, 100)
	bob := tutils.NewIDAddr(t, 101)

	var mu sync.Mutex
	var schedUpdates [][]vesting.VestingSchedule
	var foundUpdates []bool
	var lockUpdates [][]builtin.BalanceLock
	var heads []abi.ChainEpoch

	unsubV, err := sim.SubscribeVesting(ctx, alice, func(s []vesting.VestingSchedule, found bool) {
		mu.Lock()
		defer mu.Unlock()
		schedUpdates = append(schedUpdates, s)
		foundUpdates = append(foundUpdates, found)
	})
	require.NoError(t, err)
	defer unsubV()
	unsubL, err := sim.SubscribeLocks(ctx, alice, func(l []builtin.BalanceLock) {
		mu.Lock()
		defer mu.Unlock()
		lockUpdates = append(lockUpdates, l)
	})
	require.NoError(t, err)
	defer unsubL()
	unsubH, err := sim.SubscribeBestNumber(ctx, func(h abi.ChainEpoch) {
		mu.Lock()
		defer mu.Unlock()
		heads = append(heads, h)
	})
	require.NoError(t, err)
	defer unsubH()

	// initial values are pushed on subscribe
	require.Equal(t, []bool{false}, foundUpdates)
	require.Empty(t, schedUpdates[0])
	require.Len(t, lockUpdates, 1)
	require.Empty(t, lockUpdates[0])
	require.Equal(t, []abi.ChainEpoch{0}, heads)

	require.NoError(t, sim.AddSchedule(alice, schedule(1000, 10, 50)))
	require.Equal(t, []bool{false, true}, foundUpdates)
	require.Len(t, schedUpdates[1], 1)
	assert.True(t, schedUpdates[1][0].Locked.Equals(big.NewInt(1000)))

	require.Len(t, lockUpdates, 2)
	amount, found := builtin.FindLock(lockUpdates[1], builtin.VestingLockID)
	require.True(t, found)
	assert.True(t, amount.Equals(big.NewInt(1000)))

	// other accounts do not notify alice's subscribers
	require.NoError(t, sim.AddSchedule(bob, schedule(1, 1, 0)))
	require.Len(t, foundUpdates, 2)

	require.NoError(t, sim.Advance(5))
	require.NoError(t, sim.SetHead(7))
	require.Equal(t, []abi.ChainEpoch{0, 5, 7}, heads)
}

func TestHeadNeverRegresses(t *testing.T) {
	sim := newSim(t)
	require.NoError(t, sim.SetHead(10))
	require.Error(t, sim.SetHead(9))
	assert.Equal(t, abi.ChainEpoch(10), sim.Head())
}

func TestConcurrentAdvance(t *testing.T) {
	sim := newSim(t)

	var grp errgroup.Group
	for i := 0; i < 8; i++ {
		grp.Go(func() error { return sim.Advance(5) })
	}
	require.NoError(t, grp.Wait())
	assert.Equal(t, abi.ChainEpoch(40), sim.Head())
}

func TestAddScheduleResetsLock(t *testing.T) {
	sim := newSim(t)
	alice := tutils.NewIDAddr(t, 100)

	require.NoError(t, sim.AddSchedule(alice, schedule(1000, 10, 0)))
	require.NoError(t, sim.SetHead(30))
	require.NoError(t, sim.AddSchedule(alice, schedule(500, 5, 100)))

	locks, err := sim.Locks(alice)
	require.NoError(t, err)
	amount, _ := builtin.FindLock(locks, builtin.VestingLockID)
	// 1000 - 300 still held by the first schedule, plus the new one
	assert.True(t, amount.Equals(big.NewInt(1200)), amount.String())

	require.Error(t, sim.AddSchedule(alice, schedule(0, 1, 0)))
}

func TestVestCall(t *testing.T) {
	ctx := context.Background()
	sim := newSim(t)
	alice := tutils.NewIDAddr(t, 100)

	require.NoError(t, sim.AddSchedule(alice, schedule(1000, 10, 50)))
	require.NoError(t, sim.SetHead(74))

	statuses := submit(t, sim, alice, builtin.MethodsVesting.Vest)
	require.Len(t, statuses, 3)
	assert.Equal(t, runtime.TxReady, statuses[0].Phase)
	assert.Equal(t, runtime.TxInBlock, statuses[1].Phase)
	assert.Equal(t, runtime.TxFinalized, statuses[2].Phase)
	assert.NotEmpty(t, statuses[2].BlockHash)
	assert.True(t, statuses[0].TxID.Defined())
	assert.Equal(t, abi.ChainEpoch(75), sim.Head())

	locks, err := sim.Locks(alice)
	require.NoError(t, err)
	amount, found := builtin.FindLock(locks, builtin.VestingLockID)
	require.True(t, found)
	assert.True(t, amount.Equals(big.NewInt(750)), amount.String())

	// every schedule finished: the vesting entry and the lock go away
	require.NoError(t, sim.SetHead(500))
	statuses = submit(t, sim, alice, builtin.MethodsVesting.Vest)
	assert.Equal(t, runtime.TxFinalized, statuses[len(statuses)-1].Phase)

	_, found, err = sim.Schedules(alice)
	require.NoError(t, err)
	assert.False(t, found)
	locks, err = sim.Locks(alice)
	require.NoError(t, err)
	assert.Empty(t, locks)

	t.Run("not vesting", func(t *testing.T) {
		statuses := submit(t, sim, alice, builtin.MethodsVesting.Vest)
		last := statuses[len(statuses)-1]
		assert.Equal(t, runtime.TxFailed, last.Phase)
		require.Error(t, last.Err)
		assert.Contains(t, last.Err.Error(), "NotVesting")
	})

	t.Run("unsupported call", func(t *testing.T) {
		_, err := sim.SubmitCall(ctx, alice, builtin.MethodsBalances.Transfer)
		require.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := sim.SubmitCall(cctx, alice, builtin.MethodsVesting.Vest)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestUnsubscribe(t *testing.T) {
	sim := newSim(t)

	var mu sync.Mutex
	calls := 0
	cb := func(abi.ChainEpoch) {
		mu.Lock()
		defer mu.Unlock()
		calls++
	}

	unsub, err := sim.SubscribeBestNumber(context.Background(), cb)
	require.NoError(t, err)
	require.NoError(t, sim.Advance(1))
	unsub()
	unsub()
	require.NoError(t, sim.Advance(1))
	assert.Equal(t, 2, calls)

	t.Run("context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var n int
		var nlk sync.Mutex
		_, err := sim.SubscribeBestNumber(ctx, func(abi.ChainEpoch) {
			nlk.Lock()
			defer nlk.Unlock()
			n++
		})
		require.NoError(t, err)
		cancel()

		// the subscription is dropped asynchronously
		require.Eventually(t, func() bool {
			nlk.Lock()
			before := n
			nlk.Unlock()
			if err := sim.Advance(1); err != nil {
				return false
			}
			nlk.Lock()
			defer nlk.Unlock()
			return n == before
		}, time.Second, 10*time.Millisecond)
	})
}

func newSim(t *testing.T) *chain.Sim {
	sim, err := chain.NewSim(context.Background())
	require.NoError(t, err)
	return sim
}

func submit(t *testing.T, sim *chain.Sim, who address.Address, call builtin.Call) []runtime.TxStatus {
	ch, err := sim.SubmitCall(context.Background(), who, call)
	require.NoError(t, err)
	var out []runtime.TxStatus
	for st := range ch {
		out = append(out, st)
	}
	return out
}

func schedule(locked, perBlock int64, start abi.ChainEpoch) vesting.VestingSchedule {
	return vesting.NewVestingSchedule(abi.NewTokenAmount(locked), abi.NewTokenAmount(perBlock), start)
}
