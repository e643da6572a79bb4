package monitor_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xorcare/golden"
	"golang.org/x/xerrors"

	"github.com/EpiK-Protocol/go-epik-vesting/actors/builtin"
	"github.com/EpiK-Protocol/go-epik-vesting/actors/builtin/vesting"
	"github.com/EpiK-Protocol/go-epik-vesting/actors/runtime"
	"github.com/EpiK-Protocol/go-epik-vesting/actors/util/format"
	"github.com/EpiK-Protocol/go-epik-vesting/monitor"
	"github.com/EpiK-Protocol/go-epik-vesting/support/chain"
	tutil "github.com/EpiK-Protocol/go-epik-vesting/support/testing"
)

func TestMonitorRecomputesOnPush(t *testing.T) {
	h := newHarness(t)
	h.addSchedule(t, 1000, 10, 50)

	m := h.start(t, monitor.DefaultConfig())
	snap := m.Snapshot()
	assert.True(t, snap.HasVesting)
	require.NotNil(t, snap.State)
	assert.Equal(t, abi.ChainEpoch(0), snap.CurrentBlock)
	assertVara(t, 1000, snap.State.TotalLocked)
	assertVara(t, 0, snap.State.TotalVested)
	assertVara(t, 0, snap.State.ClaimableNow)

	require.NoError(t, h.sim.SetHead(75))
	snap = m.Snapshot()
	assert.Equal(t, abi.ChainEpoch(75), snap.CurrentBlock)
	assertVara(t, 250, snap.State.TotalVested)
	assertVara(t, 0, snap.State.ClaimedBefore)
	assertVara(t, 250, snap.State.ClaimableNow)
	assertVara(t, 750, snap.State.RemainingLocked)
	assertVara(t, 1000, snap.LockedOnChain)

	h.addSchedule(t, 100, 1, 80)
	snap = m.Snapshot()
	require.Len(t, snap.Schedules, 2)
	assertVara(t, 1100, snap.State.TotalLocked)
	assertVara(t, 250, snap.State.TotalVested)
}

func TestMonitorNoVesting(t *testing.T) {
	h := newHarness(t)
	m := h.start(t, monitor.DefaultConfig())

	snap := m.Snapshot()
	assert.False(t, snap.HasVesting)
	require.NotNil(t, snap.State)
	assertVara(t, 0, snap.State.TotalLocked)
	assert.Equal(t, []monitor.Label{{Name: "Vesting", Value: monitor.NoVestingText}}, monitor.Labels(snap, format.DefaultOptions()))
}

func TestMonitorUnlock(t *testing.T) {
	t.Run("releases vested funds", func(t *testing.T) {
		h := newHarness(t)
		h.addSchedule(t, 1000, 10, 50)
		require.NoError(t, h.sim.SetHead(75))
		m := h.start(t, monitor.DefaultConfig())

		var phases []runtime.TxPhase
		cancel := m.Subscribe(func(s monitor.Snapshot) {
			if strings.HasPrefix(s.Status, "Current transaction status: ") {
				phases = append(phases, parsePhase(s.Status))
			}
		})
		defer cancel()

		st, err := m.Unlock(context.Background())
		require.NoError(t, err)
		assert.Equal(t, runtime.TxFinalized, st.Phase)
		assert.Equal(t, []runtime.TxPhase{runtime.TxReady, runtime.TxInBlock}, phases)

		// The call lands in block 76, where 260 VARA have vested.
		snap := m.Snapshot()
		assert.Equal(t, abi.ChainEpoch(76), snap.CurrentBlock)
		assertVara(t, 260, snap.State.TotalVested)
		assertVara(t, 260, snap.State.ClaimedBefore)
		assertVara(t, 0, snap.State.ClaimableNow)
		assertVara(t, 740, snap.LockedOnChain)
		assert.True(t, strings.HasPrefix(snap.Status, "😉 Finalized. Block hash: 0x"), snap.Status)
	})

	t.Run("not vesting", func(t *testing.T) {
		h := newHarness(t)
		m := h.start(t, monitor.DefaultConfig())

		st, err := m.Unlock(context.Background())
		require.NoError(t, err)
		assert.Equal(t, runtime.TxFailed, st.Phase)
		assert.Contains(t, m.Snapshot().Status, "😞 Transaction Failed: ")
		assert.Contains(t, m.Snapshot().Status, "NotVesting")
	})

	t.Run("submit error", func(t *testing.T) {
		h := newHarness(t)
		m := h.start(t, monitor.DefaultConfig())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := m.Unlock(ctx)
		require.Error(t, err)
		assert.True(t, xerrors.Is(err, context.Canceled))
		assert.Contains(t, m.Snapshot().Status, "😞 Transaction Failed: ")
	})
}

func TestMonitorClaimPolicy(t *testing.T) {
	h := newHarness(t)
	h.addSchedule(t, 1000, 10, 50)
	require.NoError(t, h.sim.SetHead(75))
	_, err := h.sim.SubmitCall(context.Background(), h.who, builtin.MethodsVesting.Vest)
	require.NoError(t, err)

	cfg := monitor.DefaultConfig()
	cfg.Policy = vesting.ClaimVestedTotal
	m := h.start(t, cfg)

	snap := m.Snapshot()
	assertVara(t, 260, snap.State.TotalVested)
	assertVara(t, 260, snap.State.ClaimableNow)
	for _, l := range monitor.Labels(snap, cfg.Format) {
		assert.NotEqual(t, "Amount Claimed Before", l.Name)
	}
}

func TestMonitorClose(t *testing.T) {
	h := newHarness(t)
	h.addSchedule(t, 1000, 10, 50)
	m := h.start(t, monitor.DefaultConfig())

	m.Close()
	m.Close()
	require.NoError(t, h.sim.SetHead(75))
	assert.Equal(t, abi.ChainEpoch(0), m.Snapshot().CurrentBlock)
}

func TestMonitorStartTwice(t *testing.T) {
	h := newHarness(t)
	m := h.start(t, monitor.DefaultConfig())
	require.Error(t, m.Start(context.Background()))
}

func TestStartFailureReleasesSubscriptions(t *testing.T) {
	src := &fakeSource{locksErr: xerrors.New("node unavailable")}
	who := tutil.NewIDAddr(t, 100)

	m := monitor.New(src, nil, who, monitor.DefaultConfig())
	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node unavailable")

	src.lk.Lock()
	defer src.lk.Unlock()
	assert.Equal(t, 2, src.subscribed)
	assert.Equal(t, 2, src.unsubscribed)
}

func TestMonitorInvalidInput(t *testing.T) {
	src := &fakeSource{}
	who := tutil.NewIDAddr(t, 100)

	m := monitor.New(src, nil, who, monitor.DefaultConfig())
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	src.pushVesting([]vesting.VestingSchedule{vesting.NewVestingSchedule(vara(100), vara(1), 0)}, true)
	src.pushHead(10)
	require.NotNil(t, m.Snapshot().State)

	src.pushLocks([]builtin.BalanceLock{{ID: builtin.VestingLockID, Amount: big.NewInt(-1), Reasons: builtin.LockReasonsAll}})
	snap := m.Snapshot()
	assert.Nil(t, snap.State)
	assert.True(t, xerrors.Is(snap.Err, vesting.ErrInvalidInput))
	assert.Equal(t, "Error", monitor.Labels(snap, format.DefaultOptions())[0].Name)

	src.pushLocks(nil)
	snap = m.Snapshot()
	require.NotNil(t, snap.State)
	assert.NoError(t, snap.Err)
	assertVara(t, 10, snap.State.TotalVested)
}

func TestRun(t *testing.T) {
	src := &fakeSource{}
	who := tutil.NewIDAddr(t, 100)

	ran := false
	err := monitor.Run(context.Background(), src, nil, who, monitor.DefaultConfig(), func(m *monitor.Monitor) error {
		ran = true
		src.lk.Lock()
		defer src.lk.Unlock()
		assert.Equal(t, 3, src.subscribed)
		assert.Equal(t, 0, src.unsubscribed)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	src.lk.Lock()
	defer src.lk.Unlock()
	assert.Equal(t, 3, src.unsubscribed)
}

func TestRender(t *testing.T) {
	h := newHarness(t)
	h.addSchedule(t, 1000, 10, 50)
	require.NoError(t, h.sim.SetHead(75))
	m := h.start(t, monitor.DefaultConfig())

	var buf bytes.Buffer
	require.NoError(t, monitor.Render(&buf, m.Snapshot(), format.DefaultOptions()))
	golden.Assert(t, buf.Bytes())
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "Current transaction status: Ready", monitor.StatusText(runtime.TxStatus{Phase: runtime.TxReady}))
	assert.Equal(t, "Current transaction status: InBlock", monitor.StatusText(runtime.TxStatus{Phase: runtime.TxInBlock}))
	assert.Equal(t, "😉 Finalized. Block hash: 0xab", monitor.StatusText(runtime.TxStatus{Phase: runtime.TxFinalized, BlockHash: "0xab"}))
	assert.Equal(t, "😞 Transaction Failed: boom", monitor.StatusText(runtime.TxStatus{Phase: runtime.TxFailed, Err: xerrors.New("boom")}))
}

type harness struct {
	sim *chain.Sim
	who addr.Address
}

func newHarness(t *testing.T) *harness {
	sim, err := chain.NewSim(context.Background())
	require.NoError(t, err)
	return &harness{sim: sim, who: tutil.NewIDAddr(t, 100)}
}

func (h *harness) addSchedule(t *testing.T, locked, perBlock int64, start abi.ChainEpoch) {
	require.NoError(t, h.sim.AddSchedule(h.who, vesting.NewVestingSchedule(vara(locked), vara(perBlock), start)))
}

func (h *harness) start(t *testing.T, cfg monitor.Config) *monitor.Monitor {
	m := monitor.New(h.sim, h.sim, h.who, cfg)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Close)
	return m
}

func parsePhase(status string) runtime.TxPhase {
	switch strings.TrimPrefix(status, "Current transaction status: ") {
	case runtime.TxReady.String():
		return runtime.TxReady
	case runtime.TxInBlock.String():
		return runtime.TxInBlock
	}
	return runtime.TxFailed
}

func vara(n int64) abi.TokenAmount {
	return big.Mul(big.NewInt(n), big.NewInt(1_000_000_000_000))
}

func assertVara(t *testing.T, expected int64, actual abi.TokenAmount) {
	assert.True(t, vara(expected).Equals(actual), "expected %s, got %s", vara(expected), actual)
}

// Records callbacks so tests can push values by hand.
type fakeSource struct {
	lk           sync.Mutex
	locksErr     error
	subscribed   int
	unsubscribed int

	pushVesting func([]vesting.VestingSchedule, bool)
	pushLocks   func([]builtin.BalanceLock)
	pushHead    func(abi.ChainEpoch)
}

var _ runtime.ChainSource = (*fakeSource)(nil)

func (f *fakeSource) SubscribeVesting(_ context.Context, _ addr.Address, cb func([]vesting.VestingSchedule, bool)) (runtime.Unsubscribe, error) {
	f.lk.Lock()
	defer f.lk.Unlock()
	f.pushVesting = cb
	return f.acquire(), nil
}

func (f *fakeSource) SubscribeLocks(_ context.Context, _ addr.Address, cb func([]builtin.BalanceLock)) (runtime.Unsubscribe, error) {
	f.lk.Lock()
	defer f.lk.Unlock()
	if f.locksErr != nil {
		return nil, f.locksErr
	}
	f.pushLocks = cb
	return f.acquire(), nil
}

func (f *fakeSource) SubscribeBestNumber(_ context.Context, cb func(abi.ChainEpoch)) (runtime.Unsubscribe, error) {
	f.lk.Lock()
	defer f.lk.Unlock()
	f.pushHead = cb
	return f.acquire(), nil
}

// Must be called with lk held.
func (f *fakeSource) acquire() runtime.Unsubscribe {
	f.subscribed++
	var once sync.Once
	return func() {
		once.Do(func() {
			f.lk.Lock()
			defer f.lk.Unlock()
			f.unsubscribed++
		})
	}
}
