package monitor

import (
	"context"
	"fmt"
	"sync"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/EpiK-Protocol/go-epik-vesting/actors/builtin"
	"github.com/EpiK-Protocol/go-epik-vesting/actors/builtin/vesting"
	"github.com/EpiK-Protocol/go-epik-vesting/actors/runtime"
)

var log = logging.Logger("monitor")

// Snapshot is the monitor's view of an account at one point in time.
type Snapshot struct {
	Account       addr.Address
	Policy        vesting.ClaimPolicy
	HasVesting    bool
	Schedules     []vesting.VestingSchedule
	CurrentBlock  abi.ChainEpoch
	LockedOnChain abi.TokenAmount
	// Nil when the latest inputs were invalid; Err holds the reason.
	State  *vesting.VestingState
	Err    error
	Status string
}

// Monitor tracks the vesting state of one account. It keeps the latest value pushed by each
// chain feed and recomputes the state whenever any of them changes.
type Monitor struct {
	cfg       Config
	calc      vesting.Calculator
	source    runtime.ChainSource
	submitter runtime.TxSubmitter
	who       addr.Address

	// Held while a snapshot is delivered, so listeners see updates in order.
	notifyLk sync.Mutex

	lk            sync.Mutex
	started       bool
	closed        bool
	unsubs        []runtime.Unsubscribe
	hasVesting    bool
	schedules     []vesting.VestingSchedule
	lockedOnChain abi.TokenAmount
	head          abi.ChainEpoch
	state         *vesting.VestingState
	err           error
	status        string
	nextListener  uint64
	listeners     map[uint64]func(Snapshot)
}

func New(source runtime.ChainSource, submitter runtime.TxSubmitter, who addr.Address, cfg Config) *Monitor {
	m := &Monitor{
		cfg:           cfg,
		calc:          vesting.Calculator{Policy: cfg.Policy},
		source:        source,
		submitter:     submitter,
		who:           who,
		lockedOnChain: big.Zero(),
		listeners:     make(map[uint64]func(Snapshot)),
	}
	m.recomputeLocked()
	return m
}

// Run starts a monitor, passes it to fn and closes it when fn returns.
func Run(ctx context.Context, source runtime.ChainSource, submitter runtime.TxSubmitter, who addr.Address, cfg Config, fn func(*Monitor) error) error {
	m := New(source, submitter, who, cfg)
	if err := m.Start(ctx); err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

// Start subscribes to the account's schedules, its balance locks and the best block number.
// Subscriptions end when ctx is done or Close is called. If any subscription fails the ones
// already acquired are released.
func (m *Monitor) Start(ctx context.Context) error {
	m.lk.Lock()
	if m.started {
		m.lk.Unlock()
		return xerrors.New("monitor already started")
	}
	m.started = true
	m.lk.Unlock()

	var grp errgroup.Group
	var unsubVesting, unsubLocks, unsubHead runtime.Unsubscribe
	grp.Go(func() error {
		var err error
		unsubVesting, err = m.source.SubscribeVesting(ctx, m.who, m.onVesting)
		if err != nil {
			return xerrors.Errorf("failed to subscribe to vesting of %s: %w", m.who, err)
		}
		return nil
	})
	grp.Go(func() error {
		var err error
		unsubLocks, err = m.source.SubscribeLocks(ctx, m.who, m.onLocks)
		if err != nil {
			return xerrors.Errorf("failed to subscribe to locks of %s: %w", m.who, err)
		}
		return nil
	})
	grp.Go(func() error {
		var err error
		unsubHead, err = m.source.SubscribeBestNumber(ctx, m.onHead)
		if err != nil {
			return xerrors.Errorf("failed to subscribe to best number: %w", err)
		}
		return nil
	})
	err := grp.Wait()

	var acquired []runtime.Unsubscribe
	for _, u := range []runtime.Unsubscribe{unsubVesting, unsubLocks, unsubHead} {
		if u != nil {
			acquired = append(acquired, u)
		}
	}

	m.lk.Lock()
	if err == nil && !m.closed {
		m.unsubs = acquired
		acquired = nil
	}
	m.lk.Unlock()

	for _, u := range acquired {
		u()
	}
	if err != nil {
		log.Errorw("failed to start monitor", "account", m.who, "error", err)
		return err
	}
	log.Debugw("monitor started", "account", m.who, "policy", m.cfg.Policy)
	return nil
}

// Close releases every subscription. It is safe to call more than once.
func (m *Monitor) Close() {
	m.lk.Lock()
	if m.closed {
		m.lk.Unlock()
		return
	}
	m.closed = true
	unsubs := m.unsubs
	m.unsubs = nil
	m.lk.Unlock()

	for _, u := range unsubs {
		u()
	}
	log.Debugw("monitor closed", "account", m.who)
}

func (m *Monitor) Snapshot() Snapshot {
	m.lk.Lock()
	defer m.lk.Unlock()
	return m.snapshotLocked()
}

// Subscribe registers fn to receive every new snapshot. The returned function removes it.
func (m *Monitor) Subscribe(fn func(Snapshot)) func() {
	m.lk.Lock()
	defer m.lk.Unlock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	return func() {
		m.lk.Lock()
		defer m.lk.Unlock()
		delete(m.listeners, id)
	}
}

// Unlock submits the vesting release call for the account and follows it to a final status.
// Each status is published as the snapshot's status text.
func (m *Monitor) Unlock(ctx context.Context) (runtime.TxStatus, error) {
	ch, err := m.submitter.SubmitCall(ctx, m.who, builtin.MethodsVesting.Vest)
	if err != nil {
		m.update(func() { m.status = fmt.Sprintf("😞 Transaction Failed: %s", err) })
		return runtime.TxStatus{}, xerrors.Errorf("failed to submit %s: %w", builtin.MethodsVesting.Vest, err)
	}

	var last runtime.TxStatus
	for {
		select {
		case st, ok := <-ch:
			if !ok {
				return last, nil
			}
			last = st
			m.update(func() { m.status = StatusText(st) })
			if st.Phase == runtime.TxFailed {
				log.Warnw("unlock failed", "account", m.who, "tx", st.TxID, "error", st.Err)
			}
		case <-ctx.Done():
			return last, ctx.Err()
		}
	}
}

// StatusText describes a transaction status for display.
func StatusText(st runtime.TxStatus) string {
	switch st.Phase {
	case runtime.TxFinalized:
		return fmt.Sprintf("😉 Finalized. Block hash: %s", st.BlockHash)
	case runtime.TxFailed:
		return fmt.Sprintf("😞 Transaction Failed: %v", st.Err)
	default:
		return fmt.Sprintf("Current transaction status: %s", st.Phase)
	}
}

func (m *Monitor) onVesting(schedules []vesting.VestingSchedule, found bool) {
	m.update(func() {
		m.hasVesting = found
		m.schedules = append([]vesting.VestingSchedule(nil), schedules...)
		m.recomputeLocked()
	})
}

func (m *Monitor) onLocks(locks []builtin.BalanceLock) {
	m.update(func() {
		m.lockedOnChain, _ = builtin.FindLock(locks, m.cfg.LockID)
		m.recomputeLocked()
	})
}

func (m *Monitor) onHead(h abi.ChainEpoch) {
	m.update(func() {
		if h < m.head {
			log.Warnw("ignoring regressed block height", "current", m.head, "received", h)
			return
		}
		m.head = h
		m.recomputeLocked()
	})
}

// Applies fn under the state lock then delivers the resulting snapshot to listeners.
func (m *Monitor) update(fn func()) {
	m.notifyLk.Lock()
	defer m.notifyLk.Unlock()

	m.lk.Lock()
	fn()
	snap := m.snapshotLocked()
	listeners := make([]func(Snapshot), 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.lk.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (m *Monitor) recomputeLocked() {
	st, err := m.calc.Compute(m.schedules, m.head, m.lockedOnChain)
	if err != nil {
		log.Errorw("failed to compute vesting state", "account", m.who, "block", m.head, "error", err)
		m.state, m.err = nil, err
		return
	}
	if m.cfg.CheckInvariants {
		if acc := vesting.CheckStateInvariants(st, m.schedules, m.head); !acc.IsEmpty() {
			log.Warnw("vesting state invariants broken", "account", m.who, "messages", acc.Messages())
		}
	}
	m.state, m.err = st, nil
}

func (m *Monitor) snapshotLocked() Snapshot {
	return Snapshot{
		Account:       m.who,
		Policy:        m.cfg.Policy,
		HasVesting:    m.hasVesting,
		Schedules:     append([]vesting.VestingSchedule(nil), m.schedules...),
		CurrentBlock:  m.head,
		LockedOnChain: m.lockedOnChain,
		State:         m.state,
		Err:           m.err,
		Status:        m.status,
	}
}
