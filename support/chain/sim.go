package chain

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"sync"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/minio/blake2b-simd"
	mh "github.com/multiformats/go-multihash"
	"golang.org/x/xerrors"

	"github.com/EpiK-Protocol/go-epik-vesting/actors/builtin"
	"github.com/EpiK-Protocol/go-epik-vesting/actors/builtin/vesting"
	"github.com/EpiK-Protocol/go-epik-vesting/actors/runtime"
	"github.com/EpiK-Protocol/go-epik-vesting/actors/util/adt"
	"github.com/EpiK-Protocol/go-epik-vesting/support/ipld"
)

var log = logging.Logger("chain")

var txBuilder = cid.V1Builder{Codec: cid.DagCBOR, MhType: mh.BLAKE2B_MIN + 31}

// Sim is an in-memory chain serving vesting state. It implements runtime.ChainSource and
// runtime.TxSubmitter. Subscriber callbacks are delivered in order, one at a time, and must
// not call back into the Sim.
type Sim struct {
	store adt.Store

	// Serializes callback delivery so subscribers observe changes in order.
	notifyLk sync.Mutex

	lk        sync.Mutex
	st        *State
	head      abi.ChainEpoch
	headHash  [32]byte
	nonce     uint64
	nextSubID uint64

	vestingSubs map[uint64]vestingSub
	lockSubs    map[uint64]lockSub
	headSubs    map[uint64]func(abi.ChainEpoch)
}

type vestingSub struct {
	who addr.Address
	cb  func([]vesting.VestingSchedule, bool)
}

type lockSub struct {
	who addr.Address
	cb  func([]builtin.BalanceLock)
}

var _ runtime.ChainSource = (*Sim)(nil)
var _ runtime.TxSubmitter = (*Sim)(nil)

func NewSim(ctx context.Context) (*Sim, error) {
	store := ipld.NewADTStore(ctx)
	st, err := ConstructState(store)
	if err != nil {
		return nil, err
	}
	return &Sim{
		store:       store,
		st:          st,
		vestingSubs: make(map[uint64]vestingSub),
		lockSubs:    make(map[uint64]lockSub),
		headSubs:    make(map[uint64]func(abi.ChainEpoch)),
	}, nil
}

func (s *Sim) Head() abi.ChainEpoch {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.head
}

// SetHead moves the chain to height h. Heights never regress.
func (s *Sim) SetHead(h abi.ChainEpoch) error {
	return s.moveHead(func(abi.ChainEpoch) abi.ChainEpoch { return h })
}

// Advance produces n empty blocks.
func (s *Sim) Advance(n abi.ChainEpoch) error {
	return s.moveHead(func(curr abi.ChainEpoch) abi.ChainEpoch { return curr + n })
}

// The target height is computed from the current one under the same lock that produces blocks.
func (s *Sim) moveHead(target func(curr abi.ChainEpoch) abi.ChainEpoch) error {
	s.notifyLk.Lock()
	defer s.notifyLk.Unlock()

	s.lk.Lock()
	h := target(s.head)
	if h < s.head {
		s.lk.Unlock()
		return xerrors.Errorf("chain height cannot regress from %d to %d", s.head, h)
	}
	for s.head < h {
		s.produceBlock(nil)
	}
	subs := s.headCallbacks()
	s.lk.Unlock()

	for _, cb := range subs {
		cb(h)
	}
	return nil
}

func (s *Sim) Schedules(who addr.Address) ([]vesting.VestingSchedule, bool, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.st.LoadSchedules(s.store, who)
}

func (s *Sim) Locks(who addr.Address) ([]builtin.BalanceLock, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.st.LoadLocks(s.store, who)
}

// AddSchedule gives who a new vesting schedule, as a vested transfer would. The vesting lock
// is reset to what all of the account's schedules still hold at the current height.
func (s *Sim) AddSchedule(who addr.Address, sched vesting.VestingSchedule) error {
	s.notifyLk.Lock()
	defer s.notifyLk.Unlock()

	s.lk.Lock()
	schedules, _, err := s.st.LoadSchedules(s.store, who)
	if err == nil {
		schedules, err = vesting.AddSchedule(schedules, sched)
	}
	if err == nil {
		err = s.writeVesting(who, schedules, vesting.LockedAt(schedules, s.head))
	}
	if err != nil {
		s.lk.Unlock()
		return xerrors.Errorf("failed to add schedule for %s: %w", who, err)
	}
	deliver := s.accountCallbacks(who)
	s.lk.Unlock()

	deliver()
	return nil
}

func (s *Sim) SubscribeVesting(ctx context.Context, who addr.Address, cb func([]vesting.VestingSchedule, bool)) (runtime.Unsubscribe, error) {
	s.notifyLk.Lock()
	defer s.notifyLk.Unlock()

	s.lk.Lock()
	schedules, found, err := s.st.LoadSchedules(s.store, who)
	if err != nil {
		s.lk.Unlock()
		return nil, err
	}
	id := s.nextSubID
	s.nextSubID++
	s.vestingSubs[id] = vestingSub{who: who, cb: cb}
	s.lk.Unlock()

	cb(schedules, found)
	return s.unsubscriber(ctx, func() { delete(s.vestingSubs, id) }), nil
}

func (s *Sim) SubscribeLocks(ctx context.Context, who addr.Address, cb func([]builtin.BalanceLock)) (runtime.Unsubscribe, error) {
	s.notifyLk.Lock()
	defer s.notifyLk.Unlock()

	s.lk.Lock()
	locks, err := s.st.LoadLocks(s.store, who)
	if err != nil {
		s.lk.Unlock()
		return nil, err
	}
	id := s.nextSubID
	s.nextSubID++
	s.lockSubs[id] = lockSub{who: who, cb: cb}
	s.lk.Unlock()

	cb(locks)
	return s.unsubscriber(ctx, func() { delete(s.lockSubs, id) }), nil
}

func (s *Sim) SubscribeBestNumber(ctx context.Context, cb func(abi.ChainEpoch)) (runtime.Unsubscribe, error) {
	s.notifyLk.Lock()
	defer s.notifyLk.Unlock()

	s.lk.Lock()
	head := s.head
	id := s.nextSubID
	s.nextSubID++
	s.headSubs[id] = cb
	s.lk.Unlock()

	cb(head)
	return s.unsubscriber(ctx, func() { delete(s.headSubs, id) }), nil
}

// SubmitCall includes the call in a new block and executes it there. Only vesting.vest is
// supported. The returned channel already holds every status when SubmitCall returns.
func (s *Sim) SubmitCall(ctx context.Context, from addr.Address, call builtin.Call) (<-chan runtime.TxStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if call != builtin.MethodsVesting.Vest {
		return nil, exitcode.ErrIllegalArgument.Wrapf("unsupported call %s", call)
	}

	s.notifyLk.Lock()
	defer s.notifyLk.Unlock()

	s.lk.Lock()
	txID, err := s.txID(from, call)
	if err != nil {
		s.lk.Unlock()
		return nil, xerrors.Errorf("failed to compute tx id: %w", err)
	}
	out := make(chan runtime.TxStatus, 3)
	out <- runtime.TxStatus{Phase: runtime.TxReady, TxID: txID}

	s.produceBlock(txID.Bytes())
	blockHash := "0x" + hex.EncodeToString(s.headHash[:])
	execErr := s.vest(from)
	heads := s.headCallbacks()
	var deliver func()
	if execErr == nil {
		deliver = s.accountCallbacks(from)
	}
	head := s.head
	s.lk.Unlock()

	out <- runtime.TxStatus{Phase: runtime.TxInBlock, TxID: txID, BlockHash: blockHash}
	if execErr != nil {
		log.Warnw("call failed", "call", call, "from", from, "block", head, "error", execErr)
		out <- runtime.TxStatus{Phase: runtime.TxFailed, TxID: txID, BlockHash: blockHash, Err: execErr}
	} else {
		out <- runtime.TxStatus{Phase: runtime.TxFinalized, TxID: txID, BlockHash: blockHash}
	}
	close(out)

	for _, cb := range heads {
		cb(head)
	}
	if deliver != nil {
		deliver()
	}
	return out, nil
}

// Must be called with lk held.
func (s *Sim) vest(who addr.Address) error {
	schedules, _, err := s.st.LoadSchedules(s.store, who)
	if err != nil {
		return err
	}
	locks, err := s.st.LoadLocks(s.store, who)
	if err != nil {
		return err
	}
	curr, _ := builtin.FindLock(locks, builtin.VestingLockID)

	res, err := vesting.Vest(schedules, s.head, curr)
	if err != nil {
		if xerrors.Is(err, vesting.ErrNotVesting) {
			return exitcode.ErrNotFound.Wrapf("vesting.NotVesting: %s", who)
		}
		return err
	}
	if err := s.writeVesting(who, res.Remaining, res.Locked); err != nil {
		return err
	}

	removed, err := res.Removed.Count()
	if err != nil {
		return err
	}
	log.Infow("vested", "who", who, "block", s.head, "unlocked", res.Unlocked, "locked", res.Locked, "finished", removed)
	return nil
}

// Must be called with lk held.
func (s *Sim) writeVesting(who addr.Address, schedules []vesting.VestingSchedule, locked abi.TokenAmount) error {
	if err := s.st.SaveSchedules(s.store, who, schedules); err != nil {
		return err
	}
	return s.st.SetLock(s.store, who, builtin.VestingLockID, locked)
}

// Must be called with lk held.
func (s *Sim) produceBlock(body []byte) {
	s.head++
	buf := make([]byte, 0, len(s.headHash)+8+len(body))
	buf = append(buf, s.headHash[:]...)
	buf = appendUint64(buf, uint64(s.head))
	buf = append(buf, body...)
	s.headHash = blake2b.Sum256(buf)
}

// Must be called with lk held.
func (s *Sim) txID(from addr.Address, call builtin.Call) (cid.Cid, error) {
	s.nonce++
	buf := make([]byte, 0, 64)
	buf = append(buf, from.Bytes()...)
	buf = append(buf, call.String()...)
	buf = appendUint64(buf, s.nonce)
	return txBuilder.Sum(buf)
}

// Must be called with lk held.
func (s *Sim) headCallbacks() []func(abi.ChainEpoch) {
	cbs := make([]func(abi.ChainEpoch), 0, len(s.headSubs))
	for _, cb := range s.headSubs {
		cbs = append(cbs, cb)
	}
	return cbs
}

// Snapshots who's state and returns a function delivering it to subscribers.
// Must be called with lk held; the returned function must be called without it.
func (s *Sim) accountCallbacks(who addr.Address) func() {
	schedules, found, serr := s.st.LoadSchedules(s.store, who)
	locks, lerr := s.st.LoadLocks(s.store, who)

	var vcbs []func([]vesting.VestingSchedule, bool)
	for _, sub := range s.vestingSubs {
		if sub.who == who {
			vcbs = append(vcbs, sub.cb)
		}
	}
	var lcbs []func([]builtin.BalanceLock)
	for _, sub := range s.lockSubs {
		if sub.who == who {
			lcbs = append(lcbs, sub.cb)
		}
	}

	return func() {
		if serr != nil {
			log.Errorw("failed to load schedules for subscribers", "who", who, "error", serr)
		} else {
			for _, cb := range vcbs {
				cb(schedules, found)
			}
		}
		if lerr != nil {
			log.Errorw("failed to load locks for subscribers", "who", who, "error", lerr)
		} else {
			for _, cb := range lcbs {
				cb(locks)
			}
		}
	}
}

func (s *Sim) unsubscriber(ctx context.Context, remove func()) runtime.Unsubscribe {
	var once sync.Once
	done := make(chan struct{})
	unsub := func() {
		once.Do(func() {
			s.lk.Lock()
			remove()
			s.lk.Unlock()
			close(done)
		})
	}
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				unsub()
			case <-done:
			}
		}()
	}
	return unsub
}

func appendUint64(buf []byte, v uint64) []byte {
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], v)
	return append(buf, scratch[:]...)
}
