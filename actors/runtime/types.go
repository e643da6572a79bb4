package runtime

import (
	"context"
	"fmt"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/ipfs/go-cid"

	"github.com/EpiK-Protocol/go-epik-vesting/actors/builtin"
	"github.com/EpiK-Protocol/go-epik-vesting/actors/builtin/vesting"
)

// Interfaces of the chain client consumed by the vesting monitor.

// Unsubscribe cancels a subscription. Calling it more than once has no effect.
type Unsubscribe func()

// ChainSource pushes chain state for an account. Each subscription delivers the current
// value before returning and then every subsequent change, until unsubscribed.
type ChainSource interface {
	// SubscribeVesting delivers the account's vesting schedules. found is false when the
	// account has no vesting entry at all.
	SubscribeVesting(ctx context.Context, who addr.Address, cb func(schedules []vesting.VestingSchedule, found bool)) (Unsubscribe, error)
	// SubscribeLocks delivers every balance lock held against the account.
	SubscribeLocks(ctx context.Context, who addr.Address, cb func(locks []builtin.BalanceLock)) (Unsubscribe, error)
	// SubscribeBestNumber delivers the height of the best block.
	SubscribeBestNumber(ctx context.Context, cb func(height abi.ChainEpoch)) (Unsubscribe, error)
}

// TxSubmitter signs and submits a call on behalf of an account.
type TxSubmitter interface {
	// SubmitCall returns a channel of status updates that is closed after a final status.
	SubmitCall(ctx context.Context, from addr.Address, call builtin.Call) (<-chan TxStatus, error)
}

type TxPhase int

const (
	TxReady TxPhase = iota
	TxInBlock
	TxFinalized
	TxFailed
)

func (p TxPhase) String() string {
	switch p {
	case TxReady:
		return "Ready"
	case TxInBlock:
		return "InBlock"
	case TxFinalized:
		return "Finalized"
	case TxFailed:
		return "Failed"
	default:
		return fmt.Sprintf("TxPhase(%d)", int(p))
	}
}

// Final reports whether no further status follows.
func (p TxPhase) Final() bool {
	return p == TxFinalized || p == TxFailed
}

// TxStatus is one step in the life of a submitted call.
type TxStatus struct {
	Phase     TxPhase
	TxID      cid.Cid // Identifier of the submitted extrinsic.
	BlockHash string  // Hex hash of the including block, once included.
	Err       error   // Set when Phase is TxFailed.
}
