package monitor

import (
	"github.com/EpiK-Protocol/go-epik-vesting/actors/builtin"
	"github.com/EpiK-Protocol/go-epik-vesting/actors/builtin/vesting"
	"github.com/EpiK-Protocol/go-epik-vesting/actors/util/format"
)

type Config struct {
	// How the amount released by earlier unlocks is derived.
	Policy vesting.ClaimPolicy
	// Balance lock holding the unvested amount.
	LockID builtin.LockID
	// Display of amounts in labels.
	Format format.Options
	// Log a warning when a computed state breaks an invariant.
	CheckInvariants bool
}

func DefaultConfig() Config {
	return Config{
		Policy: vesting.ClaimFromLockDelta,
		LockID: builtin.VestingLockID,
		Format: format.DefaultOptions(),
	}
}
