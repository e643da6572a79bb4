package main

import (
	gen "github.com/whyrusleeping/cbor-gen"

	"github.com/EpiK-Protocol/go-epik-vesting/actors/builtin"
	"github.com/EpiK-Protocol/go-epik-vesting/actors/builtin/vesting"
	"github.com/EpiK-Protocol/go-epik-vesting/support/chain"
)

func main() {
	// Common types
	if err := gen.WriteTupleEncodersToFile("./actors/builtin/cbor_gen.go", "builtin",
		builtin.BalanceLock{},
	); err != nil {
		panic(err)
	}

	// Vesting
	if err := gen.WriteTupleEncodersToFile("./actors/builtin/vesting/cbor_gen.go", "vesting",
		// state
		vesting.VestingSchedule{},
	); err != nil {
		panic(err)
	}

	// Simulated chain
	if err := gen.WriteTupleEncodersToFile("./support/chain/cbor_gen.go", "chain",
		// state
		chain.BalanceLocks{},
	); err != nil {
		panic(err)
	}
}
