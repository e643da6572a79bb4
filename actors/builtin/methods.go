package builtin

import "fmt"

// Call names an on-chain dispatchable by module and method.
type Call struct {
	Pallet string
	Method string
}

func (c Call) String() string {
	return fmt.Sprintf("%s.%s", c.Pallet, c.Method)
}

var MethodsVesting = struct {
	Vest Call
}{
	Call{"vesting", "vest"},
}

var MethodsBalances = struct {
	Transfer Call
}{
	Call{"balances", "transfer"},
}
