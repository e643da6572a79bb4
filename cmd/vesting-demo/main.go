package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
	"golang.org/x/text/language"
	"golang.org/x/xerrors"

	"github.com/EpiK-Protocol/go-epik-vesting/actors/builtin/vesting"
	"github.com/EpiK-Protocol/go-epik-vesting/actors/util/format"
	"github.com/EpiK-Protocol/go-epik-vesting/monitor"
	"github.com/EpiK-Protocol/go-epik-vesting/support/chain"
)

var formatFlags = []cli.Flag{
	&cli.IntFlag{Name: "decimals", Value: 12, Usage: "decimal places of the base unit"},
	&cli.StringFlag{Name: "unit", Value: "VARA", Usage: "base unit symbol"},
	&cli.StringFlag{Name: "locale", Value: "en", Usage: "BCP 47 tag selecting number separators"},
	&cli.StringFlag{Name: "force-unit", Usage: "SI prefix to display amounts in, '-' for the base unit"},
	&cli.BoolFlag{Name: "all", Usage: "show every fractional digit"},
	&cli.BoolFlag{Name: "trim", Usage: "drop trailing fractional zeros"},
}

var runCmd = &cli.Command{
	Name:        "run",
	Description: "seed a simulated chain with one vesting schedule, advance it and show the account's vesting state",
	Flags: append([]cli.Flag{
		&cli.StringFlag{Name: "locked", Value: "1000000000000000", Usage: "amount locked by the schedule, in the smallest unit"},
		&cli.StringFlag{Name: "per-block", Value: "10000000000000", Usage: "amount released per block, in the smallest unit"},
		&cli.Int64Flag{Name: "start", Value: 50, Usage: "block at which vesting starts"},
		&cli.Int64Flag{Name: "blocks", Value: 75, Usage: "chain height to advance to"},
		&cli.Uint64Flag{Name: "account", Value: 1000, Usage: "ID of the vesting account"},
		&cli.StringFlag{Name: "policy", Value: vesting.ClaimFromLockDelta.String(), Usage: "claim policy: lock-delta or vested-total"},
		&cli.BoolFlag{Name: "unlock", Usage: "submit the vest call after advancing"},
	}, formatFlags...),
	Action: runDemoCmd,
}

var formatCmd = &cli.Command{
	Name:        "format",
	Description: "format an amount given in the smallest unit",
	ArgsUsage:   "<amount>",
	Flags:       formatFlags,
	Action:      runFormatCmd,
}

func main() {
	app := &cli.App{
		Name:        "vesting-demo",
		Usage:       "Inspect and release vested balances on a simulated chain",
		Description: "Inspect and release vested balances on a simulated chain",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "debug, info, warn or error"},
		},
		Before: func(cctx *cli.Context) error {
			lvl, err := logging.LevelFromString(cctx.String("log-level"))
			if err != nil {
				return err
			}
			logging.SetAllLoggers(lvl)
			return nil
		},
		Commands: []*cli.Command{
			runCmd,
			formatCmd,
		},
	}
	sort.Sort(cli.CommandsByName(app.Commands))
	for _, c := range app.Commands {
		sort.Sort(cli.FlagsByName(c.Flags))
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDemoCmd(cctx *cli.Context) error {
	opts, err := formatOptions(cctx)
	if err != nil {
		return err
	}
	policy, err := vesting.ParseClaimPolicy(cctx.String("policy"))
	if err != nil {
		return err
	}
	locked, err := big.FromString(cctx.String("locked"))
	if err != nil {
		return xerrors.Errorf("invalid locked amount: %w", err)
	}
	perBlock, err := big.FromString(cctx.String("per-block"))
	if err != nil {
		return xerrors.Errorf("invalid per-block amount: %w", err)
	}
	who, err := addr.NewIDAddress(cctx.Uint64("account"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cctx.Context)
	defer cancel()

	sim, err := chain.NewSim(ctx)
	if err != nil {
		return err
	}
	if err := sim.AddSchedule(who, vesting.NewVestingSchedule(locked, perBlock, abi.ChainEpoch(cctx.Int64("start")))); err != nil {
		return err
	}

	cfg := monitor.DefaultConfig()
	cfg.Policy = policy
	cfg.Format = opts
	cfg.CheckInvariants = true

	out := cctx.App.Writer
	return monitor.Run(ctx, sim, sim, who, cfg, func(m *monitor.Monitor) error {
		if err := sim.SetHead(abi.ChainEpoch(cctx.Int64("blocks"))); err != nil {
			return err
		}
		if err := monitor.Render(out, m.Snapshot(), opts); err != nil {
			return err
		}
		if !cctx.Bool("unlock") {
			return nil
		}

		if _, err := m.Unlock(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out)
		return monitor.Render(out, m.Snapshot(), opts)
	})
}

func runFormatCmd(cctx *cli.Context) error {
	opts, err := formatOptions(cctx)
	if err != nil {
		return err
	}
	amount, err := big.FromString(cctx.Args().First())
	if err != nil {
		return xerrors.Errorf("invalid amount %q: %w", cctx.Args().First(), err)
	}
	fmt.Fprintln(cctx.App.Writer, format.FormatBalance(amount, opts))
	return nil
}

func formatOptions(cctx *cli.Context) (format.Options, error) {
	tag, err := language.Parse(cctx.String("locale"))
	if err != nil {
		return format.Options{}, xerrors.Errorf("invalid locale: %w", err)
	}
	opts := format.DefaultOptions()
	opts.Decimals = cctx.Int("decimals")
	opts.Unit = cctx.String("unit")
	opts.Locale = tag
	opts.ForceUnit = cctx.String("force-unit")
	opts.WithAll = cctx.Bool("all")
	opts.TrimZeros = cctx.Bool("trim")
	return opts, nil
}
