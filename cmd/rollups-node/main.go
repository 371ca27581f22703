// Command rollups-node runs every worker described in spec.md §4: the
// blockchain reader, machine runner, epoch manager, and dispute
// player, under a single Supervisor that exits non-zero with the
// first fatal error any of them reports.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/rollups-dave/node/chainreader"
	"github.com/rollups-dave/node/contracts"
	"github.com/rollups-dave/node/disputeplayer"
	"github.com/rollups-dave/node/epochmanager"
	"github.com/rollups-dave/node/internal/config"
	"github.com/rollups-dave/node/internal/rlog"
	"github.com/rollups-dave/node/machine"
	"github.com/rollups-dave/node/machinerunner"
	"github.com/rollups-dave/node/rpctransport"
	"github.com/rollups-dave/node/statestore"
	"github.com/rollups-dave/node/supervisor"
)

const snapshotDuration = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "rollups-node",
		Usage: "drives the interactive dispute protocol for one Cartesi application",
		Flags: config.Flags,
		Action: func(c *cli.Context) error {
			return run(c.Context, c)
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *cli.Context) error {
	cfg, err := config.FromContext(ctx, c)
	if err != nil {
		return err
	}

	client, err := rpctransport.Dial(ctx, cfg.Web3RPCURL)
	if err != nil {
		return err
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return err
	}
	if chainID.Uint64() != cfg.Web3ChainID {
		return fmt.Errorf("rollups-node: provider chain id %d does not match --web3-chain-id %d", chainID.Uint64(), cfg.Web3ChainID)
	}

	addressBook, err := config.NewAddressBook(ctx, cfg.AppAddress, client, client)
	if err != nil {
		return err
	}

	store, err := statestore.Open(cfg.StateDir)
	if err != nil {
		return err
	}
	defer store.Close()

	templateMachine := machine.NewFake()
	if err := templateMachine.Load(ctx, cfg.MachinePath); err != nil {
		return err
	}
	if err := store.Migrate(ctx, addressBook.GenesisBlock, templateMachine); err != nil {
		return err
	}

	inputBox, err := contracts.NewInputBoxFilterer(addressBook.InputBox, client)
	if err != nil {
		return err
	}
	consensus, err := contracts.NewConsensusCaller(addressBook.Consensus, client)
	if err != nil {
		return err
	}

	transactor, err := cfg.Signer.TransactOpts(ctx, chainID)
	if err != nil {
		return err
	}

	watch := supervisor.NewWatch()

	reader := chainreader.NewReader(client, inputBox, consensus, cfg.AppAddress, store, cfg.SleepDuration, watch)

	runnerMachine := machine.NewFake()
	if err := runnerMachine.Load(ctx, cfg.MachinePath); err != nil {
		return err
	}
	runner := machinerunner.New(store, runnerMachine, cfg.SleepDuration, snapshotDuration)

	epochs := epochmanager.New(consensus, store, transactor, cfg.SleepDuration)

	playerMachine := machine.NewFake()
	if err := playerMachine.Load(ctx, cfg.MachinePath); err != nil {
		return err
	}
	commitments := disputeplayer.NewDefaultCommitmentSource(playerMachine, store)

	sealed, err := store.LastSealedEpoch()
	if err != nil {
		return err
	}
	var workers []supervisor.Worker
	workers = append(workers, reader, runner, epochs)
	if sealed != nil {
		rootTournament := common.HexToAddress(sealed.RootTournament)
		player := disputeplayer.New(client, client, client, transactor, commitments, rootTournament, cfg.SleepDuration)
		workers = append(workers, player)
	} else {
		rlog.Info("rollups-node: no sealed epoch at startup, dispute player not started")
	}

	sup := supervisor.New(watch, workers...)
	return sup.Run(ctx)
}
