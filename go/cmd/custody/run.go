// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/panoptisDev/custody/go/account"
	"github.com/panoptisDev/custody/go/chain"
	"github.com/panoptisDev/custody/go/custody"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

var runCmd = cli.Command{
	Action:    doRun,
	Name:      "run",
	Usage:     "Executes a TOML scenario on an in-memory chain",
	ArgsUsage: "<scenario.toml>",
}

var raceCmd = cli.Command{
	Action: doRace,
	Name:   "race",
	Usage:  "Submits one signed meta-transaction through concurrent relayers",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "relayers",
			Usage: "number of competing relayers",
			Value: 8,
		},
		&cli.Uint64Flag{
			Name:  "gas-price",
			Usage: "gas price offered to the relayers",
			Value: 1_000_000_000,
		},
	},
}

func doRun(context *cli.Context) error {
	if context.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one scenario file, got %d arguments", context.Args().Len())
	}
	scenario, err := LoadScenario(context.Args().First())
	if err != nil {
		return err
	}
	runner, err := newRunner(scenario, context.App.Writer)
	if err != nil {
		return err
	}
	if err := runner.Run(scenario.Steps); err != nil {
		return err
	}
	runner.Report()
	return nil
}

func doRace(context *cli.Context) error {
	relayers := context.Int("relayers")
	if relayers < 1 {
		return fmt.Errorf("at least one relayer is required")
	}
	winner, err := race(relayers, context.Uint64("gas-price"))
	if err != nil {
		return err
	}
	fmt.Fprintf(context.App.Writer, "relayer %v won, %d relayers observed a nonce mismatch\n", winner, relayers-1)
	return nil
}

// race signs one request and submits it through the given number of
// concurrent relayers. It returns the only relayer that got through.
func race(relayers int, gasPrice uint64) (custody.Address, error) {
	const chainID = 1
	key, err := crypto.GenerateKey()
	if err != nil {
		return custody.Address{}, err
	}
	address := custody.Address{0xac}
	c := chain.New(custody.BlockParameters{ChainID: custody.NewValue(chainID)})
	instance, err := account.New(address, account.DefaultConfig())
	if err != nil {
		return custody.Address{}, err
	}
	c.Register(address, instance)
	c.Fund(address, custody.NewValue(1_000_000).Scale(gasPrice))
	if err := c.Apply(func(ctx custody.StateContext) error {
		return instance.Initialize(ctx, crypto.PubkeyToAddress(key.PublicKey))
	}); err != nil {
		return custody.Address{}, err
	}

	batch := custody.Batch{{Destination: custody.Address{0xde}, Value: custody.NewValue(1), GasLimit: 21_000}}
	fee := custody.FeeParameters{GasPrice: custody.NewValue(gasPrice), GasOverhead: 21_000}
	request, err := account.SignAuthKeyRequest(address, custody.NewValue(chainID), 0, batch, fee, key)
	if err != nil {
		return custody.Address{}, err
	}
	input, err := request.Pack()
	if err != nil {
		return custody.Address{}, err
	}

	var mutex sync.Mutex
	var winners []custody.Address
	var group errgroup.Group
	for i := 0; i < relayers; i++ {
		relayer := custody.Address{0xee, byte(i >> 8), byte(i)}
		group.Go(func() error {
			_, err := c.Execute(chain.Transaction{Sender: relayer, Recipient: address, Gas: 10_000_000, Input: input})
			if errors.Is(err, custody.ErrNonceMismatch) {
				return nil
			}
			if err != nil {
				return err
			}
			mutex.Lock()
			defer mutex.Unlock()
			winners = append(winners, relayer)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return custody.Address{}, err
	}
	if len(winners) != 1 {
		return custody.Address{}, fmt.Errorf("expected exactly one winning relayer, got %d", len(winners))
	}
	return winners[0], nil
}
