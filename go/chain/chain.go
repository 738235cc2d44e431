// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package chain

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/panoptisDev/custody/go/custody"
	"github.com/panoptisDev/custody/go/state"
)

// Chain is an in-memory host running registered contracts on a shared,
// journaled world state. Top-level transactions are serialized; each one
// either commits all its effects or none of them.
type Chain struct {
	mutex     sync.Mutex
	state     *state.InMemory
	contracts map[custody.Address]custody.Contract
	block     custody.BlockParameters
	logger    log.Logger
}

type Transaction struct {
	Sender    custody.Address
	Recipient custody.Address
	Value     custody.Value
	Gas       custody.Gas
	Input     custody.Data
}

type Receipt struct {
	Success bool
	Output  custody.Data
	GasUsed custody.Gas
	Logs    []custody.Log
}

func New(block custody.BlockParameters) *Chain {
	return &Chain{
		state:     state.NewInMemory(),
		contracts: map[custody.Address]custody.Contract{},
		block:     block,
		logger:    log.New("component", "chain"),
	}
}

// Register installs a contract at the given address, replacing any
// contract previously registered there.
func (c *Chain) Register(address custody.Address, contract custody.Contract) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.contracts[address] = contract
}

func (c *Chain) BlockParameters() custody.BlockParameters {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.block
}

func (c *Chain) SetTimestamp(timestamp int64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.block.Timestamp = timestamp
}

// Fund credits the given address outside of any transaction.
func (c *Chain) Fund(address custody.Address, value custody.Value) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.state.SetBalance(address, custody.Add(c.state.GetBalance(address), value))
	c.state.Commit()
}

func (c *Chain) Balance(address custody.Address) custody.Value {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.state.GetBalance(address)
}

func (c *Chain) Storage(address custody.Address, key custody.Key) custody.Word {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.state.GetStorage(address, key)
}

// Accounts lists all addresses with a non-empty balance or storage.
func (c *Chain) Accounts() []custody.Address {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.state.Accounts()
}

// Apply runs an administrative state update outside of any transaction,
// such as the genesis allocation of token balances. Effects are committed
// only if update succeeds.
func (c *Chain) Apply(update func(custody.StateContext) error) (err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	snapshot := c.state.CreateSnapshot()
	defer func() {
		if err != nil {
			c.state.RestoreSnapshot(snapshot)
		}
		c.state.Commit()
	}()
	return update(c.state)
}

// Execute runs a top-level transaction. On error all effects are reverted
// and the returned receipt reports the failure.
func (c *Chain) Execute(transaction Transaction) (Receipt, error) {
	return c.run(transaction, true)
}

// Query runs a transaction and discards all of its effects.
func (c *Chain) Query(transaction Transaction) (custody.Data, error) {
	receipt, err := c.run(transaction, false)
	return receipt.Output, err
}

func (c *Chain) run(transaction Transaction, commit bool) (receipt Receipt, err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.state.ClearLogs()
	snapshot := c.state.CreateSnapshot()
	defer func() {
		if err != nil || !commit {
			c.state.RestoreSnapshot(snapshot)
		}
		if commit {
			c.state.Commit()
		}
	}()

	context := runContext{
		StateContext: c.state,
		chain:        c,
	}
	result, err := context.Call(custody.CallParameters{
		Sender:    transaction.Sender,
		Recipient: transaction.Recipient,
		Value:     transaction.Value,
		Gas:       transaction.Gas,
		Input:     transaction.Input,
	})
	if err != nil {
		c.logger.Debug("Transaction failed", "sender", transaction.Sender, "recipient", transaction.Recipient, "err", err)
		return Receipt{GasUsed: result.GasUsed}, fmt.Errorf("transaction to %v failed: %w", transaction.Recipient, err)
	}
	return Receipt{
		Success: true,
		Output:  result.Output,
		GasUsed: result.GasUsed,
		Logs:    c.state.GetLogs(),
	}, nil
}
