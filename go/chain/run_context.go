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

	"github.com/panoptisDev/custody/go/custody"
)

const MaxRecursiveDepth = 1024

type runContext struct {
	custody.StateContext
	chain *Chain
	depth int
}

var _ custody.RunContext = runContext{}

func (r runContext) BlockParameters() custody.BlockParameters {
	// the chain lock is held for the duration of the transaction
	return r.chain.block
}

func (r runContext) Call(parameters custody.CallParameters) (result custody.CallResult, err error) {
	// The runContext is passed to contracts by value,
	// therefore no decrement of depth is required.
	if err := r.incrementDepth(); err != nil {
		return custody.CallResult{}, err
	}

	snapshot := r.CreateSnapshot()
	defer func() {
		if err != nil {
			r.RestoreSnapshot(snapshot)
		}
	}()

	if !canTransferValue(r, parameters.Value, parameters.Sender, parameters.Recipient) {
		return custody.CallResult{}, fmt.Errorf("%w: %v cannot send %v", custody.ErrInsufficientBalance, parameters.Sender, parameters.Value)
	}
	transferValue(r, parameters.Value, parameters.Sender, parameters.Recipient)

	contract, found := r.chain.contracts[parameters.Recipient]
	if !found {
		// plain value transfer to an externally owned address
		return custody.CallResult{}, nil
	}

	required := contract.RequiredGas(parameters.Input)
	if parameters.Gas < required {
		return custody.CallResult{GasUsed: parameters.Gas}, fmt.Errorf("%w: %d required, %d available", custody.ErrOutOfGas, required, parameters.Gas)
	}
	parameters.Gas -= required

	output, err := contract.Run(r, parameters)
	if err != nil {
		return custody.CallResult{GasUsed: required}, err
	}
	return custody.CallResult{Output: output, GasUsed: required}, nil
}

// incrementDepth increases the depth of the run context.
// In case the maximum call depth is exceeded, an error is returned.
func (r *runContext) incrementDepth() error {
	if r.depth >= MaxRecursiveDepth {
		return custody.ErrMaxDepth
	}
	r.depth++
	return nil
}

func canTransferValue(
	context custody.StateContext,
	value custody.Value,
	sender custody.Address,
	recipient custody.Address,
) bool {
	if value.IsZero() {
		return true
	}

	senderBalance := context.GetBalance(sender)
	if senderBalance.Cmp(value) < 0 {
		return false
	}

	if sender == recipient {
		return true
	}

	receiverBalance := context.GetBalance(recipient)
	updatedBalance := custody.Add(receiverBalance, value)
	if updatedBalance.Cmp(receiverBalance) < 0 || updatedBalance.Cmp(value) < 0 {
		return false
	}

	return true
}

// Only to be called after canTransferValue
func transferValue(
	context custody.StateContext,
	value custody.Value,
	sender custody.Address,
	recipient custody.Address,
) {
	if value.IsZero() || sender == recipient {
		return
	}

	senderBalance := context.GetBalance(sender)
	receiverBalance := context.GetBalance(recipient)
	context.SetBalance(sender, custody.Sub(senderBalance, value))
	context.SetBalance(recipient, custody.Add(receiverBalance, value))
}
