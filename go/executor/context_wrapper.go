// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package executor

import (
	"fmt"

	"github.com/panoptisDev/custody/go/custody"
)

// selfRoutingContext is a wrapper around the custody.RunContext
// that hands calls from the account to itself to a dedicated handler.
type selfRoutingContext struct {
	custody.RunContext
	account custody.Address
	handler SelfHandler
}

// Call overrides the Call method so that calls of the account to itself
// never pass the generic router, which grants no privileges to the caller.
// All other calls are forwarded unchanged.
func (c selfRoutingContext) Call(parameters custody.CallParameters) (result custody.CallResult, err error) {
	if parameters.Sender != c.account || parameters.Recipient != c.account {
		return c.RunContext.Call(parameters)
	}

	snapshot := c.CreateSnapshot()
	defer func() {
		if err != nil {
			c.RestoreSnapshot(snapshot)
		}
	}()

	// the value stays with the account, but it has to be covered
	if !parameters.Value.IsZero() && c.GetBalance(c.account).Cmp(parameters.Value) < 0 {
		return custody.CallResult{}, fmt.Errorf("%w: %v cannot send %v", custody.ErrInsufficientBalance, c.account, parameters.Value)
	}

	required := c.handler.RequiredGas(parameters.Input)
	if parameters.Gas < required {
		return custody.CallResult{GasUsed: parameters.Gas}, fmt.Errorf("%w: %d required, %d available", custody.ErrOutOfGas, required, parameters.Gas)
	}

	output, err := c.handler.RunSelf(c.RunContext, custody.Instruction{
		Destination: parameters.Recipient,
		Value:       parameters.Value,
		GasLimit:    parameters.Gas - required,
		Data:        parameters.Input,
	})
	if err != nil {
		return custody.CallResult{GasUsed: required}, err
	}
	return custody.CallResult{Output: output, GasUsed: required}, nil
}
