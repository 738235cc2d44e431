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
	"github.com/panoptisDev/custody/go/custody"
)

type GasSchedule struct {
	CallGas          custody.Gas // charged per instruction
	ValueTransferGas custody.Gas // charged per instruction moving value
	DataZeroGas      custody.Gas // per zero byte of call data
	DataNonZeroGas   custody.Gas // per non-zero byte of call data
}

func DefaultGasSchedule() GasSchedule {
	return GasSchedule{
		CallGas:          700,
		ValueTransferGas: 9000,
		DataZeroGas:      4,
		DataNonZeroGas:   16,
	}
}

// DataGas is the price of the given call data.
func (s GasSchedule) DataGas(data []byte) custody.Gas {
	var gas custody.Gas
	for _, cur := range data {
		if cur == 0 {
			gas += s.DataZeroGas
		} else {
			gas += s.DataNonZeroGas
		}
	}
	return gas
}

// IntrinsicGas is the gas charged for an instruction before the callee runs.
func (s GasSchedule) IntrinsicGas(instruction custody.Instruction) custody.Gas {
	gas := s.CallGas + s.DataGas(instruction.Data)
	if !instruction.Value.IsZero() {
		gas += s.ValueTransferGas
	}
	return gas
}

type Result struct {
	GasUsed custody.Gas
	Outputs [][]byte
}

// SelfHandler runs instructions addressed to the executing account.
type SelfHandler interface {
	// RequiredGas is charged against the instruction's gas limit before
	// RunSelf is invoked.
	RequiredGas(input custody.Data) custody.Gas
	RunSelf(ctx custody.RunContext, instruction custody.Instruction) (custody.Data, error)
}

// Executor runs instruction batches on behalf of an account. A batch either
// completes as a whole or leaves no trace.
type Executor struct {
	schedule GasSchedule
}

func New(schedule GasSchedule) *Executor {
	return &Executor{schedule: schedule}
}

// Execute runs the batch in order with the account as sender. If self is
// not nil, instructions targeting the account are passed to it instead of
// being routed through the context.
func (e *Executor) Execute(
	ctx custody.RunContext,
	account custody.Address,
	batch custody.Batch,
	self SelfHandler,
) (result Result, err error) {
	if len(batch) == 0 {
		return Result{}, custody.ErrEmptyBatch
	}
	if self != nil {
		ctx = selfRoutingContext{RunContext: ctx, account: account, handler: self}
	}

	snapshot := ctx.CreateSnapshot()
	defer func() {
		if err != nil {
			ctx.RestoreSnapshot(snapshot)
		}
	}()

	result.Outputs = make([][]byte, 0, len(batch))
	for i, instruction := range batch {
		call, err := ctx.Call(custody.CallParameters{
			Sender:    account,
			Recipient: instruction.Destination,
			Value:     instruction.Value,
			Gas:       instruction.GasLimit,
			Input:     instruction.Data,
		})
		if err != nil {
			return Result{}, &custody.SubcallRevertedError{Index: i, Err: err}
		}
		result.GasUsed += e.schedule.IntrinsicGas(instruction) + call.GasUsed
		result.Outputs = append(result.Outputs, call.Output)
	}
	return result, nil
}
