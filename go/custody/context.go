// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package custody

//go:generate mockgen -source context.go -destination context_mock.go -package custody

// Snapshot identifies a point in the state journal that can be restored.
type Snapshot int

// StateContext provides access to the world state a request operates on.
// All modifications are journaled so that they can be discarded by
// restoring a snapshot taken before them.
type StateContext interface {
	GetBalance(Address) Value
	SetBalance(Address, Value)

	GetStorage(Address, Key) Word
	SetStorage(Address, Key, Word)

	EmitLog(Log)
	GetLogs() []Log

	CreateSnapshot() Snapshot
	RestoreSnapshot(Snapshot)
}

// CallParameters describe a call from one address to another.
type CallParameters struct {
	Sender    Address // the immediate caller
	Recipient Address // the called address
	Value     Value   // base currency moved from sender to recipient
	Gas       Gas     // the gas available to the call
	Input     Data    // the call data
}

// CallResult summarizes a successful call. Failed calls are reported
// through the error result of Call and leave no effects behind.
type CallResult struct {
	Output  Data
	GasUsed Gas
}

// RunContext is the environment handed to contracts. In addition to the
// state it allows nested calls to other addresses.
type RunContext interface {
	StateContext

	// BlockParameters returns the environment of the current request.
	BlockParameters() BlockParameters

	// Call performs a nested call. All effects of a failing call are
	// reverted before the error is returned.
	Call(CallParameters) (CallResult, error)
}

// Contract is the executable logic bound to an address.
type Contract interface {
	// RequiredGas returns the gas charged before Run is invoked.
	RequiredGas(input Data) Gas

	// Run executes the contract. An error reverts all effects of the call.
	Run(ctx RunContext, parameters CallParameters) (Data, error)
}
