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

import (
	"fmt"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Instruction is a single sub-call of a batch.
type Instruction struct {
	Destination Address // the target of the call
	Value       Value   // the amount of base currency sent along with the call
	GasLimit    Gas     // the maximum gas the call may consume
	Data        Data    // the raw payload interpreted by the destination
}

// Batch is an ordered list of instructions executed as one unit. The order
// is significant for both hashing and execution.
type Batch []Instruction

// FeeParameters define the compensation a relayer receives for carrying a
// meta-transaction. They are part of the signed request hash.
type FeeParameters struct {
	GasPrice     Value   // price per gas unit in base currency
	GasOverhead  Gas     // gas charged on top of the measured execution
	FeeToken     Address // NativeToken or the fungible token used for payment
	FeeTokenRate Value   // token units per 1e18 units of base currency
}

// IsNative reports whether the fee is settled in the base currency.
func (f FeeParameters) IsNative() bool {
	return f.FeeToken == NativeToken
}

var instructionArguments = abi.Arguments{
	{Type: mustType("address")},
	{Type: mustType("uint256")},
	{Type: mustType("uint256")},
	{Type: mustType("bytes")},
}

func mustType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(fmt.Sprintf("invalid abi type %q: %v", name, err))
	}
	return t
}

// Encode produces the canonical encoding of a single instruction,
// abi.encode(address, uint256, uint256, bytes).
func (i Instruction) Encode() ([]byte, error) {
	data := i.Data
	if data == nil {
		data = Data{}
	}
	return instructionArguments.Pack(
		i.Destination,
		i.Value.ToBig(),
		new(big.Int).SetUint64(uint64(i.GasLimit)),
		[]byte(data),
	)
}

// DecodeInstruction parses the canonical encoding of an instruction.
func DecodeInstruction(encoded []byte) (Instruction, error) {
	values, err := instructionArguments.Unpack(encoded)
	if err != nil {
		return Instruction{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	destination, ok0 := values[0].(Address)
	value, ok1 := values[1].(*big.Int)
	gasLimit, ok2 := values[2].(*big.Int)
	data, ok3 := values[3].([]byte)
	if !ok0 || !ok1 || !ok2 || !ok3 {
		return Instruction{}, fmt.Errorf("%w: unexpected instruction layout", ErrMalformedInput)
	}
	converted, ok := ValueFromBig(value)
	if !ok {
		return Instruction{}, fmt.Errorf("%w: value out of range", ErrMalformedInput)
	}
	if !gasLimit.IsUint64() {
		return Instruction{}, fmt.Errorf("%w: gas limit out of range", ErrMalformedInput)
	}
	return Instruction{
		Destination: destination,
		Value:       converted,
		GasLimit:    Gas(gasLimit.Uint64()),
		Data:        data,
	}, nil
}

// Encode produces the order preserving list of instruction encodings that
// is hashed for authorization and transported in the bytes[] argument of
// the entry points.
func (b Batch) Encode() ([][]byte, error) {
	res := make([][]byte, 0, len(b))
	for i, instruction := range b {
		encoded, err := instruction.Encode()
		if err != nil {
			return nil, fmt.Errorf("failed to encode instruction %d: %w", i, err)
		}
		res = append(res, encoded)
	}
	return res, nil
}

// DecodeBatch is the inverse of Batch.Encode.
func DecodeBatch(encoded [][]byte) (Batch, error) {
	if len(encoded) == 0 {
		return nil, ErrEmptyBatch
	}
	res := make(Batch, 0, len(encoded))
	for i, cur := range encoded {
		instruction, err := DecodeInstruction(cur)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		res = append(res, instruction)
	}
	return res, nil
}

// IndexOf returns the index of the first instruction sent to the given
// address, or -1 if there is none.
func (b Batch) IndexOf(destination Address) int {
	return slices.IndexFunc(b, func(instruction Instruction) bool {
		return instruction.Destination == destination
	})
}
