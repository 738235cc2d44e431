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

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Address is the 20-byte identifier of accounts, keys and contracts.
type Address = common.Address

// Hash is a 32-byte keccak digest.
type Hash = common.Hash

// Key addresses a storage slot of an account.
type Key = common.Hash

// Word is the content of a storage slot.
type Word = common.Hash

// Data is an opaque byte payload handed to a destination.
type Data []byte

// Gas counts units of execution effort.
type Gas uint64

// Selector is the four byte function identifier at the start of call data.
type Selector [4]byte

func (s Selector) String() string {
	return fmt.Sprintf("0x%x", s[:])
}

// NativeToken is the sentinel fee token denoting the chain's base currency.
var NativeToken = Address{}

// Value is an unsigned 256-bit amount in big-endian representation.
type Value [32]byte

func NewValue(value uint64) Value {
	return ValueFromUint256(uint256.NewInt(value))
}

func ValueFromUint256(value *uint256.Int) Value {
	return Value(value.Bytes32())
}

// ValueFromBig converts a non-negative big integer into a Value. The second
// result is false if the value does not fit into 256 bits.
func ValueFromBig(value *big.Int) (Value, bool) {
	if value == nil || value.Sign() < 0 {
		return Value{}, false
	}
	converted, overflow := uint256.FromBig(value)
	if overflow {
		return Value{}, false
	}
	return ValueFromUint256(converted), true
}

func (v Value) ToUint256() *uint256.Int {
	return new(uint256.Int).SetBytes32(v[:])
}

func (v Value) ToBig() *big.Int {
	return v.ToUint256().ToBig()
}

func (v Value) IsZero() bool {
	return v == Value{}
}

func (v Value) Cmp(other Value) int {
	return v.ToUint256().Cmp(other.ToUint256())
}

// Scale multiplies the value by the given factor, wrapping on overflow.
func (v Value) Scale(factor uint64) Value {
	return ValueFromUint256(new(uint256.Int).Mul(v.ToUint256(), uint256.NewInt(factor)))
}

func (v Value) String() string {
	return v.ToUint256().Dec()
}

func (v Value) MarshalText() ([]byte, error) {
	return []byte(v.ToUint256().Hex()), nil
}

func (v *Value) UnmarshalText(text []byte) error {
	parsed, err := uint256.FromHex(string(text))
	if err != nil {
		parsed, err = uint256.FromDecimal(string(text))
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", text, err)
		}
	}
	*v = ValueFromUint256(parsed)
	return nil
}

// Add returns the wrapping sum of the given values.
func Add(a, b Value) Value {
	return ValueFromUint256(new(uint256.Int).Add(a.ToUint256(), b.ToUint256()))
}

// Sub returns the wrapping difference of the given values.
func Sub(a, b Value) Value {
	return ValueFromUint256(new(uint256.Int).Sub(a.ToUint256(), b.ToUint256()))
}

// Log is an event emitted by a contract during a call.
type Log struct {
	Address Address
	Topics  []Hash
	Data    Data
}

// BlockParameters describe the environment a request is executed in.
type BlockParameters struct {
	ChainID   Value
	Timestamp int64 // unix seconds
}
