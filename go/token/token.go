// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package token

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/panoptisDev/custody/go/custody"
	"github.com/panoptisDev/custody/go/state"
)

const tokenABI = `[
	{"type":"function","name":"transfer","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"totalSupply","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"Transfer","anonymous":false,
	 "inputs":[{"name":"from","type":"address","indexed":true},
	           {"name":"to","type":"address","indexed":true},
	           {"name":"value","type":"uint256","indexed":false}]}
]`

// ABI is the fungible token interface used for fee payments.
var ABI = mustParse(tokenABI)

func mustParse(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(fmt.Sprintf("invalid token abi: %v", err))
	}
	return parsed
}

const (
	TransferGas custody.Gas = 25_000
	ViewGas     custody.Gas = 2_600
)

const (
	balancesSlot    = 0
	totalSupplySlot = 1
)

// Token is a minimal fungible token. Failing transfers revert.
type Token struct {
	address custody.Address
}

var _ custody.Contract = &Token{}

func New(address custody.Address) *Token {
	return &Token{address: address}
}

func (t *Token) Address() custody.Address {
	return t.address
}

func PackTransfer(to custody.Address, amount custody.Value) ([]byte, error) {
	return ABI.Pack("transfer", to, amount.ToBig())
}

func (t *Token) RequiredGas(input custody.Data) custody.Gas {
	if len(input) >= 4 {
		if method, err := ABI.MethodById(input[:4]); err == nil && method.Name == "transfer" {
			return TransferGas
		}
	}
	return ViewGas
}

func (t *Token) Run(ctx custody.RunContext, parameters custody.CallParameters) (custody.Data, error) {
	if len(parameters.Input) < 4 {
		return nil, custody.ErrUnknownSelector
	}
	method, err := ABI.MethodById(parameters.Input[:4])
	if err != nil {
		return nil, fmt.Errorf("%w: %x", custody.ErrUnknownSelector, parameters.Input[:4])
	}
	arguments, err := method.Inputs.Unpack(parameters.Input[4:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", custody.ErrMalformedInput, err)
	}

	switch method.Name {
	case "transfer":
		to, _ := arguments[0].(custody.Address)
		amount, ok := custody.ValueFromBig(arguments[1].(*big.Int))
		if !ok {
			return nil, fmt.Errorf("%w: amount out of range", custody.ErrMalformedInput)
		}
		if err := t.Transfer(ctx, parameters.Sender, to, amount); err != nil {
			return nil, err
		}
		return method.Outputs.Pack(true)
	case "balanceOf":
		owner, _ := arguments[0].(custody.Address)
		return method.Outputs.Pack(t.BalanceOf(ctx, owner).ToBig())
	case "totalSupply":
		return method.Outputs.Pack(t.TotalSupply(ctx).ToBig())
	}
	return nil, fmt.Errorf("%w: %v", custody.ErrUnknownSelector, method.Name)
}

func (t *Token) BalanceOf(ctx custody.StateContext, owner custody.Address) custody.Value {
	return custody.Value(ctx.GetStorage(t.address, state.MappingSlot(owner, balancesSlot)))
}

func (t *Token) TotalSupply(ctx custody.StateContext) custody.Value {
	return custody.Value(ctx.GetStorage(t.address, state.SlotKey(totalSupplySlot)))
}

func (t *Token) setBalance(ctx custody.StateContext, owner custody.Address, value custody.Value) {
	ctx.SetStorage(t.address, state.MappingSlot(owner, balancesSlot), custody.Word(value))
}

// Mint creates new tokens for the given owner.
func (t *Token) Mint(ctx custody.StateContext, to custody.Address, amount custody.Value) error {
	supply := t.TotalSupply(ctx)
	updated := custody.Add(supply, amount)
	if updated.Cmp(supply) < 0 {
		return fmt.Errorf("total supply overflow")
	}
	ctx.SetStorage(t.address, state.SlotKey(totalSupplySlot), custody.Word(updated))
	t.setBalance(ctx, to, custody.Add(t.BalanceOf(ctx, to), amount))
	t.emitTransfer(ctx, custody.Address{}, to, amount)
	return nil
}

func (t *Token) Transfer(ctx custody.StateContext, from, to custody.Address, amount custody.Value) error {
	balance := t.BalanceOf(ctx, from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %v holds %v tokens, %v required", custody.ErrInsufficientBalance, from, balance, amount)
	}
	if from != to {
		t.setBalance(ctx, from, custody.Sub(balance, amount))
		t.setBalance(ctx, to, custody.Add(t.BalanceOf(ctx, to), amount))
	}
	t.emitTransfer(ctx, from, to, amount)
	return nil
}

func (t *Token) emitTransfer(ctx custody.StateContext, from, to custody.Address, amount custody.Value) {
	var fromTopic, toTopic custody.Hash
	copy(fromTopic[12:], from[:])
	copy(toTopic[12:], to[:])
	ctx.EmitLog(custody.Log{
		Address: t.address,
		Topics:  []custody.Hash{ABI.Events["Transfer"].ID, fromTopic, toTopic},
		Data:    custody.Data(amount[:]),
	})
}
