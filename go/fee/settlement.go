// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package fee

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/panoptisDev/custody/go/custody"
	"github.com/panoptisDev/custody/go/token"
)

// RateUnit is the fixed-point unit of fee token rates: a rate of RateUnit
// converts one unit of base currency into one token unit.
var RateUnit = uint256.NewInt(1_000_000_000_000_000_000)

// Amount computes the fee owed to the relayer:
// (gasOverhead + gasUsed) * gasPrice in base currency, converted by
// feeTokenRate / RateUnit for token payments.
func Amount(parameters custody.FeeParameters, gasUsed custody.Gas) (custody.Value, error) {
	gas := parameters.GasOverhead + gasUsed
	if gas < gasUsed {
		return custody.Value{}, fmt.Errorf("gas overflow")
	}

	fee, overflow := new(uint256.Int).MulOverflow(parameters.GasPrice.ToUint256(), uint256.NewInt(uint64(gas)))
	if overflow {
		return custody.Value{}, fmt.Errorf("fee overflow")
	}
	if parameters.IsNative() {
		return custody.ValueFromUint256(fee), nil
	}

	fee, overflow = fee.MulOverflow(fee, parameters.FeeTokenRate.ToUint256())
	if overflow {
		return custody.Value{}, fmt.Errorf("token fee overflow")
	}
	return custody.ValueFromUint256(fee.Div(fee, RateUnit)), nil
}

// Settlement pays relayers on behalf of accounts.
type Settlement struct {
	// NativeStipend is the gas forwarded with native payments.
	NativeStipend custody.Gas
	// TokenCallGas is the gas forwarded to the fee token contract.
	TokenCallGas custody.Gas
}

func DefaultSettlement() Settlement {
	return Settlement{
		NativeStipend: 2_300,
		TokenCallGas:  token.TransferGas + 10_000,
	}
}

// Pay transfers the fee for gasUsed from the account to the relayer and
// returns the amount paid. Every failure is reported as
// ErrFeeTransferFailed; the caller is expected to revert the request.
func (s Settlement) Pay(
	ctx custody.RunContext,
	account custody.Address,
	relayer custody.Address,
	parameters custody.FeeParameters,
	gasUsed custody.Gas,
) (custody.Value, error) {
	amount, err := Amount(parameters, gasUsed)
	if err != nil {
		return custody.Value{}, fmt.Errorf("%w: %v", custody.ErrFeeTransferFailed, err)
	}
	if amount.IsZero() {
		return amount, nil
	}

	if parameters.IsNative() {
		_, err := ctx.Call(custody.CallParameters{
			Sender:    account,
			Recipient: relayer,
			Value:     amount,
			Gas:       s.NativeStipend,
		})
		if err != nil {
			return custody.Value{}, fmt.Errorf("%w: %v", custody.ErrFeeTransferFailed, err)
		}
		return amount, nil
	}

	input, err := token.PackTransfer(relayer, amount)
	if err != nil {
		return custody.Value{}, fmt.Errorf("%w: %v", custody.ErrFeeTransferFailed, err)
	}
	result, err := ctx.Call(custody.CallParameters{
		Sender:    account,
		Recipient: parameters.FeeToken,
		Gas:       s.TokenCallGas,
		Input:     input,
	})
	if err != nil {
		return custody.Value{}, fmt.Errorf("%w: %v", custody.ErrFeeTransferFailed, err)
	}
	if !transferSucceeded(result.Output) {
		return custody.Value{}, fmt.Errorf("%w: token %v rejected the transfer", custody.ErrFeeTransferFailed, parameters.FeeToken)
	}
	return amount, nil
}

func transferSucceeded(output []byte) bool {
	values, err := token.ABI.Unpack("transfer", output)
	if err != nil || len(values) != 1 {
		return false
	}
	success, ok := values[0].(bool)
	return ok && success
}
