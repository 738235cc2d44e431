// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package account

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/panoptisDev/custody/go/custody"
)

const accountABI = `[
	{"type":"function","name":"initialize","stateMutability":"nonpayable",
	 "inputs":[{"name":"_authKey","type":"address"}],"outputs":[]},
	{"type":"function","name":"addAuthKey","stateMutability":"nonpayable",
	 "inputs":[{"name":"_authKey","type":"address"}],"outputs":[]},
	{"type":"function","name":"removeAuthKey","stateMutability":"nonpayable",
	 "inputs":[{"name":"_authKey","type":"address"}],"outputs":[]},
	{"type":"function","name":"executeMultipleAuthKeyMetaTransactions","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"_nonce","type":"uint256"},
		{"name":"_transactions","type":"bytes[]"},
		{"name":"_gasPrice","type":"uint256"},
		{"name":"_gasOverhead","type":"uint256"},
		{"name":"_feeTokenAddress","type":"address"},
		{"name":"_feeTokenRate","type":"uint256"},
		{"name":"_transactionMessageHashSignature","type":"bytes"}],
	 "outputs":[{"name":"","type":"bytes[]"}]},
	{"type":"function","name":"executeMultipleLoginKeyMetaTransactions","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"_nonce","type":"uint256"},
		{"name":"_transactions","type":"bytes[]"},
		{"name":"_gasPrice","type":"uint256"},
		{"name":"_gasOverhead","type":"uint256"},
		{"name":"_loginKeyRestrictionsData","type":"bytes"},
		{"name":"_feeTokenAddress","type":"address"},
		{"name":"_feeTokenRate","type":"uint256"},
		{"name":"_transactionMessageHashSignature","type":"bytes"},
		{"name":"_loginKeyAttestationSignature","type":"bytes"}],
	 "outputs":[{"name":"","type":"bytes[]"}]},
	{"type":"function","name":"authKeys","stateMutability":"view",
	 "inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"numAuthKeys","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"nonce","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getChainId","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"AuthKeyAdded","anonymous":false,
	 "inputs":[{"name":"authKey","type":"address","indexed":true}]},
	{"type":"event","name":"AuthKeyRemoved","anonymous":false,
	 "inputs":[{"name":"authKey","type":"address","indexed":true}]},
	{"type":"event","name":"BatchExecuted","anonymous":false,
	 "inputs":[
		{"name":"nonce","type":"uint256","indexed":true},
		{"name":"signer","type":"address","indexed":true},
		{"name":"messageHash","type":"bytes32","indexed":false},
		{"name":"fee","type":"uint256","indexed":false}]}
]`

// ABI is the external interface of an account.
var ABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(accountABI))
	if err != nil {
		panic(fmt.Sprintf("invalid account abi: %v", err))
	}
	return parsed
}()

// entryPoint returns the method selected by the input, or nil if the input
// carries no recognized selector.
func entryPoint(input []byte) *abi.Method {
	if len(input) < 4 {
		return nil
	}
	method, err := ABI.MethodById(input[:4])
	if err != nil {
		return nil
	}
	return method
}

var (
	AuthKeyMetaTransactionsSelector  = selectorOf("executeMultipleAuthKeyMetaTransactions")
	LoginKeyMetaTransactionsSelector = selectorOf("executeMultipleLoginKeyMetaTransactions")
)

var (
	AuthKeyAddedEvent   = ABI.Events["AuthKeyAdded"].ID
	AuthKeyRemovedEvent = ABI.Events["AuthKeyRemoved"].ID
	BatchExecutedEvent  = ABI.Events["BatchExecuted"].ID
)

func selectorOf(method string) custody.Selector {
	var selector custody.Selector
	copy(selector[:], ABI.Methods[method].ID)
	return selector
}

func PackInitialize(authKey custody.Address) ([]byte, error) {
	return ABI.Pack("initialize", authKey)
}

func PackAddAuthKey(authKey custody.Address) ([]byte, error) {
	return ABI.Pack("addAuthKey", authKey)
}

func PackRemoveAuthKey(authKey custody.Address) ([]byte, error) {
	return ABI.Pack("removeAuthKey", authKey)
}

func PackIsAuthKey(authKey custody.Address) ([]byte, error) {
	return ABI.Pack("authKeys", authKey)
}

// PackView encodes a call of a view without arguments.
func PackView(name string) ([]byte, error) {
	return ABI.Pack(name)
}

// UnpackNumber decodes the result of numAuthKeys, nonce and getChainId.
func UnpackNumber(name string, output []byte) (custody.Value, error) {
	values, err := ABI.Unpack(name, output)
	if err != nil {
		return custody.Value{}, err
	}
	number, ok := values[0].(*big.Int)
	if !ok {
		return custody.Value{}, fmt.Errorf("unexpected output %T", values[0])
	}
	value, ok := custody.ValueFromBig(number)
	if !ok {
		return custody.Value{}, fmt.Errorf("number out of range")
	}
	return value, nil
}

// UnpackOutputs decodes the per-instruction outputs of a meta-transaction.
func UnpackOutputs(name string, output []byte) ([][]byte, error) {
	values, err := ABI.Unpack(name, output)
	if err != nil {
		return nil, err
	}
	outputs, ok := values[0].([][]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected output %T", values[0])
	}
	return outputs, nil
}

func (r AuthKeyRequest) Pack() ([]byte, error) {
	return ABI.Pack("executeMultipleAuthKeyMetaTransactions",
		new(big.Int).SetUint64(r.Nonce),
		nonNil(r.Transactions),
		r.Fee.GasPrice.ToBig(),
		new(big.Int).SetUint64(uint64(r.Fee.GasOverhead)),
		r.Fee.FeeToken,
		r.Fee.FeeTokenRate.ToBig(),
		nonNilBytes(r.Signature),
	)
}

func (r LoginKeyRequest) Pack() ([]byte, error) {
	return ABI.Pack("executeMultipleLoginKeyMetaTransactions",
		new(big.Int).SetUint64(r.Nonce),
		nonNil(r.Transactions),
		r.Fee.GasPrice.ToBig(),
		new(big.Int).SetUint64(uint64(r.Fee.GasOverhead)),
		nonNilBytes(r.Restrictions),
		r.Fee.FeeToken,
		r.Fee.FeeTokenRate.ToBig(),
		nonNilBytes(r.Signature),
		nonNilBytes(r.Attestation),
	)
}

func nonNil(transactions [][]byte) [][]byte {
	if transactions == nil {
		return [][]byte{}
	}
	return transactions
}

func nonNilBytes(data []byte) []byte {
	if data == nil {
		return []byte{}
	}
	return data
}

// arguments is a cursor over unpacked call arguments.
type arguments struct {
	values []any
	err    error
}

func (a *arguments) next() any {
	if len(a.values) == 0 {
		a.fail("missing argument")
		return nil
	}
	res := a.values[0]
	a.values = a.values[1:]
	return res
}

func (a *arguments) fail(format string, args ...any) {
	if a.err == nil {
		a.err = fmt.Errorf("%w: %s", custody.ErrMalformedInput, fmt.Sprintf(format, args...))
	}
}

func (a *arguments) address() custody.Address {
	cur := a.next()
	res, ok := cur.(custody.Address)
	if !ok && cur != nil {
		a.fail("expected address, got %T", cur)
	}
	return res
}

func (a *arguments) bytes() []byte {
	cur := a.next()
	res, ok := cur.([]byte)
	if !ok && cur != nil {
		a.fail("expected bytes, got %T", cur)
	}
	return res
}

func (a *arguments) bytesList() [][]byte {
	cur := a.next()
	res, ok := cur.([][]byte)
	if !ok && cur != nil {
		a.fail("expected bytes[], got %T", cur)
	}
	return res
}

func (a *arguments) number() *big.Int {
	cur := a.next()
	res, ok := cur.(*big.Int)
	if !ok {
		if cur != nil {
			a.fail("expected uint256, got %T", cur)
		}
		return new(big.Int)
	}
	return res
}

func (a *arguments) value() custody.Value {
	res, ok := custody.ValueFromBig(a.number())
	if !ok {
		a.fail("value out of range")
	}
	return res
}

func (a *arguments) gas() custody.Gas {
	number := a.number()
	if !number.IsUint64() {
		a.fail("gas out of range")
		return 0
	}
	return custody.Gas(number.Uint64())
}

// nonce returns the presented nonce. Nonces beyond the counter's range can
// never match and are clamped so that they are reported as mismatches.
func (a *arguments) nonce() uint64 {
	number := a.number()
	if !number.IsUint64() {
		return ^uint64(0)
	}
	return number.Uint64()
}

func decodeAuthKeyRequest(values []any) (AuthKeyRequest, error) {
	args := arguments{values: values}
	request := AuthKeyRequest{}
	request.Nonce = args.nonce()
	request.Transactions = args.bytesList()
	request.Fee.GasPrice = args.value()
	request.Fee.GasOverhead = args.gas()
	request.Fee.FeeToken = args.address()
	request.Fee.FeeTokenRate = args.value()
	request.Signature = args.bytes()
	return request, args.err
}

func decodeLoginKeyRequest(values []any) (LoginKeyRequest, error) {
	args := arguments{values: values}
	request := LoginKeyRequest{}
	request.Nonce = args.nonce()
	request.Transactions = args.bytesList()
	request.Fee.GasPrice = args.value()
	request.Fee.GasOverhead = args.gas()
	request.Restrictions = args.bytes()
	request.Fee.FeeToken = args.address()
	request.Fee.FeeTokenRate = args.value()
	request.Signature = args.bytes()
	request.Attestation = args.bytes()
	return request, args.err
}
