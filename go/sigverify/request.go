// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package sigverify

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/panoptisDev/custody/go/custody"
)

// Request holds every field covered by the signature of a meta-transaction.
// Transactions are the encoded instructions exactly as submitted.
type Request struct {
	Account      custody.Address
	Selector     custody.Selector
	ChainID      custody.Value
	Nonce        uint64
	Transactions [][]byte
	Fee          custody.FeeParameters
}

// NewRequest encodes the given batch and assembles a request from it.
func NewRequest(
	account custody.Address,
	selector custody.Selector,
	chainID custody.Value,
	nonce uint64,
	batch custody.Batch,
	fee custody.FeeParameters,
) (Request, error) {
	transactions, err := batch.Encode()
	if err != nil {
		return Request{}, err
	}
	return Request{
		Account:      account,
		Selector:     selector,
		ChainID:      chainID,
		Nonce:        nonce,
		Transactions: transactions,
		Fee:          fee,
	}, nil
}

var requestArguments = abi.Arguments{
	{Type: mustType("address")},
	{Type: mustType("bytes4")},
	{Type: mustType("uint256")},
	{Type: mustType("uint256")},
	{Type: mustType("bytes[]")},
	{Type: mustType("uint256")},
	{Type: mustType("uint256")},
	{Type: mustType("address")},
	{Type: mustType("uint256")},
}

func mustType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(fmt.Sprintf("invalid abi type %q: %v", name, err))
	}
	return t
}

// RequestHash computes the canonical hash of a request, which is
// keccak256(abi.encode(account, selector, chainId, nonce, batch,
// gasPrice, gasOverhead, feeToken, feeTokenRate)).
func RequestHash(request Request) (custody.Hash, error) {
	transactions := request.Transactions
	if transactions == nil {
		transactions = [][]byte{}
	}
	encoded, err := requestArguments.Pack(
		request.Account,
		[4]byte(request.Selector),
		request.ChainID.ToBig(),
		new(big.Int).SetUint64(request.Nonce),
		transactions,
		request.Fee.GasPrice.ToBig(),
		new(big.Int).SetUint64(uint64(request.Fee.GasOverhead)),
		request.Fee.FeeToken,
		request.Fee.FeeTokenRate.ToBig(),
	)
	if err != nil {
		return custody.Hash{}, fmt.Errorf("failed to encode request: %w", err)
	}
	return crypto.Keccak256Hash(encoded), nil
}

// AttestationHash is keccak256(abi.encodePacked(loginKey, restrictions)).
func AttestationHash(loginKey custody.Address, restrictions []byte) custody.Hash {
	return crypto.Keccak256Hash(loginKey[:], restrictions)
}
