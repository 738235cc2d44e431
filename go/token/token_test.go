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
	"math/big"
	"testing"

	"github.com/panoptisDev/custody/go/chain"
	"github.com/panoptisDev/custody/go/custody"
	"github.com/panoptisDev/custody/go/state"
	"github.com/stretchr/testify/require"
)

var tokenAddress = custody.Address{0x70}

func TestToken_MintAndTransfer(t *testing.T) {
	s := state.NewInMemory()
	token := New(tokenAddress)

	require.NoError(t, token.Mint(s, custody.Address{1}, custody.NewValue(100)))
	require.NoError(t, token.Transfer(s, custody.Address{1}, custody.Address{2}, custody.NewValue(30)))

	require.Equal(t, custody.NewValue(70), token.BalanceOf(s, custody.Address{1}))
	require.Equal(t, custody.NewValue(30), token.BalanceOf(s, custody.Address{2}))
	require.Equal(t, custody.NewValue(100), token.TotalSupply(s))

	logs := s.GetLogs()
	require.Len(t, logs, 2)
	require.Equal(t, ABI.Events["Transfer"].ID, logs[0].Topics[0])
	require.Equal(t, custody.Hash{}, logs[0].Topics[1])
}

func TestToken_TransferBeyondBalanceFails(t *testing.T) {
	s := state.NewInMemory()
	token := New(tokenAddress)
	require.NoError(t, token.Mint(s, custody.Address{1}, custody.NewValue(10)))

	err := token.Transfer(s, custody.Address{1}, custody.Address{2}, custody.NewValue(11))
	require.ErrorIs(t, err, custody.ErrInsufficientBalance)
	require.Equal(t, custody.NewValue(10), token.BalanceOf(s, custody.Address{1}))
}

func TestToken_TransferThroughChain(t *testing.T) {
	c := chain.New(custody.BlockParameters{})
	token := New(tokenAddress)
	c.Register(tokenAddress, token)

	require.NoError(t, c.Apply(func(s custody.StateContext) error {
		return token.Mint(s, custody.Address{1}, custody.NewValue(8))
	}))

	input, err := PackTransfer(custody.Address{2}, custody.NewValue(5))
	require.NoError(t, err)
	require.Equal(t, TransferGas, token.RequiredGas(input))

	transaction := chain.Transaction{
		Sender:    custody.Address{1},
		Recipient: tokenAddress,
		Gas:       TransferGas,
		Input:     input,
	}
	receipt, err := c.Execute(transaction)
	require.NoError(t, err)
	require.Len(t, receipt.Logs, 1)
	values, err := ABI.Unpack("transfer", receipt.Output)
	require.NoError(t, err)
	require.Equal(t, true, values[0])

	_, err = c.Execute(transaction)
	require.ErrorIs(t, err, custody.ErrInsufficientBalance)

	query, err := ABI.Pack("balanceOf", custody.Address{2})
	require.NoError(t, err)
	output, err := c.Query(chain.Transaction{Recipient: tokenAddress, Gas: ViewGas, Input: query})
	require.NoError(t, err)
	values, err = ABI.Unpack("balanceOf", output)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(5), values[0])
}

func TestToken_RunRejectsUnknownSelectors(t *testing.T) {
	c := chain.New(custody.BlockParameters{})
	c.Register(tokenAddress, New(tokenAddress))

	_, err := c.Execute(chain.Transaction{Recipient: tokenAddress, Gas: ViewGas, Input: custody.Data{1, 2, 3, 4}})
	require.ErrorIs(t, err, custody.ErrUnknownSelector)

	_, err = c.Execute(chain.Transaction{Recipient: tokenAddress, Gas: ViewGas, Input: custody.Data{1}})
	require.ErrorIs(t, err, custody.ErrUnknownSelector)
}
