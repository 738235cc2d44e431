// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package chain

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/panoptisDev/custody/go/custody"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"
)

func TestChain_PlainTransferMovesValue(t *testing.T) {
	c := New(custody.BlockParameters{})
	c.Fund(custody.Address{1}, custody.NewValue(100))

	receipt, err := c.Execute(Transaction{
		Sender:    custody.Address{1},
		Recipient: custody.Address{2},
		Value:     custody.NewValue(40),
	})
	require.NoError(t, err)
	require.True(t, receipt.Success)
	require.Equal(t, custody.NewValue(60), c.Balance(custody.Address{1}))
	require.Equal(t, custody.NewValue(40), c.Balance(custody.Address{2}))
}

func TestChain_InsufficientBalanceIsRejected(t *testing.T) {
	c := New(custody.BlockParameters{})
	c.Fund(custody.Address{1}, custody.NewValue(10))

	_, err := c.Execute(Transaction{
		Sender:    custody.Address{1},
		Recipient: custody.Address{2},
		Value:     custody.NewValue(11),
	})
	require.ErrorIs(t, err, custody.ErrInsufficientBalance)
	require.Equal(t, custody.NewValue(10), c.Balance(custody.Address{1}))
}

func TestChain_FailingContractRevertsAllEffects(t *testing.T) {
	ctrl := gomock.NewController(t)
	contract := custody.NewMockContract(ctrl)
	injected := errors.New("injected")

	contract.EXPECT().RequiredGas(gomock.Any()).Return(custody.Gas(10))
	contract.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx custody.RunContext, parameters custody.CallParameters) (custody.Data, error) {
			ctx.SetStorage(parameters.Recipient, custody.Key{1}, custody.Word{1})
			ctx.EmitLog(custody.Log{Address: parameters.Recipient})
			return nil, injected
		})

	c := New(custody.BlockParameters{})
	c.Register(custody.Address{9}, contract)
	c.Fund(custody.Address{1}, custody.NewValue(5))

	receipt, err := c.Execute(Transaction{
		Sender:    custody.Address{1},
		Recipient: custody.Address{9},
		Value:     custody.NewValue(5),
		Gas:       100,
	})
	require.ErrorIs(t, err, injected)
	require.False(t, receipt.Success)
	require.Empty(t, receipt.Logs)
	require.Equal(t, custody.Word{}, c.Storage(custody.Address{9}, custody.Key{1}))
	require.Equal(t, custody.NewValue(5), c.Balance(custody.Address{1}))
	require.True(t, c.Balance(custody.Address{9}).IsZero())
}

func TestChain_ContractReceivesContextAndReducedGas(t *testing.T) {
	ctrl := gomock.NewController(t)
	contract := custody.NewMockContract(ctrl)
	block := custody.BlockParameters{ChainID: custody.NewValue(7), Timestamp: 1000}

	contract.EXPECT().RequiredGas(custody.Data{1, 2}).Return(custody.Gas(30))
	contract.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx custody.RunContext, parameters custody.CallParameters) (custody.Data, error) {
			require.Equal(t, block, ctx.BlockParameters())
			require.Equal(t, custody.Address{1}, parameters.Sender)
			require.Equal(t, custody.Gas(70), parameters.Gas)
			ctx.EmitLog(custody.Log{Address: parameters.Recipient, Data: custody.Data{3}})
			return custody.Data{0xff}, nil
		})

	c := New(block)
	c.Register(custody.Address{9}, contract)

	receipt, err := c.Execute(Transaction{
		Sender:    custody.Address{1},
		Recipient: custody.Address{9},
		Gas:       100,
		Input:     custody.Data{1, 2},
	})
	require.NoError(t, err)
	require.Equal(t, custody.Data{0xff}, receipt.Output)
	require.Equal(t, custody.Gas(30), receipt.GasUsed)
	require.Equal(t, []custody.Log{{Address: custody.Address{9}, Data: custody.Data{3}}}, receipt.Logs)
}

func TestChain_OutOfGasIsReported(t *testing.T) {
	ctrl := gomock.NewController(t)
	contract := custody.NewMockContract(ctrl)
	contract.EXPECT().RequiredGas(gomock.Any()).Return(custody.Gas(30))

	c := New(custody.BlockParameters{})
	c.Register(custody.Address{9}, contract)

	_, err := c.Execute(Transaction{Sender: custody.Address{1}, Recipient: custody.Address{9}, Gas: 29})
	require.ErrorIs(t, err, custody.ErrOutOfGas)
}

func TestChain_QueryDiscardsEffects(t *testing.T) {
	c := New(custody.BlockParameters{})
	c.Fund(custody.Address{1}, custody.NewValue(10))

	_, err := c.Query(Transaction{
		Sender:    custody.Address{1},
		Recipient: custody.Address{2},
		Value:     custody.NewValue(10),
	})
	require.NoError(t, err)
	require.Equal(t, custody.NewValue(10), c.Balance(custody.Address{1}))
}

type recursive struct {
	calls atomic.Int64
}

func (r *recursive) RequiredGas(custody.Data) custody.Gas { return 0 }

func (r *recursive) Run(ctx custody.RunContext, parameters custody.CallParameters) (custody.Data, error) {
	r.calls.Add(1)
	_, err := ctx.Call(custody.CallParameters{
		Sender:    parameters.Recipient,
		Recipient: parameters.Recipient,
	})
	return nil, err
}

func TestChain_RecursionIsBoundedByMaxDepth(t *testing.T) {
	contract := &recursive{}
	c := New(custody.BlockParameters{})
	c.Register(custody.Address{9}, contract)

	_, err := c.Execute(Transaction{Sender: custody.Address{1}, Recipient: custody.Address{9}})
	require.ErrorIs(t, err, custody.ErrMaxDepth)
	require.Equal(t, int64(MaxRecursiveDepth), contract.calls.Load())
}

func TestChain_ConcurrentTransactionsAreSerialized(t *testing.T) {
	c := New(custody.BlockParameters{})
	c.Fund(custody.Address{1}, custody.NewValue(50))

	var succeeded atomic.Int64
	var group errgroup.Group
	for i := 0; i < 100; i++ {
		group.Go(func() error {
			_, err := c.Execute(Transaction{
				Sender:    custody.Address{1},
				Recipient: custody.Address{2},
				Value:     custody.NewValue(1),
			})
			if err == nil {
				succeeded.Add(1)
			} else if !errors.Is(err, custody.ErrInsufficientBalance) {
				return err
			}
			return nil
		})
	}
	require.NoError(t, group.Wait())
	require.Equal(t, int64(50), succeeded.Load())
	require.True(t, c.Balance(custody.Address{1}).IsZero())
	require.Equal(t, custody.NewValue(50), c.Balance(custody.Address{2}))
}
