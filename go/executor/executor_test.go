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
	"errors"
	"testing"

	"github.com/panoptisDev/custody/go/custody"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var account = custody.Address{0xac}

func TestGasSchedule_IntrinsicGas(t *testing.T) {
	schedule := DefaultGasSchedule()
	tests := map[string]struct {
		instruction custody.Instruction
		want        custody.Gas
	}{
		"plain call":     {custody.Instruction{}, 700},
		"zero bytes":     {custody.Instruction{Data: custody.Data{0, 0}}, 708},
		"non-zero bytes": {custody.Instruction{Data: custody.Data{1, 0, 2}}, 736},
		"value":          {custody.Instruction{Value: custody.NewValue(1)}, 9700},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, test.want, schedule.IntrinsicGas(test.instruction))
		})
	}
}

func TestExecutor_RunsInstructionsInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := custody.NewMockRunContext(ctrl)

	batch := custody.Batch{
		{Destination: custody.Address{1}, GasLimit: 100, Data: custody.Data{1}},
		{Destination: custody.Address{2}, GasLimit: 200, Value: custody.NewValue(3)},
	}

	ctx.EXPECT().CreateSnapshot().Return(custody.Snapshot(1))
	gomock.InOrder(
		ctx.EXPECT().Call(custody.CallParameters{
			Sender:    account,
			Recipient: custody.Address{1},
			Gas:       100,
			Input:     custody.Data{1},
		}).Return(custody.CallResult{Output: custody.Data{0xa}, GasUsed: 50}, nil),
		ctx.EXPECT().Call(custody.CallParameters{
			Sender:    account,
			Recipient: custody.Address{2},
			Value:     custody.NewValue(3),
			Gas:       200,
		}).Return(custody.CallResult{GasUsed: 0}, nil),
	)

	result, err := New(DefaultGasSchedule()).Execute(ctx, account, batch, nil)
	require.NoError(t, err)
	require.Equal(t, custody.Gas(700+16+50+700+9000), result.GasUsed)
	require.Equal(t, [][]byte{{0xa}, nil}, result.Outputs)
}

func TestExecutor_FirstFailureRevertsTheWholeBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := custody.NewMockRunContext(ctrl)
	injected := errors.New("injected")

	batch := custody.Batch{
		{Destination: custody.Address{1}},
		{Destination: custody.Address{2}},
		{Destination: custody.Address{3}},
	}

	ctx.EXPECT().CreateSnapshot().Return(custody.Snapshot(4))
	gomock.InOrder(
		ctx.EXPECT().Call(gomock.Any()).Return(custody.CallResult{}, nil),
		ctx.EXPECT().Call(gomock.Any()).Return(custody.CallResult{}, injected),
		ctx.EXPECT().RestoreSnapshot(custody.Snapshot(4)),
	)

	_, err := New(DefaultGasSchedule()).Execute(ctx, account, batch, nil)
	require.ErrorIs(t, err, custody.ErrSubcallReverted)
	require.ErrorIs(t, err, injected)

	var reverted *custody.SubcallRevertedError
	require.ErrorAs(t, err, &reverted)
	require.Equal(t, 1, reverted.Index)
}

func TestExecutor_RejectsEmptyBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := custody.NewMockRunContext(ctrl)

	_, err := New(DefaultGasSchedule()).Execute(ctx, account, nil, nil)
	require.ErrorIs(t, err, custody.ErrEmptyBatch)
}

// handlerFunc is a SelfHandler charging a fixed amount of gas.
type handlerFunc struct {
	gas custody.Gas
	run func(custody.RunContext, custody.Instruction) (custody.Data, error)
}

func (h handlerFunc) RequiredGas(custody.Data) custody.Gas {
	return h.gas
}

func (h handlerFunc) RunSelf(ctx custody.RunContext, instruction custody.Instruction) (custody.Data, error) {
	return h.run(ctx, instruction)
}

func TestExecutor_SelfCallsGoToTheHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := custody.NewMockRunContext(ctrl)

	batch := custody.Batch{
		{Destination: account, GasLimit: 10, Data: custody.Data{0x12}},
		{Destination: custody.Address{1}},
	}

	ctx.EXPECT().CreateSnapshot().Return(custody.Snapshot(0)).Times(2)
	ctx.EXPECT().Call(custody.CallParameters{Sender: account, Recipient: custody.Address{1}}).Return(custody.CallResult{}, nil)

	var handled []custody.Instruction
	handler := handlerFunc{gas: 4, run: func(_ custody.RunContext, instruction custody.Instruction) (custody.Data, error) {
		handled = append(handled, instruction)
		return custody.Data{0x34}, nil
	}}

	result, err := New(DefaultGasSchedule()).Execute(ctx, account, batch, handler)
	require.NoError(t, err)
	want := batch[0]
	want.GasLimit = 6
	require.Equal(t, []custody.Instruction{want}, handled)
	require.Equal(t, custody.Data{0x34}, custody.Data(result.Outputs[0]))
	require.Equal(t, custody.Gas(700+16+4+700), result.GasUsed)
}

func TestExecutor_SelfCallsAreChecked(t *testing.T) {
	tests := map[string]struct {
		instruction custody.Instruction
		want        error
	}{
		"value beyond balance": {
			custody.Instruction{Destination: account, Value: custody.NewValue(11), GasLimit: 100},
			custody.ErrInsufficientBalance,
		},
		"gas limit below required gas": {
			custody.Instruction{Destination: account, GasLimit: 9},
			custody.ErrOutOfGas,
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			ctx := custody.NewMockRunContext(ctrl)
			ctx.EXPECT().CreateSnapshot().Return(custody.Snapshot(0))
			ctx.EXPECT().CreateSnapshot().Return(custody.Snapshot(1))
			ctx.EXPECT().GetBalance(account).Return(custody.NewValue(10)).AnyTimes()
			ctx.EXPECT().RestoreSnapshot(custody.Snapshot(1))
			ctx.EXPECT().RestoreSnapshot(custody.Snapshot(0))

			handler := handlerFunc{gas: 10, run: func(custody.RunContext, custody.Instruction) (custody.Data, error) {
				t.Fatal("handler must not run")
				return nil, nil
			}}
			_, err := New(DefaultGasSchedule()).Execute(ctx, account, custody.Batch{test.instruction}, handler)
			require.ErrorIs(t, err, custody.ErrSubcallReverted)
			require.ErrorIs(t, err, test.want)
		})
	}
}

func TestExecutor_FailingSelfCallIsReverted(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := custody.NewMockRunContext(ctrl)

	ctx.EXPECT().CreateSnapshot().Return(custody.Snapshot(0))
	ctx.EXPECT().CreateSnapshot().Return(custody.Snapshot(1))
	ctx.EXPECT().RestoreSnapshot(custody.Snapshot(1))
	ctx.EXPECT().RestoreSnapshot(custody.Snapshot(0))

	handler := handlerFunc{run: func(custody.RunContext, custody.Instruction) (custody.Data, error) {
		return nil, custody.ErrLastKeyProtected
	}}

	_, err := New(DefaultGasSchedule()).Execute(ctx, account, custody.Batch{{Destination: account}}, handler)
	require.ErrorIs(t, err, custody.ErrSubcallReverted)
	require.ErrorIs(t, err, custody.ErrLastKeyProtected)
}
