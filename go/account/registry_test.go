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
	"errors"
	"math"
	"testing"

	"github.com/panoptisDev/custody/go/custody"
	"github.com/panoptisDev/custody/go/state"
	"github.com/stretchr/testify/require"
	"pgregory.net/rand"
)

func newRegistry(t *testing.T, first custody.Address) (registry, *state.InMemory) {
	t.Helper()
	ctx := state.NewInMemory()
	r := registry{account: accountAddress}
	require.NoError(t, r.initialize(ctx, first))
	return r, ctx
}

func TestRegistry_CapabilitiesAreBoundToAccountAndHolder(t *testing.T) {
	r, ctx := newRegistry(t, custody.Address{1})

	_, err := r.directCapability(ctx, custody.Address{2})
	require.ErrorIs(t, err, custody.ErrNotAuthKeyOrSelf)

	c, err := r.directCapability(ctx, custody.Address{1})
	require.NoError(t, err)
	require.NoError(t, r.check(c))
	require.NoError(t, r.check(r.selfCapability()))

	foreign := registry{account: custody.Address{0xff}}.selfCapability()
	require.ErrorIs(t, r.add(ctx, foreign, custody.Address{3}), custody.ErrNotAuthKeyOrSelf)
	require.ErrorIs(t, r.add(ctx, capability{}, custody.Address{3}), custody.ErrNotAuthKeyOrSelf)
	require.ErrorIs(t, r.remove(ctx, capability{account: accountAddress}, custody.Address{1}), custody.ErrNotAuthKeyOrSelf)
	require.False(t, r.contains(ctx, custody.Address{3}))
}

func TestRegistry_InitializeOnlyOnce(t *testing.T) {
	r, ctx := newRegistry(t, custody.Address{1})
	require.ErrorIs(t, r.initialize(ctx, custody.Address{2}), custody.ErrAlreadyInitialized)
	require.Equal(t, uint64(1), r.count(ctx))
	require.False(t, r.contains(ctx, custody.Address{2}))
}

func TestRegistry_StorageLayout(t *testing.T) {
	r, ctx := newRegistry(t, custody.Address{1})
	require.Equal(t, state.WordFromBool(true), ctx.GetStorage(accountAddress, state.MappingSlot(custody.Address{1}, authKeysSlot)))
	require.Equal(t, state.WordFromUint64(1), ctx.GetStorage(accountAddress, state.SlotKey(numAuthKeysSlot)))
	require.Equal(t, uint64(1), r.count(ctx))

	logs := ctx.GetLogs()
	require.Len(t, logs, 1)
	require.Equal(t, []custody.Hash{AuthKeyAddedEvent, addressTopic(custody.Address{1})}, logs[0].Topics)
}

func TestRegistry_KeySetNeverBecomesEmpty(t *testing.T) {
	keys := []custody.Address{{1}, {2}, {3}, {4}, {5}}
	r, ctx := newRegistry(t, keys[0])
	members := map[custody.Address]bool{keys[0]: true}

	rnd := rand.New(42)
	for i := 0; i < 1000; i++ {
		key := keys[rnd.Intn(len(keys))]
		if rnd.Intn(2) == 0 {
			err := r.add(ctx, r.selfCapability(), key)
			if members[key] {
				require.ErrorIs(t, err, custody.ErrKeyAlreadyPresent)
			} else {
				require.NoError(t, err)
				members[key] = true
			}
		} else {
			err := r.remove(ctx, r.selfCapability(), key)
			switch {
			case !members[key]:
				require.ErrorIs(t, err, custody.ErrKeyNotPresent)
			case len(members) == 1:
				require.ErrorIs(t, err, custody.ErrLastKeyProtected)
			default:
				require.NoError(t, err)
				delete(members, key)
			}
		}

		require.NotZero(t, r.count(ctx))
		require.Equal(t, uint64(len(members)), r.count(ctx))
		for _, key := range keys {
			require.Equal(t, members[key], r.contains(ctx, key))
		}
	}
}

func TestSequencer_AdvancesOnlyOnMatch(t *testing.T) {
	ctx := state.NewInMemory()
	s := sequencer{account: accountAddress}

	for want := uint64(0); want < 5; want++ {
		_, err := s.checkAndAdvance(ctx, want+1)
		require.ErrorIs(t, err, custody.ErrNonceMismatch)
		got, err := s.checkAndAdvance(ctx, want)
		require.NoError(t, err)
		require.Equal(t, want, got)
		require.Equal(t, want+1, s.current(ctx))
	}
	require.Equal(t, state.WordFromUint64(5), ctx.GetStorage(accountAddress, state.SlotKey(nonceSlot)))
}

func TestSequencer_AdvanceIsUndoneWithSnapshot(t *testing.T) {
	ctx := state.NewInMemory()
	s := sequencer{account: accountAddress}

	snapshot := ctx.CreateSnapshot()
	_, err := s.checkAndAdvance(ctx, 0)
	require.NoError(t, err)
	ctx.RestoreSnapshot(snapshot)
	require.Equal(t, uint64(0), s.current(ctx))
}

func TestNonceCheck(t *testing.T) {
	tests := map[string]struct {
		presented, current uint64
		ok                 bool
	}{
		"equal":    {7, 7, true},
		"lower":    {6, 7, false},
		"higher":   {8, 7, false},
		"overflow": {math.MaxUint64, math.MaxUint64, false},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := nonceCheck(test.presented, test.current)
			require.Equal(t, test.ok, err == nil)
			if err != nil {
				require.True(t, errors.Is(err, custody.ErrNonceMismatch))
			}
		})
	}
}
