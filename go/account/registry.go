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

	"github.com/panoptisDev/custody/go/custody"
	"github.com/panoptisDev/custody/go/state"
)

// Storage layout of an account.
const (
	authKeysSlot    = 0 // mapping(address => bool)
	numAuthKeysSlot = 1
	nonceSlot       = 2
)

// capability is the proof that a key mutation was requested by a current
// auth key or by the account itself. Only the account mints capabilities.
type capability struct {
	account custody.Address
	holder  custody.Address
}

// registry maintains the set of auth keys in the account's own storage.
// The set is never empty once initialized.
type registry struct {
	account custody.Address
}

func (r registry) contains(ctx custody.StateContext, key custody.Address) bool {
	return ctx.GetStorage(r.account, state.MappingSlot(key, authKeysSlot)) != (custody.Word{})
}

func (r registry) count(ctx custody.StateContext) uint64 {
	return state.Uint64FromWord(ctx.GetStorage(r.account, state.SlotKey(numAuthKeysSlot)))
}

// directCapability authorizes a key mutation requested by caller, which
// must be a current auth key.
func (r registry) directCapability(ctx custody.StateContext, caller custody.Address) (capability, error) {
	if !r.contains(ctx, caller) {
		return capability{}, fmt.Errorf("%w: %v", custody.ErrNotAuthKeyOrSelf, caller)
	}
	return capability{account: r.account, holder: caller}, nil
}

// selfCapability authorizes mutations issued by the account's own
// auth-key-signed batches.
func (r registry) selfCapability() capability {
	return capability{account: r.account, holder: r.account}
}

func (r registry) check(c capability) error {
	if c.account != r.account || c.holder == (custody.Address{}) {
		return custody.ErrNotAuthKeyOrSelf
	}
	return nil
}

func (r registry) initialize(ctx custody.StateContext, key custody.Address) error {
	if r.count(ctx) != 0 {
		return custody.ErrAlreadyInitialized
	}
	r.insert(ctx, key)
	return nil
}

func (r registry) add(ctx custody.StateContext, c capability, key custody.Address) error {
	if err := r.check(c); err != nil {
		return err
	}
	if r.contains(ctx, key) {
		return fmt.Errorf("%w: %v", custody.ErrKeyAlreadyPresent, key)
	}
	r.insert(ctx, key)
	return nil
}

func (r registry) remove(ctx custody.StateContext, c capability, key custody.Address) error {
	if err := r.check(c); err != nil {
		return err
	}
	if !r.contains(ctx, key) {
		return fmt.Errorf("%w: %v", custody.ErrKeyNotPresent, key)
	}
	count := r.count(ctx)
	if count <= 1 {
		return custody.ErrLastKeyProtected
	}
	ctx.SetStorage(r.account, state.MappingSlot(key, authKeysSlot), custody.Word{})
	ctx.SetStorage(r.account, state.SlotKey(numAuthKeysSlot), state.WordFromUint64(count-1))
	emitKeyEvent(ctx, r.account, AuthKeyRemovedEvent, key)
	return nil
}

func (r registry) insert(ctx custody.StateContext, key custody.Address) {
	ctx.SetStorage(r.account, state.MappingSlot(key, authKeysSlot), state.WordFromBool(true))
	ctx.SetStorage(r.account, state.SlotKey(numAuthKeysSlot), state.WordFromUint64(r.count(ctx)+1))
	emitKeyEvent(ctx, r.account, AuthKeyAddedEvent, key)
}

func emitKeyEvent(ctx custody.StateContext, account custody.Address, event custody.Hash, key custody.Address) {
	ctx.EmitLog(custody.Log{
		Address: account,
		Topics:  []custody.Hash{event, addressTopic(key)},
	})
}

func addressTopic(address custody.Address) custody.Hash {
	var topic custody.Hash
	copy(topic[12:], address[:])
	return topic
}
