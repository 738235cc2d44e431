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

// sequencer guards meta-transactions against replay with a counter that
// advances by one per accepted request.
type sequencer struct {
	account custody.Address
}

func (s sequencer) current(ctx custody.StateContext) uint64 {
	return state.Uint64FromWord(ctx.GetStorage(s.account, state.SlotKey(nonceSlot)))
}

// checkAndAdvance accepts the presented nonce only if it equals the current
// one, in which case the counter is incremented. It returns the consumed nonce.
func (s sequencer) checkAndAdvance(ctx custody.StateContext, presented uint64) (uint64, error) {
	current := s.current(ctx)
	if err := nonceCheck(presented, current); err != nil {
		return 0, err
	}
	ctx.SetStorage(s.account, state.SlotKey(nonceSlot), state.WordFromUint64(current+1))
	return current, nil
}

func nonceCheck(presented uint64, current uint64) error {
	if presented != current {
		return fmt.Errorf("%w: %v != %v", custody.ErrNonceMismatch, presented, current)
	}
	if current+1 < current {
		return fmt.Errorf("%w: nonce overflow", custody.ErrNonceMismatch)
	}
	return nil
}
