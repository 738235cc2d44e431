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

import "github.com/ethereum/go-ethereum/metrics"

var (
	acceptedMetaTxMeter = metrics.NewRegisteredCounterForced("custody/metatx/accepted", nil)
	rejectedMetaTxMeter = metrics.NewRegisteredCounterForced("custody/metatx/rejected", nil)
	authKeyAddedMeter   = metrics.NewRegisteredCounterForced("custody/authkeys/added", nil)
	authKeyRemovedMeter = metrics.NewRegisteredCounterForced("custody/authkeys/removed", nil)
)
