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
	"github.com/panoptisDev/custody/go/custody"
	"github.com/panoptisDev/custody/go/executor"
	"github.com/panoptisDev/custody/go/fee"
	"github.com/panoptisDev/custody/go/sigverify"
)

type Config struct {
	// BaseGas is charged for every call of the account on top of its call data.
	BaseGas custody.Gas
	// Gas prices the instructions of a batch.
	Gas executor.GasSchedule
	// Settlement controls how relayers are paid.
	Settlement fee.Settlement
	// SignerCacheSize is the number of recovered signers kept in memory.
	SignerCacheSize int
	// Scheme is the signature scheme; nil selects sigverify.PersonalSign.
	Scheme sigverify.Scheme
}

func DefaultConfig() Config {
	return Config{
		BaseGas:         5_000,
		Gas:             executor.DefaultGasSchedule(),
		Settlement:      fee.DefaultSettlement(),
		SignerCacheSize: 1024,
	}
}
