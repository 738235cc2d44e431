// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package state

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/panoptisDev/custody/go/custody"
)

// SlotKey returns the key of a fixed storage slot.
func SlotKey(index uint64) custody.Key {
	var key custody.Key
	binary.BigEndian.PutUint64(key[24:], index)
	return key
}

// MappingSlot returns the storage key of entry `key` in the mapping rooted
// at slot `index`, laid out as keccak256(pad32(key) ++ pad32(index)).
func MappingSlot(key custody.Address, index uint64) custody.Key {
	var padded custody.Hash
	copy(padded[12:], key[:])
	root := SlotKey(index)
	return crypto.Keccak256Hash(padded[:], root[:])
}

// WordFromUint64 and Uint64FromWord convert between storage words and counters.
func WordFromUint64(value uint64) custody.Word {
	return SlotKey(value)
}

func Uint64FromWord(word custody.Word) uint64 {
	return binary.BigEndian.Uint64(word[24:])
}

// WordFromBool encodes a flag the way a boolean storage slot does.
func WordFromBool(value bool) custody.Word {
	if value {
		return WordFromUint64(1)
	}
	return custody.Word{}
}
