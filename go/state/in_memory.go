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
	"bytes"
	"slices"

	"github.com/panoptisDev/custody/go/custody"
	"golang.org/x/exp/maps"
)

type storageKey struct {
	address custody.Address
	key     custody.Key
}

// InMemory is a journaled world state kept in memory. Every modification
// records an undo entry; restoring a snapshot replays the undo entries
// recorded after it in reverse order.
type InMemory struct {
	balances map[custody.Address]custody.Value
	storage  map[storageKey]custody.Word
	logs     *Logs
	journal  []func()
}

var _ custody.StateContext = &InMemory{}

func NewInMemory() *InMemory {
	return &InMemory{
		balances: map[custody.Address]custody.Value{},
		storage:  map[storageKey]custody.Word{},
		logs:     NewLogs(),
	}
}

func (s *InMemory) GetBalance(address custody.Address) custody.Value {
	return s.balances[address]
}

func (s *InMemory) SetBalance(address custody.Address, value custody.Value) {
	previous, found := s.balances[address]
	s.journal = append(s.journal, func() {
		if found {
			s.balances[address] = previous
		} else {
			delete(s.balances, address)
		}
	})
	if value.IsZero() {
		delete(s.balances, address)
	} else {
		s.balances[address] = value
	}
}

func (s *InMemory) GetStorage(address custody.Address, key custody.Key) custody.Word {
	return s.storage[storageKey{address, key}]
}

func (s *InMemory) SetStorage(address custody.Address, key custody.Key, value custody.Word) {
	slot := storageKey{address, key}
	previous, found := s.storage[slot]
	s.journal = append(s.journal, func() {
		if found {
			s.storage[slot] = previous
		} else {
			delete(s.storage, slot)
		}
	})
	if value == (custody.Word{}) {
		delete(s.storage, slot)
	} else {
		s.storage[slot] = value
	}
}

func (s *InMemory) EmitLog(log custody.Log) {
	length := len(s.logs.Entries)
	s.journal = append(s.journal, func() {
		s.logs.Entries = s.logs.Entries[:length]
	})
	s.logs.AddLog(log.Address, log.Data, log.Topics...)
}

// GetLogs returns all logs emitted and not reverted so far.
func (s *InMemory) GetLogs() []custody.Log {
	res := make([]custody.Log, 0, len(s.logs.Entries))
	for _, entry := range s.logs.Entries {
		res = append(res, custody.Log{
			Address: entry.Address,
			Topics:  slices.Clone(entry.Topics),
			Data:    slices.Clone(entry.Data),
		})
	}
	return res
}

// ClearLogs drops all recorded logs. Called between top-level requests.
func (s *InMemory) ClearLogs() {
	s.logs = NewLogs()
}

func (s *InMemory) CreateSnapshot() custody.Snapshot {
	return custody.Snapshot(len(s.journal))
}

// RestoreSnapshot reverts all modifications performed after the given
// snapshot was created. Invalid snapshots are ignored.
func (s *InMemory) RestoreSnapshot(snapshot custody.Snapshot) {
	target := int(snapshot)
	if target < 0 || target > len(s.journal) {
		return
	}
	for i := len(s.journal) - 1; i >= target; i-- {
		s.journal[i]()
	}
	s.journal = s.journal[:target]
}

// Commit discards the journal, making all modifications permanent.
func (s *InMemory) Commit() {
	s.journal = nil
}

// Accounts lists all addresses holding a balance or storage, in ascending order.
func (s *InMemory) Accounts() []custody.Address {
	seen := map[custody.Address]struct{}{}
	for address := range s.balances {
		seen[address] = struct{}{}
	}
	for slot := range s.storage {
		seen[slot.address] = struct{}{}
	}
	res := maps.Keys(seen)
	slices.SortFunc(res, func(a, b custody.Address) int {
		return bytes.Compare(a[:], b[:])
	})
	return res
}
