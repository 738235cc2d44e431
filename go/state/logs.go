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
	"slices"

	"github.com/panoptisDev/custody/go/custody"
)

type Logs struct {
	Entries []LogEntry
}

type LogEntry struct {
	Address custody.Address
	Topics  []custody.Hash
	Data    []byte
}

func NewLogs() *Logs {
	return &Logs{}
}

func (l *Logs) AddLog(address custody.Address, data []byte, topics ...custody.Hash) {
	l.Entries = append(l.Entries, LogEntry{
		address,
		slices.Clone(topics),
		slices.Clone(data),
	})
}
