// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/panoptisDev/custody/go/custody"
)

// Bytes is a byte string written in hexadecimal form, with or without a
// leading 0x, on the command line and in scenario files.
type Bytes []byte

func ParseBytes(text string) (Bytes, error) {
	text = strings.TrimPrefix(strings.TrimSpace(text), "0x")
	data, err := hex.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("invalid hex string %q: %w", text, err)
	}
	return data, nil
}

func (b Bytes) String() string {
	return fmt.Sprintf("0x%x", []byte(b))
}

func parseAddress(text string) (custody.Address, error) {
	if !common.IsHexAddress(text) {
		return custody.Address{}, fmt.Errorf("invalid address %q", text)
	}
	return common.HexToAddress(text), nil
}

// parseValue accepts decimal and 0x-prefixed hexadecimal amounts. The empty
// string is zero.
func parseValue(text string) (custody.Value, error) {
	var value custody.Value
	if text == "" {
		return value, nil
	}
	err := value.UnmarshalText([]byte(text))
	return value, err
}
