// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package loginkey

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/panoptisDev/custody/go/custody"
)

// Kind is the leading tag byte of an encoded restrictions blob.
type Kind byte

const (
	// LegacyExpiry blobs are a single 32-byte uint256 expiry timestamp.
	// Their first byte is zero for every realistic timestamp.
	LegacyExpiry Kind = 0x00
	Expiry       Kind = 0x01
	Window       Kind = 0x02
	Scoped       Kind = 0x03
)

func (k Kind) String() string {
	switch k {
	case LegacyExpiry:
		return "legacy-expiry"
	case Expiry:
		return "expiry"
	case Window:
		return "window"
	case Scoped:
		return "scoped"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(k))
	}
}

// ParseKind is the inverse of Kind.String for the supported kinds.
func ParseKind(name string) (Kind, error) {
	for _, kind := range []Kind{LegacyExpiry, Expiry, Window, Scoped} {
		if kind.String() == name {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown restrictions kind %q", name)
}

// Restrictions limit what a login key may do. Timestamps are unix seconds.
// Fields not used by a kind are ignored when encoding.
type Restrictions struct {
	Kind            Kind
	ValidAfter      custody.Value
	ValidUntil      custody.Value
	Destinations    []custody.Address
	MaxValuePerCall custody.Value
}

func NewExpiry(validUntil uint64) Restrictions {
	return Restrictions{Kind: Expiry, ValidUntil: custody.NewValue(validUntil)}
}

func NewWindow(validAfter, validUntil uint64) Restrictions {
	return Restrictions{
		Kind:       Window,
		ValidAfter: custody.NewValue(validAfter),
		ValidUntil: custody.NewValue(validUntil),
	}
}

func NewScoped(validAfter, validUntil uint64, maxValuePerCall custody.Value, destinations ...custody.Address) Restrictions {
	return Restrictions{
		Kind:            Scoped,
		ValidAfter:      custody.NewValue(validAfter),
		ValidUntil:      custody.NewValue(validUntil),
		Destinations:    destinations,
		MaxValuePerCall: maxValuePerCall,
	}
}

var (
	uint256Type   = mustType("uint256")
	addressesType = mustType("address[]")

	legacyArguments = abi.Arguments{{Type: uint256Type}}
	expiryArguments = abi.Arguments{{Type: uint256Type}}
	windowArguments = abi.Arguments{{Type: uint256Type}, {Type: uint256Type}}
	scopedArguments = abi.Arguments{{Type: uint256Type}, {Type: uint256Type}, {Type: addressesType}, {Type: uint256Type}}
)

func mustType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(fmt.Sprintf("invalid abi type %q: %v", name, err))
	}
	return t
}

func Encode(r Restrictions) ([]byte, error) {
	var body []byte
	var err error
	switch r.Kind {
	case LegacyExpiry:
		if r.ValidUntil[0] != 0 {
			return nil, fmt.Errorf("legacy expiry %v collides with the kind tag", r.ValidUntil)
		}
		return legacyArguments.Pack(r.ValidUntil.ToBig())
	case Expiry:
		body, err = expiryArguments.Pack(r.ValidUntil.ToBig())
	case Window:
		body, err = windowArguments.Pack(r.ValidAfter.ToBig(), r.ValidUntil.ToBig())
	case Scoped:
		destinations := r.Destinations
		if destinations == nil {
			destinations = []custody.Address{}
		}
		body, err = scopedArguments.Pack(r.ValidAfter.ToBig(), r.ValidUntil.ToBig(), destinations, r.MaxValuePerCall.ToBig())
	default:
		return nil, fmt.Errorf("unsupported restrictions kind %v", r.Kind)
	}
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(r.Kind)}, body...), nil
}

// Decode parses a restrictions blob. Unknown kinds and malformed bodies are
// reported as ErrRestrictionViolated.
func Decode(blob []byte) (Restrictions, error) {
	if len(blob) == 0 {
		return Restrictions{}, fmt.Errorf("%w: empty restrictions", custody.ErrRestrictionViolated)
	}
	kind := Kind(blob[0])
	switch kind {
	case LegacyExpiry:
		if len(blob) != 32 {
			return Restrictions{}, fmt.Errorf("%w: legacy restrictions must be 32 bytes, got %d", custody.ErrRestrictionViolated, len(blob))
		}
		values, err := unpack(legacyArguments, blob)
		if err != nil {
			return Restrictions{}, err
		}
		return Restrictions{Kind: kind, ValidUntil: values[0]}, nil
	case Expiry:
		values, err := unpack(expiryArguments, blob[1:])
		if err != nil {
			return Restrictions{}, err
		}
		return Restrictions{Kind: kind, ValidUntil: values[0]}, nil
	case Window:
		values, err := unpack(windowArguments, blob[1:])
		if err != nil {
			return Restrictions{}, err
		}
		return Restrictions{Kind: kind, ValidAfter: values[0], ValidUntil: values[1]}, nil
	case Scoped:
		raw, err := scopedArguments.Unpack(blob[1:])
		if err != nil {
			return Restrictions{}, fmt.Errorf("%w: %v", custody.ErrRestrictionViolated, err)
		}
		destinations, ok := raw[2].([]custody.Address)
		if !ok {
			return Restrictions{}, fmt.Errorf("%w: unexpected destinations layout", custody.ErrRestrictionViolated)
		}
		values, err := toValues(raw[0], raw[1], raw[3])
		if err != nil {
			return Restrictions{}, err
		}
		return Restrictions{
			Kind:            kind,
			ValidAfter:      values[0],
			ValidUntil:      values[1],
			Destinations:    destinations,
			MaxValuePerCall: values[2],
		}, nil
	default:
		return Restrictions{}, fmt.Errorf("%w: unknown restrictions kind %v", custody.ErrRestrictionViolated, kind)
	}
}

func unpack(arguments abi.Arguments, data []byte) ([]custody.Value, error) {
	raw, err := arguments.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", custody.ErrRestrictionViolated, err)
	}
	return toValues(raw...)
}

func toValues(raw ...any) ([]custody.Value, error) {
	res := make([]custody.Value, 0, len(raw))
	for _, cur := range raw {
		number, ok := cur.(*big.Int)
		if !ok {
			return nil, fmt.Errorf("%w: expected number, got %T", custody.ErrRestrictionViolated, cur)
		}
		value, ok := custody.ValueFromBig(number)
		if !ok {
			return nil, fmt.Errorf("%w: number out of range", custody.ErrRestrictionViolated)
		}
		res = append(res, value)
	}
	return res, nil
}

// Check evaluates the restrictions at the given time for the given batch.
func (r Restrictions) Check(now int64, batch custody.Batch) error {
	if now < 0 {
		now = 0
	}
	current := custody.NewValue(uint64(now))

	switch r.Kind {
	case LegacyExpiry, Expiry:
		return checkUntil(current, r.ValidUntil)
	case Window:
		if err := checkAfter(current, r.ValidAfter); err != nil {
			return err
		}
		return checkUntil(current, r.ValidUntil)
	case Scoped:
		if err := checkAfter(current, r.ValidAfter); err != nil {
			return err
		}
		if err := checkUntil(current, r.ValidUntil); err != nil {
			return err
		}
		for i, instruction := range batch {
			if !r.allows(instruction.Destination) {
				return fmt.Errorf("%w: instruction %d targets %v which is not permitted", custody.ErrRestrictionViolated, i, instruction.Destination)
			}
			if instruction.Value.Cmp(r.MaxValuePerCall) > 0 {
				return fmt.Errorf("%w: instruction %d sends %v, at most %v permitted", custody.ErrRestrictionViolated, i, instruction.Value, r.MaxValuePerCall)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown restrictions kind %v", custody.ErrRestrictionViolated, r.Kind)
	}
}

func (r Restrictions) allows(destination custody.Address) bool {
	for _, allowed := range r.Destinations {
		if allowed == destination {
			return true
		}
	}
	return false
}

func checkAfter(now, validAfter custody.Value) error {
	if now.Cmp(validAfter) < 0 {
		return fmt.Errorf("%w: not valid before %v", custody.ErrRestrictionViolated, validAfter)
	}
	return nil
}

func checkUntil(now, validUntil custody.Value) error {
	if now.Cmp(validUntil) >= 0 {
		return fmt.Errorf("%w: expired at %v", custody.ErrRestrictionViolated, validUntil)
	}
	return nil
}

// Evaluate decodes a restrictions blob and checks it.
func Evaluate(blob []byte, now int64, batch custody.Batch) error {
	restrictions, err := Decode(blob)
	if err != nil {
		return err
	}
	return restrictions.Check(now, batch)
}
