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
	"fmt"

	"github.com/panoptisDev/custody/go/custody"
	"github.com/panoptisDev/custody/go/loginkey"
	"github.com/urfave/cli/v2"
)

var restrictionsCmd = cli.Command{
	Action: doRestrictions,
	Name:   "restrictions",
	Usage:  "Encodes the restrictions of a login key",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "kind",
			Usage: "one of legacy-expiry, expiry, window, scoped",
			Value: loginkey.Expiry.String(),
		},
		&cli.Uint64Flag{
			Name:  "after",
			Usage: "unix time from which the login key is valid (window and scoped)",
		},
		&cli.Uint64Flag{
			Name:     "until",
			Usage:    "unix time from which the login key is expired",
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:  "destination",
			Usage: "allowed call destination (scoped, repeatable)",
		},
		&cli.StringFlag{
			Name:  "max-value",
			Usage: "maximum value per instruction (scoped)",
		},
	},
}

func doRestrictions(context *cli.Context) error {
	config := RestrictionsConfig{
		Kind:         context.String("kind"),
		After:        context.Uint64("after"),
		Until:        context.Uint64("until"),
		Destinations: context.StringSlice("destination"),
		MaxValue:     context.String("max-value"),
	}
	restrictions, err := config.build(addressResolver)
	if err != nil {
		return err
	}
	blob, err := loginkey.Encode(restrictions)
	if err != nil {
		return err
	}
	fmt.Fprintln(context.App.Writer, Bytes(blob))
	return nil
}

// RestrictionsConfig describes login key restrictions in scenario files.
type RestrictionsConfig struct {
	Kind         string   `toml:"kind"`
	After        uint64   `toml:"after"`
	Until        uint64   `toml:"until"`
	Destinations []string `toml:"destinations"`
	MaxValue     string   `toml:"max-value"`
}

func (s RestrictionsConfig) build(resolve func(string) (custody.Address, error)) (loginkey.Restrictions, error) {
	kind, err := loginkey.ParseKind(s.Kind)
	if err != nil {
		return loginkey.Restrictions{}, err
	}
	maxValue, err := parseValue(s.MaxValue)
	if err != nil {
		return loginkey.Restrictions{}, err
	}
	destinations := make([]custody.Address, 0, len(s.Destinations))
	for _, cur := range s.Destinations {
		destination, err := resolve(cur)
		if err != nil {
			return loginkey.Restrictions{}, err
		}
		destinations = append(destinations, destination)
	}

	switch kind {
	case loginkey.LegacyExpiry:
		return loginkey.Restrictions{Kind: kind, ValidUntil: custody.NewValue(s.Until)}, nil
	case loginkey.Expiry:
		return loginkey.NewExpiry(s.Until), nil
	case loginkey.Window:
		return loginkey.NewWindow(s.After, s.Until), nil
	case loginkey.Scoped:
		return loginkey.NewScoped(s.After, s.Until, maxValue, destinations...), nil
	}
	return loginkey.Restrictions{}, fmt.Errorf("unsupported restrictions kind %v", kind)
}

func addressResolver(text string) (custody.Address, error) {
	return parseAddress(text)
}
