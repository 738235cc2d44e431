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
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/panoptisDev/custody/go/sigverify"
	"github.com/urfave/cli/v2"
)

var keygenCmd = cli.Command{
	Action: doKeygen,
	Name:   "keygen",
	Usage:  "Generates a new secp256k1 key usable as auth or login key",
}

var keyFlag = &cli.StringFlag{
	Name:     "key",
	Usage:    "hex encoded private key of the signer",
	Required: true,
}

var attestCmd = cli.Command{
	Action: doAttest,
	Name:   "attest",
	Usage:  "Signs an attestation binding a login key to its restrictions",
	Flags: []cli.Flag{
		keyFlag,
		&cli.StringFlag{
			Name:     "login-key",
			Usage:    "address of the attested login key",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "restrictions",
			Usage:    "hex encoded restrictions blob, see the restrictions command",
			Required: true,
		},
	},
}

func doKeygen(context *cli.Context) error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	out := context.App.Writer
	fmt.Fprintf(out, "address: %v\n", crypto.PubkeyToAddress(key.PublicKey))
	fmt.Fprintf(out, "key:     %v\n", Bytes(crypto.FromECDSA(key)))
	return nil
}

func doAttest(context *cli.Context) error {
	key, err := parseKey(context.String(keyFlag.Name))
	if err != nil {
		return err
	}
	loginKey, err := parseAddress(context.String("login-key"))
	if err != nil {
		return err
	}
	restrictions, err := ParseBytes(context.String("restrictions"))
	if err != nil {
		return err
	}
	signature, err := sigverify.SignAttestation(loginKey, restrictions, key)
	if err != nil {
		return err
	}
	fmt.Fprintln(context.App.Writer, Bytes(signature))
	return nil
}

func parseKey(text string) (*ecdsa.PrivateKey, error) {
	data, err := ParseBytes(text)
	if err != nil {
		return nil, err
	}
	key, err := crypto.ToECDSA(data)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// namedKey derives a deterministic key from a name, for reproducible scenarios.
func namedKey(name string) (*ecdsa.PrivateKey, error) {
	return crypto.ToECDSA(crypto.Keccak256([]byte("custody/scenario/" + name)))
}
