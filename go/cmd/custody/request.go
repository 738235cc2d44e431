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

	"github.com/panoptisDev/custody/go/account"
	"github.com/panoptisDev/custody/go/custody"
	"github.com/panoptisDev/custody/go/sigverify"
	"github.com/pelletier/go-toml"
	"github.com/urfave/cli/v2"
)

var requestFlag = &cli.StringFlag{
	Name:     "request",
	Usage:    "TOML file describing the meta-transaction",
	Required: true,
}

var hashCmd = cli.Command{
	Action: doHash,
	Name:   "hash",
	Usage:  "Prints the message hash a meta-transaction signer has to sign",
	Flags: []cli.Flag{
		requestFlag,
	},
}

var signCmd = cli.Command{
	Action: doSign,
	Name:   "sign",
	Usage:  "Signs a meta-transaction and prints the call data for a relayer",
	Flags: []cli.Flag{
		requestFlag,
		keyFlag,
	},
}

const (
	authKeyEntry  = "auth"
	loginKeyEntry = "login"
)

// RequestFile is the TOML form of a meta-transaction.
type RequestFile struct {
	Account      string            `toml:"account"`
	ChainID      uint64            `toml:"chain-id"`
	Nonce        uint64            `toml:"nonce"`
	Entry        string            `toml:"entry"`
	Fee          FeeConfig           `toml:"fee"`
	Instructions []InstructionConfig `toml:"instructions"`
	// login key requests only
	Restrictions string `toml:"restrictions"`
	Attestation  string `toml:"attestation"`
}

type FeeConfig struct {
	GasPrice    string `toml:"gas-price"`
	GasOverhead uint64 `toml:"gas-overhead"`
	Token       string `toml:"token"`
	Rate        string `toml:"rate"`
}

type InstructionConfig struct {
	To    string `toml:"to"`
	Value string `toml:"value"`
	Gas   uint64 `toml:"gas"`
	Data  string `toml:"data"`
	// administrative calls of the account itself
	AddAuthKey    string `toml:"add-auth-key"`
	RemoveAuthKey string `toml:"remove-auth-key"`
}

func loadRequest(path string) (RequestFile, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return RequestFile{}, err
	}
	var request RequestFile
	if err := tree.Unmarshal(&request); err != nil {
		return RequestFile{}, fmt.Errorf("invalid request file %v: %w", path, err)
	}
	return request, nil
}

func (s FeeConfig) build(resolve func(string) (custody.Address, error)) (custody.FeeParameters, error) {
	res := custody.FeeParameters{GasOverhead: custody.Gas(s.GasOverhead)}
	var err error
	if res.GasPrice, err = parseValue(s.GasPrice); err != nil {
		return res, err
	}
	if res.FeeTokenRate, err = parseValue(s.Rate); err != nil {
		return res, err
	}
	if s.Token != "" {
		if res.FeeToken, err = resolve(s.Token); err != nil {
			return res, err
		}
	}
	return res, nil
}

// keyManagementGas is the gas limit of key management instructions
// that do not set one.
const keyManagementGas = 100_000

func (s InstructionConfig) build(self custody.Address, resolve func(string) (custody.Address, error)) (custody.Instruction, error) {
	res := custody.Instruction{Destination: self, GasLimit: custody.Gas(s.Gas)}
	var err error
	if s.To != "" {
		if res.Destination, err = resolve(s.To); err != nil {
			return res, err
		}
	}
	if res.Value, err = parseValue(s.Value); err != nil {
		return res, err
	}

	if s.Gas == 0 && (s.AddAuthKey != "" || s.RemoveAuthKey != "") {
		res.GasLimit = keyManagementGas
	}

	switch {
	case s.AddAuthKey != "":
		key, err := resolve(s.AddAuthKey)
		if err != nil {
			return res, err
		}
		res.Data, err = account.PackAddAuthKey(key)
		return res, err
	case s.RemoveAuthKey != "":
		key, err := resolve(s.RemoveAuthKey)
		if err != nil {
			return res, err
		}
		res.Data, err = account.PackRemoveAuthKey(key)
		return res, err
	}
	data, err := ParseBytes(s.Data)
	res.Data = custody.Data(data)
	return res, err
}

func buildBatch(self custody.Address, entries []InstructionConfig, resolve func(string) (custody.Address, error)) (custody.Batch, error) {
	batch := make(custody.Batch, 0, len(entries))
	for i, entry := range entries {
		instruction, err := entry.build(self, resolve)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		batch = append(batch, instruction)
	}
	return batch, nil
}

func (r RequestFile) selector() (custody.Selector, error) {
	switch r.Entry {
	case authKeyEntry, "":
		return account.AuthKeyMetaTransactionsSelector, nil
	case loginKeyEntry:
		return account.LoginKeyMetaTransactionsSelector, nil
	}
	return custody.Selector{}, fmt.Errorf("unknown entry point %q", r.Entry)
}

func (r RequestFile) request() (sigverify.Request, error) {
	address, err := parseAddress(r.Account)
	if err != nil {
		return sigverify.Request{}, err
	}
	selector, err := r.selector()
	if err != nil {
		return sigverify.Request{}, err
	}
	fee, err := r.Fee.build(addressResolver)
	if err != nil {
		return sigverify.Request{}, err
	}
	batch, err := buildBatch(address, r.Instructions, addressResolver)
	if err != nil {
		return sigverify.Request{}, err
	}
	return sigverify.NewRequest(address, selector, custody.NewValue(r.ChainID), r.Nonce, batch, fee)
}

func doHash(context *cli.Context) error {
	file, err := loadRequest(context.String(requestFlag.Name))
	if err != nil {
		return err
	}
	request, err := file.request()
	if err != nil {
		return err
	}
	hash, err := sigverify.RequestHash(request)
	if err != nil {
		return err
	}
	fmt.Fprintln(context.App.Writer, hash)
	return nil
}

func doSign(context *cli.Context) error {
	key, err := parseKey(context.String(keyFlag.Name))
	if err != nil {
		return err
	}
	file, err := loadRequest(context.String(requestFlag.Name))
	if err != nil {
		return err
	}
	request, err := file.request()
	if err != nil {
		return err
	}
	signature, err := sigverify.SignRequest(request, key)
	if err != nil {
		return err
	}

	var input []byte
	if request.Selector == account.LoginKeyMetaTransactionsSelector {
		restrictions, err := ParseBytes(file.Restrictions)
		if err != nil {
			return err
		}
		attestation, err := ParseBytes(file.Attestation)
		if err != nil {
			return err
		}
		input, err = account.LoginKeyRequest{
			Nonce:        request.Nonce,
			Transactions: request.Transactions,
			Fee:          request.Fee,
			Restrictions: restrictions,
			Signature:    signature,
			Attestation:  attestation,
		}.Pack()
		if err != nil {
			return err
		}
	} else {
		input, err = account.AuthKeyRequest{
			Nonce:        request.Nonce,
			Transactions: request.Transactions,
			Fee:          request.Fee,
			Signature:    signature,
		}.Pack()
		if err != nil {
			return err
		}
	}

	out := context.App.Writer
	fmt.Fprintf(out, "signature: %v\n", Bytes(signature))
	fmt.Fprintf(out, "calldata:  %v\n", Bytes(input))
	return nil
}
