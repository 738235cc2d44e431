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
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/dsnet/golib/unitconv"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/panoptisDev/custody/go/account"
	"github.com/panoptisDev/custody/go/chain"
	"github.com/panoptisDev/custody/go/custody"
	"github.com/panoptisDev/custody/go/token"
	"github.com/pelletier/go-toml"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Scenario is a reproducible sequence of account operations on a fresh
// in-memory chain.
type Scenario struct {
	ChainID   uint64        `toml:"chain-id"`
	Timestamp int64         `toml:"timestamp"`
	Keys      []KeyConfig     `toml:"keys"`
	Accounts  []AccountConfig `toml:"accounts"`
	Tokens    []TokenConfig   `toml:"tokens"`
	Steps     []Step    `toml:"steps"`
}

// KeyConfig names a key. Keys without a secret are derived from their name.
type KeyConfig struct {
	Name   string `toml:"name"`
	Secret string `toml:"secret"`
}

type AccountConfig struct {
	Name    string `toml:"name"`
	Address string `toml:"address"`
	AuthKey string `toml:"auth-key"`
	Balance string `toml:"balance"`
}

type TokenConfig struct {
	Name     string            `toml:"name"`
	Address  string            `toml:"address"`
	Balances map[string]string `toml:"balances"`
}

// Step is a single operation of a scenario. Names of keys, accounts and
// tokens may be used wherever an address is expected.
type Step struct {
	// one of auth, login, add-key, remove-key, fund, advance-time
	Kind         string            `toml:"kind"`
	Account      string            `toml:"account"`
	Relayer      string            `toml:"relayer"`
	Signer       string            `toml:"signer"`
	LoginKey     string            `toml:"login-key"`
	Key          string            `toml:"key"`
	Nonce        *uint64           `toml:"nonce"`
	Value        string            `toml:"value"`
	Seconds      int64             `toml:"seconds"`
	Fee          FeeConfig           `toml:"fee"`
	Restrictions RestrictionsConfig  `toml:"restrictions"`
	Instructions []InstructionConfig `toml:"instructions"`
	// the name of the expected error, empty for success
	Expect string `toml:"expect"`
}

var errorsByName = map[string]error{
	"InvalidAuthKeySignature":   custody.ErrInvalidAuthKeySignature,
	"MalformedSignature":        custody.ErrMalformedSignature,
	"AttestationInvalid":        custody.ErrAttestationInvalid,
	"RestrictionViolated":       custody.ErrRestrictionViolated,
	"LoginKeySelfCallForbidden": custody.ErrLoginKeySelfCallForbidden,
	"NotAuthKeyOrSelf":          custody.ErrNotAuthKeyOrSelf,
	"NonceMismatch":             custody.ErrNonceMismatch,
	"LastKeyProtected":          custody.ErrLastKeyProtected,
	"KeyAlreadyPresent":         custody.ErrKeyAlreadyPresent,
	"KeyNotPresent":             custody.ErrKeyNotPresent,
	"AlreadyInitialized":        custody.ErrAlreadyInitialized,
	"SubcallReverted":           custody.ErrSubcallReverted,
	"FeeTransferFailed":         custody.ErrFeeTransferFailed,
	"InsufficientBalance":       custody.ErrInsufficientBalance,
	"EmptyBatch":                custody.ErrEmptyBatch,
}

func LoadScenario(path string) (*Scenario, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, err
	}
	scenario := &Scenario{}
	if err := tree.Unmarshal(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %v: %w", path, err)
	}
	return scenario, nil
}

const scenarioGas = custody.Gas(30_000_000)

type runner struct {
	chain    *chain.Chain
	chainID  custody.Value
	keys     map[string]*ecdsa.PrivateKey
	names    map[string]custody.Address
	accounts map[custody.Address]*account.Account
	tokens   map[custody.Address]*token.Token
	out      io.Writer
}

func newRunner(scenario *Scenario, out io.Writer) (*runner, error) {
	r := &runner{
		chain: chain.New(custody.BlockParameters{
			ChainID:   custody.NewValue(scenario.ChainID),
			Timestamp: scenario.Timestamp,
		}),
		chainID:  custody.NewValue(scenario.ChainID),
		keys:     map[string]*ecdsa.PrivateKey{},
		names:    map[string]custody.Address{},
		accounts: map[custody.Address]*account.Account{},
		tokens:   map[custody.Address]*token.Token{},
		out:      out,
	}

	for _, entry := range scenario.Keys {
		key, err := namedKey(entry.Name)
		if entry.Secret != "" {
			key, err = parseKey(entry.Secret)
		}
		if err != nil {
			return nil, fmt.Errorf("key %v: %w", entry.Name, err)
		}
		r.keys[entry.Name] = key
		r.names[entry.Name] = crypto.PubkeyToAddress(key.PublicKey)
	}

	for _, entry := range scenario.Tokens {
		address, err := r.define(entry.Name, entry.Address)
		if err != nil {
			return nil, err
		}
		r.tokens[address] = token.New(address)
		r.chain.Register(address, r.tokens[address])
	}

	for _, entry := range scenario.Accounts {
		if err := r.deploy(entry); err != nil {
			return nil, fmt.Errorf("account %v: %w", entry.Name, err)
		}
	}

	// token balances may refer to any named party
	for _, entry := range scenario.Tokens {
		t := r.tokens[r.names[entry.Name]]
		for holder, amount := range entry.Balances {
			if err := r.mint(t, holder, amount); err != nil {
				return nil, fmt.Errorf("token %v: %w", entry.Name, err)
			}
		}
	}
	return r, nil
}

// define binds a name to the given address, or to an address derived from
// the name if none is given.
func (r *runner) define(name, address string) (custody.Address, error) {
	if _, found := r.names[name]; found {
		return custody.Address{}, fmt.Errorf("duplicate name %q", name)
	}
	res := common.BytesToAddress(crypto.Keccak256([]byte(name)))
	if address != "" {
		var err error
		if res, err = parseAddress(address); err != nil {
			return custody.Address{}, err
		}
	}
	r.names[name] = res
	return res, nil
}

func (r *runner) deploy(entry AccountConfig) error {
	address, err := r.define(entry.Name, entry.Address)
	if err != nil {
		return err
	}
	authKey, err := r.resolve(entry.AuthKey)
	if err != nil {
		return err
	}
	balance, err := parseValue(entry.Balance)
	if err != nil {
		return err
	}
	instance, err := account.New(address, account.DefaultConfig())
	if err != nil {
		return err
	}
	r.accounts[address] = instance
	r.chain.Register(address, instance)
	r.chain.Fund(address, balance)
	return r.chain.Apply(func(ctx custody.StateContext) error {
		return instance.Initialize(ctx, authKey)
	})
}

func (r *runner) mint(t *token.Token, holder, amount string) error {
	address, err := r.resolve(holder)
	if err != nil {
		return err
	}
	value, err := parseValue(amount)
	if err != nil {
		return err
	}
	return r.chain.Apply(func(ctx custody.StateContext) error {
		return t.Mint(ctx, address, value)
	})
}

func (r *runner) resolve(text string) (custody.Address, error) {
	if address, found := r.names[text]; found {
		return address, nil
	}
	return parseAddress(text)
}

func (r *runner) key(name string) (*ecdsa.PrivateKey, error) {
	key, found := r.keys[name]
	if !found {
		return nil, fmt.Errorf("unknown key %q", name)
	}
	return key, nil
}

func (r *runner) account(name string) (*account.Account, error) {
	address, err := r.resolve(name)
	if err != nil {
		return nil, err
	}
	res, found := r.accounts[address]
	if !found {
		return nil, fmt.Errorf("%q is not an account", name)
	}
	return res, nil
}

// Run executes all steps in order. It stops at the first step whose outcome
// differs from its expectation.
func (r *runner) Run(steps []Step) error {
	for i, step := range steps {
		summary, err := r.step(step)
		if err := checkOutcome(step.Expect, err); err != nil {
			return fmt.Errorf("step %d (%v): %w", i+1, step.Kind, err)
		}
		if err != nil {
			summary = fmt.Sprintf("rejected as expected: %v", err)
		}
		fmt.Fprintf(r.out, "step %d %-12s %v\n", i+1, step.Kind, summary)
	}
	return nil
}

func checkOutcome(expect string, err error) error {
	if expect == "" {
		return err
	}
	want, found := errorsByName[expect]
	if !found {
		return fmt.Errorf("unknown error name %q", expect)
	}
	if !errors.Is(err, want) {
		return fmt.Errorf("expected %v, got %v", want, err)
	}
	return nil
}

func (r *runner) step(step Step) (string, error) {
	switch step.Kind {
	case "auth", "login":
		return r.metaTransaction(step)
	case "add-key", "remove-key":
		return r.manageKey(step)
	case "fund":
		address, err := r.resolve(step.Account)
		if err != nil {
			return "", err
		}
		value, err := parseValue(step.Value)
		if err != nil {
			return "", err
		}
		r.chain.Fund(address, value)
		return fmt.Sprintf("funded %v with %v", step.Account, value), nil
	case "advance-time":
		block := r.chain.BlockParameters()
		r.chain.SetTimestamp(block.Timestamp + step.Seconds)
		return fmt.Sprintf("time is %d", block.Timestamp+step.Seconds), nil
	}
	return "", fmt.Errorf("unknown step kind %q", step.Kind)
}

func (r *runner) manageKey(step Step) (string, error) {
	instance, err := r.account(step.Account)
	if err != nil {
		return "", err
	}
	caller, err := r.resolve(step.Signer)
	if err != nil {
		return "", err
	}
	key, err := r.resolve(step.Key)
	if err != nil {
		return "", err
	}
	input, err := account.PackAddAuthKey(key)
	if step.Kind == "remove-key" {
		input, err = account.PackRemoveAuthKey(key)
	}
	if err != nil {
		return "", err
	}
	if _, err := r.chain.Execute(chain.Transaction{
		Sender:    caller,
		Recipient: instance.Address(),
		Gas:       scenarioGas,
		Input:     input,
	}); err != nil {
		return "", err
	}
	return fmt.Sprintf("%v by %v", step.Key, step.Signer), nil
}

func (r *runner) metaTransaction(step Step) (string, error) {
	instance, err := r.account(step.Account)
	if err != nil {
		return "", err
	}
	relayer, err := r.resolve(step.Relayer)
	if err != nil {
		return "", err
	}
	signer, err := r.key(step.Signer)
	if err != nil {
		return "", err
	}
	batch, err := buildBatch(instance.Address(), step.Instructions, r.resolve)
	if err != nil {
		return "", err
	}
	fee, err := step.Fee.build(r.resolve)
	if err != nil {
		return "", err
	}
	nonce := r.nonce(instance)
	if step.Nonce != nil {
		nonce = *step.Nonce
	}

	var input []byte
	if step.Kind == "auth" {
		request, err := account.SignAuthKeyRequest(instance.Address(), r.chainID, nonce, batch, fee, signer)
		if err != nil {
			return "", err
		}
		if input, err = request.Pack(); err != nil {
			return "", err
		}
	} else {
		loginKey, err := r.key(step.LoginKey)
		if err != nil {
			return "", err
		}
		restrictions, err := step.Restrictions.build(r.resolve)
		if err != nil {
			return "", err
		}
		attestation, err := account.Attest(crypto.PubkeyToAddress(loginKey.PublicKey), restrictions, signer)
		if err != nil {
			return "", err
		}
		request, err := account.SignLoginKeyRequest(instance.Address(), r.chainID, nonce, batch, fee, loginKey, attestation)
		if err != nil {
			return "", err
		}
		if input, err = request.Pack(); err != nil {
			return "", err
		}
	}

	receipt, err := r.chain.Execute(chain.Transaction{
		Sender:    relayer,
		Recipient: instance.Address(),
		Gas:       scenarioGas,
		Input:     input,
	})
	if err != nil {
		return "", err
	}
	return describe(receipt, instance.Address()), nil
}

func (r *runner) nonce(instance *account.Account) uint64 {
	var res uint64
	_ = r.chain.Apply(func(ctx custody.StateContext) error {
		res = instance.Nonce(ctx)
		return nil
	})
	return res
}

// describe summarizes the BatchExecuted event of a receipt.
func describe(receipt chain.Receipt, address custody.Address) string {
	event := account.ABI.Events["BatchExecuted"]
	for _, log := range receipt.Logs {
		if log.Address != address || len(log.Topics) != 3 || log.Topics[0] != account.BatchExecutedEvent {
			continue
		}
		values, err := event.Inputs.NonIndexed().Unpack(log.Data)
		if err != nil || len(values) != 2 {
			continue
		}
		paid, _ := custody.ValueFromBig(values[1].(*big.Int))
		return fmt.Sprintf("nonce=%d signer=%v fee=%v",
			new(big.Int).SetBytes(log.Topics[1][:]),
			common.BytesToAddress(log.Topics[2][:]),
			formatAmount(paid),
		)
	}
	return "ok"
}

func formatAmount(value custody.Value) string {
	amount, _ := new(big.Float).SetInt(value.ToBig()).Float64()
	return unitconv.FormatPrefix(amount, unitconv.SI, 2)
}

// Report prints the final state of all accounts.
func (r *runner) Report() {
	byAddress := func(a, b custody.Address) int { return a.Cmp(b) }
	addresses := maps.Keys(r.accounts)
	slices.SortFunc(addresses, byAddress)
	tokens := maps.Keys(r.tokens)
	slices.SortFunc(tokens, byAddress)

	names := map[custody.Address]string{}
	for name, address := range r.names {
		names[address] = name
	}
	keyNames := maps.Keys(r.keys)
	slices.Sort(keyNames)

	_ = r.chain.Apply(func(ctx custody.StateContext) error {
		for _, address := range addresses {
			instance := r.accounts[address]
			fmt.Fprintf(r.out, "account %v (%v)\n", names[address], address)
			fmt.Fprintf(r.out, "  nonce:    %d\n", instance.Nonce(ctx))
			fmt.Fprintf(r.out, "  balance:  %v\n", formatAmount(ctx.GetBalance(address)))
			authKeys := []string{}
			for _, name := range keyNames {
				if instance.IsAuthKey(ctx, r.names[name]) {
					authKeys = append(authKeys, name)
				}
			}
			fmt.Fprintf(r.out, "  keys:     %d %v\n", instance.NumAuthKeys(ctx), authKeys)
			for _, tokenAddress := range tokens {
				balance := r.tokens[tokenAddress].BalanceOf(ctx, address)
				fmt.Fprintf(r.out, "  token %v: %v\n", names[tokenAddress], formatAmount(balance))
			}
		}
		return nil
	})
}
