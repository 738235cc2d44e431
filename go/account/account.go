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
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/log"
	"github.com/panoptisDev/custody/go/custody"
	"github.com/panoptisDev/custody/go/executor"
	"github.com/panoptisDev/custody/go/loginkey"
	"github.com/panoptisDev/custody/go/sigverify"
	"github.com/panoptisDev/custody/go/state"
)

// Account is a self-custodial account controlled by a set of auth keys,
// either directly or through relayed meta-transactions.
type Account struct {
	address    custody.Address
	config     Config
	registry   registry
	nonces     sequencer
	verifier   *sigverify.Verifier
	authorizer *loginkey.Authorizer
	executor   *executor.Executor
	logger     log.Logger
}

var _ custody.Contract = &Account{}

func New(address custody.Address, config Config) (*Account, error) {
	scheme := config.Scheme
	if scheme == nil {
		scheme = sigverify.PersonalSign{}
	}
	verifier, err := sigverify.NewVerifier(scheme, config.SignerCacheSize)
	if err != nil {
		return nil, err
	}
	return &Account{
		address:    address,
		config:     config,
		registry:   registry{account: address},
		nonces:     sequencer{account: address},
		verifier:   verifier,
		authorizer: loginkey.NewAuthorizer(verifier),
		executor:   executor.New(config.Gas),
		logger:     log.New("account", address),
	}, nil
}

func (a *Account) Address() custody.Address {
	return a.address
}

func (a *Account) RequiredGas(input custody.Data) custody.Gas {
	if entryPoint(input) == nil {
		return 0
	}
	return a.config.BaseGas + a.config.Gas.DataGas(input)
}

// Run dispatches an external call of the account.
func (a *Account) Run(ctx custody.RunContext, parameters custody.CallParameters) (custody.Data, error) {
	return a.dispatch(ctx, parameters.Sender, false, parameters.Input)
}

// dispatch decodes and runs a call. If self is set, the call was issued by
// an auth-key-signed batch of this account and may mutate the key set.
func (a *Account) dispatch(ctx custody.RunContext, caller custody.Address, self bool, input custody.Data) (custody.Data, error) {
	method := entryPoint(input)
	if method == nil {
		// passive receipt, the value has already been credited
		return nil, nil
	}
	values, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", custody.ErrMalformedInput, err)
	}
	args := arguments{values: values}

	switch method.Name {
	case "initialize":
		key := args.address()
		if args.err != nil {
			return nil, args.err
		}
		return nil, a.Initialize(ctx, key)

	case "addAuthKey", "removeAuthKey":
		key := args.address()
		if args.err != nil {
			return nil, args.err
		}
		c := a.registry.selfCapability()
		if !self {
			if c, err = a.registry.directCapability(ctx, caller); err != nil {
				return nil, err
			}
		}
		if method.Name == "addAuthKey" {
			return nil, a.addAuthKey(ctx, c, key)
		}
		return nil, a.removeAuthKey(ctx, c, key)

	case "executeMultipleAuthKeyMetaTransactions":
		request, err := decodeAuthKeyRequest(values)
		if err != nil {
			return nil, err
		}
		receipt, err := a.ExecuteAuthKeyMetaTransactions(ctx, caller, request)
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(nonNil(receipt.Outputs))

	case "executeMultipleLoginKeyMetaTransactions":
		request, err := decodeLoginKeyRequest(values)
		if err != nil {
			return nil, err
		}
		receipt, err := a.ExecuteLoginKeyMetaTransactions(ctx, caller, request)
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(nonNil(receipt.Outputs))

	case "authKeys":
		key := args.address()
		if args.err != nil {
			return nil, args.err
		}
		return method.Outputs.Pack(a.IsAuthKey(ctx, key))
	case "numAuthKeys":
		return method.Outputs.Pack(new(big.Int).SetUint64(a.NumAuthKeys(ctx)))
	case "nonce":
		return method.Outputs.Pack(new(big.Int).SetUint64(a.Nonce(ctx)))
	case "getChainId":
		return method.Outputs.Pack(a.ChainID(ctx).ToBig())
	}
	return nil, fmt.Errorf("%w: %v", custody.ErrUnknownSelector, method.Name)
}

// Initialize seeds the key set with its first auth key.
func (a *Account) Initialize(ctx custody.StateContext, authKey custody.Address) error {
	if err := a.registry.initialize(ctx, authKey); err != nil {
		return err
	}
	authKeyAddedMeter.Inc(1)
	a.logger.Debug("Initialized account", "authKey", authKey)
	return nil
}

// AddAuthKey adds a key on behalf of caller, which must be an auth key.
func (a *Account) AddAuthKey(ctx custody.StateContext, caller custody.Address, authKey custody.Address) error {
	c, err := a.registry.directCapability(ctx, caller)
	if err != nil {
		return err
	}
	return a.addAuthKey(ctx, c, authKey)
}

// RemoveAuthKey removes a key on behalf of caller, which must be an auth key.
// The last remaining key can not be removed.
func (a *Account) RemoveAuthKey(ctx custody.StateContext, caller custody.Address, authKey custody.Address) error {
	c, err := a.registry.directCapability(ctx, caller)
	if err != nil {
		return err
	}
	return a.removeAuthKey(ctx, c, authKey)
}

func (a *Account) addAuthKey(ctx custody.StateContext, c capability, authKey custody.Address) error {
	if err := a.registry.add(ctx, c, authKey); err != nil {
		return err
	}
	authKeyAddedMeter.Inc(1)
	a.logger.Debug("Added auth key", "authKey", authKey, "by", c.holder)
	return nil
}

func (a *Account) removeAuthKey(ctx custody.StateContext, c capability, authKey custody.Address) error {
	if err := a.registry.remove(ctx, c, authKey); err != nil {
		return err
	}
	authKeyRemovedMeter.Inc(1)
	a.logger.Debug("Removed auth key", "authKey", authKey, "by", c.holder)
	return nil
}

func (a *Account) IsAuthKey(ctx custody.StateContext, key custody.Address) bool {
	return a.registry.contains(ctx, key)
}

func (a *Account) NumAuthKeys(ctx custody.StateContext) uint64 {
	return a.registry.count(ctx)
}

func (a *Account) Nonce(ctx custody.StateContext) uint64 {
	return a.nonces.current(ctx)
}

func (a *Account) ChainID(ctx custody.RunContext) custody.Value {
	return ctx.BlockParameters().ChainID
}

func (a *Account) isAuthKeyIn(ctx custody.StateContext) func(custody.Address) bool {
	return func(key custody.Address) bool {
		return a.registry.contains(ctx, key)
	}
}

// ExecuteAuthKeyMetaTransactions runs a batch signed by an auth key and pays
// the relayer. Either all effects of the request persist, including the
// nonce advance, or none do.
func (a *Account) ExecuteAuthKeyMetaTransactions(
	ctx custody.RunContext,
	relayer custody.Address,
	request AuthKeyRequest,
) (receipt Receipt, err error) {
	snapshot := ctx.CreateSnapshot()
	defer func() {
		if err != nil {
			ctx.RestoreSnapshot(snapshot)
			a.rejected("auth key", request.Nonce, relayer, err)
		}
	}()

	batch, err := custody.DecodeBatch(request.Transactions)
	if err != nil {
		return Receipt{}, err
	}

	nonce, err := a.nonces.checkAndAdvance(ctx, request.Nonce)
	if err != nil {
		return Receipt{}, err
	}

	hash, err := sigverify.RequestHash(request.signed(a.address, a.ChainID(ctx)))
	if err != nil {
		return Receipt{}, err
	}
	signer, err := a.verifier.VerifyAuthKey(hash, request.Signature, a.isAuthKeyIn(ctx))
	if err != nil {
		return Receipt{}, err
	}

	return a.execute(ctx, relayer, nonce, signer, hash, request.Fee, batch, selfCalls{a})
}

// ExecuteLoginKeyMetaTransactions runs a batch signed by a login key that
// carries an attestation of a current auth key. Such batches may never call
// the account itself.
func (a *Account) ExecuteLoginKeyMetaTransactions(
	ctx custody.RunContext,
	relayer custody.Address,
	request LoginKeyRequest,
) (receipt Receipt, err error) {
	snapshot := ctx.CreateSnapshot()
	defer func() {
		if err != nil {
			ctx.RestoreSnapshot(snapshot)
			a.rejected("login key", request.Nonce, relayer, err)
		}
	}()

	batch, err := custody.DecodeBatch(request.Transactions)
	if err != nil {
		return Receipt{}, err
	}
	if err := loginkey.CheckSelfCalls(a.address, batch); err != nil {
		return Receipt{}, err
	}

	nonce, err := a.nonces.checkAndAdvance(ctx, request.Nonce)
	if err != nil {
		return Receipt{}, err
	}

	hash, err := sigverify.RequestHash(request.signed(a.address, a.ChainID(ctx)))
	if err != nil {
		return Receipt{}, err
	}
	loginKey, err := a.verifier.Recover(hash, request.Signature)
	if err != nil {
		return Receipt{}, err
	}
	attestation := loginkey.Attestation{
		Restrictions: request.Restrictions,
		Signature:    request.Attestation,
	}
	now := ctx.BlockParameters().Timestamp
	if _, err := a.authorizer.Authorize(a.address, loginKey, attestation, a.isAuthKeyIn(ctx), now, batch); err != nil {
		return Receipt{}, err
	}

	return a.execute(ctx, relayer, nonce, loginKey, hash, request.Fee, batch, nil)
}

// selfCalls runs the instructions of an auth-key-signed batch that address
// the account itself, with the self capability.
type selfCalls struct {
	*Account
}

func (s selfCalls) RunSelf(ctx custody.RunContext, instruction custody.Instruction) (custody.Data, error) {
	return s.dispatch(ctx, s.address, true, instruction.Data)
}

func (a *Account) execute(
	ctx custody.RunContext,
	relayer custody.Address,
	nonce uint64,
	signer custody.Address,
	hash custody.Hash,
	fee custody.FeeParameters,
	batch custody.Batch,
	self executor.SelfHandler,
) (Receipt, error) {
	result, err := a.executor.Execute(ctx, a.address, batch, self)
	if err != nil {
		return Receipt{}, err
	}

	paid, err := a.config.Settlement.Pay(ctx, a.address, relayer, fee, result.GasUsed)
	if err != nil {
		return Receipt{}, err
	}

	data, err := ABI.Events["BatchExecuted"].Inputs.NonIndexed().Pack(hash, paid.ToBig())
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to encode event: %w", err)
	}
	ctx.EmitLog(custody.Log{
		Address: a.address,
		Topics:  []custody.Hash{BatchExecutedEvent, state.WordFromUint64(nonce), addressTopic(signer)},
		Data:    data,
	})

	acceptedMetaTxMeter.Inc(1)
	a.logger.Debug("Executed meta-transaction", "nonce", nonce, "signer", signer, "instructions", len(batch), "gas", result.GasUsed, "fee", paid, "relayer", relayer)
	return Receipt{
		Nonce:       nonce,
		Signer:      signer,
		MessageHash: hash,
		Fee:         paid,
		GasUsed:     result.GasUsed,
		Outputs:     result.Outputs,
	}, nil
}

func (a *Account) rejected(path string, nonce uint64, relayer custody.Address, err error) {
	rejectedMetaTxMeter.Inc(1)
	a.logger.Warn("Rejected meta-transaction", "path", path, "nonce", nonce, "relayer", relayer, "class", custody.Classify(err), "err", err)
}
