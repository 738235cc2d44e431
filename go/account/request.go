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
	"crypto/ecdsa"

	"github.com/panoptisDev/custody/go/custody"
	"github.com/panoptisDev/custody/go/loginkey"
	"github.com/panoptisDev/custody/go/sigverify"
)

// AuthKeyRequest is a batch signed by an auth key.
type AuthKeyRequest struct {
	Nonce        uint64
	Transactions [][]byte
	Fee          custody.FeeParameters
	Signature    []byte
}

// LoginKeyRequest is a batch signed by a login key, together with the
// attestation of an auth key vouching for that login key.
type LoginKeyRequest struct {
	Nonce        uint64
	Transactions [][]byte
	Fee          custody.FeeParameters
	Restrictions []byte
	Signature    []byte
	Attestation  []byte
}

// Receipt describes an accepted meta-transaction.
type Receipt struct {
	Nonce       uint64
	Signer      custody.Address
	MessageHash custody.Hash
	Fee         custody.Value
	GasUsed     custody.Gas
	Outputs     [][]byte
}

func (r AuthKeyRequest) signed(account custody.Address, chainID custody.Value) sigverify.Request {
	return sigverify.Request{
		Account:      account,
		Selector:     AuthKeyMetaTransactionsSelector,
		ChainID:      chainID,
		Nonce:        r.Nonce,
		Transactions: r.Transactions,
		Fee:          r.Fee,
	}
}

func (r LoginKeyRequest) signed(account custody.Address, chainID custody.Value) sigverify.Request {
	return sigverify.Request{
		Account:      account,
		Selector:     LoginKeyMetaTransactionsSelector,
		ChainID:      chainID,
		Nonce:        r.Nonce,
		Transactions: r.Transactions,
		Fee:          r.Fee,
	}
}

// SignAuthKeyRequest builds a request for the given batch signed by an auth key.
func SignAuthKeyRequest(
	account custody.Address,
	chainID custody.Value,
	nonce uint64,
	batch custody.Batch,
	fee custody.FeeParameters,
	key *ecdsa.PrivateKey,
) (AuthKeyRequest, error) {
	transactions, err := batch.Encode()
	if err != nil {
		return AuthKeyRequest{}, err
	}
	request := AuthKeyRequest{
		Nonce:        nonce,
		Transactions: transactions,
		Fee:          fee,
	}
	request.Signature, err = sigverify.SignRequest(request.signed(account, chainID), key)
	if err != nil {
		return AuthKeyRequest{}, err
	}
	return request, nil
}

// SignLoginKeyRequest builds a request for the given batch signed by a login key.
func SignLoginKeyRequest(
	account custody.Address,
	chainID custody.Value,
	nonce uint64,
	batch custody.Batch,
	fee custody.FeeParameters,
	key *ecdsa.PrivateKey,
	attestation loginkey.Attestation,
) (LoginKeyRequest, error) {
	transactions, err := batch.Encode()
	if err != nil {
		return LoginKeyRequest{}, err
	}
	request := LoginKeyRequest{
		Nonce:        nonce,
		Transactions: transactions,
		Fee:          fee,
		Restrictions: attestation.Restrictions,
		Attestation:  attestation.Signature,
	}
	request.Signature, err = sigverify.SignRequest(request.signed(account, chainID), key)
	if err != nil {
		return LoginKeyRequest{}, err
	}
	return request, nil
}

// Attest issues an attestation for a login key.
func Attest(loginKey custody.Address, restrictions loginkey.Restrictions, authKey *ecdsa.PrivateKey) (loginkey.Attestation, error) {
	blob, err := loginkey.Encode(restrictions)
	if err != nil {
		return loginkey.Attestation{}, err
	}
	signature, err := sigverify.SignAttestation(loginKey, blob, authKey)
	if err != nil {
		return loginkey.Attestation{}, err
	}
	return loginkey.Attestation{Restrictions: blob, Signature: signature}, nil
}
