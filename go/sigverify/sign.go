// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package sigverify

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/panoptisDev/custody/go/custody"
)

// SignHash produces a personal-message signature over the given hash with
// the recovery id in its 27/28 form.
func SignHash(hash custody.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	digest := PersonalSign{}.Digest(hash)
	signature, err := crypto.Sign(digest[:], key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	signature[crypto.RecoveryIDOffset] += 27
	return signature, nil
}

func SignRequest(request Request, key *ecdsa.PrivateKey) ([]byte, error) {
	hash, err := RequestHash(request)
	if err != nil {
		return nil, err
	}
	return SignHash(hash, key)
}

// SignAttestation binds a login key to its restrictions with an auth key.
func SignAttestation(loginKey custody.Address, restrictions []byte, authKey *ecdsa.PrivateKey) ([]byte, error) {
	return SignHash(AttestationHash(loginKey, restrictions), authKey)
}
