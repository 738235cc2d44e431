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

	"github.com/panoptisDev/custody/go/custody"
	"github.com/panoptisDev/custody/go/sigverify"
)

// Authorizer decides whether a login key may run a batch on behalf of an
// account.
type Authorizer struct {
	verifier *sigverify.Verifier
}

func NewAuthorizer(verifier *sigverify.Verifier) *Authorizer {
	return &Authorizer{verifier: verifier}
}

// Attestation is what an auth key hands to a login key off-chain.
type Attestation struct {
	Restrictions []byte
	Signature    []byte
}

// CheckSelfCalls rejects any batch touching the account itself. Login keys
// never get administrative access, whatever their restrictions say.
func CheckSelfCalls(account custody.Address, batch custody.Batch) error {
	if i := batch.IndexOf(account); i >= 0 {
		return fmt.Errorf("%w: instruction %d", custody.ErrLoginKeySelfCallForbidden, i)
	}
	return nil
}

// Authorize checks, in this order, that the batch does not call the account,
// that the attestation was signed by a current auth key, and that the
// restrictions admit the batch at time now. It returns the attesting key.
func (a *Authorizer) Authorize(
	account custody.Address,
	loginKey custody.Address,
	attestation Attestation,
	isAuthKey func(custody.Address) bool,
	now int64,
	batch custody.Batch,
) (custody.Address, error) {
	if err := CheckSelfCalls(account, batch); err != nil {
		return custody.Address{}, err
	}

	hash := sigverify.AttestationHash(loginKey, attestation.Restrictions)
	kind, attester, err := a.verifier.Classify(hash, attestation.Signature, isAuthKey)
	if err != nil {
		return custody.Address{}, fmt.Errorf("%w: %v", custody.ErrAttestationInvalid, err)
	}
	if kind != sigverify.AuthKeySigner {
		return custody.Address{}, fmt.Errorf("%w: attested by %v", custody.ErrAttestationInvalid, attester)
	}

	if err := Evaluate(attestation.Restrictions, now, batch); err != nil {
		return custody.Address{}, err
	}
	return attester, nil
}
