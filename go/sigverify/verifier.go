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

//go:generate mockgen -source verifier.go -destination verifier_mock.go -package sigverify

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/panoptisDev/custody/go/custody"
)

// Scheme turns a canonical hash into the digest that is actually signed and
// recovers the signer of such a digest.
type Scheme interface {
	Digest(hash custody.Hash) custody.Hash
	Recover(digest custody.Hash, signature []byte) (custody.Address, error)
}

// PersonalSign is the EIP-191 personal message scheme over secp256k1.
type PersonalSign struct{}

func (PersonalSign) Digest(hash custody.Hash) custody.Hash {
	return common.BytesToHash(accounts.TextHash(hash[:]))
}

func (PersonalSign) Recover(digest custody.Hash, signature []byte) (custody.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return custody.Address{}, fmt.Errorf("%w: invalid length %d", custody.ErrMalformedSignature, len(signature))
	}
	normalized := bytes.Clone(signature)
	if v := normalized[crypto.RecoveryIDOffset]; v >= 27 {
		normalized[crypto.RecoveryIDOffset] = v - 27
	}
	if normalized[crypto.RecoveryIDOffset] > 1 {
		return custody.Address{}, fmt.Errorf("%w: invalid recovery id %d", custody.ErrMalformedSignature, signature[crypto.RecoveryIDOffset])
	}
	key, err := crypto.SigToPub(digest[:], normalized)
	if err != nil {
		return custody.Address{}, fmt.Errorf("%w: %v", custody.ErrMalformedSignature, err)
	}
	return crypto.PubkeyToAddress(*key), nil
}

type SignerKind int

const (
	UnknownSigner SignerKind = iota
	AuthKeySigner
)

func (k SignerKind) String() string {
	switch k {
	case AuthKeySigner:
		return "auth key"
	default:
		return "unknown"
	}
}

type cacheKey struct {
	digest    custody.Hash
	signature string
}

// Verifier recovers the signers of canonical hashes. Successful recoveries
// are cached since relayers frequently resubmit identical payloads.
type Verifier struct {
	scheme Scheme
	cache  *lru.Cache[cacheKey, custody.Address]
}

func NewVerifier(scheme Scheme, cacheSize int) (*Verifier, error) {
	cache, err := lru.New[cacheKey, custody.Address](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create signer cache: %w", err)
	}
	return &Verifier{
		scheme: scheme,
		cache:  cache,
	}, nil
}

// Recover returns the address that signed the digest of the given hash.
func (v *Verifier) Recover(hash custody.Hash, signature []byte) (custody.Address, error) {
	key := cacheKey{
		digest:    v.scheme.Digest(hash),
		signature: string(signature),
	}
	if signer, found := v.cache.Get(key); found {
		return signer, nil
	}
	signer, err := v.scheme.Recover(key.digest, signature)
	if err != nil {
		return custody.Address{}, err
	}
	v.cache.Add(key, signer)
	return signer, nil
}

// Classify recovers the signer of the given hash and reports whether it is a
// current auth key.
func (v *Verifier) Classify(
	hash custody.Hash,
	signature []byte,
	isAuthKey func(custody.Address) bool,
) (SignerKind, custody.Address, error) {
	signer, err := v.Recover(hash, signature)
	if err != nil {
		return UnknownSigner, custody.Address{}, err
	}
	if isAuthKey(signer) {
		return AuthKeySigner, signer, nil
	}
	return UnknownSigner, signer, nil
}

// VerifyAuthKey succeeds only if the hash was signed by a current auth key.
func (v *Verifier) VerifyAuthKey(
	hash custody.Hash,
	signature []byte,
	isAuthKey func(custody.Address) bool,
) (custody.Address, error) {
	kind, signer, err := v.Classify(hash, signature, isAuthKey)
	if err != nil {
		return custody.Address{}, err
	}
	if kind != AuthKeySigner {
		return signer, fmt.Errorf("%w: signer %v", custody.ErrInvalidAuthKeySignature, signer)
	}
	return signer, nil
}
