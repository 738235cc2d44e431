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
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/panoptisDev/custody/go/custody"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestRequest(t *testing.T) Request {
	t.Helper()
	request, err := NewRequest(
		custody.Address{0xac},
		custody.Selector{1, 2, 3, 4},
		custody.NewValue(1),
		7,
		custody.Batch{
			{Destination: custody.Address{1}, Value: custody.NewValue(5), GasLimit: 50_000},
			{Destination: custody.Address{2}, GasLimit: 60_000, Data: custody.Data{0xde, 0xad}},
		},
		custody.FeeParameters{
			GasPrice:     custody.NewValue(20_000_000_000),
			GasOverhead:  30_000,
			FeeTokenRate: custody.NewValue(1),
		},
	)
	require.NoError(t, err)
	return request
}

func TestRequestHash_DependsOnEveryField(t *testing.T) {
	base := newTestRequest(t)
	baseHash, err := RequestHash(base)
	require.NoError(t, err)

	tests := map[string]func(*Request){
		"account":   func(r *Request) { r.Account = custody.Address{0xad} },
		"selector":  func(r *Request) { r.Selector = custody.Selector{4, 3, 2, 1} },
		"chain id":  func(r *Request) { r.ChainID = custody.NewValue(2) },
		"nonce":     func(r *Request) { r.Nonce++ },
		"reordered": func(r *Request) { r.Transactions[0], r.Transactions[1] = r.Transactions[1], r.Transactions[0] },
		"truncated": func(r *Request) { r.Transactions = r.Transactions[:1] },
		"gas price": func(r *Request) { r.Fee.GasPrice = custody.NewValue(1) },
		"overhead":  func(r *Request) { r.Fee.GasOverhead++ },
		"fee token": func(r *Request) { r.Fee.FeeToken = custody.Address{0x70} },
		"fee rate":  func(r *Request) { r.Fee.FeeTokenRate = custody.NewValue(2) },
	}
	for name, modify := range tests {
		t.Run(name, func(t *testing.T) {
			request := newTestRequest(t)
			modify(&request)
			hash, err := RequestHash(request)
			require.NoError(t, err)
			require.NotEqual(t, baseHash, hash)
		})
	}
}

func TestRequestHash_IsDeterministic(t *testing.T) {
	a, err := RequestHash(newTestRequest(t))
	require.NoError(t, err)
	b, err := RequestHash(newTestRequest(t))
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestPersonalSign_RecoversSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	request := newTestRequest(t)

	signature, err := SignRequest(request, key)
	require.NoError(t, err)
	require.Contains(t, []byte{27, 28}, signature[crypto.RecoveryIDOffset])

	hash, err := RequestHash(request)
	require.NoError(t, err)
	scheme := PersonalSign{}
	signer, err := scheme.Recover(scheme.Digest(hash), signature)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), signer)

	// the raw 0/1 recovery id is accepted as well
	raw := bytes.Clone(signature)
	raw[crypto.RecoveryIDOffset] -= 27
	signer, err = scheme.Recover(scheme.Digest(hash), raw)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), signer)
}

func TestPersonalSign_DigestUsesMessagePrefix(t *testing.T) {
	hash := custody.Hash{1, 2, 3}
	want := crypto.Keccak256Hash([]byte("\x19Ethereum Signed Message:\n32"), hash[:])
	require.Equal(t, want, PersonalSign{}.Digest(hash))
}

func TestPersonalSign_RejectsMalformedSignatures(t *testing.T) {
	valid := make([]byte, crypto.SignatureLength)
	valid[0] = 1
	tests := map[string][]byte{
		"empty":        nil,
		"too short":    valid[:64],
		"too long":     append(bytes.Clone(valid), 0),
		"recovery id":  append(bytes.Clone(valid[:64]), 29),
		"zero r and s": make([]byte, crypto.SignatureLength),
	}
	for name, signature := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := PersonalSign{}.Recover(custody.Hash{1}, signature)
			require.ErrorIs(t, err, custody.ErrMalformedSignature)
		})
	}
}

func TestVerifier_CachesRecoveredSigners(t *testing.T) {
	ctrl := gomock.NewController(t)
	scheme := NewMockScheme(ctrl)
	signer := custody.Address{0x51}

	scheme.EXPECT().Digest(custody.Hash{1}).Return(custody.Hash{2}).Times(3)
	scheme.EXPECT().Recover(custody.Hash{2}, []byte{9}).Return(signer, nil).Times(1)

	verifier, err := NewVerifier(scheme, 16)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		got, err := verifier.Recover(custody.Hash{1}, []byte{9})
		require.NoError(t, err)
		require.Equal(t, signer, got)
	}
}

func TestVerifier_DoesNotCacheFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	scheme := NewMockScheme(ctrl)

	scheme.EXPECT().Digest(gomock.Any()).Return(custody.Hash{2}).Times(2)
	scheme.EXPECT().Recover(gomock.Any(), gomock.Any()).Return(custody.Address{}, custody.ErrMalformedSignature).Times(2)

	verifier, err := NewVerifier(scheme, 16)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := verifier.Recover(custody.Hash{1}, []byte{9})
		require.ErrorIs(t, err, custody.ErrMalformedSignature)
	}
}

func TestVerifier_RejectsInvalidCacheSize(t *testing.T) {
	_, err := NewVerifier(PersonalSign{}, 0)
	require.Error(t, err)
}

func TestVerifier_ClassifiesSigners(t *testing.T) {
	authKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	stranger, err := crypto.GenerateKey()
	require.NoError(t, err)
	authAddress := crypto.PubkeyToAddress(authKey.PublicKey)
	isAuthKey := func(address custody.Address) bool { return address == authAddress }

	verifier, err := NewVerifier(PersonalSign{}, 16)
	require.NoError(t, err)
	hash := custody.Hash{0x42}

	signature, err := SignHash(hash, authKey)
	require.NoError(t, err)
	kind, signer, err := verifier.Classify(hash, signature, isAuthKey)
	require.NoError(t, err)
	require.Equal(t, AuthKeySigner, kind)
	require.Equal(t, authAddress, signer)

	signature, err = SignHash(hash, stranger)
	require.NoError(t, err)
	kind, _, err = verifier.Classify(hash, signature, isAuthKey)
	require.NoError(t, err)
	require.Equal(t, UnknownSigner, kind)

	_, err = verifier.VerifyAuthKey(hash, signature, isAuthKey)
	require.ErrorIs(t, err, custody.ErrInvalidAuthKeySignature)

	// a signature over a different hash recovers some other address
	_, err = verifier.VerifyAuthKey(custody.Hash{0x43}, signature, isAuthKey)
	require.ErrorIs(t, err, custody.ErrInvalidAuthKeySignature)
}

func TestSignAttestation_IsRecoverableFromAttestationHash(t *testing.T) {
	authKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	loginKey := custody.Address{0x10}
	restrictions := []byte{0, 1, 2}

	require.Equal(t,
		crypto.Keccak256Hash(append(loginKey.Bytes(), restrictions...)),
		AttestationHash(loginKey, restrictions),
	)

	signature, err := SignAttestation(loginKey, restrictions, authKey)
	require.NoError(t, err)
	verifier, err := NewVerifier(PersonalSign{}, 4)
	require.NoError(t, err)
	signer, err := verifier.Recover(AttestationHash(loginKey, restrictions), signature)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(authKey.PublicKey), signer)
}
