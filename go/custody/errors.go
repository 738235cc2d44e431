// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package custody

import (
	"errors"
	"fmt"
)

// ConstError is an error type that can be used to define immutable
// error constants.
type ConstError string

func (e ConstError) Error() string {
	return string(e)
}

// Authorization failures.
const (
	ErrInvalidAuthKeySignature   = ConstError("invalid auth key signature")
	ErrMalformedSignature        = ConstError("malformed signature")
	ErrAttestationInvalid        = ConstError("login key attestation is not signed by an auth key")
	ErrRestrictionViolated       = ConstError("login key restrictions violated")
	ErrLoginKeySelfCallForbidden = ConstError("login key is not able to call self")
	ErrNotAuthKeyOrSelf          = ConstError("caller must be an auth key or the account itself")
)

// Violations of the account's persistent state rules.
const (
	ErrNonceMismatch      = ConstError("nonce mismatch")
	ErrLastKeyProtected   = ConstError("cannot remove last auth key")
	ErrKeyAlreadyPresent  = ConstError("auth key already added")
	ErrKeyNotPresent      = ConstError("auth key not yet added")
	ErrAlreadyInitialized = ConstError("account already initialized")
)

// Execution failures.
const (
	ErrSubcallReverted     = ConstError("sub-call reverted")
	ErrFeeTransferFailed   = ConstError("fee transfer failed")
	ErrOutOfGas            = ConstError("out of gas")
	ErrInsufficientBalance = ConstError("insufficient balance")
	ErrMaxDepth            = ConstError("max recursive depth reached")
)

// Malformed requests.
const (
	ErrEmptyBatch      = ConstError("empty instruction batch")
	ErrUnknownSelector = ConstError("unknown function selector")
	ErrMalformedInput  = ConstError("malformed input")
)

// Class groups errors by the kind of rule that rejected a request.
type Class int

const (
	ClassNone Class = iota
	ClassAuthorization
	ClassState
	ClassExecution
	ClassRequest
	ClassUnknown
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassAuthorization:
		return "authorization"
	case ClassState:
		return "state"
	case ClassExecution:
		return "execution"
	case ClassRequest:
		return "request"
	default:
		return "unknown"
	}
}

var errorClasses = []struct {
	class  Class
	errors []error
}{
	{ClassAuthorization, []error{
		ErrInvalidAuthKeySignature, ErrMalformedSignature, ErrAttestationInvalid,
		ErrRestrictionViolated, ErrLoginKeySelfCallForbidden, ErrNotAuthKeyOrSelf,
	}},
	{ClassState, []error{
		ErrNonceMismatch, ErrLastKeyProtected, ErrKeyAlreadyPresent,
		ErrKeyNotPresent, ErrAlreadyInitialized,
	}},
	{ClassExecution, []error{
		ErrSubcallReverted, ErrFeeTransferFailed, ErrOutOfGas,
		ErrInsufficientBalance, ErrMaxDepth,
	}},
	{ClassRequest, []error{
		ErrEmptyBatch, ErrUnknownSelector, ErrMalformedInput,
	}},
}

// Classify returns the class of the outermost known error in err's chain.
// Wrapping errors are inspected first, so a fee transfer failing because
// of an insufficient balance is classified by the fee transfer failure.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		for _, group := range errorClasses {
			for _, candidate := range group.errors {
				if cur == candidate {
					return group.class
				}
			}
		}
		if _, ok := cur.(*SubcallRevertedError); ok {
			return ClassExecution
		}
	}
	return ClassUnknown
}

// SubcallRevertedError reports the failing instruction of a batch.
type SubcallRevertedError struct {
	Index int
	Err   error
}

func (e *SubcallRevertedError) Error() string {
	return fmt.Sprintf("%v: instruction %d: %v", ErrSubcallReverted, e.Index, e.Err)
}

func (e *SubcallRevertedError) Is(target error) bool {
	return target == ErrSubcallReverted
}

func (e *SubcallRevertedError) Unwrap() error {
	return e.Err
}
