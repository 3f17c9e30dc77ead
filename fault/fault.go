// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault

// GenericError - error base
type GenericError string

// to allow for different classes of errors
type (
	ExistsError   GenericError
	InvalidError  GenericError
	LengthError   GenericError
	NotFoundError GenericError
	ProcessError  GenericError
	RecordError   GenericError
)

// protocol errors that carry data are typed strings in the same
// manner, the string being the variable part

// PackageNotFoundError - the linear identifier did not resolve to an
// unconsumed package offer, on either side of a session
type PackageNotFoundError string

// VerificationFailedError - a contract rule rejected the composed
// transaction, strictly before any signature was produced
type VerificationFailedError string

// RejectedError - a remote party's acceptance check declined to
// countersign; only the declining party's reason is carried
type RejectedError string

// ConsensusConflictError - the notary detected that an input record
// was already consumed by a previously finalised transaction
type ConsensusConflictError GenericError

// common errors - keep in alphabetic order
var (
	ErrAlreadyInitialised           = ProcessError("already initialised")
	ErrCannotDecodeAccount          = RecordError("cannot decode account")
	ErrCannotDecodePrivateKey       = RecordError("cannot decode private key")
	ErrCertificateFileAlreadyExists = ExistsError("certificate file already exists")
	ErrChecksumMismatch             = ProcessError("checksum mismatch")
	ErrConsensusConflict            = ConsensusConflictError("input record already consumed")
	ErrDescriptionTooLong           = LengthError("description too long")
	ErrInsufficientFunds            = InvalidError("insufficient funds")
	ErrInvalidAmount                = InvalidError("invalid amount")
	ErrInvalidCheckpoint            = RecordError("invalid checkpoint")
	ErrInvalidCount                 = InvalidError("invalid count")
	ErrInvalidCurrency              = InvalidError("invalid currency")
	ErrInvalidCursor                = InvalidError("invalid cursor")
	ErrInvalidFeePercentage         = InvalidError("invalid fee percentage")
	ErrInvalidKeyLength             = InvalidError("invalid key length")
	ErrInvalidKeyType               = InvalidError("invalid key type")
	ErrInvalidLoggerChannel         = InvalidError("invalid logger channel")
	ErrInvalidOwnerOrRegistrant     = InvalidError("invalid owner or registrant")
	ErrInvalidPriceMismatch         = InvalidError("price does not match the offer")
	ErrInvalidSignature             = InvalidError("invalid signature")
	ErrInvalidStructPointer         = InvalidError("invalid struct pointer")
	ErrKeyFileAlreadyExists         = ExistsError("key file already exists")
	ErrLinkTooLong                  = LengthError("link too long")
	ErrNameTooLong                  = LengthError("name too long")
	ErrNameTooShort                 = LengthError("name too short")
	ErrNotACheckpoint               = RecordError("not a checkpoint")
	ErrNotAPackedTransaction        = RecordError("not a packed transaction")
	ErrNotConnected                 = ProcessError("not connected")
	ErrNotFoundFeeAgreement         = NotFoundError("fee agreement not found")
	ErrNotFoundIdentity             = NotFoundError("identity name is invalid")
	ErrNotFoundNotary               = NotFoundError("notary is not set")
	ErrNotFoundSessionHandler       = NotFoundError("no handler for protocol")
	ErrNotInitialised               = ProcessError("not initialised")
	ErrNotNotarised                 = InvalidError("transaction is not notarised")
	ErrNotPublicKey                 = RecordError("not a public key")
	ErrSessionClosed                = ProcessError("session is closed")
	ErrSessionTimeout               = ProcessError("session timeout")
	ErrSessionUnexpectedMessage     = ProcessError("unexpected session message")
	ErrSignatureTooLong             = LengthError("signature too long")
	ErrTransactionAlreadyExists     = ExistsError("transaction already exists")
	ErrTransactionAlreadyInFlight   = ExistsError("transaction already in flight")
	ErrTransactionInUse             = ProcessError("transaction in use")
	ErrVersionTooLong               = LengthError("version too long")
	ErrWrongNetworkForPublicKey     = InvalidError("wrong network for public key")
)

// the error interface base method
func (e GenericError) Error() string { return string(e) }

// the error interface methods
func (e ExistsError) Error() string   { return string(e) }
func (e InvalidError) Error() string  { return string(e) }
func (e LengthError) Error() string   { return string(e) }
func (e NotFoundError) Error() string { return string(e) }
func (e ProcessError) Error() string  { return string(e) }
func (e RecordError) Error() string   { return string(e) }

func (e PackageNotFoundError) Error() string {
	return "package not found: " + string(e)
}

func (e VerificationFailedError) Error() string {
	return "verification failed: " + string(e)
}

func (e RejectedError) Error() string {
	return "rejected: " + string(e)
}

func (e ConsensusConflictError) Error() string {
	return "consensus conflict: " + string(e)
}

// determine the class of an error
func IsErrExists(e error) bool   { _, ok := e.(ExistsError); return ok }
func IsErrInvalid(e error) bool  { _, ok := e.(InvalidError); return ok }
func IsErrLength(e error) bool   { _, ok := e.(LengthError); return ok }
func IsErrNotFound(e error) bool { _, ok := e.(NotFoundError); return ok }
func IsErrProcess(e error) bool  { _, ok := e.(ProcessError); return ok }
func IsErrRecord(e error) bool   { _, ok := e.(RecordError); return ok }

// determine the class of a protocol error
func IsErrPackageNotFound(e error) bool {
	_, ok := e.(PackageNotFoundError)
	return ok
}

func IsErrVerificationFailed(e error) bool {
	_, ok := e.(VerificationFailedError)
	return ok
}

func IsErrRejected(e error) bool {
	_, ok := e.(RejectedError)
	return ok
}

func IsErrConsensusConflict(e error) bool {
	_, ok := e.(ConsensusConflictError)
	return ok
}
