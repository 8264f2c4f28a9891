package jwtx

import "errors"

// Verification failures are reduced to this fixed taxonomy so callers can
// map them to wire errors with errors.Is instead of string matching.
var (
	ErrMalformed      = errors.New("jwtx: malformed token")
	ErrUnknownKey     = errors.New("jwtx: token signed by unknown key")
	ErrBadSignature   = errors.New("jwtx: invalid signature")
	ErrExpired        = errors.New("jwtx: token expired")
	ErrNotYetValid    = errors.New("jwtx: token not yet valid")
	ErrBadIssueTime   = errors.New("jwtx: token issued in the future")
	ErrBadIssuer      = errors.New("jwtx: issuer mismatch")
	ErrBadAudience    = errors.New("jwtx: audience mismatch")
	ErrWrongTokenType = errors.New("jwtx: wrong token type")
)
