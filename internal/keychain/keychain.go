// Package keychain reads API keys from the macOS login keychain.
//
// Keys are stored as generic passwords with service "meteofetch" and the
// provider id as the account:
//
//	security add-generic-password -s meteofetch -a meteostat -w <key>
package keychain

import "errors"

// Service is the keychain service name meteofetch keys are filed under.
const Service = "meteofetch"

var (
	ErrUnavailable = errors.New("keychain not available on this platform")
	ErrNotFound    = errors.New("no keychain entry")
)
