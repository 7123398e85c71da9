//go:build !darwin

package keychain

// Lookup always fails outside macOS.
func Lookup(service, account string) (string, error) {
	return "", ErrUnavailable
}
