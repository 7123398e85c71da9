//go:build darwin

package keychain

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

const lookupTimeout = 2 * time.Second

// Lookup reads a generic password stored under service and account with the
// `security` CLI.
func Lookup(service, account string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "security",
		"find-generic-password", "-s", service, "-a", account, "-w").Output()
	if err != nil {
		return "", ErrNotFound
	}
	secret := strings.TrimSpace(string(out))
	if secret == "" {
		return "", ErrNotFound
	}
	return secret, nil
}
