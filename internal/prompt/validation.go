package prompt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/joshuadavidthomas/meteofetch/internal/models"
)

// ValidateNotEmpty returns an error if the string is empty or whitespace-only.
func ValidateNotEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("value cannot be empty")
	}
	return nil
}

// ValidateDate accepts YYYY-MM-DD.
func ValidateDate(s string) error {
	_, err := models.ParseDate(strings.TrimSpace(s))
	return err
}

// ValidateRange returns a validator for a decimal number in [lo, hi].
func ValidateRange(lo, hi float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return errors.New("enter a number")
		}
		if v < lo || v > hi {
			return fmt.Errorf("must be between %g and %g", lo, hi)
		}
		return nil
	}
}

// ProviderOptions lists the known providers as select options.
func ProviderOptions(labels map[models.ProviderID]string) []SelectOption {
	opts := make([]SelectOption, 0, len(models.KnownProviders()))
	for _, id := range models.KnownProviders() {
		label := labels[id]
		if label == "" {
			label = string(id)
		}
		opts = append(opts, SelectOption{Label: label, Value: string(id)})
	}
	return opts
}
