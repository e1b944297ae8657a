package core

import (
	"errors"
	"strings"
)

// ValidateProvider checks a provider name typed on the command line or in the TUI.
// The store itself accepts any string; this only rejects blank input.
func ValidateProvider(provider string) error {
	if strings.TrimSpace(provider) == "" {
		return errors.New("provider is required")
	}
	return nil
}
