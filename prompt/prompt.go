// Package prompt collects passphrases and confirmations from an
// interactive operator. Batch code never calls this mid-pool; callers
// resolve all input before fan-out.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

var (
	// ErrCancelled is returned when the operator aborts a prompt.
	ErrCancelled = errors.New("cancelled by user")

	// ErrMismatch is returned when a confirmation entry does not match.
	ErrMismatch = errors.New("entries do not match")
)

// Password prompts for a masked passphrase.
func Password(label string) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Mask:  '*',
	}
	value, err := p.Run()
	if err != nil {
		return "", mapErr(err)
	}
	return value, nil
}

// NewPassword prompts for a passphrase twice and requires both entries
// to match.
func NewPassword(label string) (string, error) {
	first, err := Password(label)
	if err != nil {
		return "", err
	}
	second, err := Password("Confirm " + strings.ToLower(label[:1]) + label[1:])
	if err != nil {
		return "", err
	}
	if first != second {
		return "", ErrMismatch
	}
	return first, nil
}

// Confirm asks a yes/no question, defaulting to no.
func Confirm(label string) (bool, error) {
	p := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	_, err := p.Run()
	if err != nil {
		// promptui reports a declined confirm as ErrAbort.
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, mapErr(err)
	}
	return true, nil
}

// Input prompts for a plain string with an optional default.
func Input(label, defaultValue string) (string, error) {
	p := promptui.Prompt{
		Label:   label,
		Default: defaultValue,
	}
	value, err := p.Run()
	if err != nil {
		return "", mapErr(err)
	}
	return value, nil
}

func mapErr(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return ErrCancelled
	}
	return fmt.Errorf("prompt failed: %w", err)
}
