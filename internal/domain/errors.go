// SPDX-License-Identifier: AGPL-3.0-or-later

package domain

import "errors"

// Sentinel errors for the domain layer.
// Use errors.Is() to check for these errors.
// Wrap with fmt.Errorf("context: %w", ErrXxx) to add context.

var (
	ErrInstanceNotFound    = errors.New("instance not found")
	ErrAppNotFound         = errors.New("application not found")
	ErrInvalidRegistration = errors.New("invalid registration")
	ErrInvalidStatus       = errors.New("invalid status")
)
