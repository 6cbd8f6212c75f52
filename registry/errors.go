package registry

import "errors"

var (
	// ErrRoleNameTooLong indicates a role name longer than 32 bytes.
	ErrRoleNameTooLong = errors.New("registry: role name exceeds 32 bytes")

	// ErrZeroAddress indicates an attempt to register the zero address.
	ErrZeroAddress = errors.New("registry: zero address")
)
