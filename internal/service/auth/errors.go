package auth

import "errors"

// Login errors. Messages are shown to the console user as-is.
var (
	// ErrEmptyCredentials is returned when the username or password is blank.
	ErrEmptyCredentials = errors.New("Username or password cannot be empty!")

	// ErrInvalidCredentials covers unknown users, inactive accounts and
	// wrong passwords alike.
	ErrInvalidCredentials = errors.New("Invalid username or password.")
)

// Token errors
var (
	// ErrInvalidToken indicates the token format is invalid or signature doesn't match
	ErrInvalidToken = errors.New("invalid authentication token")

	// ErrExpiredToken indicates the token has expired
	ErrExpiredToken = errors.New("authentication token has expired")

	// ErrTokenNotYetValid indicates the token is not yet valid (nbf claim in the future)
	ErrTokenNotYetValid = errors.New("authentication token not yet valid")

	// ErrMissingToken indicates a token was expected but not provided
	ErrMissingToken = errors.New("authentication token is missing")

	// ErrWrongTokenType indicates a token issued for another purpose
	ErrWrongTokenType = errors.New("wrong token type")

	// ErrSecretTooShort is returned by NewJWTService for secrets under 32 bytes.
	ErrSecretTooShort = errors.New("jwt secret must be at least 32 characters")
)
