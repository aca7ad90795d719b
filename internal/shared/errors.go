package shared

import "fmt"

var (
	// Fatal errors: the watch loop stops
	ErrAuthUnavailable    = fmt.Errorf("access token unavailable; re-authentication required")
	ErrInvalidPhoneNumber = fmt.Errorf("not a valid U.S. phone number")

	// Cycle-scoped errors
	ErrTransientFetch       = fmt.Errorf("playlist fetch failed")
	ErrNotificationDelivery = fmt.Errorf("notification delivery failed")
	ErrPersistState         = fmt.Errorf("failed to persist playlist state")

	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed = fmt.Errorf("authentication failed")
	ErrTimeout    = fmt.Errorf("operation timed out")

	// API errors
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrUnsupported     = fmt.Errorf("unsupported")
)
