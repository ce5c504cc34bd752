package reservation

import "errors"

var (
	ErrMissingCredentials = errors.New("username or password not configured")
	ErrAuth               = errors.New("identity provider rejected credentials")
	ErrTransportExhausted = errors.New("request retries exhausted")
	ErrMalformedResponse  = errors.New("response missing expected fields")
	ErrTooEarly           = errors.New("reservation window is too far away")
	ErrNotFound           = errors.New("not found")
)

// IsFatal reports whether err must stop the whole run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrTransportExhausted) ||
		errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrAuth)
}
