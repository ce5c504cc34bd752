package reservation

import "context"

type Identity interface {
	Authenticate(ctx context.Context, username, password string) (token string, err error)
}

type Codec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Claimer submits a seat claim. Transport retries happen inside; an exhausted
// retry budget is reported as ErrTransportExhausted.
type Claimer interface {
	Submit(ctx context.Context, seatID, segment string, cred Credential) (ClaimResult, error)
}

type Catalog interface {
	BuildingID(ctx context.Context, classroom string) (string, error)
	Segment(ctx context.Context, buildingID, day string) (string, error)
	ListSeats(ctx context.Context, buildingID, segment, day string) ([]Seat, error)
}

type Members interface {
	Reservations(ctx context.Context, cred Credential) (MemberStatus, error)
}

type Spaces interface {
	Checkout(ctx context.Context, reservationID string, cred Credential) (status string, err error)
	Cancel(ctx context.Context, reservationID string, cred Credential) error
}

// Notifier delivers the final report. Implementations must not block for long.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, message string) error
}
