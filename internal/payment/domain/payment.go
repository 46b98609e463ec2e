package domain

import (
	"errors"
	"fmt"
	"time"
)

type AttemptStatus string

const (
	AttemptPending AttemptStatus = "pending"
	AttemptSuccess AttemptStatus = "success"
	AttemptFailed  AttemptStatus = "failed"
	AttemptUsed    AttemptStatus = "used"
)

var (
	// ErrVerificationInProgress means another verification holds the
	// per-order lock. The caller should wait, not retry immediately.
	ErrVerificationInProgress = errors.New("verification already in progress")
	// ErrReplayRejected means the (order, authority) pair was already
	// consumed by a successful verification.
	ErrReplayRejected = errors.New("payment authority already used")
	// ErrPaymentCanceled means the gateway reported a canceled or failed
	// payment in the callback (Status=NOK).
	ErrPaymentCanceled = errors.New("payment canceled")
)

// Attempt is one row of the verification ledger, keyed by
// (order, authority). The lock serializes concurrent attempts; the ledger
// rejects sequential replay after the lock is gone.
type Attempt struct {
	OrderID     string
	Authority   string
	Status      AttemptStatus
	AmountRials int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Consumed reports whether this authority may no longer be verified.
func (a Attempt) Consumed() bool {
	return a.Status == AttemptSuccess || a.Status == AttemptUsed
}

// Receipt is a successful gateway verification.
type Receipt struct {
	RefID int64
	// AlreadyVerified is set when the gateway reports the authority was
	// verified before (Zarinpal code 101).
	AlreadyVerified bool
}

// Approval is the outcome of the callback approval workflow.
type Approval struct {
	OrderID     string
	RefID       int64
	AlreadyPaid bool
}

// GatewayError is a non-success response from the payment gateway,
// carrying the provider's numeric code.
type GatewayError struct {
	Code    int
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error %d: %s", e.Code, e.Message)
}
