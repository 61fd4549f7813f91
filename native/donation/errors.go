package donation

import "errors"

var (
	errNilState      = errors.New("donation engine: state not configured")
	errNilSettlement = errors.New("donation engine: settlement not configured")
	errNilRegistry   = errors.New("donation engine: registry not configured")
	errNilIdentity   = errors.New("donation engine: identity not configured")

	// ErrUnauthorized is returned when a non-operator calls an owner-only operation.
	ErrUnauthorized = errors.New("donation engine: caller is not the operator")
	// ErrNotReady is returned for donations before the reward batch exists.
	ErrNotReady = errors.New("donation engine: reward batch has not been created yet")
	// ErrTokenNotIssued is returned when minting before registration succeeded.
	ErrTokenNotIssued = errors.New("donation engine: token not issued")
	// ErrRolesNotSet is returned when minting without both local roles.
	ErrRolesNotSet = errors.New("donation engine: local roles not set")
	// ErrAlreadyRegistered is returned for a second registration.
	ErrAlreadyRegistered = errors.New("donation engine: token already issued")
	// ErrRegistrationPending is returned while an issue request is in flight.
	ErrRegistrationPending = errors.New("donation engine: registration pending")
	// ErrNotRegistered is returned when granting roles before registration.
	ErrNotRegistered = errors.New("donation engine: asset class not registered")
	// ErrAlreadyMinted is returned for a second mint.
	ErrAlreadyMinted = errors.New("donation engine: reward batch already minted")
	// ErrInvalidPayment is returned for payments that are missing, negative or
	// not in the native denomination.
	ErrInvalidPayment = errors.New("donation engine: invalid payment")
	// ErrNoPendingRegistration is returned by the registration callback when
	// the result does not match the in-flight request.
	ErrNoPendingRegistration = errors.New("donation engine: no matching pending registration")
)
