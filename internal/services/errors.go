package services

// Service errors
var (
	ErrShowNotFound            = &ServiceError{Code: "SHOW_NOT_FOUND", Message: "show not found"}
	ErrNoActiveShow            = &ServiceError{Code: "NO_ACTIVE_SHOW", Message: "no active show configured"}
	ErrVotingClosed            = &ServiceError{Code: "VOTING_CLOSED", Message: "voting is currently closed"}
	ErrInvalidCategory         = &ServiceError{Code: "INVALID_CATEGORY", Message: "invalid category"}
	ErrCarNotFound             = &ServiceError{Code: "CAR_NOT_FOUND", Message: "car not found"}
	ErrInvalidQuantity         = &ServiceError{Code: "INVALID_QUANTITY", Message: "vote quantity must be between 1 and 50"}
	ErrAttestationRequired     = &ServiceError{Code: "ATTESTATION_REQUIRED", Message: "please confirm you are voting for a service branch category in good faith"}
	ErrCarNumberTaken          = &ServiceError{Code: "CAR_NUMBER_TAKEN", Message: "that car number is already taken for this show"}
	ErrInvalidCarNumber        = &ServiceError{Code: "INVALID_CAR_NUMBER", Message: "car number must be a positive number"}
	ErrMissingFields           = &ServiceError{Code: "MISSING_FIELDS", Message: "please fill out all required fields"}
	ErrInvalidPlaceholderRange = &ServiceError{Code: "INVALID_PLACEHOLDER_RANGE", Message: "invalid placeholder range, count must be 1-1000"}
	ErrSponsorNameRequired     = &ServiceError{Code: "SPONSOR_NAME_REQUIRED", Message: "sponsor name is required"}
	ErrInvalidPlacement        = &ServiceError{Code: "INVALID_PLACEMENT", Message: "placement must be title or standard"}
	ErrAttendeeNameRequired    = &ServiceError{Code: "ATTENDEE_NAME_REQUIRED", Message: "first and last name are required"}
	ErrAttendeeNotFound        = &ServiceError{Code: "ATTENDEE_NOT_FOUND", Message: "attendee not found"}
	ErrInvalidAmount           = &ServiceError{Code: "INVALID_AMOUNT", Message: "invalid donation amount"}
	ErrMissingSession          = &ServiceError{Code: "MISSING_SESSION", Message: "missing session_id"}
	ErrSessionNotFound         = &ServiceError{Code: "SESSION_NOT_FOUND", Message: "checkout session not found"}
)

// ServiceError represents a service-level error. Code is stable and safe to
// return to clients.
type ServiceError struct {
	Code    string
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}
