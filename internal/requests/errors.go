package requests

import "github.com/odyssey-erp/payables/internal/shared"

var (
	ErrRequestNotFound    = shared.NewError(shared.KindNotFound, "REQUEST_NOT_FOUND", "Request not found")
	ErrInvalidTransition  = shared.NewError(shared.KindInvalidState, "INVALID_TRANSITION", "Operation not permitted in the request's current status")
	ErrAlreadyResubmitted = shared.NewError(shared.KindInvalidState, "ALREADY_RESUBMITTED", "This request has already been resubmitted")
	ErrNotRequester       = shared.NewError(shared.KindUnauthorized, "NOT_REQUESTER", "Only the original requester can change this request")
	ErrNotApprover        = shared.NewError(shared.KindUnauthorized, "APPROVER_REQUIRED", "Only admins can approve or reject requests")
	ErrNotAuthenticated   = shared.NewError(shared.KindUnauthorized, "ACTOR_REQUIRED", "An authenticated actor is required")
	ErrResubmissionLimit  = shared.NewError(shared.KindValidation, "RESUBMISSION_LIMIT", "Maximum resubmission limit reached")
	ErrReasonTooShort     = shared.NewError(shared.KindValidation, "REJECTION_REASON_TOO_SHORT", "Rejection reason must be at least 10 characters")
	ErrUnknownEntityKind  = shared.NewError(shared.KindValidation, "UNKNOWN_ENTITY_KIND", "Unknown entity kind")
	ErrInvalidPayload     = shared.NewError(shared.KindValidation, "INVALID_PAYLOAD", "Payload does not match the entity kind's schema")
	ErrInvalidFilter      = shared.NewError(shared.KindValidation, "INVALID_FILTER", "Unknown request status")
	ErrMaterialization    = shared.NewError(shared.KindDependency, "MATERIALIZATION_FAILED", "Could not create the approved record")
	ErrDefaultLookup      = shared.NewError(shared.KindDependency, "DEFAULT_LOOKUP_FAILED", "Could not resolve default references")
)
