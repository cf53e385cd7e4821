package domain

import "errors"

// Domain errors
var (
	ErrUserNotFound           = errors.New("user not found")
	ErrPromptNotFound         = errors.New("prompt not found")
	ErrMatchNotFound          = errors.New("match not found")
	ErrModelNotFound          = errors.New("ai model not found")
	ErrModelNotConfigured     = errors.New("no ai model configured")
	ErrPlayerNotFound         = errors.New("player not found in leaderboard")
	ErrNoPromptAvailable      = errors.New("no prompts available")
	ErrPromptAlreadyCompleted = errors.New("prompt already completed by this user")
	ErrMatchAlreadyOwned      = errors.New("match already belongs to another user")
	ErrEvaluationInProgress   = errors.New("evaluation already in progress")
	ErrMalformedModelResponse = errors.New("malformed model response")
	ErrModelUnavailable       = errors.New("ai model request failed")
	ErrInvalidResource        = errors.New("invalid resource url")
	ErrDuplicateResource      = errors.New("duplicate resource url")
	ErrTooManyResources       = errors.New("too many resources")
	ErrForbidden              = errors.New("forbidden")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInvalidRequest         = errors.New("invalid request")
	ErrInternalError          = errors.New("internal server error")
	ErrCacheMiss              = errors.New("standings not cached")
	ErrStaleStandings         = errors.New("standings changed while rebuilding")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrPromptNotFound) ||
		errors.Is(err, ErrMatchNotFound) ||
		errors.Is(err, ErrPlayerNotFound) ||
		errors.Is(err, ErrNoPromptAvailable)
}

// IsValidationError reports errors caused by the caller's input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidResource) ||
		errors.Is(err, ErrDuplicateResource) ||
		errors.Is(err, ErrTooManyResources)
}

// ErrorCode returns the stable machine-readable code clients match on.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrPromptAlreadyCompleted):
		return "PROMPT_ALREADY_COMPLETED"
	case errors.Is(err, ErrMatchAlreadyOwned):
		return "MATCH_ALREADY_OWNED"
	case errors.Is(err, ErrEvaluationInProgress):
		return "EVALUATION_IN_PROGRESS"
	case errors.Is(err, ErrMalformedModelResponse):
		return "MALFORMED_MODEL_RESPONSE"
	case errors.Is(err, ErrDuplicateResource):
		return "DUPLICATE_RESOURCE"
	default:
		return ""
	}
}
