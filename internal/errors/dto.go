package errors

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Success   bool        `json:"success"`
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
}

type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

const defaultDisplayMessage = "An unexpected error occurred"

// NewErrorResponse renders err for an API caller. Only hints and reportable
// details leave the process; internal messages stay in logs.
func NewErrorResponse(err error, requestID string) ErrorResponse {
	message := defaultDisplayMessage
	for _, hint := range hintsOf(err) {
		message = hint
		break
	}

	details := Details(err)
	if len(details) == 0 {
		details = nil
	}

	return ErrorResponse{
		Success:   false,
		Error:     ErrorDetail{Code: Code(err), Message: message, Details: details},
		RequestID: requestID,
	}
}
