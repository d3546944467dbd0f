package errors

const (
	HttpInternalError      = "internal_error"
	HttpInvalidParamsError = "invalid_params"
	HttpNotFoundError      = "not_found"
	HttpUnknownSourceError = "unknown_source"
)

// ErrorResponse is the error response body for reporting API errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
