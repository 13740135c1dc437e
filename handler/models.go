package handler

const (
	msgAPIKeyMissing = "API key is not configured."
	msgInternalError = "Internal server error."
)

// ErrorResponse is the JSON body returned for server-side failures.
type ErrorResponse struct {
	Error string `json:"error"`
}
