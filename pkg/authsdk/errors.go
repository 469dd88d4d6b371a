package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/tabtoken/pkg/httpx"
)

// Error codes written by the token service. The OAuth2 ones follow RFC 6749.
const (
	ErrorCodeInvalidRequest = "invalid_request"
	ErrorCodeInvalidClient  = "invalid_client"
	ErrorCodeInvalidGrant   = "invalid_grant"
	ErrorCodeInvalidToken   = "invalid_token"
	ErrorCodeServerError    = "server_error"
	ErrorCodeUnauthorized   = "unauthorized"
	ErrorCodeRateLimited    = "rate_limit_exceeded"
)

// APIError is an error response from the token service. Handlers write it and
// the Client returns it.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is compares status, code and description so callers can write
// errors.Is(err, authsdk.ErrUnknownSubject) against a decoded response.
// Several errors share the invalid_grant code; the description tells them
// apart.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode && e.Code == t.Code && e.Description == t.Description
}

// WriteError writes e as the response.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteError(w, e.StatusCode, e.Code, e.Description)
}

// WithDescription returns a copy of e with a different description.
func (e *APIError) WithDescription(desc string) *APIError {
	return &APIError{StatusCode: e.StatusCode, Code: e.Code, Description: desc}
}

var (
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	ErrInvalidContentType = &APIError{
		StatusCode:  http.StatusUnsupportedMediaType,
		Code:        ErrorCodeInvalidRequest,
		Description: "content-type must be application/x-www-form-urlencoded or application/json",
	}

	ErrInvalidBody = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "invalid request body",
	}

	// ErrUnknownClient means no policy or claim strategy exists for the
	// tenant named in the request.
	ErrUnknownClient = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidClient,
		Description: "unknown client",
	}

	ErrUnknownSubject = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidGrant,
		Description: "subject not found",
	}

	ErrSubjectInactive = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidGrant,
		Description: "subject is disabled",
	}

	ErrInvalidRefresh = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidGrant,
		Description: "refresh token is invalid, expired or was issued to another client",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}

	// ErrUnauthorized is the code and status the basic credential gate uses.
	// The gate writes its own description, so match it on Code.
	ErrUnauthorized = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeUnauthorized,
		Description: "caller authentication failed",
	}
)

// parseErrorResponse turns a non-success response into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
