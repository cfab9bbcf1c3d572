package shipstation

import (
	"fmt"

	"github.com/qpss/middleware/internal/domain/integration"
)

// maxErrorBody bounds the response text kept on an APIError
const maxErrorBody = 500

// APIError is a non-2xx response. Kind is integration.ErrTransient for
// 429 and 5xx, integration.ErrPermanent for every other status.
type APIError struct {
	Account    integration.Account
	Method     string
	Path       string
	StatusCode int
	Body       string
	Kind       error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shipstation %s: %s %s: HTTP %d: %s",
		e.Account.Label(), e.Method, e.Path, e.StatusCode, e.Body)
}

// Unwrap lets errors.Is match the failure kind
func (e *APIError) Unwrap() error {
	return e.Kind
}

func newAPIError(account integration.Account, method, path string, status int, body []byte) *APIError {
	text := string(body)
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	kind := integration.ErrPermanent
	if status == 429 || status >= 500 {
		kind = integration.ErrTransient
	}
	return &APIError{
		Account:    account,
		Method:     method,
		Path:       path,
		StatusCode: status,
		Body:       text,
		Kind:       kind,
	}
}
