package fishcast

import (
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// ProviderError is a failure reported by the FishCast service itself: a
// success:false body or an HTTP error status with a parseable error body.
// Its message is safe to show to users verbatim.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// TransportError is a network-level failure, a timeout, or a response the
// client could not parse. The cause is for logs only; users get a generic
// connectivity message instead.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fishcast: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// firstNonEmpty returns the first non-empty string, or "".
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// errorFromResponse maps an error-status response to a typed error. FastAPI
// handlers report failures as {"detail": ...} and some endpoints as
// {"error": ...}; anything else is treated as malformed.
func errorFromResponse(op string, res *resty.Response) error {
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(res.Body(), &body); err == nil {
		if msg := firstNonEmpty(body.Error, body.Detail); msg != "" {
			return &ProviderError{StatusCode: res.StatusCode(), Message: msg}
		}
	}
	return &TransportError{Op: op, Err: fmt.Errorf("unexpected response (status %d)", res.StatusCode())}
}
