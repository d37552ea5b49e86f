package kaggle

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/KaramelBytes/datakit-cli/internal/errs"
)

// APIError is a non-success response from the Kaggle API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d message=%s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error: status=%d", e.StatusCode)
}

// decodeAPIError reads at most 8KiB of the body looking for a message.
func decodeAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err == nil {
		if msg, ok := raw["message"].(string); ok {
			apiErr.Message = msg
		}
		switch code := raw["code"].(type) {
		case string:
			apiErr.Code = code
		case float64:
			apiErr.Code = strconv.Itoa(int(code))
		}
		if e, ok := raw["error"].(map[string]any); ok && apiErr.Message == "" {
			if msg, ok := e["message"].(string); ok {
				apiErr.Message = msg
			}
		}
	} else if s := strings.TrimSpace(string(body)); s != "" && !strings.HasPrefix(s, "<") {
		apiErr.Message = s
	}
	return apiErr
}

// classifyAPIError maps a response failure to a NetworkError with a hint the
// user can act on.
func classifyAPIError(op, url string, apiErr *APIError, resp *http.Response) *errs.NetworkError {
	ne := &errs.NetworkError{Op: op, URL: url, StatusCode: apiErr.StatusCode, Err: apiErr}
	switch sc := apiErr.StatusCode; {
	case sc == http.StatusUnauthorized || sc == http.StatusForbidden:
		ne.Hint = "authentication failed, check that kaggle.json holds a valid username and key"
	case sc == http.StatusNotFound:
		ne.Hint = "not found, check the dataset or competition identifier (and that you accepted competition rules)"
	case sc == http.StatusTooManyRequests:
		ne.Hint = "rate limited"
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(strings.TrimSpace(ra)); err == nil && secs > 0 {
				ne.Hint = fmt.Sprintf("rate limited, wait about %ds before retrying", secs)
			}
		}
	case sc == http.StatusBadRequest:
		ne.Hint = "bad request, check the query parameters"
	case sc >= 500 && sc <= 599:
		ne.Hint = "Kaggle returned a server error, try again later"
	}
	return ne
}
