package webdriver

import (
	"errors"
	"fmt"
)

// W3C error codes the runner distinguishes.
const (
	ErrCodeNoSuchElement     = "no such element"
	ErrCodeStaleElement      = "stale element reference"
	ErrCodeSessionNotCreated = "session not created"
	ErrCodeInvalidSession    = "invalid session id"
	ErrCodeTimeout           = "timeout"
	ErrCodeJavaScript        = "javascript error"
	ErrCodeUnknown           = "unknown error"
)

// legacy JSON Wire Protocol status numbers, still returned by older Appium servers
var jsonwpStatus = map[int]string{
	6:  ErrCodeInvalidSession,
	7:  ErrCodeNoSuchElement,
	10: ErrCodeStaleElement,
	17: ErrCodeJavaScript,
	21: ErrCodeTimeout,
	33: ErrCodeSessionNotCreated,
}

// Error is a WebDriver error response.
type Error struct {
	Code       string // W3C error code, e.g. "no such element"
	Message    string
	HTTPStatus int
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCode reports whether err is a WebDriver error with the given code.
func IsCode(err error, code string) bool {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Code == code
	}
	return false
}

// parseError extracts a WebDriver error from a decoded response body, or nil.
func parseError(result map[string]interface{}, httpStatus int) *Error {
	// W3C: {"value": {"error": "...", "message": "..."}}
	if value, ok := result["value"].(map[string]interface{}); ok {
		if code, ok := value["error"].(string); ok && code != "" {
			msg, _ := value["message"].(string)
			return &Error{Code: code, Message: msg, HTTPStatus: httpStatus}
		}
	}

	// JSONWP: {"status": 7, "value": {"message": "..."}}
	if status, ok := result["status"].(float64); ok && status != 0 {
		code, known := jsonwpStatus[int(status)]
		if !known {
			code = ErrCodeUnknown
		}
		var msg string
		if value, ok := result["value"].(map[string]interface{}); ok {
			msg, _ = value["message"].(string)
		}
		return &Error{Code: code, Message: msg, HTTPStatus: httpStatus}
	}

	if httpStatus >= 400 {
		return &Error{Code: ErrCodeUnknown, Message: fmt.Sprintf("HTTP %d", httpStatus), HTTPStatus: httpStatus}
	}
	return nil
}
