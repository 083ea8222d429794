// Package ecode defines standardized error codes for API responses.
//
// Codes follow a negative numbering scheme: 0 is success, -1xx are
// authentication errors, -4xx mirror client-side HTTP failures and
// -5xx mirror server-side ones.
package ecode

import "net/http"

// Error codes
const (
	OK = 0

	Unauthorized = -101

	RequestErr       = -400
	ParamErr         = -401
	AccessDenied     = -403
	NothingFound     = -404
	MethodNotAllowed = -405
	Conflict         = -409

	ServerErr          = -500
	ServiceUnavailable = -503
	Deadline           = -504
)

var messages = map[int]string{
	OK:                 "success",
	Unauthorized:       "unauthorized",
	RequestErr:         "request error",
	ParamErr:           "parameter error",
	AccessDenied:       "access denied",
	NothingFound:       "nothing found",
	MethodNotAllowed:   "method not allowed",
	Conflict:           "conflict",
	ServerErr:          "server error",
	ServiceUnavailable: "service unavailable",
	Deadline:           "deadline exceeded",
}

// Text returns the human-readable message for a code.
func Text(code int) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return messages[ServerErr]
}

// ToHTTPStatus maps an error code to the closest HTTP status code.
func ToHTTPStatus(code int) int {
	switch code {
	case OK:
		return http.StatusOK
	case Unauthorized:
		return http.StatusUnauthorized
	case RequestErr, ParamErr:
		return http.StatusBadRequest
	case AccessDenied:
		return http.StatusForbidden
	case NothingFound:
		return http.StatusNotFound
	case MethodNotAllowed:
		return http.StatusMethodNotAllowed
	case Conflict:
		return http.StatusConflict
	case ServiceUnavailable:
		return http.StatusServiceUnavailable
	case Deadline:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
