package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Request engine error kinds. Every failure returned by the REST client
// matches exactly one of these with errors.Is.
var (
	ErrTokenInvalid       = fmt.Errorf("token invalid")
	ErrClientCreateFailed = fmt.Errorf("client create failed")
	ErrBuildRequestFailed = fmt.Errorf("build request failed")
	ErrRequestFailed      = fmt.Errorf("request failed")
	ErrHTTPStatusNotOK    = fmt.Errorf("http status not ok")
	ErrParseBodyFailed    = fmt.Errorf("parse body failed")
	ErrCodeNotZero        = fmt.Errorf("code not zero")
)

// Gateway address error kinds.
var (
	ErrInvalidURL    = fmt.Errorf("invalid url")
	ErrInvalidSchema = fmt.Errorf("invalid schema")
	ErrNoHost        = fmt.Errorf("no host")
	ErrNoToken       = fmt.Errorf("no token")
	ErrNoSN          = fmt.Errorf("no sn")
	ErrInvalidSN     = fmt.Errorf("invalid sn")
	ErrNoSessionID   = fmt.Errorf("no session_id")
)

// ErrConflictingBody is the cause of a BuildRequestFailed error when a request
// carries both form parameters and a JSON body.
var ErrConflictingBody = fmt.Errorf("form params and json body are mutually exclusive")

// APIError is the structured error returned by the request engine. Kind is one
// of the request engine sentinels; the remaining fields carry only the context
// relevant to that kind.
//
//	var apiErr *domain.APIError
//	if errors.As(err, &apiErr) && errors.Is(err, domain.ErrCodeNotZero) {
//	    log.Println(apiErr.Code, apiErr.Message)
//	}
type APIError struct {
	Kind    error
	Method  string // RequestFailed, HTTPStatusNotOK
	URL     string // RequestFailed, HTTPStatusNotOK
	Status  int    // HTTPStatusNotOK
	Body    []byte // ParseBodyFailed: the raw response body
	Code    int64  // CodeNotZero
	Message string // CodeNotZero
	Token   string // TokenInvalid
	Err     error  // underlying cause, if any
}

func (e *APIError) Error() string {
	switch e.Kind {
	case ErrTokenInvalid:
		return fmt.Sprintf("%s: %q cannot be used as an authorization header", e.Kind, e.Token)
	case ErrRequestFailed:
		return fmt.Sprintf("%s: %s %s: %v", e.Kind, e.Method, e.URL, e.Err)
	case ErrHTTPStatusNotOK:
		return fmt.Sprintf("%s: %s %s: %d %s", e.Kind, e.Method, e.URL, e.Status, http.StatusText(e.Status))
	case ErrParseBodyFailed:
		return fmt.Sprintf("%s: %v: body %q", e.Kind, e.Err, truncate(e.Body, 512))
	case ErrCodeNotZero:
		return fmt.Sprintf("%s: %d: %s", e.Kind, e.Code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// AddressError reports a gateway URL that is malformed or incomplete.
type AddressError struct {
	Kind   error
	URL    string
	Scheme string // InvalidSchema
	Err    error  // InvalidURL, InvalidSN
}

func (e *AddressError) Error() string {
	switch e.Kind {
	case ErrInvalidURL:
		return fmt.Sprintf("%q is an invalid url: %v", e.URL, e.Err)
	case ErrInvalidSchema:
		return fmt.Sprintf("the url %q has invalid schema %q, only ws or wss is ok", e.URL, e.Scheme)
	case ErrNoHost:
		return fmt.Sprintf("the gateway url %q has no host", e.URL)
	case ErrNoToken:
		return fmt.Sprintf("the gateway url %q has no token", e.URL)
	case ErrNoSN:
		return fmt.Sprintf("the gateway url %q has no sn when resume is 1", e.URL)
	case ErrInvalidSN:
		return fmt.Sprintf("the gateway url %q has invalid sn: %v", e.URL, e.Err)
	case ErrNoSessionID:
		return fmt.Sprintf("the gateway url %q has no session_id when resume is 1", e.URL)
	}
	return fmt.Sprintf("gateway url %q: %v", e.URL, e.Kind)
}

func (e *AddressError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

const (
	CodeUnknown            ErrorCode = "UNKNOWN"
	CodeTokenInvalid       ErrorCode = "TOKEN_INVALID"
	CodeClientCreateFailed ErrorCode = "CLIENT_CREATE_FAILED"
	CodeBuildRequestFailed ErrorCode = "BUILD_REQUEST_FAILED"
	CodeRequestFailed      ErrorCode = "REQUEST_FAILED"
	CodeHTTPStatusNotOK    ErrorCode = "HTTP_STATUS_NOT_OK"
	CodeParseBodyFailed    ErrorCode = "PARSE_BODY_FAILED"
	CodeCodeNotZero        ErrorCode = "CODE_NOT_ZERO"
	CodeInvalidURL         ErrorCode = "GATEWAY_INVALID_URL"
	CodeInvalidSchema      ErrorCode = "GATEWAY_INVALID_SCHEMA"
	CodeNoHost             ErrorCode = "GATEWAY_NO_HOST"
	CodeNoToken            ErrorCode = "GATEWAY_NO_TOKEN"
	CodeNoSN               ErrorCode = "GATEWAY_NO_SN"
	CodeInvalidSN          ErrorCode = "GATEWAY_INVALID_SN"
	CodeNoSessionID        ErrorCode = "GATEWAY_NO_SESSION_ID"
)

// errorCodeMap maps kind sentinels to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrTokenInvalid:       CodeTokenInvalid,
	ErrClientCreateFailed: CodeClientCreateFailed,
	ErrBuildRequestFailed: CodeBuildRequestFailed,
	ErrRequestFailed:      CodeRequestFailed,
	ErrHTTPStatusNotOK:    CodeHTTPStatusNotOK,
	ErrParseBodyFailed:    CodeParseBodyFailed,
	ErrCodeNotZero:        CodeCodeNotZero,
	ErrInvalidURL:         CodeInvalidURL,
	ErrInvalidSchema:      CodeInvalidSchema,
	ErrNoHost:             CodeNoHost,
	ErrNoToken:            CodeNoToken,
	ErrNoSN:               CodeNoSN,
	ErrInvalidSN:          CodeInvalidSN,
	ErrNoSessionID:        CodeNoSessionID,
}

// ErrorCodeOf returns the machine-parseable error code for err.
// Returns CodeUnknown if err carries no known kind.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	// Fast path: direct sentinel lookup.
	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if code, ok := errorCodeMap[apiErr.Kind]; ok {
			return code
		}
	}
	var addrErr *AddressError
	if errors.As(err, &addrErr) {
		if code, ok := errorCodeMap[addrErr.Kind]; ok {
			return code
		}
	}

	return CodeUnknown
}

// IsRetryable reports whether err is a transport-level fault that may succeed
// on retry: RequestFailed, or HTTPStatusNotOK with 429 or a 5xx status.
// Application failures (CodeNotZero) and malformed responses are not retryable.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Kind {
	case ErrRequestFailed:
		return true
	case ErrHTTPStatusNotOK:
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500
	default:
		return false
	}
}
