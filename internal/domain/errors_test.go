package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIErrorFormat(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			name: "code not zero",
			err:  &APIError{Kind: ErrCodeNotZero, Code: 41001, Message: "guild not found"},
			want: "code not zero: 41001: guild not found",
		},
		{
			name: "status",
			err:  &APIError{Kind: ErrHTTPStatusNotOK, Method: "GET", URL: "https://x/api/v3/guild/list", Status: 404},
			want: "http status not ok: GET https://x/api/v3/guild/list: 404 Not Found",
		},
		{
			name: "request failed",
			err:  &APIError{Kind: ErrRequestFailed, Method: "POST", URL: "https://x", Err: errors.New("connection reset")},
			want: "request failed: POST https://x: connection reset",
		},
		{
			name: "token",
			err:  &APIError{Kind: ErrTokenInvalid, Token: "a\nb"},
			want: `token invalid: "a\nb" cannot be used as an authorization header`,
		},
		{
			name: "build request",
			err:  &APIError{Kind: ErrBuildRequestFailed, Err: ErrConflictingBody},
			want: "build request failed: form params and json body are mutually exclusive",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestAPIErrorIsKindAndCause(t *testing.T) {
	cause := &json.SyntaxError{Offset: 3}
	err := fmt.Errorf("guild list: %w", &APIError{Kind: ErrParseBodyFailed, Body: []byte("{x"), Err: cause})

	assert.True(t, errors.Is(err, ErrParseBodyFailed))
	assert.False(t, errors.Is(err, ErrCodeNotZero))

	var syntaxErr *json.SyntaxError
	require.True(t, errors.As(err, &syntaxErr))
	assert.Equal(t, int64(3), syntaxErr.Offset)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, []byte("{x"), apiErr.Body)
}

func TestAddressErrorIsKind(t *testing.T) {
	err := &AddressError{Kind: ErrNoToken, URL: "wss://host/gateway"}
	assert.True(t, errors.Is(err, ErrNoToken))
	assert.False(t, errors.Is(err, ErrNoHost))
	assert.Contains(t, err.Error(), "has no token")
}

func TestErrorCodeOf(t *testing.T) {
	assert.Equal(t, CodeUnknown, ErrorCodeOf(nil))
	assert.Equal(t, CodeUnknown, ErrorCodeOf(errors.New("other")))
	assert.Equal(t, CodeCodeNotZero, ErrorCodeOf(ErrCodeNotZero))
	assert.Equal(t, CodeHTTPStatusNotOK, ErrorCodeOf(&APIError{Kind: ErrHTTPStatusNotOK, Status: 500}))
	assert.Equal(t, CodeInvalidSN, ErrorCodeOf(fmt.Errorf("reconnect: %w", &AddressError{Kind: ErrInvalidSN})))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transport fault", &APIError{Kind: ErrRequestFailed, Err: errors.New("timeout")}, true},
		{"server error", &APIError{Kind: ErrHTTPStatusNotOK, Status: 502}, true},
		{"too many requests", &APIError{Kind: ErrHTTPStatusNotOK, Status: 429}, true},
		{"not found", &APIError{Kind: ErrHTTPStatusNotOK, Status: 404}, false},
		{"application failure", &APIError{Kind: ErrCodeNotZero, Code: 40300}, false},
		{"parse failure", &APIError{Kind: ErrParseBodyFailed}, false},
		{"foreign error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestSortToleratesNonObject(t *testing.T) {
	var page PagedList[Guild]
	require.NoError(t, json.Unmarshal([]byte(`{"items":[],"meta":{"page":1,"page_total":1,"page_size":50,"total":0},"sort":[]}`), &page))
	assert.Empty(t, page.Sort)

	require.NoError(t, json.Unmarshal([]byte(`{"items":[],"meta":{},"sort":{"id":1}}`), &page))
	assert.Equal(t, Sort{"id": 1}, page.Sort)
}

func TestEnvelopeOK(t *testing.T) {
	tests := []struct {
		body string
		ok   bool
	}{
		{`{"code":0,"message":"","data":{}}`, true},
		{`{"code":40000,"message":"bad","data":{}}`, false},
		{`{"message":"","data":{}}`, false},
		{`{"code":null}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			var env Envelope[json.RawMessage]
			require.NoError(t, json.Unmarshal([]byte(tt.body), &env))
			assert.Equal(t, tt.ok, env.OK())
		})
	}
}
