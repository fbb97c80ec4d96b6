package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/net/http/httpguts"

	"kaiheila/internal/domain"
	"kaiheila/internal/infra/config"
	"kaiheila/internal/infra/tracer"
)

// Version is reported in the default User-Agent.
const Version = "0.1.0"

// Authorization schemes.
const (
	schemeBot    = "Bot"
	schemeBearer = "Bearer"
)

// errMissingCode is the cause of ParseBodyFailed when a JSON body is not an envelope.
var errMissingCode = errors.New(`envelope has no "code" field`)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled HTTP client. Used by tests and by callers
// that share one transport between several clients.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client is an authenticated REST client. It holds only immutable state and
// is safe for concurrent use.
type Client struct {
	http      *http.Client
	baseURL   string
	auth      string
	userAgent string
	maxBody   int64
	logger    *slog.Logger
}

// Request describes one API call.
type Request struct {
	Method string // defaults to GET
	Path   string // appended to the base URL, e.g. "/guild/list"
	Query  Params
	Form   Params // sent as application/x-www-form-urlencoded
	JSON   []byte // sent as application/json
}

// NewFromBotToken creates a client authenticating with "Authorization: Bot <token>".
func NewFromBotToken(token string, cfg config.APIConfig, logger *slog.Logger, opts ...Option) (*Client, error) {
	return newClient(schemeBot, token, cfg, logger, opts...)
}

// NewFromOAuth2Token creates a client authenticating with "Authorization: Bearer <token>".
func NewFromOAuth2Token(token string, cfg config.APIConfig, logger *slog.Logger, opts ...Option) (*Client, error) {
	return newClient(schemeBearer, token, cfg, logger, opts...)
}

// New creates a client from cfg.Token and cfg.TokenType.
func New(cfg config.APIConfig, logger *slog.Logger, opts ...Option) (*Client, error) {
	switch strings.ToLower(cfg.TokenType) {
	case config.TokenTypeOAuth2:
		return NewFromOAuth2Token(cfg.Token, cfg, logger, opts...)
	case config.TokenTypeBot, "":
		return NewFromBotToken(cfg.Token, cfg, logger, opts...)
	default:
		return nil, &domain.APIError{
			Kind: domain.ErrClientCreateFailed,
			Err:  fmt.Errorf("unknown token type %q", cfg.TokenType),
		}
	}
}

func newClient(scheme, token string, cfg config.APIConfig, logger *slog.Logger, opts ...Option) (*Client, error) {
	auth := scheme + " " + token
	if token == "" || !httpguts.ValidHeaderFieldValue(auth) {
		return nil, &domain.APIError{Kind: domain.ErrTokenInvalid, Token: token}
	}

	base := cfg.BaseURL
	if base == "" {
		base = config.DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, &domain.APIError{Kind: domain.ErrClientCreateFailed, Err: fmt.Errorf("parse base url: %w", err)}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &domain.APIError{
			Kind: domain.ErrClientCreateFailed,
			Err:  fmt.Errorf("base url %q must be an absolute http(s) url", base),
		}
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = config.Defaults().API.MaxBodyBytes
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "kaiheila/" + Version
	}

	c := &Client{
		baseURL:   strings.TrimRight(base, "/"),
		auth:      auth,
		userAgent: userAgent,
		maxBody:   maxBody,
		logger:    logger,
	}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		hc, err := newHTTPClient(cfg, logger)
		if err != nil {
			return nil, &domain.APIError{Kind: domain.ErrClientCreateFailed, Err: err}
		}
		c.http = hc
	}
	return c, nil
}

// BaseURL returns the API origin plus version prefix this client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// Execute performs req and decodes the envelope's data into T.
//
// Failures are *domain.APIError values in this order of checks:
// BuildRequestFailed, RequestFailed, HTTPStatusNotOK (any status other than
// 200, body not parsed), ParseBodyFailed, CodeNotZero. On failure the zero T
// is returned.
func Execute[T any](ctx context.Context, c *Client, req Request) (T, error) {
	var zero T

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	requestID := ulid.Make().String()
	start := time.Now()

	ctx, span := tracer.StartRequest(ctx, requestID, method, req.Path)

	body, status, err := c.roundTrip(ctx, method, req)
	var out T
	if err == nil {
		out, err = decodeEnvelope[T](body)
	}

	tracer.EndRequest(span, status, err)

	if err != nil {
		c.logger.Debug("api request failed",
			"request_id", requestID,
			"method", method,
			"path", req.Path,
			"status", status,
			"duration", time.Since(start),
			"error", err,
		)
		return zero, err
	}
	c.logger.Debug("api request completed",
		"request_id", requestID,
		"method", method,
		"path", req.Path,
		"status", status,
		"duration", time.Since(start),
	)
	return out, nil
}

// roundTrip sends the request and returns the body of a 200 response.
func (c *Client) roundTrip(ctx context.Context, method string, req Request) ([]byte, int, error) {
	httpReq, err := c.newRequest(ctx, method, req)
	if err != nil {
		return nil, 0, err
	}
	target := httpReq.URL.String()

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, 0, &domain.APIError{Kind: domain.ErrRequestFailed, Method: method, URL: target, Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		// Drain a bounded amount so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(httpResp.Body, 4096))
		return nil, httpResp.StatusCode, &domain.APIError{
			Kind:   domain.ErrHTTPStatusNotOK,
			Method: method,
			URL:    target,
			Status: httpResp.StatusCode,
		}
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, c.maxBody+1))
	if err == nil && int64(len(body)) > c.maxBody {
		err = fmt.Errorf("response body exceeds %d bytes", c.maxBody)
	}
	if err != nil {
		return nil, httpResp.StatusCode, &domain.APIError{
			Kind:   domain.ErrRequestFailed,
			Method: method,
			URL:    target,
			Err:    fmt.Errorf("read response: %w", err),
		}
	}
	return body, httpResp.StatusCode, nil
}

func (c *Client) newRequest(ctx context.Context, method string, req Request) (*http.Request, error) {
	if req.JSON != nil && len(req.Form) > 0 {
		return nil, &domain.APIError{Kind: domain.ErrBuildRequestFailed, Err: domain.ErrConflictingBody}
	}

	query := req.Query
	if method == http.MethodGet {
		query = append(Params{{Key: "compress", Value: "1"}}, req.Query...)
	}
	target := c.baseURL + req.Path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.JSON != nil:
		body = bytes.NewReader(req.JSON)
		contentType = "application/json"
	case len(req.Form) > 0:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &domain.APIError{Kind: domain.ErrBuildRequestFailed, Err: err}
	}
	httpReq.Header.Set("Authorization", c.auth)
	httpReq.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	return httpReq, nil
}

func decodeEnvelope[T any](body []byte) (T, error) {
	var zero T

	// Code and message are checked before data is interpreted.
	var env domain.Envelope[json.RawMessage]
	if err := json.Unmarshal(body, &env); err != nil {
		return zero, &domain.APIError{Kind: domain.ErrParseBodyFailed, Body: body, Err: err}
	}
	if env.Code == nil {
		return zero, &domain.APIError{Kind: domain.ErrParseBodyFailed, Body: body, Err: errMissingCode}
	}
	if !env.OK() {
		return zero, &domain.APIError{Kind: domain.ErrCodeNotZero, Code: *env.Code, Message: env.Message}
	}

	var data T
	if len(env.Data) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return zero, &domain.APIError{Kind: domain.ErrParseBodyFailed, Body: body, Err: err}
	}
	return data, nil
}

// postJSON sends v as a JSON body and discards the response data.
func postJSON(ctx context.Context, c *Client, path string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return &domain.APIError{Kind: domain.ErrBuildRequestFailed, Err: fmt.Errorf("encode body: %w", err)}
	}
	_, err = Execute[json.RawMessage](ctx, c, Request{Method: http.MethodPost, Path: path, JSON: payload})
	return err
}
