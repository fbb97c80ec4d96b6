package rest

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/sony/gobreaker/v2"

	"kaiheila/internal/infra/config"
)

// Default connection pool settings: one API host, moderate concurrency,
// long-lived keep-alive connections.
const (
	defaultMaxIdleConns        = 20
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 20
	defaultIdleConnTimeout     = 90 * time.Second
	defaultConnTimeout         = 10 * time.Second
	defaultRespTimeout         = 30 * time.Second
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// newPooledTransport creates an http.Transport with connection pooling and
// the configured proxy. An unusable proxy URL is reported as an error.
func newPooledTransport(cfg config.APIConfig) (*http.Transport, error) {
	connTimeout := cfg.ConnTimeout
	if connTimeout == 0 {
		connTimeout = defaultConnTimeout
	}
	respTimeout := cfg.RespTimeout
	if respTimeout == 0 {
		respTimeout = defaultRespTimeout
	}

	pool := cfg.Pool
	maxIdle := pool.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConns
	}
	maxIdlePerHost := pool.MaxIdleConnsPerHost
	if maxIdlePerHost <= 0 {
		maxIdlePerHost = defaultMaxIdleConnsPerHost
	}
	maxConnsPerHost := pool.MaxConnsPerHost
	if maxConnsPerHost <= 0 {
		maxConnsPerHost = defaultMaxConnsPerHost
	}
	idleTimeout := pool.IdleConnTimeout
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleConnTimeout
	}

	proxy := http.ProxyFromEnvironment
	if cfg.Proxy != "" {
		u, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy: %w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("proxy %q must be an absolute url", cfg.Proxy)
		}
		proxy = http.ProxyURL(u)
	}

	return &http.Transport{
		Proxy: proxy,
		DialContext: (&net.Dialer{
			Timeout:   connTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: respTimeout,
		MaxIdleConns:          maxIdle,
		MaxIdleConnsPerHost:   maxIdlePerHost,
		MaxConnsPerHost:       maxConnsPerHost,
		IdleConnTimeout:       idleTimeout,
		ForceAttemptHTTP2:     true,
	}, nil
}

// newHTTPClient assembles the transport chain:
// breaker (optional) -> decompression -> pooled transport.
func newHTTPClient(cfg config.APIConfig, logger *slog.Logger) (*http.Client, error) {
	pooled, err := newPooledTransport(cfg)
	if err != nil {
		return nil, err
	}

	var rt http.RoundTripper = &decompressTransport{next: pooled}
	if cfg.Breaker.Enabled {
		rt = newBreakerTransport(rt, cfg.Breaker, logger)
	}

	connTimeout := cfg.ConnTimeout
	if connTimeout == 0 {
		connTimeout = defaultConnTimeout
	}
	respTimeout := cfg.RespTimeout
	if respTimeout == 0 {
		respTimeout = defaultRespTimeout
	}

	return &http.Client{
		Transport: rt,
		Timeout:   connTimeout + respTimeout,
		// Any status other than 200, redirects included, is reported to the caller.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

// --- Content decoding ---

// decompressTransport negotiates gzip/deflate and decodes the response body
// so callers always see identity-encoded bytes.
type decompressTransport struct {
	next http.RoundTripper
}

func (t *decompressTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", "gzip, deflate")
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	if encoding != "gzip" && encoding != "deflate" {
		return resp, nil
	}

	// The decoder is built on first Read so that a non-200 response with a
	// bogus body still reaches the status check.
	resp.Body = &decodedBody{raw: resp.Body, encoding: encoding}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

// decodedBody decodes raw lazily and closes both the decoder and the
// underlying connection body.
type decodedBody struct {
	raw      io.ReadCloser
	encoding string
	dec      io.ReadCloser
	err      error
}

func (b *decodedBody) Read(p []byte) (int, error) {
	if b.dec == nil && b.err == nil {
		var (
			dec io.ReadCloser
			err error
		)
		switch b.encoding {
		case "gzip":
			var zr *gzip.Reader
			if zr, err = gzip.NewReader(b.raw); err == nil {
				dec = zr
			}
		default:
			// HTTP "deflate" is the zlib format.
			dec, err = zlib.NewReader(b.raw)
		}
		if err != nil {
			b.err = fmt.Errorf("decode %s body: %w", b.encoding, err)
		} else {
			b.dec = dec
		}
	}
	if b.err != nil {
		return 0, b.err
	}
	return b.dec.Read(p)
}

func (b *decodedBody) Close() error {
	var decErr error
	if b.dec != nil {
		decErr = b.dec.Close()
	}
	return errors.Join(decErr, b.raw.Close())
}

// --- Circuit breaker ---

// errServerFault marks a 5xx response so the breaker counts it as a failure
// while the response itself still reaches the caller.
var errServerFault = errors.New("server fault")

// breakerTransport fails fast with gobreaker.ErrOpenState once the API has
// failed repeatedly.
type breakerTransport struct {
	next    http.RoundTripper
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

func newBreakerTransport(next http.RoundTripper, cfg config.BreakerConfig, logger *slog.Logger) *breakerTransport {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "kaiheila:api",
		MaxRequests: 1, // one probe in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
	return &breakerTransport{next: next, breaker: cb}
}

func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.breaker.Execute(func() (*http.Response, error) {
		resp, err := t.next.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errServerFault
		}
		return resp, nil
	})
	if errors.Is(err, errServerFault) {
		return resp, nil
	}
	return resp, err
}
