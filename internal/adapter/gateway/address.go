package gateway

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"kaiheila/internal/domain"
)

// ResumeState is the continuation state sent on reconnect: the last processed
// event sequence number and the session it belongs to.
type ResumeState struct {
	SN        uint64
	SessionID string
}

// Address is a parsed gateway connection URL.
//
// Port 0 means the URL carried no explicit port. Path is kept in its escaped
// wire form. A nil Resume means a fresh session. A non-nil Resume must carry a
// SessionID: Parse and WithResume refuse anything less, and Build rejects an
// Address whose fields were assembled by hand without one. String renders the
// fields as they are, so use Build for anything sent over the wire.
//
// Address values are treated as immutable: WithResume and WithoutResume
// return modified copies.
type Address struct {
	Scheme   string
	Host     string
	Port     uint16
	Path     string
	Compress bool
	Token    string
	Resume   *ResumeState
}

// Parse decodes a gateway URL. Checks run in this order and the first failure
// is returned: ErrInvalidURL, ErrInvalidSchema, ErrNoHost, ErrNoToken and, when
// resume=1, ErrNoSN, ErrNoSessionID, ErrInvalidSN. Repeated query keys resolve
// to their last value.
func Parse(s string) (Address, error) {
	u, err := url.Parse(s)
	if err != nil {
		return Address{}, &domain.AddressError{Kind: domain.ErrInvalidURL, URL: s, Err: err}
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return Address{}, &domain.AddressError{Kind: domain.ErrInvalidSchema, URL: s, Scheme: u.Scheme}
	}
	host := u.Hostname()
	if host == "" {
		return Address{}, &domain.AddressError{Kind: domain.ErrNoHost, URL: s}
	}

	var port uint16
	if p := u.Port(); p != "" {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return Address{}, &domain.AddressError{Kind: domain.ErrInvalidURL, URL: s, Err: err}
		}
		port = uint16(n)
	}

	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return Address{}, &domain.AddressError{Kind: domain.ErrInvalidURL, URL: s, Err: err}
	}
	last := func(key string) (string, bool) {
		vs := query[key]
		if len(vs) == 0 {
			return "", false
		}
		return vs[len(vs)-1], true
	}

	token, _ := last("token")
	if token == "" {
		return Address{}, &domain.AddressError{Kind: domain.ErrNoToken, URL: s}
	}
	compress, _ := last("compress")

	addr := Address{
		Scheme:   u.Scheme,
		Host:     host,
		Port:     port,
		Path:     u.EscapedPath(),
		Compress: compress == "1",
		Token:    token,
	}

	if resume, _ := last("resume"); resume != "1" {
		return addr, nil
	}
	sn, ok := last("sn")
	if !ok {
		return Address{}, &domain.AddressError{Kind: domain.ErrNoSN, URL: s}
	}
	sessionID, _ := last("session_id")
	if sessionID == "" {
		return Address{}, &domain.AddressError{Kind: domain.ErrNoSessionID, URL: s}
	}
	n, err := strconv.ParseUint(sn, 10, 64)
	if err != nil {
		return Address{}, &domain.AddressError{Kind: domain.ErrInvalidSN, URL: s, Err: err}
	}
	addr.Resume = &ResumeState{SN: n, SessionID: sessionID}
	return addr, nil
}

// String renders the address in wire form:
//
//	<scheme>://<host>[:<port>]<path>?compress=<0|1>&token=<t>[&resume=1&sn=<n>&session_id=<s>]
func (a Address) String() string {
	var sb strings.Builder
	sb.WriteString(a.Scheme)
	sb.WriteString("://")
	sb.WriteString(a.hostPort())
	sb.WriteString(a.Path)
	sb.WriteString("?compress=")
	sb.WriteString(boolFlag(a.Compress))
	sb.WriteString("&token=")
	sb.WriteString(url.QueryEscape(a.Token))
	if a.Resume != nil {
		sb.WriteString("&resume=1&sn=")
		sb.WriteString(strconv.FormatUint(a.Resume.SN, 10))
		sb.WriteString("&session_id=")
		sb.WriteString(url.QueryEscape(a.Resume.SessionID))
	}
	return sb.String()
}

// Build validates a and renders it in wire form. It never emits a partial
// resume triple.
func (a Address) Build() (string, error) {
	if err := a.Validate(); err != nil {
		return "", err
	}
	return a.String(), nil
}

// URL returns the validated address as a *url.URL.
func (a Address) URL() (*url.URL, error) {
	s, err := a.Build()
	if err != nil {
		return nil, err
	}
	return url.Parse(s)
}

// Validate checks a caller-assembled address against the same rules Parse
// enforces.
func (a Address) Validate() error {
	s := a.String()
	if a.Scheme != "ws" && a.Scheme != "wss" {
		return &domain.AddressError{Kind: domain.ErrInvalidSchema, URL: s, Scheme: a.Scheme}
	}
	if a.Host == "" {
		return &domain.AddressError{Kind: domain.ErrNoHost, URL: s}
	}
	if a.Token == "" {
		return &domain.AddressError{Kind: domain.ErrNoToken, URL: s}
	}
	if a.Resume != nil && a.Resume.SessionID == "" {
		return &domain.AddressError{Kind: domain.ErrNoSessionID, URL: s}
	}
	return nil
}

// WithResume returns a copy of a that resumes state. A state without a
// session id fails with ErrNoSessionID and a is returned unchanged.
func (a Address) WithResume(state ResumeState) (Address, error) {
	if state.SessionID == "" {
		return a, &domain.AddressError{Kind: domain.ErrNoSessionID, URL: a.String()}
	}
	a.Resume = &state
	return a, nil
}

// WithoutResume returns a copy of a that starts a fresh session.
func (a Address) WithoutResume() Address {
	a.Resume = nil
	return a
}

func (a Address) hostPort() string {
	host := a.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if a.Port == 0 {
		return host
	}
	return net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
}

func boolFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
