package rest

import (
	"net/url"
	"slices"
	"strings"
)

// Param is a single query or form pair.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered list of query or form pairs. Unlike url.Values it keeps
// insertion order on the wire and allows repeated keys.
type Params []Param

// Add appends a pair and returns the extended list.
func (p Params) Add(key, value string) Params {
	return append(p, Param{Key: key, Value: value})
}

// Encode renders the pairs as "k1=v1&k2=v2" in insertion order.
func (p Params) Encode() string {
	if len(p) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, kv := range p {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(kv.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(kv.Value))
	}
	return sb.String()
}

// Get returns the value of the last pair with key.
func (p Params) Get(key string) (string, bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i].Key == key {
			return p[i].Value, true
		}
	}
	return "", false
}

// clone returns a copy that shares no backing array with p, so appends to the
// copy never write into the caller's slice.
func (p Params) clone() Params {
	return slices.Clip(slices.Clone(p))
}

func boolParam(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
