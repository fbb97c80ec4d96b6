package domain

import "encoding/json"

// Envelope is the {code, message, data} wrapper every API response uses.
// Code is nil when the body had no code field, which makes it no envelope at
// all. A zero Code means success; Data is only meaningful then.
type Envelope[T any] struct {
	Code    *int64 `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// OK reports whether the envelope carries a successful result.
func (e Envelope[T]) OK() bool { return e.Code != nil && *e.Code == 0 }

// PageMeta is the pagination cursor reported by list endpoints.
// PageTotal is authoritative; Total is informational.
type PageMeta struct {
	Page      int `json:"page"`
	PageTotal int `json:"page_total"`
	PageSize  int `json:"page_size"`
	Total     int `json:"total"`
}

// PagedList is one page of a list endpoint.
type PagedList[T any] struct {
	Items []T      `json:"items"`
	Meta  PageMeta `json:"meta"`
	Sort  Sort     `json:"sort"`
}

// Sort is the server's opaque sort descriptor, e.g. {"id": 1}.
type Sort map[string]int

// UnmarshalJSON tolerates descriptors that are not a field->direction object
// (the server sometimes sends [] or null); those decode as an empty Sort.
func (s *Sort) UnmarshalJSON(data []byte) error {
	var m map[string]int
	if err := json.Unmarshal(data, &m); err != nil {
		*s = nil
		return nil
	}
	*s = m
	return nil
}
