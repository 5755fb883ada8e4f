package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// envelopeShape enumerates the response layouts the backend is known to use.
type envelopeShape int

const (
	shapeEmpty      envelopeShape = iota
	shapeArray                    // [...]
	shapeDataArray                // {"data": [...]}
	shapeDataPage                 // {"data": {"content": [...], ...}}
	shapePage                     // {"content": [...], ...}
	shapeDataObject               // {"data": {...}}
	shapeObject                   // {...}
)

func (s envelopeShape) isList() bool {
	return s == shapeArray || s == shapeDataArray || s == shapeDataPage || s == shapePage
}

// pageInfo is the paging metadata that accompanies page shapes.
type pageInfo struct {
	Number        int   `json:"number"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

type envelope struct {
	shape   envelopeShape
	payload json.RawMessage
	page    pageInfo
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func firstByte(raw json.RawMessage) byte {
	t := bytes.TrimSpace(raw)
	if len(t) == 0 {
		return 0
	}
	return t[0]
}

// parseEnvelope classifies raw once so callers never inspect fields ad hoc.
func parseEnvelope(raw []byte) (envelope, error) {
	if isNull(raw) {
		return envelope{shape: shapeEmpty}, nil
	}

	switch firstByte(raw) {
	case '[':
		return envelope{shape: shapeArray, payload: raw}, nil
	case '{':
	default:
		return envelope{}, fmt.Errorf("unexpected response body")
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return envelope{}, fmt.Errorf("decoding response envelope: %w", err)
	}

	if data, ok := top["data"]; ok && !isNull(data) {
		switch firstByte(data) {
		case '[':
			return envelope{shape: shapeDataArray, payload: data}, nil
		case '{':
			var inner map[string]json.RawMessage
			if err := json.Unmarshal(data, &inner); err != nil {
				return envelope{}, fmt.Errorf("decoding response data: %w", err)
			}
			if content, ok := inner["content"]; ok && firstByte(content) == '[' {
				env := envelope{shape: shapeDataPage, payload: content}
				_ = json.Unmarshal(data, &env.page)
				return env, nil
			}
			return envelope{shape: shapeDataObject, payload: data}, nil
		}
	}

	if content, ok := top["content"]; ok && firstByte(content) == '[' {
		env := envelope{shape: shapePage, payload: content}
		_ = json.Unmarshal(raw, &env.page)
		return env, nil
	}

	return envelope{shape: shapeObject, payload: raw}, nil
}

// decodeList resolves any list shape into items.
func decodeList[T any](raw []byte) ([]T, pageInfo, error) {
	env, err := parseEnvelope(raw)
	if err != nil {
		return nil, pageInfo{}, err
	}
	if env.shape == shapeEmpty {
		return []T{}, pageInfo{}, nil
	}
	if !env.shape.isList() {
		return nil, pageInfo{}, fmt.Errorf("expected a list response")
	}

	var items []T
	if err := json.Unmarshal(env.payload, &items); err != nil {
		return nil, pageInfo{}, fmt.Errorf("decoding list items: %w", err)
	}
	if items == nil {
		items = []T{}
	}
	return items, env.page, nil
}

// decodeObject resolves {data:{...}} or a bare object into T.
func decodeObject[T any](raw []byte) (*T, error) {
	env, err := parseEnvelope(raw)
	if err != nil {
		return nil, err
	}
	if env.shape != shapeObject && env.shape != shapeDataObject {
		return nil, fmt.Errorf("expected an object response")
	}

	var out T
	if err := json.Unmarshal(env.payload, &out); err != nil {
		return nil, fmt.Errorf("decoding object: %w", err)
	}
	return &out, nil
}

// flexID accepts ids sent either as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	t := bytes.TrimSpace(b)
	if isNull(t) {
		*f = ""
		return nil
	}
	if t[0] == '"' {
		var s string
		if err := json.Unmarshal(t, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(t, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

func (f flexID) String() string {
	return string(f)
}

func (f flexID) Int64() (int64, error) {
	return strconv.ParseInt(string(f), 10, 64)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
