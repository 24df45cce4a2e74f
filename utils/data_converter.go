package utils

import (
	"strings"

	"github.com/spf13/cast"
)

// NestedKey is the envelope key the portal backend wraps payloads in.
const NestedKey = "data"

// Nested returns body["data"] when it is an object.
func Nested(body map[string]interface{}) map[string]interface{} {
	if body == nil {
		return nil
	}
	m, err := cast.ToStringMapE(body[NestedKey])
	if err != nil || len(m) == 0 {
		return nil
	}
	return m
}

// FirstString scans keys in order, first at the top level of body and then
// inside its "data" object, and returns the first non-empty value together
// with the key it was found under.
func FirstString(body map[string]interface{}, keys ...string) (value, key string, ok bool) {
	for _, level := range []map[string]interface{}{body, Nested(body)} {
		if level == nil {
			continue
		}
		for _, k := range keys {
			raw, present := level[k]
			if !present || raw == nil {
				continue
			}
			s, err := cast.ToStringE(raw)
			if err != nil {
				continue
			}
			if s = strings.TrimSpace(s); s != "" {
				return s, k, true
			}
		}
	}
	return "", "", false
}

// ToMapSlice coerces a decoded JSON array into a slice of objects, skipping
// anything that is not an object.
func ToMapSlice(v interface{}) []map[string]interface{} {
	items, err := cast.ToSliceE(v)
	if err != nil {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if m, err := cast.ToStringMapE(item); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// ListOf finds a JSON array in a decoded payload: the payload itself, or the
// first of keys (top level, then "data") holding an array.
func ListOf(payload interface{}, keys ...string) []map[string]interface{} {
	if _, isList := payload.([]interface{}); isList {
		return ToMapSlice(payload)
	}
	body, err := cast.ToStringMapE(payload)
	if err != nil {
		return nil
	}
	keys = append(keys, NestedKey)
	for _, level := range []map[string]interface{}{body, Nested(body)} {
		for _, k := range keys {
			if v, ok := level[k].([]interface{}); ok {
				return ToMapSlice(v)
			}
		}
	}
	return nil
}
