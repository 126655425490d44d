// Package config loads run configuration from a YAML or JSON file and
// command-line flags. Flags override file settings.
package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// lookupSetting returns the first of keys present in settings, trying each
// key as written and lower-cased.
func lookupSetting(settings map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, key := range keys {
		if val, ok := settings[key]; ok {
			return val, true
		}
		if val, ok := settings[strings.ToLower(key)]; ok {
			return val, true
		}
	}
	return nil, false
}

// spellings expands a snake_case key into the spellings a config file may
// use: "graceful_stop", "gracefulstop", "graceful-stop".
func spellings(key string) []string {
	return []string{
		key,
		strings.ReplaceAll(key, "_", ""),
		strings.ReplaceAll(key, "_", "-"),
	}
}

// blank reports whether value is nil or a whitespace-only string. Blank
// scalars decode to their zero value.
func blank(value interface{}) bool {
	if value == nil {
		return true
	}
	s, ok := value.(string)
	return ok && strings.TrimSpace(s) == ""
}

func trimmed(value interface{}) interface{} {
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return value
}

func asString(value interface{}) (string, error) {
	return cast.ToStringE(value)
}

func asInt(value interface{}) (int, error) {
	if blank(value) {
		return 0, nil
	}
	return cast.ToIntE(trimmed(value))
}

func asFloat64(value interface{}) (float64, error) {
	if blank(value) {
		return 0, nil
	}
	return cast.ToFloat64E(trimmed(value))
}

func asBool(value interface{}) (bool, error) {
	if blank(value) {
		return false, nil
	}
	return cast.ToBoolE(trimmed(value))
}

// asDuration accepts Go duration strings ("30s", "1m30s"). Bare numbers
// are seconds.
func asDuration(value interface{}) (time.Duration, error) {
	if blank(value) {
		return 0, nil
	}
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case string:
		return time.ParseDuration(strings.TrimSpace(v))
	}
	secs, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, fmt.Errorf("unsupported duration %v (%T)", value, value)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// asMillis converts a check limit to a duration. Bare numbers are
// milliseconds; strings are parsed with time.ParseDuration.
func asMillis(value interface{}) (time.Duration, error) {
	switch v := value.(type) {
	case string:
		return asDuration(v)
	case time.Duration:
		return v, nil
	}
	ms, err := asFloat64(value)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms * float64(time.Millisecond)), nil
}

// asIntSlice converts a single number or a list of numbers to []int.
func asIntSlice(value interface{}) ([]int, error) {
	if value == nil {
		return nil, nil
	}
	if kind := reflect.TypeOf(value).Kind(); kind != reflect.Slice && kind != reflect.Array {
		n, err := asInt(value)
		if err != nil {
			return nil, err
		}
		return []int{n}, nil
	}
	return cast.ToIntSliceE(value)
}

// asStringMap decodes a header block.
func asStringMap(value interface{}) (map[string]string, error) {
	if value == nil {
		return nil, nil
	}
	m, err := cast.ToStringMapStringE(value)
	if err != nil {
		return nil, err
	}
	for key := range m {
		if strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("header key cannot be empty")
		}
	}
	return m, nil
}

// asStringSlice accepts a list or a single string. A single string is one
// element and is not split on whitespace.
func asStringSlice(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	}
	return cast.ToStringSliceE(value)
}

func toInterfaceSlice(value interface{}) ([]interface{}, error) {
	if value == nil {
		return nil, nil
	}
	if items, ok := value.([]map[interface{}]interface{}); ok {
		out := make([]interface{}, len(items))
		for i := range items {
			out[i] = items[i]
		}
		return out, nil
	}
	items, err := cast.ToSliceE(value)
	if err != nil {
		return nil, fmt.Errorf("expected list, got %T", value)
	}
	return items, nil
}

// toStringKeyMap converts a decoded mapping to map[string]interface{} with
// trimmed, lower-cased keys.
func toStringKeyMap(value interface{}) (map[string]interface{}, error) {
	if _, ok := value.(string); ok {
		return nil, fmt.Errorf("expected map, got %T", value)
	}
	m, err := cast.ToStringMapE(value)
	if err != nil {
		return nil, fmt.Errorf("expected map, got %T", value)
	}
	out := make(map[string]interface{}, len(m))
	for key, val := range m {
		out[strings.ToLower(strings.TrimSpace(key))] = val
	}
	return out, nil
}
