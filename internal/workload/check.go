package workload

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Check is a named predicate over a response. Every evaluation is recorded
// under Name in the registry's check tallies.
type Check interface {
	Name() string
	Check(*Response) bool
}

type funcCheck struct {
	name string
	fn   func(*Response) bool
}

func (c funcCheck) Name() string           { return c.name }
func (c funcCheck) Check(r *Response) bool { return c.fn(r) }

type namedCheck struct {
	name  string
	inner Check
}

func (c namedCheck) Name() string           { return c.name }
func (c namedCheck) Check(r *Response) bool { return c.inner.Check(r) }

// CheckFunc builds a check from a predicate.
func CheckFunc(name string, fn func(*Response) bool) Check {
	return funcCheck{name: name, fn: fn}
}

// Named replaces the name of c. An empty name keeps the original.
func Named(name string, c Check) Check {
	if name == "" {
		return c
	}
	return namedCheck{name: name, inner: c}
}

// StatusIn passes when the response status is one of codes.
func StatusIn(codes ...int) Check {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = strconv.Itoa(c)
	}
	name := "status is " + strings.Join(parts, " or ")
	return CheckFunc(name, func(r *Response) bool {
		if r == nil || r.Err != nil {
			return false
		}
		for _, c := range codes {
			if r.Status == c {
				return true
			}
		}
		return false
	})
}

// DurationBelow passes when the request completed faster than limit.
func DurationBelow(limit time.Duration) Check {
	name := fmt.Sprintf("response time < %dms", limit.Milliseconds())
	return CheckFunc(name, func(r *Response) bool {
		return r != nil && r.Err == nil && r.Duration < limit
	})
}

// BodyContains passes when the body contains substr.
func BodyContains(substr string) Check {
	return CheckFunc("body contains "+substr, func(r *Response) bool {
		return r != nil && r.Err == nil && strings.Contains(string(r.Body), substr)
	})
}

// HeaderContains passes when the named header contains substr.
func HeaderContains(header, substr string) Check {
	name := fmt.Sprintf("%s contains %s", header, substr)
	return CheckFunc(name, func(r *Response) bool {
		if r == nil || r.Err != nil || r.Header == nil {
			return false
		}
		return strings.Contains(r.Header.Get(header), substr)
	})
}

// JSONPath passes when path exists in a JSON body and, if want is given,
// its string value equals want[0].
func JSONPath(path string, want ...string) Check {
	name := "json " + path + " exists"
	if len(want) > 0 {
		name = fmt.Sprintf("json %s == %s", path, want[0])
	}
	return CheckFunc(name, func(r *Response) bool {
		if r == nil || r.Err != nil {
			return false
		}
		res := r.JSON(path)
		if !res.Exists() {
			return false
		}
		return len(want) == 0 || res.String() == want[0]
	})
}

// BodyMatches passes when the body matches pattern.
func BodyMatches(pattern string) (Check, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("body pattern %q: %w", pattern, err)
	}
	return CheckFunc("body matches "+pattern, func(r *Response) bool {
		return r != nil && r.Err == nil && re.Match(r.Body)
	}), nil
}

// normalizeJSONPath strips a JSONPath-style "$." prefix for gjson; a bare "$"
// selects the whole document.
func normalizeJSONPath(path string) string {
	switch {
	case path == "$":
		return "@this"
	case strings.HasPrefix(path, "$."):
		return path[2:]
	default:
		return path
	}
}
