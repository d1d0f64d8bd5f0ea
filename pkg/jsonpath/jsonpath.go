// Package jsonpath evaluates simple JSONPath expressions against JSON
// documents using gjson.
//
// Supported syntax: $, dotted keys, [n] indexes, ['key'] / ["key"] bracket
// keys and [*] wildcards. Paths without a leading $ are passed to gjson
// unchanged, so native gjson queries keep working.
package jsonpath

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNotFound is returned when a path does not match anything.
var ErrNotFound = errors.New("path not found")

// Lookup returns the value at path in body.
func Lookup(body []byte, path string) (gjson.Result, error) {
	if len(body) == 0 {
		return gjson.Result{}, fmt.Errorf("empty JSON document")
	}
	if path == "" {
		return gjson.Result{}, fmt.Errorf("empty JSONPath expression")
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("invalid JSON document")
	}

	result := gjson.GetBytes(body, ToGjson(path))
	if !result.Exists() {
		return gjson.Result{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return result, nil
}

// Extract returns the value at path as a string. JSON null is returned as "null".
func Extract(body []byte, path string) (string, error) {
	result, err := Lookup(body, path)
	if err != nil {
		return "", err
	}
	if result.Type == gjson.Null {
		return "null", nil
	}
	return result.String(), nil
}

// ToGjson converts a JSONPath expression to gjson path syntax.
//
//	$.users[0].name  -> users.0.name
//	$['a.b'].c       -> a\.b.c
//	$.items[*].id    -> items.#.id
func ToGjson(path string) string {
	if !strings.HasPrefix(path, "$") {
		return path
	}

	path = strings.TrimPrefix(path, "$")
	if path == "" {
		return "@this"
	}

	var segments []string
	for i := 0; i < len(path); {
		switch path[i] {
		case '.':
			i++
		case '[':
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				segments = append(segments, escapeKey(path[i+1:]))
				i = len(path)
				continue
			}
			inner := path[i+1 : i+end]
			i += end + 1
			switch {
			case inner == "*":
				segments = append(segments, "#")
			case len(inner) >= 2 && (inner[0] == '\'' || inner[0] == '"'):
				segments = append(segments, escapeKey(inner[1:len(inner)-1]))
			default:
				segments = append(segments, inner)
			}
		default:
			end := strings.IndexAny(path[i:], ".[")
			if end < 0 {
				end = len(path) - i
			}
			segments = append(segments, path[i:i+end])
			i += end
		}
	}

	if len(segments) == 0 {
		return "@this"
	}
	return strings.Join(segments, ".")
}

func escapeKey(key string) string {
	return strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`).Replace(key)
}
