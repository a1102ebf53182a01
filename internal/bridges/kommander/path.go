package kommander

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// parsePath splits an extraction path into keys. It accepts dotted keys,
// numeric segments, and bracket segments:
//
//	data.state
//	data.items[0].name
//	data.items.0.name
//	data["out group"]
func parsePath(path string) ([]string, error) {
	var keys []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			keys = append(keys, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(path); i++ {
		ch := path[i]
		switch ch {
		case '.':
			flush()
		case '[':
			flush()
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated bracket in %q", ErrInvalidParameter, path)
			}
			key := path[i+1 : i+end]
			if len(key) >= 2 && (key[0] == '"' || key[0] == '\'') && key[len(key)-1] == key[0] {
				key = key[1 : len(key)-1]
			}
			keys = append(keys, key)
			i += end
		default:
			cur.WriteByte(ch)
		}
	}
	flush()

	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: empty path %q", ErrInvalidParameter, path)
	}
	return keys, nil
}

// extractPath resolves path against a decoded JSON value. Objects are
// indexed by key and arrays by decimal index.
func extractPath(v any, path string) (any, error) {
	keys, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	cur := v
	for _, key := range keys {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[key]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrExtractionMiss, path)
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("%w: %q", ErrExtractionMiss, path)
			}
			cur = node[idx]
		default:
			return nil, fmt.Errorf("%w: %q", ErrExtractionMiss, path)
		}
	}
	return cur, nil
}

// rawValueAt returns the bytes of the value at path inside a JSON document,
// exactly as received.
func rawValueAt(raw []byte, path string) (json.RawMessage, bool) {
	keys, err := parsePath(path)
	if err != nil {
		return nil, false
	}

	cur := bytes.TrimSpace(raw)
	for _, key := range keys {
		if len(cur) == 0 {
			return nil, false
		}
		switch cur[0] {
		case '{':
			var obj map[string]json.RawMessage
			if json.Unmarshal(cur, &obj) != nil {
				return nil, false
			}
			next, ok := obj[key]
			if !ok {
				return nil, false
			}
			cur = bytes.TrimSpace(next)
		case '[':
			var arr []json.RawMessage
			if json.Unmarshal(cur, &arr) != nil {
				return nil, false
			}
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(arr) {
				return nil, false
			}
			cur = bytes.TrimSpace(arr[idx])
		default:
			return nil, false
		}
	}
	return cur, true
}
