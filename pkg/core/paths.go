package core

import (
	"fmt"
	"strconv"
	"strings"
)

// ExtractField extracts a value from decoded JSON using a dotted path.
// Supports:
// - Nested fields: "title.cs"
// - Array indices: "distribution[0]", "items[-1]" (negative for last)
// - Combined paths: "distribution[0].accessURL"
func ExtractField(data interface{}, path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}

	segments, err := parsePath(path)
	if err != nil {
		return nil, false
	}

	return traversePath(data, segments)
}

// ExtractString extracts a string value, failing when the path is
// missing or the value is not a string.
func ExtractString(data interface{}, path string) (string, bool) {
	v, ok := ExtractField(data, path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

type segmentType int

const (
	fieldSegment segmentType = iota // Regular field access
	arrayIndex                      // Specific array index [0], [-1]
)

// pathSegment represents a single segment in a path
type pathSegment struct {
	field string
	typ   segmentType
	index int
}

// parsePath converts a string path into structured segments
func parsePath(path string) ([]pathSegment, error) {
	var segments []pathSegment

	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}

		idx := strings.Index(part, "[")
		if idx == -1 {
			segments = append(segments, pathSegment{field: part, typ: fieldSegment})
			continue
		}

		if idx > 0 {
			segments = append(segments, pathSegment{field: part[:idx], typ: fieldSegment})
		}

		remaining := part[idx:]
		for len(remaining) > 0 {
			if !strings.HasPrefix(remaining, "[") {
				return nil, fmt.Errorf("invalid array notation in path: %s", part)
			}
			endIdx := strings.Index(remaining, "]")
			if endIdx == -1 {
				return nil, fmt.Errorf("unclosed bracket in path: %s", part)
			}
			index, err := strconv.Atoi(remaining[1:endIdx])
			if err != nil {
				return nil, fmt.Errorf("invalid array index: %s", remaining[1:endIdx])
			}
			segments = append(segments, pathSegment{typ: arrayIndex, index: index})
			remaining = remaining[endIdx+1:]
		}
	}

	return segments, nil
}

// traversePath walks through data following the path segments
func traversePath(data interface{}, segments []pathSegment) (interface{}, bool) {
	current := data

	for _, segment := range segments {
		switch segment.typ {
		case fieldSegment:
			m, ok := current.(map[string]interface{})
			if !ok {
				return nil, false
			}
			current, ok = m[segment.field]
			if !ok {
				return nil, false
			}

		case arrayIndex:
			arr, ok := current.([]interface{})
			if !ok {
				return nil, false
			}

			index := segment.index
			if index < 0 {
				index = len(arr) + index
			}
			if index < 0 || index >= len(arr) {
				return nil, false
			}
			current = arr[index]
		}
	}

	return current, true
}
