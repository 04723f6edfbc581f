package store

import "strings"

// SplitPath breaks a slash-separated path into segments, dropping empties so
// leading or trailing slashes are harmless.
func SplitPath(path string) []string {
	parts := strings.Split(path, "/")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}

// ValueAt descends a record along the segments and returns the value there,
// or nil when any hop is missing.
func ValueAt(record map[string]any, segments []string) any {
	var current any = record
	for _, segment := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = m[segment]
		if !ok {
			return nil
		}
	}
	return current
}

// SetAt writes value at the segment path inside record, creating intermediate
// maps as needed. A nil value removes the leaf instead.
func SetAt(record map[string]any, segments []string, value any) {
	if len(segments) == 0 {
		return
	}
	current := record
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[segment] = next
		}
		current = next
	}
	leaf := segments[len(segments)-1]
	if value == nil {
		delete(current, leaf)
		return
	}
	current[leaf] = value
}

// RemoveAt deletes the segment path inside record. Missing intermediate hops
// are a no-op.
func RemoveAt(record map[string]any, segments []string) {
	if len(segments) == 0 {
		return
	}
	current := record
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			return
		}
		current = next
	}
	delete(current, segments[len(segments)-1])
}

// ApplyUpdate merges fields into the map at the segment path. Nil field
// values remove their keys, matching the remote store's update semantics.
func ApplyUpdate(record map[string]any, segments []string, fields map[string]any) {
	target := record
	for _, segment := range segments {
		next, ok := target[segment].(map[string]any)
		if !ok {
			next = map[string]any{}
			target[segment] = next
		}
		target = next
	}
	for key, value := range fields {
		if value == nil {
			delete(target, key)
			continue
		}
		target[key] = value
	}
}

// Matches reports whether the record satisfies the filter. A zero filter
// matches everything.
func (f Filter) Matches(record map[string]any) bool {
	if f.Field == "" {
		return true
	}
	return ValueAt(record, SplitPath(f.Field)) == f.Value
}

// DeepCopy clones a record so callers can hand snapshots out without
// aliasing backend state.
func DeepCopy(record map[string]any) map[string]any {
	cloned := make(map[string]any, len(record))
	for key, value := range record {
		if nested, ok := value.(map[string]any); ok {
			cloned[key] = DeepCopy(nested)
			continue
		}
		cloned[key] = value
	}
	return cloned
}
