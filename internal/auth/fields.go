package auth

// field maps one string attribute of T to its snake_case wire name.
// A list field is sent as a one-element JSON array and read back from the
// array's first element (redirect_uris).
type field[T any] struct {
	wire string
	list bool
	ptr  func(*T) *string
}

// encodeFields renders v as a wire document. Empty attributes are omitted.
func encodeFields[T any](fields []field[T], v *T) map[string]any {
	doc := make(map[string]any, len(fields))
	for _, f := range fields {
		s := *f.ptr(v)
		if s == "" {
			continue
		}
		if f.list {
			doc[f.wire] = []string{s}
		} else {
			doc[f.wire] = s
		}
	}
	return doc
}

// decodeFields copies the non-empty string attributes of doc onto v.
// Attributes missing from doc keep their current value in v.
func decodeFields[T any](fields []field[T], doc map[string]any, v *T) {
	for _, f := range fields {
		raw, ok := doc[f.wire]
		if !ok {
			continue
		}
		var s string
		switch val := raw.(type) {
		case string:
			s = val
		case []any:
			if len(val) > 0 {
				s, _ = val[0].(string)
			}
		case []string:
			if len(val) > 0 {
				s = val[0]
			}
		}
		if s != "" {
			*f.ptr(v) = s
		}
	}
}
