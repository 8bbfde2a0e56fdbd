package email

import "fmt"

// View names the templates used to render a message body.
// Either field may be empty, but not both.
type View struct {
	HTML string `json:"html,omitempty"`
	Text string `json:"text,omitempty"`
}

// IsZero reports whether no template is named.
func (v View) IsZero() bool {
	return v.HTML == "" && v.Text == ""
}

// ParseView resolves the accepted view shapes into a View:
//   - string: an html view name
//   - []string or []any with exactly two strings: html and text, positionally
//   - map[string]string or map[string]any with "html" and/or "text" keys
//   - View or *View: used as is
func ParseView(view any) (View, error) {
	switch v := view.(type) {
	case string:
		if v == "" {
			return View{}, fmt.Errorf("%w: empty view name", ErrInvalidView)
		}
		return View{HTML: v}, nil
	case View:
		if v.IsZero() {
			return View{}, fmt.Errorf("%w: empty view", ErrInvalidView)
		}
		return v, nil
	case *View:
		if v == nil {
			return View{}, fmt.Errorf("%w: nil view", ErrInvalidView)
		}
		return ParseView(*v)
	case []string:
		if len(v) != 2 {
			return View{}, fmt.Errorf("%w: view pair must have 2 elements, got %d", ErrInvalidView, len(v))
		}
		return pairView(v[0], v[1])
	case []any:
		if len(v) != 2 {
			return View{}, fmt.Errorf("%w: view pair must have 2 elements, got %d", ErrInvalidView, len(v))
		}
		html, ok1 := v[0].(string)
		text, ok2 := v[1].(string)
		if !ok1 || !ok2 {
			return View{}, fmt.Errorf("%w: view pair must contain strings", ErrInvalidView)
		}
		return pairView(html, text)
	case map[string]string:
		return namedView(v["html"], v["text"], hasKey(v, "html") || hasKey(v, "text"))
	case map[string]any:
		html, ok1 := optionalString(v, "html")
		text, ok2 := optionalString(v, "text")
		if !ok1 || !ok2 {
			return View{}, fmt.Errorf("%w: view names must be strings", ErrInvalidView)
		}
		return namedView(html, text, hasKey(v, "html") || hasKey(v, "text"))
	default:
		return View{}, fmt.Errorf("%w: unsupported view type %T", ErrInvalidView, view)
	}
}

func pairView(html, text string) (View, error) {
	v := View{HTML: html, Text: text}
	if v.IsZero() {
		return View{}, fmt.Errorf("%w: empty view pair", ErrInvalidView)
	}
	return v, nil
}

func namedView(html, text string, keyed bool) (View, error) {
	if !keyed {
		return View{}, fmt.Errorf("%w: view map needs an html or text key", ErrInvalidView)
	}
	v := View{HTML: html, Text: text}
	if v.IsZero() {
		return View{}, fmt.Errorf("%w: view map names no template", ErrInvalidView)
	}
	return v, nil
}

func hasKey[V any](m map[string]V, key string) bool {
	_, ok := m[key]
	return ok
}

func optionalString(m map[string]any, key string) (string, bool) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return "", true
	}
	s, ok := raw.(string)
	return s, ok
}
