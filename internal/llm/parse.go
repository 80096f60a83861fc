package llm

import (
	"encoding/json"
	"strings"
)

// ExtractJSON pulls the first JSON document out of model output. Three
// fallbacks run in sequence: strip Markdown fences, scan for the outermost
// balanced array, scan for the outermost balanced object. Returns nil when
// nothing parses.
func ExtractJSON(content string) json.RawMessage {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	if strings.HasPrefix(content, "```") {
		if inner := stripFences(content); inner != "" {
			if doc := tryParse(inner); doc != nil {
				return doc
			}
			content = inner
		}
	}

	if doc := tryParse(content); doc != nil {
		return doc
	}
	if doc := tryParse(balancedSlice(content, '[', ']')); doc != nil {
		return doc
	}
	if doc := tryParse(balancedSlice(content, '{', '}')); doc != nil {
		return doc
	}
	return nil
}

// UnmarshalLenient extracts and decodes into out, reporting success.
func UnmarshalLenient(content string, out any) bool {
	doc := ExtractJSON(content)
	if doc == nil {
		return false
	}
	return json.Unmarshal(doc, out) == nil
}

func tryParse(s string) json.RawMessage {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if !json.Valid([]byte(s)) {
		return nil
	}
	return json.RawMessage(s)
}

// stripFences removes a leading ```lang fence and its closing ```.
func stripFences(s string) string {
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return ""
	}
	body := lines[1:]
	for i := len(body) - 1; i >= 0; i-- {
		if strings.HasPrefix(strings.TrimSpace(body[i]), "```") {
			body = body[:i]
			break
		}
	}
	return strings.TrimSpace(strings.Join(body, "\n"))
}

// balancedSlice returns the first balanced open..close region, respecting
// JSON string quoting and escapes.
func balancedSlice(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
