package llm

import "strings"

// ExtractJSON strips markdown code fences and surrounding prose from model
// output, returning the outermost JSON array or object.
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)

	// ```json ... ``` or ``` ... ```
	if start := strings.Index(content, "```"); start != -1 {
		body := content[start+3:]
		if nl := strings.Index(body, "\n"); nl != -1 {
			body = body[nl+1:]
		}
		if end := strings.Index(body, "```"); end != -1 {
			body = body[:end]
		}
		content = strings.TrimSpace(body)
	}

	first, last := outermost(content)
	if first == 0 {
		return content
	}
	if start := strings.IndexByte(content, first); start != -1 {
		if end := strings.LastIndexByte(content, last); end > start {
			content = content[start : end+1]
		}
	}
	return strings.TrimSpace(content)
}

// outermost picks the delimiter pair that opens first.
func outermost(s string) (byte, byte) {
	arr := strings.IndexByte(s, '[')
	obj := strings.IndexByte(s, '{')
	switch {
	case arr == -1 && obj == -1:
		return 0, 0
	case obj == -1 || (arr != -1 && arr < obj):
		return '[', ']'
	default:
		return '{', '}'
	}
}
