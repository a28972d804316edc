package llm

import (
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:python|py)?[ \t]*\r?\n(.*?)```")

// ExtractCode pulls Python source out of a model reply. A fenced block
// wins; otherwise stray fences are stripped and any preamble before the
// first "from manim import" is dropped.
func ExtractCode(reply string) string {
	if m := fencedBlock.FindStringSubmatch(reply); m != nil {
		code := strings.TrimSpace(m[1])
		if code == "" {
			return ""
		}
		return code + "\n"
	}

	text := strings.ReplaceAll(reply, "```python", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	if i := strings.Index(text, "from manim import"); i > 0 {
		text = text[i:]
	}
	return text + "\n"
}

// ExtractJSON attempts to extract a JSON object from mixed content.
// It finds the first '{' and last '}' to extract the JSON substring.
// Returns empty string if no valid JSON boundaries found.
func ExtractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return ""
}
