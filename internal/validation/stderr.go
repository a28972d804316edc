package validation

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Lines from the interpreter and rendering stack that never describe the
// candidate's failure.
var stderrNoise = []string{
	"UserWarning: pkg_resources is deprecated",
	"WARNING: All log messages before absl::InitializeLog()",
	"ALTS creds ignored",
	"import pkg_resources",
	"manim_voiceover/__init__.py",
	"INFO     Caching disabled",
	"INFO     Animation",
	"INFO     Automatically converted",
}

// Lines that carry an actual error.
var errorIndicators = []string{
	"Error", "Exception", "Traceback", `File "`,
	"NameError", "TypeError", "ValueError", "ImportError",
	"AttributeError", "SyntaxError", "IndentationError",
	"KeyError", "IndexError", "RuntimeError",
}

const stderrTailChars = 500

// FilterStderr keeps the lines of stderr that look like errors and drops
// known noise. When nothing qualifies, the last 500 bytes are kept (cut at
// a rune boundary) so a diagnostic is never empty for a non-empty stderr.
func FilterStderr(stderr string) string {
	var kept []string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || containsAny(line, stderrNoise) {
			continue
		}
		if containsAny(line, errorIndicators) {
			kept = append(kept, line)
		}
	}
	if len(kept) > 0 {
		return strings.Join(kept, "\n")
	}

	trimmed := strings.TrimSpace(stderr)
	if len(trimmed) > stderrTailChars {
		start := len(trimmed) - stderrTailChars
		for start < len(trimmed) && !utf8.RuneStart(trimmed[start]) {
			start++
		}
		trimmed = trimmed[start:]
	}
	return trimmed
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var tracebackFrame = regexp.MustCompile(`File "([^"]+)", line (\d+)`)

// TracebackLine returns the line number of the last traceback frame that
// points into file, or 0 when there is none.
func TracebackLine(stderr, file string) int {
	line := 0
	for _, m := range tracebackFrame.FindAllStringSubmatch(stderr, -1) {
		if m[1] == file || strings.HasSuffix(m[1], "/"+file) {
			if n, err := strconv.Atoi(m[2]); err == nil {
				line = n
			}
		}
	}
	return line
}
