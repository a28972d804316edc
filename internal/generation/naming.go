package generation

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/Manik0107/VATA/internal/models"
)

const defaultClassName = "ProfessionalAnimation"

var pythonKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true, "assert": true,
	"async": true, "await": true, "break": true, "class": true, "continue": true,
	"def": true, "del": true, "elif": true, "else": true, "except": true, "finally": true,
	"for": true, "from": true, "global": true, "if": true, "import": true, "in": true,
	"is": true, "lambda": true, "nonlocal": true, "not": true, "or": true, "pass": true,
	"raise": true, "return": true, "try": true, "while": true, "with": true, "yield": true,
}

// MethodName derives a scene method name from a title: ASCII letters and
// digits are kept, whitespace runs become underscores, and the result is
// prefixed with animate_. Titles that are empty or start with a digit get
// an extra section_ prefix.
func MethodName(title string) string {
	var b strings.Builder
	pendingSpace := false
	for _, r := range strings.TrimSpace(title) {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSpace = false
			b.WriteRune(unicode.ToLower(r))
		}
	}
	name := b.String()
	if name == "" || unicode.IsDigit(rune(name[0])) {
		name = "section_" + name
	}
	return "animate_" + name
}

// MethodNames returns one method name per scene, in order. Repeated names
// get a numeric suffix.
func MethodNames(scenes []models.StoryboardScene) []string {
	used := make(map[string]bool, len(scenes))
	names := make([]string, len(scenes))
	for i, scene := range scenes {
		base := MethodName(scene.Title)
		name := base
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		used[name] = true
		names[i] = name
	}
	return names
}

// ClassName returns the scene class name for sb. An explicit class name is
// sanitised into a Python identifier; otherwise the first two words of the
// topic are capitalised and suffixed with Animation.
func ClassName(sb *models.Storyboard) string {
	if sb.ClassName != "" {
		if name := identifier(sb.ClassName); name != "" {
			return name
		}
	}

	var words []string
	for _, w := range strings.Fields(sb.Topic) {
		clean := strings.Map(func(r rune) rune {
			if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
				return r
			}
			return -1
		}, w)
		if clean != "" {
			words = append(words, clean)
		}
		if len(words) == 2 {
			break
		}
	}
	if len(words) == 0 {
		return defaultClassName
	}

	var b strings.Builder
	for _, w := range words {
		b.WriteString(strings.ToUpper(w[:1]))
		b.WriteString(strings.ToLower(w[1:]))
	}
	name := b.String()
	if !strings.HasSuffix(name, "Animation") {
		name += "Animation"
	}
	if unicode.IsDigit(rune(name[0])) {
		name = "Scene" + name
	}
	return name
}

func identifier(s string) string {
	name := strings.Map(func(r rune) rune {
		if r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			return r
		}
		return -1
	}, s)
	if name == "" {
		return ""
	}
	if unicode.IsDigit(rune(name[0])) {
		name = "Scene" + name
	}
	if pythonKeywords[name] {
		name += "Scene"
	}
	return name
}

// pyString renders s as a double-quoted Python string literal. The escapes
// strconv.Quote emits are all valid in Python 3 string literals.
func pyString(s string) string {
	return strconv.Quote(s)
}
