package parser

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/Manik0107/VATA/internal/models"
)

// MarkdownParser reads storyboards written as Markdown:
//
//	---
//	topic: Linear Regression
//	target_audience: Beginner
//	---
//	# Linear Regression
//
//	## Scene 1: Introduction
//	Narration paragraphs.
//
//	- visual element
//	- another visual element
//
//	**Animation:** FadeIn the axes
//	**Duration:** 10s
//
// Frontmatter is optional; the first level-1 heading supplies the topic
// when the frontmatter does not. Every level-2 heading starts a scene.
type MarkdownParser struct {
	markdown goldmark.Markdown
}

var sceneHeading = regexp.MustCompile(`(?i)^scene\s+(\d+)\s*[:.\-]\s*(.+)$`)

// markdownFrontmatter is the optional YAML block at the top of the file.
type markdownFrontmatter struct {
	Topic          string `yaml:"topic"`
	TargetAudience string `yaml:"target_audience"`
	ClassName      string `yaml:"class_name"`
}

func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{
		markdown: goldmark.New(),
	}
}

func (p *MarkdownParser) Parse(r io.Reader) (*models.Storyboard, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	sb := &models.Storyboard{}
	content, frontmatter := extractFrontmatter(content)
	if frontmatter != nil {
		var fm markdownFrontmatter
		if err := yaml.Unmarshal(frontmatter, &fm); err != nil {
			return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
		}
		sb.Topic = strings.TrimSpace(fm.Topic)
		sb.TargetAudience = strings.TrimSpace(fm.TargetAudience)
		sb.ClassName = strings.TrimSpace(fm.ClassName)
	}

	doc := p.markdown.Parser().Parse(text.NewReader(content))
	if err := collectScenes(doc, content, sb); err != nil {
		return nil, err
	}
	return sb, nil
}

// collectScenes walks the top-level blocks of doc.
func collectScenes(doc ast.Node, source []byte, sb *models.Storyboard) error {
	var current *models.StoryboardScene
	var narration []string

	flush := func() {
		if current == nil {
			return
		}
		current.Narration = strings.Join(narration, "\n\n")
		sb.Scenes = append(sb.Scenes, *current)
		current, narration = nil, nil
	}

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if n.Kind() == ast.KindDocument {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			heading := nodeText(node, source)
			switch {
			case node.Level == 1 && current == nil && sb.Topic == "":
				sb.Topic = heading
			case node.Level == 2:
				flush()
				current = &models.StoryboardScene{Index: len(sb.Scenes) + 1, Title: heading}
				if m := sceneHeading.FindStringSubmatch(heading); m != nil {
					idx, _ := strconv.Atoi(m[1])
					current.Index = idx
					current.Title = strings.TrimSpace(m[2])
				}
			}

		case *ast.Paragraph:
			var prose []string
			for _, line := range paragraphLines(node, source) {
				if current == nil {
					if v, ok := labelled(line, "audience", "target audience"); ok && sb.TargetAudience == "" {
						sb.TargetAudience = v
					}
					continue
				}
				if v, ok := labelled(line, "animation", "animation instruction"); ok {
					current.AnimationInstruction = v
				} else if v, ok := labelled(line, "duration"); ok {
					d, err := parseSeconds(v)
					if err != nil {
						return ast.WalkStop, fmt.Errorf("scene %q: %w", current.Title, err)
					}
					current.DurationSeconds = d
				} else if v, ok := labelled(line, "visuals", "visual"); ok {
					current.VisualElements = append(current.VisualElements, splitVisuals(v)...)
				} else if v, ok := labelled(line, "narration"); ok {
					prose = append(prose, v)
				} else {
					prose = append(prose, line)
				}
			}
			if len(prose) > 0 {
				narration = append(narration, strings.Join(prose, " "))
			}

		case *ast.List:
			if current == nil {
				break
			}
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				if s := nodeText(item, source); s != "" {
					current.VisualElements = append(current.VisualElements, s)
				}
			}
		}
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return err
	}
	flush()
	return nil
}

// labelled matches "Label: value" case-insensitively against any of labels.
func labelled(s string, labels ...string) (string, bool) {
	colon := strings.Index(s, ":")
	if colon < 0 {
		return "", false
	}
	head := strings.ToLower(strings.TrimSpace(s[:colon]))
	for _, l := range labels {
		if head == l {
			return strings.TrimSpace(s[colon+1:]), true
		}
	}
	return "", false
}

// parseSeconds accepts "10", "10s", "7.5 seconds".
func parseSeconds(s string) (float64, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, suffix := range []string{"seconds", "second", "secs", "sec", "s"} {
		if strings.HasSuffix(v, suffix) {
			v = strings.TrimSpace(strings.TrimSuffix(v, suffix))
			break
		}
	}
	d, err := strconv.ParseFloat(v, 64)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

// nodeText extracts plain text from an AST node and its inline children.
func nodeText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	writeText(&buf, n, source, ' ')
	return strings.TrimSpace(buf.String())
}

// paragraphLines returns the non-empty source lines of a paragraph.
func paragraphLines(n ast.Node, source []byte) []string {
	var buf bytes.Buffer
	writeText(&buf, n, source, '\n')
	var lines []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func writeText(buf *bytes.Buffer, n ast.Node, source []byte, lineBreak byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(lineBreak)
			}
		case *ast.String:
			buf.Write(t.Value)
		default:
			writeText(buf, c, source, lineBreak)
		}
	}
}

// extractFrontmatter extracts YAML frontmatter from markdown content
// Returns the content without frontmatter and the frontmatter bytes
func extractFrontmatter(content []byte) ([]byte, []byte) {
	lines := bytes.Split(content, []byte("\n"))
	if len(lines) < 3 || !bytes.Equal(bytes.TrimSpace(lines[0]), []byte("---")) {
		return content, nil
	}
	for i := 1; i < len(lines); i++ {
		if bytes.Equal(bytes.TrimSpace(lines[i]), []byte("---")) {
			frontmatter := bytes.Join(lines[1:i], []byte("\n"))
			body := bytes.Join(lines[i+1:], []byte("\n"))
			return body, frontmatter
		}
	}
	return content, nil
}
