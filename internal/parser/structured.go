package parser

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Manik0107/VATA/internal/models"
)

// rawStoryboard is the on-disk shape shared by JSON and YAML storyboards.
// It accepts the field names written by the storyboard agent (scene_id,
// visual_description) next to the canonical ones.
type rawStoryboard struct {
	Topic          string     `json:"topic" yaml:"topic"`
	TargetAudience string     `json:"target_audience" yaml:"target_audience"`
	ClassName      string     `json:"class_name" yaml:"class_name"`
	Scenes         []rawScene `json:"scenes" yaml:"scenes"`
}

type rawScene struct {
	Index                *int     `json:"index" yaml:"index"`
	SceneID              *int     `json:"scene_id" yaml:"scene_id"`
	Title                string   `json:"title" yaml:"title"`
	Narration            string   `json:"narration" yaml:"narration"`
	VisualElements       []string `json:"visual_elements" yaml:"visual_elements"`
	VisualDescription    string   `json:"visual_description" yaml:"visual_description"`
	AnimationInstruction string   `json:"animation_instruction" yaml:"animation_instruction"`
	DurationSeconds      float64  `json:"duration_seconds" yaml:"duration_seconds"`
}

func (r *rawStoryboard) storyboard() *models.Storyboard {
	sb := &models.Storyboard{
		Topic:          strings.TrimSpace(r.Topic),
		TargetAudience: strings.TrimSpace(r.TargetAudience),
		ClassName:      strings.TrimSpace(r.ClassName),
		Scenes:         make([]models.StoryboardScene, 0, len(r.Scenes)),
	}
	for i, rs := range r.Scenes {
		scene := models.StoryboardScene{
			Index:                i + 1,
			Title:                strings.TrimSpace(rs.Title),
			Narration:            strings.TrimSpace(rs.Narration),
			VisualElements:       rs.VisualElements,
			AnimationInstruction: strings.TrimSpace(rs.AnimationInstruction),
			DurationSeconds:      rs.DurationSeconds,
		}
		switch {
		case rs.Index != nil:
			scene.Index = *rs.Index
		case rs.SceneID != nil:
			scene.Index = *rs.SceneID
		}
		if len(scene.VisualElements) == 0 && rs.VisualDescription != "" {
			scene.VisualElements = splitVisuals(rs.VisualDescription)
		}
		sb.Scenes = append(sb.Scenes, scene)
	}
	return sb
}

// splitVisuals turns a free-text visual description into descriptors, one
// per line or semicolon-separated clause.
func splitVisuals(desc string) []string {
	fields := strings.FieldsFunc(desc, func(r rune) bool { return r == '\n' || r == ';' })
	var out []string
	for _, f := range fields {
		f = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(f), "-*"))
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// JSONParser parses JSON storyboards.
type JSONParser struct{}

// NewJSONParser creates a JSONParser.
func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

// Parse decodes a JSON storyboard. Unknown fields such as the agent's
// "reasoning" are ignored.
func (p *JSONParser) Parse(r io.Reader) (*models.Storyboard, error) {
	var raw rawStoryboard
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return raw.storyboard(), nil
}

// YAMLParser parses YAML storyboards.
type YAMLParser struct{}

// NewYAMLParser creates a YAMLParser.
func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

func (p *YAMLParser) Parse(r io.Reader) (*models.Storyboard, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	var raw rawStoryboard
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return raw.storyboard(), nil
}
