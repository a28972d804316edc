package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrNoScenes is returned when a storyboard has no scenes.
var ErrNoScenes = errors.New("storyboard has no scenes")

var validate = validator.New(validator.WithRequiredStructEnabled())

// StoryboardScene is one scene of a storyboard.
type StoryboardScene struct {
	Index                int      `json:"index" yaml:"index" validate:"min=1"`
	Title                string   `json:"title" yaml:"title" validate:"required"`
	Narration            string   `json:"narration" yaml:"narration"`
	VisualElements       []string `json:"visual_elements,omitempty" yaml:"visual_elements,omitempty"`
	AnimationInstruction string   `json:"animation_instruction,omitempty" yaml:"animation_instruction,omitempty"`
	DurationSeconds      float64  `json:"duration_seconds,omitempty" yaml:"duration_seconds,omitempty" validate:"gte=0"`
}

// Storyboard is the ordered scene plan a candidate is generated from.
// It is read-only once loaded.
type Storyboard struct {
	Topic          string            `json:"topic" yaml:"topic" validate:"required"`
	TargetAudience string            `json:"target_audience,omitempty" yaml:"target_audience,omitempty"`
	ClassName      string            `json:"class_name,omitempty" yaml:"class_name,omitempty"`
	Scenes         []StoryboardScene `json:"scenes" yaml:"scenes" validate:"dive"`
	SourcePath     string            `json:"-" yaml:"-"`
}

// Validate checks required fields and that scene indices run 1..N without
// gaps or duplicates.
func (s *Storyboard) Validate() error {
	if len(s.Scenes) == 0 {
		return ErrNoScenes
	}
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid storyboard: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("invalid storyboard: %w", err)
	}
	for i, scene := range s.Scenes {
		if scene.Index != i+1 {
			return fmt.Errorf("scene %q has index %d, expected %d (indices must be contiguous from 1)",
				scene.Title, scene.Index, i+1)
		}
	}
	return nil
}

// SceneCount returns the number of scenes.
func (s *Storyboard) SceneCount() int {
	return len(s.Scenes)
}
