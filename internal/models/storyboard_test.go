package models

import (
	"errors"
	"strings"
	"testing"
)

func TestStoryboardValidate(t *testing.T) {
	scene := func(i int, title string) StoryboardScene {
		return StoryboardScene{Index: i, Title: title, Narration: "n"}
	}

	tests := []struct {
		name    string
		sb      Storyboard
		wantErr string
	}{
		{
			name: "valid",
			sb:   Storyboard{Topic: "Linear regression", Scenes: []StoryboardScene{scene(1, "Intro"), scene(2, "Fit")}},
		},
		{
			name:    "no scenes",
			sb:      Storyboard{Topic: "Empty"},
			wantErr: ErrNoScenes.Error(),
		},
		{
			name:    "missing topic",
			sb:      Storyboard{Scenes: []StoryboardScene{scene(1, "Intro")}},
			wantErr: "Topic",
		},
		{
			name:    "gap in indices",
			sb:      Storyboard{Topic: "t", Scenes: []StoryboardScene{scene(1, "a"), scene(3, "c")}},
			wantErr: "contiguous",
		},
		{
			name:    "starts at zero",
			sb:      Storyboard{Topic: "t", Scenes: []StoryboardScene{scene(0, "a")}},
			wantErr: "Index",
		},
		{
			name:    "untitled scene",
			sb:      Storyboard{Topic: "t", Scenes: []StoryboardScene{scene(1, "")}},
			wantErr: "Title",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sb.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestStoryboardNoScenesSentinel(t *testing.T) {
	sb := Storyboard{Topic: "x"}
	if err := sb.Validate(); !errors.Is(err, ErrNoScenes) {
		t.Errorf("Validate() = %v, want ErrNoScenes", err)
	}
}
