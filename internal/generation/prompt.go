package generation

import (
	"fmt"
	"strings"

	"github.com/Manik0107/VATA/internal/models"
)

const generationSystemPrompt = "You are an expert Manim Community developer who writes clear educational animations. Reply with Python source code only."

const apiRequirements = `## CRITICAL REQUIREMENTS
1. Start with: from manim import *
2. Use Manim Community v0.18 APIs only:
   - Create, not ShowCreation
   - Text and MathTex, not TextMobject or TexMobject
   - Axes(x_range=[...], y_range=[...]) and axes.plot(...), not x_min/x_max or get_graph
   - never subclass GraphScene and never use a CONFIG dict
3. Clear the screen between sections with:
   if self.mobjects:
       self.play(FadeOut(*self.mobjects))
4. Check list lengths before indexing
5. Do not read files, images or the network
6. Return ONLY Python code: no explanations and no markdown fences
`

func writeScene(sb *strings.Builder, scene models.StoryboardScene) {
	fmt.Fprintf(sb, "### Scene %d: %s\n", scene.Index, scene.Title)
	if scene.Narration != "" {
		fmt.Fprintf(sb, "Narration: %s\n", strings.TrimSpace(scene.Narration))
	}
	if len(scene.VisualElements) > 0 {
		sb.WriteString("Visual elements:\n")
		for _, v := range scene.VisualElements {
			fmt.Fprintf(sb, "- %s\n", v)
		}
	}
	if scene.AnimationInstruction != "" {
		fmt.Fprintf(sb, "Animation: %s\n", scene.AnimationInstruction)
	}
	if scene.DurationSeconds > 0 {
		fmt.Fprintf(sb, "Target duration: %.0f seconds\n", scene.DurationSeconds)
	}
}

func buildFullPrompt(sb *models.Storyboard, opts Options) string {
	var p strings.Builder
	p.WriteString("# EDUCATIONAL ANIMATION GENERATOR\n\n")
	p.WriteString("## MISSION\n")
	fmt.Fprintf(&p, "Write one Manim scene that teaches %q", sb.Topic)
	if sb.TargetAudience != "" {
		fmt.Fprintf(&p, " to %s", sb.TargetAudience)
	}
	p.WriteString(". Follow the storyboard below scene by scene.\n\n")

	p.WriteString("## STRUCTURE\n")
	fmt.Fprintf(&p, "- Define exactly one class: class %s(%s)\n", ClassName(sb), opts.BaseClass)
	fmt.Fprintf(&p, "- %s(self) calls one method per scene, in order:\n", opts.EntryMethod)
	for _, name := range MethodNames(sb.Scenes) {
		fmt.Fprintf(&p, "  - self.%s()\n", name)
	}
	p.WriteString("\n")
	p.WriteString(apiRequirements)

	p.WriteString("\n## STORYBOARD\n")
	for _, scene := range sb.Scenes {
		writeScene(&p, scene)
		p.WriteString("\n")
	}
	p.WriteString("## CODE (start immediately):\n")
	return p.String()
}

func buildScenePrompt(sb *models.Storyboard, scene models.StoryboardScene, name string) string {
	var p strings.Builder
	p.WriteString("# SCENE METHOD GENERATOR\n\n")
	fmt.Fprintf(&p, "You are writing one method of a Manim scene about %q (scene %d of %d).\n\n",
		sb.Topic, scene.Index, len(sb.Scenes))

	p.WriteString("## OUTPUT\n")
	fmt.Fprintf(&p, "- Exactly one method: def %s(self):\n", name)
	p.WriteString("- No imports, no class statement, no other methods\n")
	p.WriteString("- The method must not depend on objects created by other scenes\n\n")
	p.WriteString(apiRequirements)

	p.WriteString("\n## SCENE\n")
	writeScene(&p, scene)
	p.WriteString("\n## METHOD (start immediately):\n")
	return p.String()
}
