package repair

import (
	"fmt"
	"strings"

	"github.com/Manik0107/VATA/internal/models"
)

// HealingSystemPrompt frames every repair call.
const HealingSystemPrompt = "You are a senior Manim Community developer specializing in fixing broken animations. Return only Python source code."

// BuildHealingPrompt renders the repair prompt for source and its diagnostic.
func BuildHealingPrompt(source string, diag models.Diagnostic) string {
	var sb strings.Builder
	sb.WriteString("# MANIM CODE HEALING EXPERT\n\n")
	sb.WriteString("## TASK\n")
	sb.WriteString("Fix the following Manim code that has errors. Maintain all original functionality and animations.\n\n")

	sb.WriteString("## CRITICAL RULES\n")
	sb.WriteString("1. Keep ALL original text and animations\n")
	sb.WriteString("2. Fix ONLY the errors, don't change working parts\n")
	sb.WriteString("3. Keep the scene class a subclass of Scene with a construct method\n")
	sb.WriteString("4. Use Manim Community v0.18 APIs (Create, Text, MathTex, Axes.plot, x_range)\n")
	sb.WriteString("5. Return ONLY the corrected Python code\n")
	sb.WriteString("6. NO explanations, NO markdown fences, NO extra text\n\n")

	sb.WriteString("## COMMON ERROR PATTERNS TO FIX\n")
	sb.WriteString("- Index out of bounds: Check array lengths before accessing\n")
	sb.WriteString("- Missing mobjects: Guard FadeOut with `if self.mobjects:`\n")
	sb.WriteString("- Import errors: Add missing imports\n")
	sb.WriteString("- Syntax errors: Fix malformed code\n")
	sb.WriteString("- Attribute errors: Use correct Manim API methods\n\n")

	sb.WriteString("## BROKEN CODE:\n")
	sb.WriteString(source)
	if !strings.HasSuffix(source, "\n") {
		sb.WriteString("\n")
	}

	sb.WriteString("\n## ERROR LOGS:\n")
	sb.WriteString(formatDiagnostic(diag))
	sb.WriteString("\n\n## CORRECTED CODE (start immediately):\n")
	return sb.String()
}

func formatDiagnostic(diag models.Diagnostic) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s", diag.Kind)
	if diag.Line > 0 {
		fmt.Fprintf(&sb, " at line %d", diag.Line)
	}
	if len(diag.Violations) > 0 {
		sb.WriteString(":")
		for _, v := range diag.Violations {
			fmt.Fprintf(&sb, "\n- [%s] line %d: %s", v.RuleID, v.Line, v.Message)
		}
		return sb.String()
	}
	sb.WriteString(":\n")
	sb.WriteString(diag.Message)
	return sb.String()
}
