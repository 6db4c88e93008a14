package llm

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

//go:embed prompt.md
var textTemplate string

//go:embed prompt_json.md
var jsonTemplate string

// BuildPrompt fills the recruiter template with the job description and
// the retrieved resume context.
func BuildPrompt(resumeContext, jobDescription string, structured bool) string {
	template := textTemplate
	if structured {
		template = jsonTemplate
	}
	prompt := strings.ReplaceAll(template, "{{JOB_DESCRIPTION}}", strings.TrimSpace(jobDescription))
	return strings.ReplaceAll(prompt, "{{RESUME_CONTEXT}}", strings.TrimSpace(resumeContext))
}

type structuredCritique struct {
	Score         any      `json:"score"`
	Analysis      string   `json:"analysis"`
	MissingSkills []string `json:"missing_skills"`
	Advice        string   `json:"advice"`
}

// parseStructured decodes a JSON critique and renders it into the same
// section layout as the text prompt.
func parseStructured(raw string) (Critique, bool) {
	var data structuredCritique
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return Critique{}, false
	}

	score := coerceFloat(data.Score)
	if math.IsNaN(score) && strings.TrimSpace(data.Analysis) == "" {
		return Critique{}, false
	}
	if math.IsNaN(score) {
		score = 0
	}
	n := clampScore(int(math.Round(score)))

	var b strings.Builder
	fmt.Fprintf(&b, "**Match Score:** %d/100\n\n", n)
	fmt.Fprintf(&b, "**Analysis:**\n%s\n\n", strings.TrimSpace(data.Analysis))
	b.WriteString("**Missing Critical Skills:**\n")
	if len(data.MissingSkills) == 0 {
		b.WriteString("- None identified\n")
	}
	for _, skill := range data.MissingSkills {
		fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(skill))
	}
	fmt.Fprintf(&b, "\n**Advice:**\n%s", strings.TrimSpace(data.Advice))

	return Critique{Text: b.String(), Score: n, Structured: true}, true
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSuffix(strings.TrimSpace(val), "/100")
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(trimmed), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}
