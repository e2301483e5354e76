package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"trustbridge/internal/compliance"
)

var ErrMalformedVerdict = errors.New("gemini: malformed verdict")

type rawVerdict struct {
	Valid           *bool    `json:"valid"`
	RiskLevel       string   `json:"risk_level"`
	Findings        []string `json:"findings"`
	Suggestions     []string `json:"suggestions"`
	LegalReferences []string `json:"legal_references"`
}

// ParseVerdict decodes a model answer into a verdict tagged with source "ai".
// Markdown fences and prose around the JSON object are ignored.
func ParseVerdict(text string) (compliance.Verdict, error) {
	obj, ok := extractObject(text)
	if !ok {
		return compliance.Verdict{}, fmt.Errorf("%w: no JSON object found", ErrMalformedVerdict)
	}

	var raw rawVerdict
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return compliance.Verdict{}, fmt.Errorf("%w: %w", ErrMalformedVerdict, err)
	}
	if raw.Valid == nil {
		return compliance.Verdict{}, fmt.Errorf("%w: missing valid", ErrMalformedVerdict)
	}
	level, err := compliance.ParseRiskLevel(raw.RiskLevel)
	if err != nil {
		return compliance.Verdict{}, fmt.Errorf("%w: %w", ErrMalformedVerdict, err)
	}

	findings := nonEmpty(raw.Findings)
	if len(findings) == 0 {
		findings = []string{compliance.NoIssuesFinding}
	}
	return compliance.Verdict{
		Valid:           *raw.Valid,
		RiskLevel:       level,
		Findings:        findings,
		Suggestions:     nonEmpty(raw.Suggestions),
		Source:          compliance.SourceAI,
		LegalReferences: nonEmpty(raw.LegalReferences),
	}, nil
}

func extractObject(text string) (string, bool) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
