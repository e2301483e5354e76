package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustbridge/internal/compliance"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  compliance.Verdict
	}{
		{
			name:  "plain json",
			input: `{"valid": true, "risk_level": "low", "findings": ["Consent withdrawal is lawful under S. 26"], "suggestions": []}`,
			want: compliance.Verdict{
				Valid:       true,
				RiskLevel:   compliance.RiskLow,
				Findings:    []string{"Consent withdrawal is lawful under S. 26"},
				Suggestions: []string{},
				Source:      compliance.SourceAI,
			},
		},
		{
			name: "fenced with references",
			input: "```json\n{\"valid\": false, \"risk_level\": \"HIGH\", \"findings\": [\"No lawful basis\"], " +
				"\"suggestions\": [\"State the lawful basis\"], \"legal_references\": [\"S. 25\"]}\n```",
			want: compliance.Verdict{
				Valid:           false,
				RiskLevel:       compliance.RiskHigh,
				Findings:        []string{"No lawful basis"},
				Suggestions:     []string{"State the lawful basis"},
				Source:          compliance.SourceAI,
				LegalReferences: []string{"S. 25"},
			},
		},
		{
			name:  "prose around object and empty findings",
			input: "Here is the analysis:\n{\"valid\": true, \"risk_level\": \"MEDIUM\", \"findings\": [\" \"]}\nThanks",
			want: compliance.Verdict{
				Valid:       true,
				RiskLevel:   compliance.RiskMedium,
				Findings:    []string{compliance.NoIssuesFinding},
				Suggestions: []string{},
				Source:      compliance.SourceAI,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseVerdict(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want.Valid, got.Valid)
			assert.Equal(t, tc.want.RiskLevel, got.RiskLevel)
			assert.Equal(t, tc.want.Findings, got.Findings)
			assert.Equal(t, tc.want.Suggestions, got.Suggestions)
			assert.Equal(t, tc.want.Source, got.Source)
			assert.Equal(t, len(tc.want.LegalReferences), len(got.LegalReferences))
		})
	}
}

func TestParseVerdictRejectsMalformedAnswers(t *testing.T) {
	for name, input := range map[string]string{
		"no object":          "I cannot help with that",
		"broken json":        `{"valid": true, "risk_level": }`,
		"unknown risk level": `{"valid": true, "risk_level": "CRITICAL", "findings": []}`,
		"missing valid":      `{"risk_level": "LOW", "findings": []}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseVerdict(input)
			assert.ErrorIs(t, err, ErrMalformedVerdict)
		})
	}
}
