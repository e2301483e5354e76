package engine

import (
	"fmt"
	"strings"

	"trustbridge/internal/compliance"
)

// ndpaSections is embedded in every prompt so the model cites the Act consistently.
var ndpaSections = []struct {
	Section string
	Title   string
}{
	{"S. 24", "Principles of processing: lawfulness, purpose limitation, minimisation, storage limitation, accuracy, integrity"},
	{"S. 25", "Lawful basis of processing"},
	{"S. 26", "Consent: freely given, specific, informed, unambiguous, withdrawable at any time"},
	{"S. 27", "Information to be provided to the data subject, including retention period and DPO contact"},
	{"S. 30", "Sensitive personal data: health, biometric, genetic, religious, political, ethnic, sexual, criminal"},
	{"S. 31", "Children and persons lacking legal capacity"},
	{"S. 32", "Appointment of a data protection officer"},
	{"S. 34", "Right of access"},
	{"S. 35", "Right to data portability"},
	{"S. 36", "Right to object"},
	{"S. 37", "Automated decision-making"},
	{"S. 39", "Security of processing"},
	{"S. 40", "Personal data breach notification within 72 hours"},
	{"S. 41", "Cross-border transfers: adequacy and safeguards"},
}

const verdictFormat = `Respond with ONLY a JSON object, no prose, in this shape:
{
  "valid": true or false,
  "risk_level": "LOW" | "MEDIUM" | "HIGH",
  "findings": ["short factual finding", ...],
  "suggestions": ["concrete remediation step", ...],
  "legal_references": ["S. 26", ...]
}`

func writeSections(sb *strings.Builder) {
	sb.WriteString("Relevant provisions of the Nigeria Data Protection Act 2023:\n")
	for _, s := range ndpaSections {
		fmt.Fprintf(sb, "- %s: %s\n", s.Section, s.Title)
	}
}

func actionPrompt(req compliance.ActionRequest) string {
	reason := req.Reason
	if strings.TrimSpace(reason) == "" {
		reason = "Not provided"
	}

	var sb strings.Builder
	sb.WriteString("You are a Nigerian data protection lawyer reviewing a citizen's data rights request.\n\n")
	sb.WriteString("Request:\n")
	fmt.Fprintf(&sb, "- Action type: %s\n", req.ActionType)
	fmt.Fprintf(&sb, "- Company: %s\n", req.CompanyName)
	fmt.Fprintf(&sb, "- Data types: %s\n", strings.Join(req.DataTypes, ", "))
	fmt.Fprintf(&sb, "- Reason: %s\n\n", reason)
	writeSections(&sb)
	sb.WriteString("\nDecide whether the request is a legitimate exercise of the data subject's rights. ")
	sb.WriteString("Raise the risk level when sensitive personal data is involved or the reason suggests abuse.\n\n")
	sb.WriteString(verdictFormat)
	return sb.String()
}

func policyPrompt(req PolicyRequest) string {
	var sb strings.Builder
	sb.WriteString("You are a Nigerian data protection lawyer auditing a privacy policy for NDPA 2023 compliance.\n\n")
	fmt.Fprintf(&sb, "Company: %s\nIndustry: %s\n\n", req.CompanyName, req.Industry)
	writeSections(&sb)
	sb.WriteString("\nCheck at least: lawful basis, retention period, data subject rights, breach notification, ")
	sb.WriteString("and data protection officer contact details. Report each missing or deficient disclosure as a finding.\n\n")
	sb.WriteString(verdictFormat)
	sb.WriteString("\n\nPolicy text:\n<<<\n")
	sb.WriteString(req.DocumentText)
	sb.WriteString("\n>>>\n")
	return sb.String()
}

func practicePrompt(req PracticeRequest) string {
	industry := req.Industry
	if strings.TrimSpace(industry) == "" {
		industry = "Not specified"
	}
	size := req.CompanySize
	if strings.TrimSpace(size) == "" {
		size = "Not specified"
	}

	var sb strings.Builder
	sb.WriteString("You are a Nigerian data protection lawyer giving a quick compliance check of a described data practice.\n\n")
	fmt.Fprintf(&sb, "Industry: %s\nCompany size: %s\n\n", industry, size)
	writeSections(&sb)
	sb.WriteString("\nJudge whether the practice as described complies with NDPA 2023. ")
	sb.WriteString("Report each compliance issue as a finding and give a practical fix for each as a suggestion.\n\n")
	sb.WriteString(verdictFormat)
	sb.WriteString("\n\nPractice:\n<<<\n")
	sb.WriteString(req.Description)
	sb.WriteString("\n>>>\n")
	return sb.String()
}
