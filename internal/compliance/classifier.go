package compliance

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"

	dErrors "trustbridge/pkg/domain-errors"
	pstrings "trustbridge/pkg/platform/strings"
)

// actionEnv is the variable set visible to rule expressions.
type actionEnv struct {
	Action         string   `expr:"action"`
	DataTypes      []string `expr:"data_types"`
	SensitiveTypes []string `expr:"sensitive_types"`
	Sensitive      bool     `expr:"sensitive"`
	Reason         string   `expr:"reason"`
	ReasonEmpty    bool     `expr:"reason_empty"`
	Company        string   `expr:"company"`
}

type compiledRule struct {
	RuleConfig
	program *vm.Program
}

type compiledTopic struct {
	TopicConfig
	patterns []*regexp.Regexp
}

// Classifier produces deterministic NDPA 2023 verdicts from a fixed rule table.
// It holds only read-only state and is safe for concurrent use.
type Classifier struct {
	rules       []compiledRule
	topics      []compiledTopic
	sensitive   []string
	escalate    map[ActionType]struct{}
	maxText     int
	fingerprint string
}

// New compiles cfg. Any problem with the table is reported as ErrInvalidConfig.
func New(cfg Config) (*Classifier, error) {
	if cfg.MaxPolicyTextBytes <= 0 {
		return nil, configErr("max_policy_text_bytes must be positive, got %d", cfg.MaxPolicyTextBytes)
	}
	if len(cfg.Rules) == 0 {
		return nil, configErr("at least one action rule is required")
	}
	if len(cfg.PolicyTopics) == 0 {
		return nil, configErr("at least one policy topic is required")
	}

	c := &Classifier{
		sensitive: pstrings.CanonicalTokens(cfg.SensitiveCategories),
		escalate:  make(map[ActionType]struct{}, len(cfg.EscalateActions)),
		maxText:   cfg.MaxPolicyTextBytes,
	}

	for _, a := range cfg.EscalateActions {
		t, err := ParseActionType(string(a))
		if err != nil {
			return nil, configErr("escalate_actions: unknown action type %q", a)
		}
		c.escalate[t] = struct{}{}
	}

	seen := make(map[string]struct{}, len(cfg.Rules))
	for i, rule := range cfg.Rules {
		compiled, err := compileRule(rule)
		if err != nil {
			return nil, configErr("rule %d (%s): %v", i, rule.Name, err)
		}
		if _, dup := seen[compiled.Name]; dup {
			return nil, configErr("duplicate rule name %q", compiled.Name)
		}
		seen[compiled.Name] = struct{}{}
		c.rules = append(c.rules, compiled)
	}

	clear(seen)
	for i, topic := range cfg.PolicyTopics {
		compiled, err := compileTopic(topic)
		if err != nil {
			return nil, configErr("policy topic %d (%s): %v", i, topic.Name, err)
		}
		if _, dup := seen[compiled.Name]; dup {
			return nil, configErr("duplicate policy topic %q", compiled.Name)
		}
		seen[compiled.Name] = struct{}{}
		c.topics = append(c.topics, compiled)
	}

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, configErr("fingerprint: %v", err)
	}
	sum := sha256.Sum256(raw)
	c.fingerprint = hex.EncodeToString(sum[:8])

	return c, nil
}

// NewDefault builds a classifier from the embedded rule table.
func NewDefault() (*Classifier, error) {
	return New(DefaultConfig())
}

func compileRule(rule RuleConfig) (compiledRule, error) {
	rule.Name = strings.TrimSpace(rule.Name)
	if rule.Name == "" {
		return compiledRule{}, fmt.Errorf("name is required")
	}
	severity, err := ParseRiskLevel(string(rule.Severity))
	if err != nil {
		return compiledRule{}, err
	}
	rule.Severity = severity
	if strings.TrimSpace(rule.Finding) == "" {
		return compiledRule{}, fmt.Errorf("finding is required")
	}
	if strings.TrimSpace(rule.When) == "" {
		return compiledRule{}, fmt.Errorf("when is required")
	}
	program, err := expr.Compile(rule.When, expr.Env(actionEnv{}), expr.AsBool())
	if err != nil {
		return compiledRule{}, fmt.Errorf("compile when: %w", err)
	}
	return compiledRule{RuleConfig: rule, program: program}, nil
}

func compileTopic(topic TopicConfig) (compiledTopic, error) {
	topic.Name = strings.TrimSpace(topic.Name)
	if topic.Name == "" {
		return compiledTopic{}, fmt.Errorf("name is required")
	}
	severity, err := ParseRiskLevel(string(topic.Severity))
	if err != nil {
		return compiledTopic{}, err
	}
	if severity == RiskLow {
		return compiledTopic{}, fmt.Errorf("severity must be MEDIUM or HIGH")
	}
	topic.Severity = severity
	if strings.TrimSpace(topic.Finding) == "" {
		return compiledTopic{}, fmt.Errorf("finding is required")
	}

	keywords := pstrings.DedupeAndTrimLower(topic.Keywords)
	if len(keywords) == 0 {
		return compiledTopic{}, fmt.Errorf("keywords are required")
	}
	topic.Keywords = keywords
	patterns := make([]*regexp.Regexp, 0, len(keywords))
	for _, kw := range keywords {
		re, err := keywordPattern(kw)
		if err != nil {
			return compiledTopic{}, fmt.Errorf("keyword %q: %w", kw, err)
		}
		patterns = append(patterns, re)
	}
	return compiledTopic{TopicConfig: topic, patterns: patterns}, nil
}

// keywordPattern matches kw as whole words with any run of whitespace between them.
func keywordPattern(kw string) (*regexp.Regexp, error) {
	words := strings.Fields(kw)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return regexp.Compile(`(?i)\b` + strings.Join(words, `\s+`) + `\b`)
}

// Fingerprint identifies the rule table the classifier was built from.
func (c *Classifier) Fingerprint() string { return c.fingerprint }

// MaxPolicyTextBytes is the largest policy text ClassifyPolicyText accepts.
func (c *Classifier) MaxPolicyTextBytes() int { return c.maxText }

// RuleNames lists action rules in evaluation order.
func (c *Classifier) RuleNames() []string {
	names := make([]string, len(c.rules))
	for i, r := range c.rules {
		names[i] = r.Name
	}
	return names
}

// ClassifyAction evaluates every rule against req. The first rule of the highest
// matched severity sets the risk level; all matches contribute findings.
func (c *Classifier) ClassifyAction(req ActionRequest) Verdict {
	env := c.normalize(req)

	primary := -1
	valid := true
	var findings, suggestions, refs []string
	for i, rule := range c.rules {
		if !c.matches(rule, env) {
			continue
		}
		if primary == -1 || rule.Severity.rank() > c.rules[primary].Severity.rank() {
			primary = i
		}
		if rule.Invalidates {
			valid = false
		}
		findings = append(findings, rule.Finding)
		suggestions = append(suggestions, rule.Suggestion)
		refs = append(refs, rule.Reference)
	}

	if primary == -1 {
		return Verdict{
			Valid:       true,
			RiskLevel:   RiskLow,
			Findings:    []string{NoIssuesFinding},
			Suggestions: []string{},
			Source:      SourceRules,
		}
	}

	level := c.rules[primary].Severity
	if c.shouldEscalate(env) {
		level = Escalate(level)
	}

	return Verdict{
		Valid:           valid,
		RiskLevel:       level,
		Findings:        findings,
		Suggestions:     nonNil(pstrings.DedupeAndTrim(suggestions)),
		Source:          SourceRules,
		PrimaryRule:     c.rules[primary].Name,
		LegalReferences: pstrings.DedupeAndTrim(refs),
	}
}

func (c *Classifier) matches(rule compiledRule, env actionEnv) bool {
	out, err := expr.Run(rule.program, env)
	if err != nil {
		// Programs are type-checked against actionEnv at construction.
		return false
	}
	matched, _ := out.(bool)
	return matched
}

func (c *Classifier) shouldEscalate(env actionEnv) bool {
	if !env.Sensitive {
		return false
	}
	_, ok := c.escalate[ActionType(env.Action)]
	return ok
}

func (c *Classifier) normalize(req ActionRequest) actionEnv {
	dataTypes := nonNil(pstrings.CanonicalTokens(req.DataTypes))
	var sensitive []string
	for _, dt := range dataTypes {
		if c.isSensitive(dt) {
			sensitive = append(sensitive, dt)
		}
	}
	reason := strings.ToLower(strings.Join(strings.Fields(req.Reason), " "))
	return actionEnv{
		Action:         string(canonicalAction(req.ActionType)),
		DataTypes:      dataTypes,
		SensitiveTypes: nonNil(sensitive),
		Sensitive:      len(sensitive) > 0,
		Reason:         reason,
		ReasonEmpty:    reason == "",
		Company:        strings.ToLower(strings.TrimSpace(req.CompanyName)),
	}
}

// isSensitive matches a canonical data type against the sensitive categories:
// an exact match, or any underscore-separated token starting with a category.
func (c *Classifier) isSensitive(dataType string) bool {
	if slices.Contains(c.sensitive, dataType) {
		return true
	}
	for token := range strings.SplitSeq(dataType, "_") {
		for _, cat := range c.sensitive {
			if strings.HasPrefix(token, cat) {
				return true
			}
		}
	}
	return false
}

// ClassifyPolicyText reports every required disclosure missing from text.
// Text over the configured bound is rejected before any matching.
func (c *Classifier) ClassifyPolicyText(text string) (Verdict, error) {
	if len(text) > c.maxText {
		return Verdict{}, dErrors.New(dErrors.CodePayloadTooLarge,
			fmt.Sprintf("policy text is %d bytes; the limit is %d", len(text), c.maxText))
	}

	level := RiskLow
	findings := []string{}
	suggestions := []string{}
	var refs []string
	for _, topic := range c.topics {
		if topic.presentIn(text) {
			continue
		}
		if !level.AtLeast(topic.Severity) {
			level = topic.Severity
		}
		findings = append(findings, topic.Finding)
		suggestions = append(suggestions, topic.Suggestion)
		refs = append(refs, topic.Reference)
	}

	return Verdict{
		Valid:           len(findings) == 0,
		RiskLevel:       level,
		Findings:        findings,
		Suggestions:     nonNil(pstrings.DedupeAndTrim(suggestions)),
		Source:          SourceRules,
		LegalReferences: pstrings.DedupeAndTrim(refs),
	}, nil
}

func (t compiledTopic) presentIn(text string) bool {
	for _, re := range t.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Provider hands out the classifier currently in effect.
type Provider interface {
	Current() *Classifier
}

// Current makes a fixed classifier its own Provider.
func (c *Classifier) Current() *Classifier { return c }
