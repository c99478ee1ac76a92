package compliance

import "sort"

// Evaluator decides which rule applies to an entity and whether the entity is compliant.
type Evaluator struct {
	rules     RuleDefinitions
	standards ComplianceStandards
	mode      Mode
}

// NewEvaluator returns an evaluator over the given mappings. Nil mappings are treated as empty.
func NewEvaluator(rules RuleDefinitions, standards ComplianceStandards, mode Mode) *Evaluator {
	if rules == nil {
		rules = RuleDefinitions{}
	}
	if standards == nil {
		standards = ComplianceStandards{}
	}
	if mode == "" {
		mode = ModeLiteral
	}
	return &Evaluator{rules: rules, standards: standards, mode: mode}
}

// LookupRule returns the rule for entity, if any.
func (e *Evaluator) LookupRule(entity string) (string, bool) {
	rule, ok := e.rules[entity]
	return rule, ok
}

// CheckCompliance reports whether rule is one of the rules permitted for entity.
func (e *Evaluator) CheckCompliance(entity, rule string) bool {
	for _, permitted := range e.standards[entity] {
		if permitted == rule {
			return true
		}
	}
	return false
}

// Evaluate returns the finding for entity, or false when it has no rule.
func (e *Evaluator) Evaluate(entity string) (Finding, bool) {
	rule, ok := e.LookupRule(entity)
	if !ok {
		return Finding{}, false
	}
	compliant := true
	if e.mode == ModeStandards {
		compliant = e.CheckCompliance(entity, rule)
	}
	return Finding{Entity: entity, Rule: rule, Compliance: compliant}, true
}

// Names returns the entity names that have a rule, sorted.
func (e *Evaluator) Names() []string {
	out := make([]string, 0, len(e.rules))
	for name := range e.rules {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
