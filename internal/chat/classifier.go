package chat

import "strings"

// Intent is the scripted branch a message is routed to.
type Intent string

const (
	IntentPayroll Intent = "payroll"
	IntentInstall Intent = "install"
	IntentExpense Intent = "expense"
	IntentStatus  Intent = "status"
	IntentAccess  Intent = "access"
	IntentClarify Intent = "clarify"
)

// Classification is the result of matching one message.
type Classification struct {
	Intent    Intent
	Sensitive bool
}

var builtinKeywords = DefaultScript().Keywords

// Classify matches text against the built-in keyword lists.
func Classify(text string) Classification {
	return builtinKeywords.Classify(text)
}

// Classify checks each keyword list in order; the first list with a
// case-insensitive substring match decides the intent. Sensitivity is
// evaluated independently of the intent.
func (k Keywords) Classify(text string) Classification {
	lower := strings.ToLower(text)
	out := Classification{
		Intent:    IntentClarify,
		Sensitive: containsAny(lower, k.Sensitive),
	}
	switch {
	case containsAny(lower, k.Payroll):
		out.Intent = IntentPayroll
	case containsAny(lower, k.Install):
		out.Intent = IntentInstall
	case containsAny(lower, k.Expense):
		out.Intent = IntentExpense
	case containsAny(lower, k.Status):
		out.Intent = IntentStatus
	case containsAny(lower, k.Access):
		out.Intent = IntentAccess
	}
	return out
}

func containsAny(lower string, terms []string) bool {
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" && strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
