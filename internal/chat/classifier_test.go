package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		text      string
		intent    Intent
		sensitive bool
	}{
		{"I need my payroll information", IntentPayroll, true},
		{"Where is my PAYSLIP?", IntentPayroll, false},
		{"install slack", IntentInstall, false},
		{"Install the banking application with my bank account", IntentInstall, true},
		{"send me the expense summary", IntentExpense, false},
		{"what's the status of my incident", IntentStatus, false},
		{"I need database access", IntentAccess, false},
		{"reset my password for the database", IntentAccess, true},
		{"my SSN is wrong", IntentClarify, true},
		{"hello there", IntentClarify, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := Classify(tt.text)
			assert.Equal(t, tt.intent, got.Intent)
			assert.Equal(t, tt.sensitive, got.Sensitive)
		})
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	// payroll outranks report, report outranks status
	assert.Equal(t, IntentPayroll, Classify("payroll report").Intent)
	assert.Equal(t, IntentExpense, Classify("status report").Intent)
	assert.Equal(t, IntentInstall, Classify("software access").Intent)
}

func TestKeywordsIgnoreBlankTerms(t *testing.T) {
	k := Keywords{Status: []string{"", "  "}}
	assert.Equal(t, IntentClarify, k.Classify("anything").Intent)
}
