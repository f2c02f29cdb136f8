package chat

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Delays are expressed in milliseconds so script files stay readable.
type Delays struct {
	ThinkingMS   int `yaml:"thinking_ms"`
	FollowUpMS   int `yaml:"follow_up_ms"`
	ResolutionMS int `yaml:"resolution_ms"`
}

// Keywords are the ordered substring lists the classifier checks.
type Keywords struct {
	Sensitive []string `yaml:"sensitive"`
	Payroll   []string `yaml:"payroll"`
	Install   []string `yaml:"install"`
	Expense   []string `yaml:"expense"`
	Status    []string `yaml:"status"`
	Access    []string `yaml:"access"`
}

// Templates hold the canned replies. {ticket}, {incident} and {link}
// are substituted before a message is posted.
type Templates struct {
	PayrollTitle       string   `yaml:"payroll_title"`
	InstallTitle       string   `yaml:"install_title"`
	ExpenseTitle       string   `yaml:"expense_title"`
	AccessTitle        string   `yaml:"access_title"`
	TicketCreated      string   `yaml:"ticket_created"`
	SensitiveRouting   string   `yaml:"sensitive_routing"`
	IncidentCreated    string   `yaml:"incident_created"`
	InstallResolution  string   `yaml:"install_resolution"`
	PayrollResolution  string   `yaml:"payroll_resolution"`
	ExpenseCreated     string   `yaml:"expense_created"`
	ExpenseReport      string   `yaml:"expense_report"`
	ReportLink         string   `yaml:"report_link"`
	StatusReply        string   `yaml:"status_reply"`
	AccessCreated      string   `yaml:"access_created"`
	AccessRouting      string   `yaml:"access_routing"`
	Clarifications     []string `yaml:"clarifications"`
	PayrollAssignee    string   `yaml:"payroll_assignee"`
	TechnicalAssignee  string   `yaml:"technical_assignee"`
	FinanceAssignee    string   `yaml:"finance_assignee"`
	DemoIncidentID     string   `yaml:"demo_incident_id"`
	DemoIncidentTitle  string   `yaml:"demo_incident_title"`
	RoutedTimelineNote string   `yaml:"routed_timeline_note"`
}

// Script is the full configuration of the assistant.
type Script struct {
	Keywords  Keywords  `yaml:"keywords"`
	Delays    Delays    `yaml:"delays"`
	Templates Templates `yaml:"templates"`
}

// DefaultScript returns the built-in script.
func DefaultScript() Script {
	return Script{
		Keywords: Keywords{
			Sensitive: []string{"payroll", "salary", "ssn", "social security", "bank account", "credit card", "password", "confidential", "tax id"},
			Payroll:   []string{"payroll", "pay slip", "salary", "paycheck", "payslip"},
			Install:   []string{"install", "application", "software"},
			Expense:   []string{"expense", "report", "summary"},
			Status:    []string{"status", "incident", "check"},
			Access:    []string{"access", "database", "permission"},
		},
		Delays: Delays{
			ThinkingMS:   5000,
			FollowUpMS:   2000,
			ResolutionMS: 3000,
		},
		Templates: Templates{
			PayrollTitle:      "Payroll information request",
			InstallTitle:      "Software installation request",
			ExpenseTitle:      "Expense report summary",
			AccessTitle:       "Access permission request",
			TicketCreated:     "I've created service request {ticket} for you.",
			SensitiveRouting:  "This request involves sensitive information, so I'm routing it to the security team for approval.",
			IncidentCreated:   "Incident {incident} has been raised and is pending approval. You'll be notified once it is approved.",
			InstallResolution: "To install the application, open the Company Portal, search for it by name and select Install. Restart the application once the installation finishes.",
			PayrollResolution: "Your latest pay slip has been sent to your registered email address. Please check your email.",
			ExpenseCreated:    "I've generated your expense report under service request {ticket}.",
			ExpenseReport:     "Expense summary for this quarter: total $12,450.00 across 23 claims ($8,200.00 travel, $3,150.00 meals, $1,100.00 supplies). The full report is available at {link}.",
			ReportLink:        "https://contoso.sharepoint.com/sites/finance/reports/{ticket}.xlsx",
			StatusReply:       "Here is the latest status of incident {incident}.",
			AccessCreated:     "I've raised access request {ticket}.",
			AccessRouting:     "Access changes need manager approval. Your request has been routed to your manager and you'll be notified once it is approved.",
			Clarifications: []string{
				"Could you tell me a bit more about what you need help with?",
				"I'm not sure I understood. Are you asking about payroll, software, expenses, access or an existing incident?",
				"Can you rephrase that? For example: \"install Slack\" or \"check the status of my incident\".",
			},
			PayrollAssignee:    "Payroll Team",
			TechnicalAssignee:  "IT Support",
			FinanceAssignee:    "Finance Team",
			DemoIncidentID:     "INC00012345",
			DemoIncidentTitle:  "Email access issue",
			RoutedTimelineNote: "Routed to security approver",
		},
	}
}

// LoadScript reads a YAML file over the built-in script. Keys absent
// from the file keep their defaults; lists present in it replace the
// default list wholesale. An empty path returns the default.
func LoadScript(path string) (Script, error) {
	script := DefaultScript()
	if strings.TrimSpace(path) == "" {
		return script, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read chat script: %w", err)
	}
	if err := yaml.Unmarshal(raw, &script); err != nil {
		return Script{}, fmt.Errorf("parse chat script %s: %w", path, err)
	}
	if err := script.Validate(); err != nil {
		return Script{}, fmt.Errorf("chat script %s: %w", path, err)
	}
	return script, nil
}

// Validate checks the parts of a script the dispatcher relies on.
func (s Script) Validate() error {
	if s.Delays.ThinkingMS < 0 || s.Delays.FollowUpMS < 0 || s.Delays.ResolutionMS < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if len(s.Templates.Clarifications) == 0 {
		return fmt.Errorf("at least one clarification reply is required")
	}
	if strings.TrimSpace(s.Templates.DemoIncidentID) == "" {
		return fmt.Errorf("demo_incident_id is required")
	}
	return nil
}

func render(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func scaled(ms int, scale float64) time.Duration {
	return time.Duration(float64(ms) * scale * float64(time.Millisecond))
}
