package repository

import (
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// SeedHistory loads the closed legacy tickets shown in the business
// user's history. Legacy IDs use the SR<n> format.
func SeedHistory(s *Store, requester string) error {
	base := s.clock.Now().Add(-30 * 24 * time.Hour)
	history := []domain.Ticket{
		{
			ID:          "SR1001",
			Title:       "VPN access for remote work",
			Description: "Unable to connect to the corporate VPN from home.",
			Status:      domain.TicketStatusClosed,
			Priority:    domain.PriorityMedium,
			Assignee:    "Network Team",
			Category:    "Technical",
			RequestedBy: requester,
			CreatedAt:   base,
			UpdatedAt:   base.Add(26 * time.Hour),
			Comments: []domain.Comment{
				{Author: "Network Team", Content: "VPN profile reissued. Please reconnect.", Timestamp: base.Add(25 * time.Hour)},
			},
		},
		{
			ID:          "SR1002",
			Title:       "Quarterly expense report",
			Description: "Need the Q3 expense summary for the marketing cost center.",
			Status:      domain.TicketStatusClosed,
			Priority:    domain.PriorityLow,
			Assignee:    "Finance Team",
			Category:    "Reports",
			RequestedBy: requester,
			CreatedAt:   base.Add(5 * 24 * time.Hour),
			UpdatedAt:   base.Add(6 * 24 * time.Hour),
		},
		{
			ID:          "SR1003",
			Title:       "Payroll deduction correction",
			Description: "Benefits deduction applied twice in last cycle.",
			Status:      domain.TicketStatusClosed,
			Priority:    domain.PriorityHigh,
			Assignee:    "Payroll Team",
			Category:    "Payroll",
			RequestedBy: requester,
			CreatedAt:   base.Add(12 * 24 * time.Hour),
			UpdatedAt:   base.Add(14 * 24 * time.Hour),
			Comments: []domain.Comment{
				{Author: "Payroll Team", Content: "Refund issued with the next pay cycle.", Timestamp: base.Add(14 * 24 * time.Hour)},
			},
		},
	}
	// Oldest first so the newest legacy ticket ends up at the head.
	for _, t := range history {
		if err := s.AddTicket(t); err != nil {
			return err
		}
	}
	return nil
}
