package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/servicedesk/internal/domain"
)

func TestTicketTransitions(t *testing.T) {
	cases := []struct {
		from, to domain.TicketStatus
		want     bool
	}{
		{domain.TicketStatusOpen, domain.TicketStatusResolved, true},
		{domain.TicketStatusOpen, domain.TicketStatusOpen, true},
		{domain.TicketStatusResolved, domain.TicketStatusClosed, true},
		{domain.TicketStatusCompleted, domain.TicketStatusOpen, false},
		{domain.TicketStatusClosed, domain.TicketStatusOpen, false},
		{domain.TicketStatusClosed, domain.TicketStatusClosed, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestIncidentTransitions(t *testing.T) {
	assert.True(t, domain.IncidentStatusPendingApproval.CanTransition(domain.IncidentStatusApproved))
	assert.True(t, domain.IncidentStatusApproved.CanTransition(domain.IncidentStatusClosed))
	assert.False(t, domain.IncidentStatusResolved.CanTransition(domain.IncidentStatusPendingApproval))
	assert.False(t, domain.IncidentStatusClosed.CanTransition(domain.IncidentStatusInProgress))
	assert.False(t, domain.IncidentStatus("created").Valid())
}

func TestNormalizeTicketStatus(t *testing.T) {
	s, ok := domain.NormalizeTicketStatus("in_progress")
	assert.True(t, ok)
	assert.Equal(t, domain.TicketStatusInProgress, s)

	_, ok = domain.NormalizeTicketStatus("archived")
	assert.False(t, ok)
}

func TestLookupAccount(t *testing.T) {
	acc, ok := domain.LookupAccount(domain.SupportIdentity)
	assert.True(t, ok)
	assert.Equal(t, domain.RoleSupport, acc.Role)

	_, ok = domain.LookupAccount("SUPPORT.ENGINEER@contoso.com")
	assert.False(t, ok)
	assert.Len(t, domain.AccountsWithRole(domain.RoleBusiness), 1)
}
