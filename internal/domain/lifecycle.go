package domain

var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen: {
		TicketStatusInProgress, TicketStatusPending, TicketStatusWaitingForUser,
		TicketStatusResolved, TicketStatusCompleted, TicketStatusClosed,
	},
	TicketStatusInProgress:     {TicketStatusPending, TicketStatusWaitingForUser, TicketStatusResolved, TicketStatusClosed},
	TicketStatusPending:        {TicketStatusInProgress, TicketStatusWaitingForUser, TicketStatusResolved, TicketStatusClosed},
	TicketStatusWaitingForUser: {TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed},
	TicketStatusResolved:       {TicketStatusInProgress, TicketStatusClosed},
	TicketStatusCompleted:      {TicketStatusClosed},
	TicketStatusClosed:         {},
}

var incidentTransitions = map[IncidentStatus][]IncidentStatus{
	IncidentStatusPendingApproval: {IncidentStatusApproved, IncidentStatusInProgress, IncidentStatusEscalated, IncidentStatusClosed},
	IncidentStatusApproved:        {IncidentStatusInProgress, IncidentStatusEscalated, IncidentStatusResolved, IncidentStatusClosed},
	IncidentStatusInProgress:      {IncidentStatusEscalated, IncidentStatusResolved, IncidentStatusClosed},
	IncidentStatusEscalated:       {IncidentStatusApproved, IncidentStatusInProgress, IncidentStatusResolved, IncidentStatusClosed},
	IncidentStatusResolved:        {IncidentStatusInProgress, IncidentStatusClosed},
	IncidentStatusClosed:          {},
}

// Valid reports whether s is a known ticket status.
func (s TicketStatus) Valid() bool {
	_, ok := ticketTransitions[s]
	return ok
}

// Terminal reports whether no further mutation is allowed.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusClosed
}

// CanTransition reports whether a ticket may move from s to next.
// Keeping the current status is allowed unless the ticket is closed.
func (s TicketStatus) CanTransition(next TicketStatus) bool {
	if s.Terminal() {
		return false
	}
	if s == next {
		return true
	}
	for _, candidate := range ticketTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known incident status.
func (s IncidentStatus) Valid() bool {
	_, ok := incidentTransitions[s]
	return ok
}

func (s IncidentStatus) Terminal() bool {
	return s == IncidentStatusClosed
}

// CanTransition reports whether an incident may move from s to next.
func (s IncidentStatus) CanTransition(next IncidentStatus) bool {
	if s.Terminal() {
		return false
	}
	if s == next {
		return true
	}
	for _, candidate := range incidentTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// NormalizeTicketStatus maps legacy mock values onto the closed enum.
func NormalizeTicketStatus(raw string) (TicketStatus, bool) {
	switch raw {
	case "in_progress", "In Progress":
		return TicketStatusInProgress, true
	case "waiting", "Waiting for User":
		return TicketStatusWaitingForUser, true
	case "done":
		return TicketStatusCompleted, true
	}
	s := TicketStatus(raw)
	return s, s.Valid()
}
