package repository

import (
	"fmt"
	"sync"
	"time"
)

const (
	TicketIDPrefix   = "SR"
	IncidentIDPrefix = "INC"
)

// IDGenerator issues monotonic identifiers scoped to one store.
// Ticket IDs restart their sequence every calendar day.
type IDGenerator struct {
	mu          sync.Mutex
	day         string
	ticketSeq   int
	incidentSeq int
}

// NextTicketID returns SR-<YYYYMMDD>-<NNN> for the given instant.
func (g *IDGenerator) NextTicketID(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	day := now.Format("20060102")
	if day != g.day {
		g.day = day
		g.ticketSeq = 0
	}
	g.ticketSeq++
	return fmt.Sprintf("%s-%s-%03d", TicketIDPrefix, day, g.ticketSeq)
}

// NextIncidentID returns INC followed by an 8-digit sequence.
func (g *IDGenerator) NextIncidentID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.incidentSeq++
	return fmt.Sprintf("%s%08d", IncidentIDPrefix, g.incidentSeq)
}
