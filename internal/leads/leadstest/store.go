// Package leadstest provides an in-memory lead store for service tests.
package leadstest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"sales_pipeline_backend/internal/leads/domain"
	"sales_pipeline_backend/internal/leads/ports"
	"sales_pipeline_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// Store mirrors the conditional semantics of the SQL repository.
type Store struct {
	mu       sync.Mutex
	leads    map[uuid.UUID]domain.Lead
	lines    map[uuid.UUID][]domain.ProductLine
	partners map[uuid.UUID]domain.Partner
	timeline []repository.TimelineEvent
	clock    time.Time

	// Hooks let tests inject failures. They run without the store lock.
	BeforeMarkWon    func(leadID uuid.UUID) error
	BeforeGetByID    func(leadID uuid.UUID) error
	BeforeMutateLine func(leadID uuid.UUID) error
	BeforeListLines  func(leadID uuid.UUID) error

	// BeforeTimelineWrite runs before every timeline insert.
	BeforeTimelineWrite func(params repository.CreateTimelineEventParams) error
}

var _ repository.LeadsRepository = (*Store)(nil)

func New() *Store {
	return &Store{
		leads:    make(map[uuid.UUID]domain.Lead),
		lines:    make(map[uuid.UUID][]domain.ProductLine),
		partners: make(map[uuid.UUID]domain.Partner),
		clock:    time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *Store) now() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// SeedLead stores an OPEN lead for tenantID and returns it.
func (s *Store) SeedLead(tenantID uuid.UUID, name string) domain.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	at := s.now()
	lead := domain.Lead{
		ID:             uuid.New(),
		OrganizationID: tenantID,
		Name:           name,
		Status:         domain.StatusOpen,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	s.leads[lead.ID] = lead
	return lead
}

// SeedPartner stores a partner and links it to the lead when it exists.
func (s *Store) SeedPartner(leadID uuid.UUID, partner domain.Partner) domain.Partner {
	s.mu.Lock()
	defer s.mu.Unlock()
	if partner.ID == uuid.Nil {
		partner.ID = uuid.New()
	}
	s.partners[partner.ID] = partner
	if lead, ok := s.leads[leadID]; ok {
		id := partner.ID
		lead.PartnerID = &id
		s.leads[leadID] = lead
	}
	return partner
}

// Lead returns the stored lead as-is.
func (s *Store) Lead(id uuid.UUID) domain.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leads[id]
}

// SetStatus forces a status, simulating a write from another process.
func (s *Store) SetStatus(id uuid.UUID, status domain.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead := s.leads[id]
	lead.Status = status
	s.leads[id] = lead
}

func (s *Store) get(tenantID, id uuid.UUID) (domain.Lead, bool) {
	lead, ok := s.leads[id]
	if !ok || lead.OrganizationID != tenantID {
		return domain.Lead{}, false
	}
	return lead, true
}

func (s *Store) Create(_ context.Context, p repository.CreateLeadParams) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at := s.now()
	lead := domain.Lead{
		ID:             uuid.New(),
		OrganizationID: p.OrganizationID,
		Name:           p.Name,
		Description:    p.Description,
		FunnelID:       p.FunnelID,
		StageID:        p.StageID,
		Status:         domain.StatusOpen,
		PartnerID:      p.PartnerID,
		DueDate:        p.DueDate,
		Tag:            p.Tag,
		TagColor:       p.TagColor,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	s.leads[lead.ID] = lead
	return lead, nil
}

func (s *Store) GetByID(_ context.Context, tenantID, id uuid.UUID) (domain.Lead, error) {
	if s.BeforeGetByID != nil {
		if err := s.BeforeGetByID(id); err != nil {
			return domain.Lead{}, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.get(tenantID, id)
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (s *Store) List(_ context.Context, p repository.ListParams) ([]domain.Lead, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Lead, 0)
	for _, lead := range s.leads {
		if lead.OrganizationID != p.OrganizationID {
			continue
		}
		if p.Status != nil && lead.Status != *p.Status {
			continue
		}
		if p.FunnelID != nil && (lead.FunnelID == nil || *lead.FunnelID != *p.FunnelID) {
			continue
		}
		if p.StageID != nil && (lead.StageID == nil || *lead.StageID != *p.StageID) {
			continue
		}
		if p.Search != "" && !strings.Contains(strings.ToLower(lead.Name), strings.ToLower(p.Search)) {
			continue
		}
		out = append(out, lead)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	total := len(out)
	if p.Offset >= len(out) {
		return []domain.Lead{}, total, nil
	}
	out = out[p.Offset:]
	if p.Limit > 0 && p.Limit < len(out) {
		out = out[:p.Limit]
	}
	return out, total, nil
}

func (s *Store) GetPipelineSummary(_ context.Context, tenantID uuid.UUID, funnelID *uuid.UUID) (repository.PipelineSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out repository.PipelineSummary
	for _, lead := range s.leads {
		if lead.OrganizationID != tenantID {
			continue
		}
		if funnelID != nil && (lead.FunnelID == nil || *lead.FunnelID != *funnelID) {
			continue
		}
		switch lead.Status {
		case domain.StatusOpen:
			out.OpenLeads++
			out.OpenValueCents += lead.ValueCents
		case domain.StatusWon:
			out.WonLeads++
			out.WonValueCents += lead.ValueCents
		case domain.StatusLost:
			out.LostLeads++
		}
	}
	return out, nil
}

func (s *Store) UpdateDetails(_ context.Context, tenantID, id uuid.UUID, p repository.UpdateDetailsParams) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.get(tenantID, id)
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	if lead.Status != domain.StatusOpen {
		return domain.Lead{}, repository.ErrStatusConflict
	}
	if p.Name != nil {
		lead.Name = *p.Name
	}
	if p.Description != nil {
		lead.Description = *p.Description
	}
	if p.DueDateSet {
		lead.DueDate = p.DueDate
	}
	if p.TagSet {
		lead.Tag = p.Tag
	}
	if p.TagColor != nil {
		lead.TagColor = *p.TagColor
	}
	if p.PartnerIDSet {
		lead.PartnerID = p.PartnerID
	}
	if p.FunnelIDSet {
		lead.FunnelID = p.FunnelID
	}
	lead.UpdatedAt = s.now()
	s.leads[id] = lead
	return lead, nil
}

func (s *Store) MoveStage(_ context.Context, tenantID, id, stageID uuid.UUID) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.get(tenantID, id)
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	if lead.Status != domain.StatusOpen {
		return domain.Lead{}, repository.ErrStatusConflict
	}
	lead.StageID = &stageID
	lead.UpdatedAt = s.now()
	s.leads[id] = lead
	return lead, nil
}

func (s *Store) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.get(tenantID, id)
	if !ok {
		return repository.ErrNotFound
	}
	if lead.Status == domain.StatusWon {
		return repository.ErrStatusConflict
	}
	delete(s.leads, id)
	delete(s.lines, id)
	return nil
}

func (s *Store) ListLines(_ context.Context, tenantID, leadID uuid.UUID) ([]domain.ProductLine, error) {
	if s.BeforeListLines != nil {
		if err := s.BeforeListLines(leadID); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.get(tenantID, leadID); !ok {
		return nil, repository.ErrNotFound
	}
	out := make([]domain.ProductLine, len(s.lines[leadID]))
	copy(out, s.lines[leadID])
	return out, nil
}

func (s *Store) MutateLine(_ context.Context, tenantID, leadID uuid.UUID, m repository.LineMutation) (repository.LedgerResult, error) {
	if s.BeforeMutateLine != nil {
		if err := s.BeforeMutateLine(leadID); err != nil {
			return repository.LedgerResult{}, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.get(tenantID, leadID)
	if !ok {
		return repository.LedgerResult{}, repository.ErrNotFound
	}
	if lead.Status.IsTerminal() {
		return repository.LedgerResult{}, repository.ErrStatusConflict
	}

	lines := append([]domain.ProductLine(nil), s.lines[leadID]...)
	var changed *domain.ProductLine
	at := s.now()
	switch m.Kind {
	case repository.LineInsert:
		line := domain.ProductLine{
			ID:             uuid.New(),
			LeadID:         leadID,
			ProductID:      m.ProductID,
			Description:    m.Description,
			Quantity:       m.Quantity,
			UnitPriceCents: m.UnitPriceCents,
			TotalCents:     domain.LineTotalCents(m.Quantity, m.UnitPriceCents),
			CreatedAt:      at,
			UpdatedAt:      at,
		}
		lines = append(lines, line)
		changed = &line
	case repository.LineUpdate:
		idx := indexOf(lines, m.LineID)
		if idx < 0 {
			return repository.LedgerResult{}, repository.ErrLineNotFound
		}
		lines[idx].Quantity = m.Quantity
		lines[idx].UnitPriceCents = m.UnitPriceCents
		lines[idx].TotalCents = domain.LineTotalCents(m.Quantity, m.UnitPriceCents)
		lines[idx].UpdatedAt = at
		line := lines[idx]
		changed = &line
	case repository.LineDelete:
		idx := indexOf(lines, m.LineID)
		if idx < 0 {
			return repository.LedgerResult{}, repository.ErrLineNotFound
		}
		lines = append(lines[:idx:idx], lines[idx+1:]...)
	}
	value, err := domain.CheckedSumLines(lines)
	if err != nil {
		// Nothing is stored, like a rolled back transaction.
		return repository.LedgerResult{}, err
	}
	s.lines[leadID] = lines

	lead.ValueCents = value
	lead.UpdatedAt = at
	s.leads[leadID] = lead

	out := make([]domain.ProductLine, len(lines))
	copy(out, lines)
	return repository.LedgerResult{Line: changed, Lines: out, ValueCents: lead.ValueCents}, nil
}

func indexOf(lines []domain.ProductLine, id uuid.UUID) int {
	for i, line := range lines {
		if line.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) MarkWon(_ context.Context, tenantID, id uuid.UUID, won repository.WonRecord) error {
	if s.BeforeMarkWon != nil {
		if err := s.BeforeMarkWon(id); err != nil {
			return err
		}
	}
	return s.transition(tenantID, id, domain.StatusOpen, func(l domain.Lead) (domain.Lead, error) {
		partnerID := won.PartnerID
		l.PartnerID = &partnerID
		return l.ApplyWon(won.OrderID, won.At)
	})
}

func (s *Store) MarkLost(_ context.Context, tenantID, id uuid.UUID, reason string, at time.Time) error {
	return s.transition(tenantID, id, domain.StatusOpen, func(l domain.Lead) (domain.Lead, error) {
		return l.ApplyLost(reason, at)
	})
}

func (s *Store) Reactivate(_ context.Context, tenantID, id uuid.UUID, at time.Time) error {
	return s.transition(tenantID, id, domain.StatusLost, func(l domain.Lead) (domain.Lead, error) {
		return l.ApplyReactivated(at)
	})
}

func (s *Store) transition(tenantID, id uuid.UUID, from domain.Status, apply func(domain.Lead) (domain.Lead, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.get(tenantID, id)
	if !ok {
		return repository.ErrNotFound
	}
	if lead.Status != from {
		return repository.ErrStatusConflict
	}
	next, err := apply(lead)
	if err != nil {
		return err
	}
	s.leads[id] = next
	return nil
}

func (s *Store) GetPartner(_ context.Context, _ uuid.UUID, partnerID uuid.UUID) (domain.Partner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.partners[partnerID]
	if !ok {
		return domain.Partner{}, ports.ErrPartnerNotFound
	}
	return p, nil
}

// Notifier records refresh notifications.
type Notifier struct {
	mu    sync.Mutex
	calls []uuid.UUID
}

func (n *Notifier) NotifyLeadChanged(_ context.Context, _ uuid.UUID, leadID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, leadID)
}

// Count returns how many notifications were sent for leadID.
func (n *Notifier) Count(leadID uuid.UUID) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, id := range n.calls {
		if id == leadID {
			count++
		}
	}
	return count
}

func (s *Store) CreateTimelineEvent(_ context.Context, p repository.CreateTimelineEventParams) (bool, error) {
	if s.BeforeTimelineWrite != nil {
		if err := s.BeforeTimelineWrite(p); err != nil {
			return false, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.timeline {
		if e.EventID == p.EventID {
			return false, nil
		}
	}
	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	s.timeline = append(s.timeline, repository.TimelineEvent{
		ID:             uuid.New(),
		EventID:        p.EventID,
		LeadID:         p.LeadID,
		OrganizationID: p.OrganizationID,
		ActorType:      p.ActorType,
		ActorID:        p.ActorID,
		EventType:      p.EventType,
		Title:          p.Title,
		Summary:        p.Summary,
		Metadata:       metadata,
		OccurredAt:     p.OccurredAt,
		CreatedAt:      s.now(),
	})
	return true, nil
}

func (s *Store) ListTimelineEvents(_ context.Context, tenantID, leadID uuid.UUID) ([]repository.TimelineEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.get(tenantID, leadID); !ok {
		return nil, repository.ErrNotFound
	}
	out := make([]repository.TimelineEvent, 0)
	for _, e := range s.timeline {
		if e.LeadID == leadID && e.OrganizationID == tenantID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.After(out[j].OccurredAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Timeline returns every recorded entry for the lead in insertion order.
func (s *Store) Timeline(leadID uuid.UUID) []repository.TimelineEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repository.TimelineEvent, 0)
	for _, e := range s.timeline {
		if e.LeadID == leadID {
			out = append(out, e)
		}
	}
	return out
}
