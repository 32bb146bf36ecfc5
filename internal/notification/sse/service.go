// Package sse provides Server-Sent Events support for real-time lead board
// updates.
package sse

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"sales_pipeline_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventType represents different types of SSE events
type EventType string

const (
	EventLeadChanged        EventType = "lead_changed"
	EventLeadWon            EventType = "lead_won"
	EventLeadLost           EventType = "lead_lost"
	EventLeadReactivated    EventType = "lead_reactivated"
	EventWinPartiallyFailed EventType = "lead_win_partially_failed"
)

const (
	clientBuffer      = 32
	keepAliveInterval = 25 * time.Second
)

// Event represents an SSE event payload
type Event struct {
	Type    EventType   `json:"type"`
	LeadID  uuid.UUID   `json:"leadId,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// client represents a connected SSE client
type client struct {
	userID  uuid.UUID
	orgID   uuid.UUID
	isAdmin bool
	events  chan Event
}

// Service manages SSE connections and event broadcasting per organization.
type Service struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[*client]struct{} // orgID -> clients
	closed  bool
	log     *logger.Logger
}

// New creates a new SSE service
func New(log *logger.Logger) *Service {
	return &Service{
		clients: make(map[uuid.UUID]map[*client]struct{}),
		log:     log,
	}
}

func (s *Service) addClient(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	set, ok := s.clients[c.orgID]
	if !ok {
		set = make(map[*client]struct{})
		s.clients[c.orgID] = set
	}
	set[c] = struct{}{}
	return true
}

// removeClient unregisters a client. The channel is closed under the write
// lock so no publisher can send on it afterwards.
func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.clients[c.orgID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(s.clients, c.orgID)
	}
	close(c.events)
}

// PublishToOrganization broadcasts an event to every viewer of the org.
// Slow clients drop events instead of blocking the publisher.
func (s *Service) PublishToOrganization(orgID uuid.UUID, event Event) int {
	return s.publish(orgID, event, false)
}

// PublishToAdmins broadcasts an event to admin viewers of the org.
func (s *Service) PublishToAdmins(orgID uuid.UUID, event Event) int {
	return s.publish(orgID, event, true)
}

func (s *Service) publish(orgID uuid.UUID, event Event, adminsOnly bool) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	delivered := 0
	for c := range s.clients[orgID] {
		if adminsOnly && !c.isAdmin {
			continue
		}
		select {
		case c.events <- event:
			delivered++
		default:
			s.log.Warn("sse: event buffer full", "userId", c.userID, "type", event.Type)
		}
	}
	return delivered
}

// NotifyLeadChanged pushes a lead_changed event to local viewers.
func (s *Service) NotifyLeadChanged(_ context.Context, orgID, leadID uuid.UUID) {
	s.PublishToOrganization(orgID, Event{Type: EventLeadChanged, LeadID: leadID})
}

// ClientCount returns the number of connected viewers for the org.
func (s *Service) ClientCount(orgID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[orgID])
}

// Viewer identifies the subscriber of a stream.
type Viewer struct {
	UserID  uuid.UUID
	OrgID   uuid.UUID
	IsAdmin bool
}

// Handler returns a Gin handler for SSE connections
func (s *Service) Handler(viewer func(*gin.Context) (Viewer, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := viewer(c)
		if !ok {
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		cl := &client{
			userID:  v.UserID,
			orgID:   v.OrgID,
			isAdmin: v.IsAdmin,
			events:  make(chan Event, clientBuffer),
		}
		if !s.addClient(cl) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
			return
		}
		defer s.removeClient(cl)

		c.SSEvent("connected", gin.H{"userId": v.UserID, "orgId": v.OrgID})
		c.Writer.Flush()
		s.log.Debug("sse: client connected", "userId", v.UserID, "orgId", v.OrgID)

		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				s.log.Debug("sse: client disconnected", "userId", v.UserID)
				return
			case <-keepAlive.C:
				_, _ = c.Writer.Write([]byte(": ping\n\n"))
				c.Writer.Flush()
			case event, ok := <-cl.events:
				if !ok {
					return
				}
				data, _ := json.Marshal(event)
				c.SSEvent(string(event.Type), string(data))
				c.Writer.Flush()
			}
		}
	}
}

// Close disconnects every client and rejects new ones.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for _, set := range s.clients {
		for c := range set {
			close(c.events)
		}
	}
	s.clients = make(map[uuid.UUID]map[*client]struct{})
}
