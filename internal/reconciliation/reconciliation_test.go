package reconciliation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"sales_pipeline_backend/internal/adapters/storage"
	"sales_pipeline_backend/platform/apperr"
	"sales_pipeline_backend/platform/httpkit"
	"sales_pipeline_backend/platform/logger"
	"sales_pipeline_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu        sync.Mutex
	incidents map[uuid.UUID]Incident
}

func newMemStore() *memStore {
	return &memStore{incidents: map[uuid.UUID]Incident{}}
}

func (m *memStore) Record(_ context.Context, in NewIncident) (Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inc := range m.incidents {
		if inc.LeadID == in.LeadID && inc.OrderID == in.OrderID {
			return inc, nil
		}
	}
	inc := Incident{
		ID:             uuid.New(),
		OrganizationID: in.OrganizationID,
		LeadID:         in.LeadID,
		OrderID:        in.OrderID,
		Operation:      in.Operation,
		Cause:          in.Cause,
		CreatedAt:      time.Now(),
	}
	m.incidents[inc.ID] = inc
	return inc, nil
}

func (m *memStore) GetByID(_ context.Context, orgID, id uuid.UUID) (Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[id]
	if !ok || inc.OrganizationID != orgID {
		return Incident{}, ErrNotFound
	}
	return inc, nil
}

func (m *memStore) List(_ context.Context, p ListParams) ([]Incident, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Incident
	for _, inc := range m.incidents {
		if inc.OrganizationID != p.OrganizationID || (p.OpenOnly && !inc.Open()) {
			continue
		}
		out = append(out, inc)
	}
	return out, len(out), nil
}

func (m *memStore) Resolve(ctx context.Context, orgID, id, by uuid.UUID, note string) (Incident, error) {
	inc, err := m.GetByID(ctx, orgID, id)
	if err != nil {
		return Incident{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !inc.Open() {
		return Incident{}, ErrAlreadyResolved
	}
	now := time.Now()
	inc.ResolvedAt, inc.ResolvedBy, inc.ResolutionNote = &now, &by, &note
	m.incidents[id] = inc
	return inc, nil
}

func TestRecordIsIdempotentPerLeadAndOrder(t *testing.T) {
	svc := NewService(newMemStore(), logger.Nop())
	in := NewIncident{OrganizationID: uuid.New(), LeadID: uuid.New(), OrderID: "SO-1", Operation: "lead_win"}

	first, err := svc.Record(context.Background(), in)
	require.NoError(t, err)
	second, err := svc.Record(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = svc.Record(context.Background(), NewIncident{LeadID: uuid.New()})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestResolveLifecycle(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, logger.Nop())
	orgID := uuid.New()
	inc, err := svc.Record(context.Background(), NewIncident{OrganizationID: orgID, LeadID: uuid.New(), OrderID: "SO-9"})
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), orgID, inc.ID, uuid.New(), "   ")
	assert.True(t, apperr.Is(err, apperr.KindValidation), "blank note")

	_, err = svc.Resolve(context.Background(), uuid.New(), inc.ID, uuid.New(), "done")
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "other organization")

	resolved, err := svc.Resolve(context.Background(), orgID, inc.ID, uuid.New(), "order recorded on lead by hand")
	require.NoError(t, err)
	assert.False(t, resolved.Open())

	_, err = svc.Resolve(context.Background(), orgID, inc.ID, uuid.New(), "again")
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	open, total, err := svc.List(context.Background(), orgID, true, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, open)
	assert.Zero(t, total)

	all, _, err := svc.List(context.Background(), orgID, false, 1, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func newTestRouter(svc *Service, tenantID, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, userID)
		c.Set(httpkit.ContextTenantIDKey, tenantID)
		c.Set(httpkit.ContextRolesKey, []string{httpkit.RoleAdmin})
		c.Next()
	})
	NewHandler(svc, validator.New()).RegisterRoutes(r.Group("/admin/incidents"))
	return r
}

func TestHandlerListAndResolve(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, logger.Nop())
	orgID, userID := uuid.New(), uuid.New()
	inc, err := svc.Record(context.Background(), NewIncident{OrganizationID: orgID, LeadID: uuid.New(), OrderID: "SO-3"})
	require.NoError(t, err)

	router := newTestRouter(svc, orgID, userID)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/incidents", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var list IncidentListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "SO-3", list.Items[0].OrderID)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/incidents/"+inc.ID.String()+"/resolve", strings.NewReader(`{"note":"cancelled order SO-3"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resolved IncidentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resolved))
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, userID, *resolved.ResolvedBy)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/admin/incidents/"+inc.ID.String()+"/resolve", strings.NewReader(`{"note":"again"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerRejectsMissingNote(t *testing.T) {
	router := newTestRouter(NewService(newMemStore(), logger.Nop()), uuid.New(), uuid.New())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/incidents/"+uuid.NewString()+"/resolve", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubLocator struct {
	urls map[uuid.UUID]string
}

func (l stubLocator) LatestSnapshotURL(_ context.Context, _ uuid.UUID, leadID uuid.UUID) (*storage.PresignedURL, error) {
	u, ok := l.urls[leadID]
	if !ok {
		return nil, storage.ErrNoSnapshot
	}
	return &storage.PresignedURL{URL: u}, nil
}

func TestSnapshotURL(t *testing.T) {
	store := newMemStore()
	orgID, leadID := uuid.New(), uuid.New()

	bare := NewService(store, logger.Nop())
	inc, err := bare.Record(context.Background(), NewIncident{OrganizationID: orgID, LeadID: leadID, OrderID: "SO-5"})
	require.NoError(t, err)

	_, err = bare.SnapshotURL(context.Background(), orgID, inc.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "archive not configured")

	svc := NewService(store, logger.Nop()).WithSnapshots(stubLocator{urls: map[uuid.UUID]string{leadID: "https://objects.test/snap.json"}})
	url, err := svc.SnapshotURL(context.Background(), orgID, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://objects.test/snap.json", url.URL)

	other, err := svc.Record(context.Background(), NewIncident{OrganizationID: orgID, LeadID: uuid.New(), OrderID: "SO-6"})
	require.NoError(t, err)
	_, err = svc.SnapshotURL(context.Background(), orgID, other.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "nothing archived")
}
