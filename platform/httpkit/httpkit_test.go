package httpkit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sales_pipeline_backend/platform/apperr"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type testJWTConfig struct{}

func (testJWTConfig) GetJWTAccessSecret() string { return "test-secret" }

func init() {
	gin.SetMode(gin.TestMode)
}

func signAccessToken(t *testing.T, userID, tenantID uuid.UUID, roles ...string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":       userID.String(),
		"tenant_id": tenantID.String(),
		"roles":     roles,
		"type":      "access",
		"exp":       time.Now().Add(time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestHandleErrorMapsKinds(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantReason string
	}{
		{"busy", fmt.Errorf("wrapped: %w", apperr.Busy("lead busy")), http.StatusConflict, "busy"},
		{"terminal", apperr.AlreadyTerminal("lead closed"), http.StatusConflict, "already_terminal"},
		{"unavailable", apperr.Unavailable("order service down", errors.New("dial")), http.StatusServiceUnavailable, ""},
		{"untyped", errors.New("pq: something leaked"), http.StatusInternalServerError, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)

			if !HandleError(c, tc.err) {
				t.Fatalf("expected error to be handled")
			}
			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}

			var body ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Reason != tc.wantReason {
				t.Fatalf("expected reason %q, got %q", tc.wantReason, body.Reason)
			}
			if tc.name == "untyped" && body.Error != "internal error" {
				t.Fatalf("untyped error text must not be echoed, got %q", body.Error)
			}
		})
	}
}

func TestAuthRequiredPopulatesIdentity(t *testing.T) {
	userID := uuid.New()
	tenantID := uuid.New()

	engine := gin.New()
	engine.GET("/me", AuthRequired(testJWTConfig{}), func(c *gin.Context) {
		id := MustGetIdentity(c)
		if id == nil {
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"user":   id.UserID().String(),
			"tenant": id.TenantID().String(),
			"admin":  id.IsAdmin(),
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signAccessToken(t, userID, tenantID, RoleAdmin))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["user"] != userID.String() || body["tenant"] != tenantID.String() || body["admin"] != true {
		t.Fatalf("unexpected identity %v", body)
	}
}

func TestRequireRoleRejectsNonAdmin(t *testing.T) {
	engine := gin.New()
	engine.POST("/admin", AuthRequired(testJWTConfig{}), RequireRole(RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signAccessToken(t, uuid.New(), uuid.New(), "agent"))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}
}
