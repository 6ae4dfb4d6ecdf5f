package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-reconciler/internal/models"
	"github.com/noah-isme/sma-adp-reconciler/internal/service"
	appErrors "github.com/noah-isme/sma-adp-reconciler/pkg/errors"
)

type tokenValidatorStub struct {
	claims *models.JWTClaims
}

func (s tokenValidatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

func newProtectedRouter(role models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected",
		JWT(tokenValidatorStub{claims: &models.JWTClaims{UserID: "u-1", Role: role}}),
		RequireRoles(models.RoleAdmin, models.RoleSuperAdmin),
		func(c *gin.Context) { c.Status(http.StatusNoContent) },
	)
	return r
}

func TestJWTAndRoles(t *testing.T) {
	cases := []struct {
		name   string
		header string
		role   models.UserRole
		status int
	}{
		{name: "missing header", role: models.RoleAdmin, status: http.StatusUnauthorized},
		{name: "malformed header", header: "Token good", role: models.RoleAdmin, status: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer bad", role: models.RoleAdmin, status: http.StatusUnauthorized},
		{name: "student forbidden", header: "Bearer good", role: models.RoleStudent, status: http.StatusForbidden},
		{name: "admin allowed", header: "Bearer good", role: models.RoleAdmin, status: http.StatusNoContent},
		{name: "superadmin allowed", header: "bearer good", role: models.RoleSuperAdmin, status: http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			newProtectedRouter(tc.role).ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/reconcilers/:name", func(c *gin.Context) {
		time.Sleep(time.Millisecond)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reconcilers/missions", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	count, err := testutil.GatherAndCount(metrics.Registry(), "http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

type observation struct {
	method, route string
	status        int
}

type requestObserverStub struct{ seen []observation }

func (s *requestObserverStub) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	s.seen = append(s.seen, observation{method: method, route: path, status: status})
}

func TestMetricsMiddlewareGroupsUnmatchedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &requestObserverStub{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/reconcilers/:name", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/reconcilers/missions", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-login.php", nil))

	require.Len(t, observer.seen, 2)
	assert.Equal(t, observation{method: http.MethodGet, route: "/reconcilers/:name", status: http.StatusOK}, observer.seen[0])
	assert.Equal(t, observation{method: http.MethodGet, route: "unmatched", status: http.StatusNotFound}, observer.seen[1])
}

func TestBearerToken(t *testing.T) {
	token, err := bearerToken("Bearer  abc.def ")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", token)

	for _, header := range []string{"", "Bearer", "Bearer ", "Basic abc"} {
		_, err := bearerToken(header)
		assert.ErrorIs(t, err, appErrors.ErrUnauthorized, header)
	}
}
