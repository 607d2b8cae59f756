package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "api-signing-key"
	testIssuer = "attendance-engine"
)

func TestIssueAndParseRoundTrip(t *testing.T) {
	token, exp, err := Issue("user-1", RoleTeacher, testIssuer, testKey, time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 2*time.Second)

	claims, err := Parse(token, testKey, testIssuer)
	require.NoError(t, err)
	id, err := claims.Identity()
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: "user-1", Role: RoleTeacher}, id)
}

func TestParseRejectsWrongKeyIssuerAndExpiry(t *testing.T) {
	token, _, err := Issue("user-1", RoleStudent, testIssuer, testKey, time.Minute)
	require.NoError(t, err)

	_, err = Parse(token, "other-key", testIssuer)
	assert.Error(t, err)

	_, err = Parse(token, testKey, "someone-else")
	assert.Error(t, err)

	expired, _, err := Issue("user-1", RoleStudent, testIssuer, testKey, -time.Minute)
	require.NoError(t, err)
	_, err = Parse(expired, testKey, testIssuer)
	assert.Error(t, err)
}

func TestCanManage(t *testing.T) {
	assert.True(t, Identity{ID: "a", Role: RoleAdmin}.CanManage("t"))
	assert.True(t, Identity{ID: "t", Role: RoleTeacher}.CanManage("t"))
	assert.False(t, Identity{ID: "x", Role: RoleTeacher}.CanManage("t"))
	assert.False(t, Identity{ID: "t", Role: RoleStudent}.CanManage("t"))
	assert.True(t, Identity{ID: "a", Role: RoleAdmin}.IsAdmin())
	assert.False(t, Identity{ID: "t", Role: RoleTeacher}.IsAdmin())
}

func TestParseRole(t *testing.T) {
	for _, r := range []Role{RoleStudent, RoleTeacher, RoleAdmin} {
		parsed, err := ParseRole(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
	}
	_, err := ParseRole("janitor")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/teachers-only", Authenticate(testKey, testIssuer), RequireRole(RoleTeacher, RoleAdmin), func(c *gin.Context) {
		id, _ := IdentityFrom(c)
		c.String(http.StatusOK, id.ID)
	})

	teacher, _, err := Issue("t-1", RoleTeacher, testIssuer, testKey, time.Minute)
	require.NoError(t, err)
	student, _, err := Issue("s-1", RoleStudent, testIssuer, testKey, time.Minute)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"wrong role", "Bearer " + student, http.StatusForbidden},
		{"teacher", "Bearer " + teacher, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/teachers-only", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}
