package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crash_aim/internal/utils"
)

func guestRequest(t *testing.T, r *gin.Engine, body string) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/guest", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var resp map[string]string
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func newGuestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/auth/guest", NewAuthHandler("test-secret").Guest)
	return r
}

func TestGuestIssuesUsableToken(t *testing.T) {
	r := newGuestRouter()
	w, resp := guestRequest(t, r, `{"name":"amy"}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "amy", resp["name"])
	assert.True(t, strings.HasPrefix(resp["user_id"], "anon_"))

	claims, err := utils.ParseToken("test-secret", resp["token"])
	require.NoError(t, err)
	assert.Equal(t, resp["user_id"], claims.UserID)
	assert.Equal(t, "amy", claims.Name)
}

func TestGuestSanitizesName(t *testing.T) {
	r := newGuestRouter()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty name defaults", `{}`, "Player"},
		{"whitespace collapsed", `{"name":"  a   b  "}`, "a b"},
		{"long name truncated", `{"name":"` + strings.Repeat("x", 50) + `"}`, strings.Repeat("x", 32)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := guestRequest(t, r, tt.body)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, resp["name"])
		})
	}
}

func TestGuestIDsAreUnique(t *testing.T) {
	r := newGuestRouter()
	_, a := guestRequest(t, r, `{"name":"amy"}`)
	_, b := guestRequest(t, r, `{"name":"amy"}`)
	assert.NotEqual(t, a["user_id"], b["user_id"])
}
