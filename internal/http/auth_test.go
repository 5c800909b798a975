package handlers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoginIssuesUsableToken(t *testing.T) {
	a := newTestApp(t, appOpts{})
	logs := captureLogs(t)

	r := a.do(t, "POST", "/api/v1/auth/login", "", map[string]any{"email": "Ana@Grana3d.test", "password": "Passw0rd!"})
	require.Equal(t, 200, r.status, r.raw)
	tok, _ := r.body["token"].(string)
	require.NotEmpty(t, tok)
	assert.Equal(t, "u-ana", r.body["user"].(map[string]any)["id"])

	me := a.do(t, "GET", "/api/v1/me", tok, nil)
	require.Equal(t, 200, me.status, me.raw)
	assert.Equal(t, "retail", me.body["tier"])
	assert.Equal(t, "pending", me.body["wholesale"].(map[string]any)["status"])

	success := logs.FilterMessage("auth.login.success").All()
	require.Len(t, success, 1)
	assert.Equal(t, "u-ana", success[0].ContextMap()["user_id"])
}

func TestLoginFailuresAreUniformAndLogged(t *testing.T) {
	a := newTestApp(t, appOpts{})
	logs := captureLogs(t)

	for _, body := range []map[string]any{
		{"email": "ana@grana3d.test", "password": "wrong-password"},
		{"email": "nobody@grana3d.test", "password": "Passw0rd!"},
		{"email": "not-an-email", "password": "Passw0rd!"},
		{"email": "ana@grana3d.test", "password": "short"},
	} {
		r := a.do(t, "POST", "/api/v1/auth/login", "", body)
		assert.Equal(t, 401, r.status)
		assert.Equal(t, "Invalid email or password", r.body["error"])
		assert.NotContains(t, r.raw, "token")
	}

	fails := logs.FilterMessage("auth.login.fail").All()
	require.Len(t, fails, 4)
	assert.Equal(t, zapcore.WarnLevel, fails[0].Level)
}

func TestLoginIsRateLimited(t *testing.T) {
	a := newTestApp(t, appOpts{})
	body := map[string]any{"email": "ana@grana3d.test", "password": "wrong-password"}
	for i := 0; i < 5; i++ {
		require.Equal(t, 401, a.do(t, "POST", "/api/v1/auth/login", "", body).status)
	}
	assert.Equal(t, 429, a.do(t, "POST", "/api/v1/auth/login", "", body).status)
}

func TestMeRequiresToken(t *testing.T) {
	a := newTestApp(t, appOpts{})
	assert.Equal(t, 401, a.do(t, "GET", "/api/v1/me", "", nil).status)
	assert.Equal(t, 401, a.do(t, "GET", "/api/v1/me/orders", "", nil).status)
	assert.Equal(t, 401, a.do(t, "GET", "/api/v1/me", "garbage", nil).status)
}
