package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"haxquest/internal/bootstrap"
	"haxquest/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, overrides map[string]string) http.Handler {
	t.Helper()
	vs := make(map[string]string, len(bootstrap.OptionalEnvs))
	for _, key := range bootstrap.OptionalEnvs {
		vs[key] = ""
	}
	vs[services.CONFIG_ADMIN_API_KEY] = "admin-key"
	vs[services.CONFIG_ADMIN_BEARER_TOKEN] = "bearer-token"
	vs[services.CONFIG_CRON_SECRET] = "cron-secret"
	for k, v := range overrides {
		vs[k] = v
	}

	router, err := New(&Config{
		Container: bootstrap.NewContainer(vs),
		Mode:      "test",
		Origins:   []string{"*"},
	})
	require.NoError(t, err)
	return router
}

func serve(t *testing.T, router http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestProgressRoutes(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := serve(t, router, http.MethodGet, "/api/v1/progress?user_id=user_1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"user_id":"user_1"`)
	assert.Contains(t, rec.Body.String(), `"daily_quest"`)
	assert.Contains(t, rec.Body.String(), `"composite_score"`)

	rec = serve(t, router, http.MethodPost, "/api/v1/progress", `{"user_id":"user_1","snapshot":{"completed_task_ids":["recon-basics"],"bonus_xp":5}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"recon-basics"`)

	rec = serve(t, router, http.MethodPost, "/api/v1/progress/tasks", `{"user_id":"user_1","task_id":"recon-basics","score":100}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"streak_days":1`)

	rec = serve(t, router, http.MethodGet, "/api/v1/progress?user_id=no%20spaces", "", nil)
	assert.GreaterOrEqual(t, rec.Code, http.StatusBadRequest)

	rec = serve(t, router, http.MethodPost, "/api/v1/progress", `{"user_id":"user_1","snapshot":{"completed_task_ids":["made-up"]}}`, nil)
	assert.GreaterOrEqual(t, rec.Code, http.StatusBadRequest)

	rec = serve(t, router, http.MethodGet, "/api/v1/tasks", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "capstone-ctf")
}

func TestLeaderboardRoute(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := serve(t, router, http.MethodPost, "/api/v1/progress", `{"user_id":"user_1","snapshot":{"completed_task_ids":["recon-basics"]}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(t, router, http.MethodGet, "/api/v1/leaderboard?season=weekly&limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"season":"weekly"`)
	assert.Contains(t, rec.Body.String(), `"user_id":"user_1"`)

	rec = serve(t, router, http.MethodGet, "/api/v1/leaderboard?season=monthly", "", nil)
	assert.GreaterOrEqual(t, rec.Code, http.StatusBadRequest)
}

func TestEconomyRoutes(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := serve(t, router, http.MethodPost, "/api/v1/progress", `{"user_id":"user_1","snapshot":{"bonus_hax":5}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(t, router, http.MethodPost, "/api/v1/economy/charge", `{"user_id":"user_1","feature":"alert","units":2,"source":"web","transaction_ref":"a-1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"charged":false`)
	assert.Contains(t, rec.Body.String(), "required=6, available=5")

	rec = serve(t, router, http.MethodPost, "/api/v1/economy/charge", `{"user_id":"user_1","feature":"chat","units":2,"source":"web","transaction_ref":"c-1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"charged":true`)

	rec = serve(t, router, http.MethodGet, "/api/v1/economy/balance?user_id=user_1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"available":3`)

	rec = serve(t, router, http.MethodGet, "/api/v1/economy/ledger?user_id=user_1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"transaction_ref":"c-1"`)
	assert.NotContains(t, rec.Body.String(), `"a-1"`)

	rec = serve(t, router, http.MethodPost, "/api/v1/economy/charge", `{"user_id":"user_1","feature":"teleport","transaction_ref":"x"}`, nil)
	assert.GreaterOrEqual(t, rec.Code, http.StatusBadRequest)
}

func TestAdminRequiresCredentials(t *testing.T) {
	router := newTestRouter(t, nil)

	for _, headers := range []map[string]string{
		nil,
		{HeaderAdminKey: "wrong"},
		{"Authorization": "Bearer wrong"},
		{"Authorization": "admin-key"},
		{HeaderCronSecret: ""},
	} {
		rec := serve(t, router, http.MethodGet, "/api/v1/admin/overview", "", headers)
		assert.GreaterOrEqual(t, rec.Code, http.StatusBadRequest, headers)
		assert.Less(t, rec.Code, http.StatusInternalServerError, headers)
	}
}

func TestAdminActionReplay(t *testing.T) {
	router := newTestRouter(t, nil)
	headers := map[string]string{HeaderAdminKey: "admin-key", HeaderIdempotencyKey: "op-7"}
	body := `{"action":"reset-quest","user_id":"user_1","note":"support ticket"}`

	first := serve(t, router, http.MethodPost, "/api/v1/admin/actions", body, headers)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Empty(t, first.Header().Get(HeaderReplayed))
	assert.Contains(t, first.Body.String(), `"ok":true`)

	second := serve(t, router, http.MethodPost, "/api/v1/admin/actions", body, headers)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get(HeaderReplayed))
	assert.Equal(t, first.Body.String(), second.Body.String())

	conflict := serve(t, router, http.MethodPost, "/api/v1/admin/actions", `{"action":"purge-replay"}`, headers)
	assert.Equal(t, http.StatusConflict, conflict.Code)

	unknown := serve(t, router, http.MethodPost, "/api/v1/admin/actions", `{"action":"format-disk"}`, map[string]string{HeaderAdminKey: "admin-key"})
	assert.Equal(t, http.StatusBadRequest, unknown.Code)
	assert.Contains(t, unknown.Body.String(), `"ok":false`)
}

func TestAdminModesAreAudited(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := serve(t, router, http.MethodPost, "/api/v1/admin/actions", `{"action":"purge-replay"}`, map[string]string{"Authorization": "Bearer bearer-token"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = serve(t, router, http.MethodPost, "/api/v1/admin/actions", `{"action":"run-payout","season":"weekly","dry_run":true}`, map[string]string{HeaderCronSecret: "cron-secret"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(t, router, http.MethodGet, "/api/v1/admin/audit", "", map[string]string{HeaderAdminKey: "admin-key"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"admin_mode":"bearer"`)
	assert.Contains(t, rec.Body.String(), `"admin_mode":"cron"`)
}

func TestAdminOverview(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := serve(t, router, http.MethodGet, "/api/v1/admin/overview", "", map[string]string{HeaderAdminKey: "admin-key"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, field := range []string{`"storage"`, `"replay"`, `"slo"`, `"auto_remediation"`, `"readiness"`, `"payouts"`} {
		assert.Contains(t, rec.Body.String(), field)
	}
	assert.Contains(t, rec.Body.String(), `"mode":"memory"`)
}
