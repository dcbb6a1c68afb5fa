package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jklovins/mediagen/internal/config"
	"github.com/jklovins/mediagen/internal/models"
	"github.com/jklovins/mediagen/internal/service"
	"github.com/jklovins/mediagen/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type noopUploader struct{}

func (noopUploader) UploadFromURL(_ context.Context, _, objectName string) (string, error) {
	return "https://cdn.example.com/" + objectName, nil
}

type stubProvider struct{}

func (stubProvider) SubmitJob(_ context.Context, _, _ string) (string, error) {
	return "job-test", nil
}

// newTestServer wires the router against an in-memory store, bypassing
// the real database and blob connections.
func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *store.Store) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, store.Migrate(db))
	st := store.New(db)

	cfg := &config.Config{}
	if mutate != nil {
		mutate(cfg)
	}

	logger := zap.NewNop()
	rng := rand.New(rand.NewSource(1))
	composer := service.NewPromptComposer(rng)

	srv := &Server{
		Config:    cfg,
		DB:        db,
		Store:     st,
		Router:    gin.New(),
		Logger:    logger,
		Batch:     service.NewBatchService(st, composer, rng, logger),
		Submitter: service.NewSubmitterService(st, stubProvider{}, logger),
		Webhooks:  service.NewWebhookService(st, noopUploader{}, logger),
	}
	srv.setupRoutes()
	return srv, st
}

func doRequest(srv *Server, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, req)
	return w
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)
	w := doRequest(srv, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestWebhookRejectsTamperedBody(t *testing.T) {
	t.Parallel()

	srv, st := newTestServer(t, func(cfg *config.Config) {
		cfg.Provider.WebhookSecret = "s3cret"
	})

	body := []byte(`{"id":"job-1","status":"FAILED"}`)
	signature := sign(body, "s3cret")
	tampered := []byte(`{"id":"job-1","status":"COMPLETED"}`)

	w := doRequest(srv, http.MethodPost, "/webhooks/provider", tampered, map[string]string{
		signatureHeader: signature,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid signature", w.Body.String())

	logs, err := st.RecentWebhookLogs(0)
	require.NoError(t, err)
	assert.Empty(t, logs, "a rejected callback must leave no audit trace")
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Provider.WebhookSecret = "s3cret"
	})

	body := []byte(`{"id":"job-1","status":"FAILED"}`)
	w := doRequest(srv, http.MethodPost, "/webhooks/provider", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookAcceptsValidSignature(t *testing.T) {
	t.Parallel()

	srv, st := newTestServer(t, func(cfg *config.Config) {
		cfg.Provider.WebhookSecret = "s3cret"
	})

	body := []byte(`{"id":"ghost","status":"FAILED"}`)
	w := doRequest(srv, http.MethodPost, "/webhooks/provider", body, map[string]string{
		signatureHeader: sign(body, "s3cret"),
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())

	logs, err := st.RecentWebhookLogs(0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "ghost", logs[0].JobID)
}

func TestWebhookRejectsPayloadWithoutJobID(t *testing.T) {
	t.Parallel()

	srv, st := newTestServer(t, nil)

	w := doRequest(srv, http.MethodPost, "/webhooks/provider", []byte(`{"status":"COMPLETED"}`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid payload", w.Body.String())

	logs, err := st.RecentWebhookLogs(0)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestWebhookOpenWithoutConfiguredSecret(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)

	body := []byte(`{"id":"ghost","status":"FAILED"}`)
	w := doRequest(srv, http.MethodPost, "/webhooks/provider", body, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyGate(t *testing.T) {
	t.Parallel()

	srv, st := newTestServer(t, func(cfg *config.Config) {
		cfg.Auth.APIKey = "api-secret"
	})
	require.NoError(t, st.SaveSettings(&models.GenerationSettings{
		DailyGroupCount: 5,
		SafetyTier:      "Family Friendly",
	}))

	t.Run("missing key", func(t *testing.T) {
		w := doRequest(srv, http.MethodGet, "/api/v1/settings", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		w := doRequest(srv, http.MethodGet, "/api/v1/settings", nil, map[string]string{
			"X-API-Key": "nope",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid key", func(t *testing.T) {
		w := doRequest(srv, http.MethodGet, "/api/v1/settings", nil, map[string]string{
			"X-API-Key": "api-secret",
		})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("webhook endpoint is outside the gate", func(t *testing.T) {
		body := []byte(`{"id":"ghost","status":"FAILED"}`)
		w := doRequest(srv, http.MethodPost, "/webhooks/provider", body, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestGetItemNotFound(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)
	w := doRequest(srv, http.MethodGet, "/api/v1/items/12345", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetItemInvalidID(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)
	w := doRequest(srv, http.MethodGet, "/api/v1/items/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateSettingsPartial(t *testing.T) {
	t.Parallel()

	srv, st := newTestServer(t, nil)
	require.NoError(t, st.SaveSettings(&models.GenerationSettings{
		DailyGroupCount:  5,
		ItemsPerGroupMin: 3,
		ItemsPerGroupMax: 5,
		MaxRetryAttempts: 3,
		SafetyTier:       "Family Friendly",
	}))

	w := doRequest(srv, http.MethodPut, "/api/v1/settings",
		[]byte(`{"daily_group_count":7}`),
		map[string]string{"Content-Type": "application/json"})
	require.Equal(t, http.StatusOK, w.Code)

	settings, err := st.Settings()
	require.NoError(t, err)
	assert.Equal(t, 7, settings.DailyGroupCount)
	assert.Equal(t, 3, settings.ItemsPerGroupMin, "omitted fields keep their values")
	assert.Equal(t, "Family Friendly", settings.SafetyTier)
	assert.False(t, settings.ModifiedDate.IsZero())
}

func TestUpdateSettingsUnseeded(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)
	w := doRequest(srv, http.MethodPut, "/api/v1/settings",
		[]byte(`{"daily_group_count":7}`),
		map[string]string{"Content-Type": "application/json"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestManualBatchRun(t *testing.T) {
	t.Parallel()

	srv, st := newTestServer(t, nil)
	require.NoError(t, st.SaveSettings(&models.GenerationSettings{
		DailyGroupCount:  1,
		ItemsPerGroupMin: 1,
		ItemsPerGroupMax: 1,
		SafetyTier:       "Family Friendly",
	}))
	require.NoError(t, st.DB().Create(&models.BaseImage{
		Name:       "subject",
		StorageURL: "https://blobs.example.com/s.jpg",
		IsActive:   true,
	}).Error)

	w := doRequest(srv, http.MethodPost, "/api/v1/generation/run", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	groups, err := st.ListGroups()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Items, 1)

	// A manual submit pass picks the fresh item up immediately.
	w = doRequest(srv, http.MethodPost, "/api/v1/generation/submit", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	item, err := st.WorkItemByID(groups[0].Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, item.Status)
	assert.Equal(t, "job-test", item.ProviderJobID)
}

func TestListEndpointsRespond(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)

	for _, path := range []string{"/api/v1/groups", "/api/v1/webhook-logs", "/api/v1/stats"} {
		w := doRequest(srv, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	var parsed map[string]json.RawMessage
	w := doRequest(srv, http.MethodGet, "/api/v1/stats", nil, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	assert.Contains(t, parsed, "stats")
}
