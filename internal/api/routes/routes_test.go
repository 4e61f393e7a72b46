package routes

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/computeheavy/gonk/internal/api/handlers"
	"github.com/computeheavy/gonk/internal/domain/integrity"
	"github.com/computeheavy/gonk/internal/domain/services/core"
	"github.com/computeheavy/gonk/internal/infrastructure/config"
	"github.com/computeheavy/gonk/internal/infrastructure/persistence/filesystem"
	"github.com/computeheavy/gonk/pkg/metrics"
)

// metrics.New() registers its collectors against the global Prometheus
// registry; calling it more than once per test binary panics on
// duplicate registration, so every test in this package shares one set.
var testMetricsOnce sync.Once
var testMetricsInstance *metrics.Metrics

func testMetrics() *metrics.Metrics {
	testMetricsOnce.Do(func() { testMetricsInstance = metrics.New() })
	return testMetricsInstance
}

// fakeKeys resolves every key it holds to a fixed author, standing in
// for security.APIKeys so routes tests don't need real key material.
type fakeKeys struct {
	byKey map[string]string
}

func (f fakeKeys) Author(key string) (string, bool) {
	a, ok := f.byKey[key]
	return a, ok
}

func newTestRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend, err := filesystem.NewBackend(t.TempDir(), integrity.ModeChain, nil)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	svc := core.NewService(backend, zap.NewNop(), testMetrics())
	cfg := &config.Config{DefaultPageSize: 32}
	h := handlers.New(svc, cfg)
	keys := fakeKeys{byKey: map[string]string{"alice-key": "alice"}}

	return Setup(h, keys), "alice-key"
}

func doJSON(t *testing.T, router *gin.Engine, method, path, apiKey string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// TestE2E_MissingAPIKeyIsUnauthorized exercises spec.md 6.1's
// authentication gate: every route under /datasets requires x-api-key.
func TestE2E_MissingAPIKeyIsUnauthorized(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/datasets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// TestE2E_CreateDatasetAddOwnerObjectLifecycle exercises the dataset
// creation, ownership and object create/update/delete scenario end to
// end over real HTTP handlers.
func TestE2E_CreateDatasetAddOwnerObjectLifecycle(t *testing.T) {
	router, key := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/datasets", key, map[string]string{"name": "ds1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPut, "/datasets/ds1/owners/bob", key, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/datasets/ds1/owners", key, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var owners []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &owners))
	assert.ElementsMatch(t, []string{"alice", "bob"}, owners)

	objData := base64.StdEncoding.EncodeToString([]byte("cat bytes"))
	rec = doJSON(t, router, http.MethodPost, "/datasets/ds1/objects", key, map[string]string{
		"name": "cat.png", "mimetype": "image/png", "object": objData,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var created struct {
		UUID    string `json:"uuid"`
		Version int    `json:"version"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, 0, created.Version)

	rec = doJSON(t, router, http.MethodGet, "/datasets/ds1/objects/"+created.UUID+"/0", key, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/datasets/ds1/owners/alice", key, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The sole remaining owner can never be removed (P8).
	rec = doJSON(t, router, http.MethodDelete, "/datasets/ds1/owners/bob", key, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// TestE2E_SchemaReviewAnnotationLifecycle exercises the
// create-schema -> accept-review -> create-annotation scenario: an
// annotation can only be created once its schema has been reviewed
// and accepted.
func TestE2E_SchemaReviewAnnotationLifecycle(t *testing.T) {
	router, key := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/datasets", key, map[string]string{"name": "ds1"})
	require.Equal(t, http.StatusOK, rec.Code)

	objData := base64.StdEncoding.EncodeToString([]byte("cat bytes"))
	rec = doJSON(t, router, http.MethodPost, "/datasets/ds1/objects", key, map[string]string{
		"name": "cat.png", "mimetype": "image/png", "object": objData,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var obj struct {
		UUID string `json:"uuid"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &obj))

	schemaJSON := `{"type":"object","required":["label"],"properties":{"label":{"type":"string"}}}`
	rec = doJSON(t, router, http.MethodPost, "/datasets/ds1/schemas", key, map[string]string{
		"name":   "schema-widget",
		"schema": base64.StdEncoding.EncodeToString([]byte(schemaJSON)),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/datasets/ds1/events", key, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events []struct {
		UUID string `json:"uuid"`
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	var createEventUUID string
	for _, e := range events {
		if e.Type == "schema_create" {
			createEventUUID = e.UUID
		}
	}
	require.NotEmpty(t, createEventUUID, "expected a schema_create event in the log")

	rec = doJSON(t, router, http.MethodPut, "/datasets/ds1/events/"+createEventUUID+"/accept", key, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/datasets/ds1/annotations", key, map[string]interface{}{
		"schema":             map[string]interface{}{"name": "schema-widget"},
		"object_identifiers": []map[string]interface{}{{"uuid": obj.UUID, "version": 0}},
		"annotation":         base64.StdEncoding.EncodeToString([]byte(`{"label":"cat"}`)),
	})
	require.Equal(t, http.StatusOK, rec.Code)
}
