package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/adcatalog/internal/app"
	"github.com/JakeFAU/adcatalog/internal/config"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Catalog.Backend = config.BackendMemory
	cfg.Enrich.Enabled = false
	return cfg
}

func TestNewWithMemoryBackend(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), baseConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Store())
	assert.NotNil(t, a.Catalog())
	assert.Empty(t, a.Catalog().Ads())
	assert.Nil(t, a.Audit())
}

func TestNewWithLocalBackendCreatesDirectory(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.Catalog.Backend = config.BackendLocal
	cfg.Catalog.Dir = t.TempDir() + "/docs"

	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()
	assert.DirExists(t, cfg.Catalog.Dir)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.Catalog.Backend = "floppy"
	_, err := app.New(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown catalog backend")
}

func TestPipelineWithoutEnrichment(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), baseConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	p, err := a.Pipeline(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestPipelineWithEnrichmentNeedsCredentials(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.Enrich.Enabled = true
	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Pipeline(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enrich.refresh_token")
}

func TestEnricherExchangesToken(t *testing.T) {
	t.Parallel()

	var exchanged atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err == nil {
			exchanged.Store(r.PostForm.Get("refresh_token") == "refresh")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	cfg := baseConfig(t)
	cfg.Enrich.Enabled = true
	cfg.Enrich.TokenURL = srv.URL
	cfg.Enrich.APIBaseURL = srv.URL
	cfg.Enrich.RefreshToken = "refresh"
	cfg.Enrich.ClientSecret = "secret"

	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	p, err := a.Pipeline(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, p)
	assert.True(t, exchanged.Load())
}

func TestLinksRejectsPatternWithoutGroup(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.Enrich.LinkPattern = `example\.com/fiction/\d+`
	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Links()
	require.Error(t, err)
}
