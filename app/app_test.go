package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"gridguard/config"
	"gridguard/ml"
	"gridguard/monitoring"
)

func TestLoadModelFailureKeepsServing(t *testing.T) {
	cfg := config.Default()
	cfg.Model.Path = filepath.Join(t.TempDir(), "missing.json")
	cfg.Database.Path = filepath.Join(t.TempDir(), "audit.db")

	a, err := New(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer a.Close()

	assert.Error(t, a.LoadModel())
	_, err = a.Invoker.Predict(ml.Vector([]any{1}))
	assert.ErrorIs(t, err, ml.ErrModelUnavailable)
	assert.NotNil(t, a.Store)
}

func TestNewWithoutDatabase(t *testing.T) {
	cfg := config.Default()
	cfg.Dashboard.DownloadCacheSize = 0

	a, err := New(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Nil(t, a.Store)
	assert.NoError(t, a.Close())
	assert.False(t, a.Guard.Configured())
}

func TestLoadModelPublishesStatus(t *testing.T) {
	cfg := config.Default()
	cfg.Model.Path = filepath.Join(t.TempDir(), "missing.json")
	cfg.Database.Path = filepath.Join(t.TempDir(), "audit.db")

	core, logs := observer.New(zap.WarnLevel)
	a, err := New(cfg, zap.New(core).Sugar())
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(a.Hub.HandleWebSocket))
	defer server.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return a.Hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	assert.Error(t, a.LoadModel())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg monitoring.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, monitoring.ModelStatus, msg.Type)

	var status monitoring.ModelStatusMessage
	require.NoError(t, json.Unmarshal(msg.Data, &status))
	assert.False(t, status.Loaded)
	assert.NotEmpty(t, status.Error)
	assert.Zero(t, logs.FilterMessage("failed to publish model status").Len())
}
