package main

import (
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medtrack/internal/config"
)

func TestNewServer_BoundsHeaderRead(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := config.Load()
	require.NoError(t, err)

	srv := newServer(cfg, http.NotFoundHandler())
	assert.Equal(t, cfg.Server.Addr, srv.Addr)
	assert.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)
}

func TestConfigureLogger(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var cfg config.Config
	cfg.Log.Level = "debug"
	cfg.Log.Format = "json"

	configureLogger(logger, cfg)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	cfg.Log.Level = "loud"
	configureLogger(logger, cfg)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}
