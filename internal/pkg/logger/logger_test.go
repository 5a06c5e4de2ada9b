package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &Logger{Logger: zap.New(core), config: DefaultConfig()}, logs
}

func TestNew(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:   "default config",
			config: DefaultConfig(),
		},
		{
			name:   "stderr output",
			config: &Config{Level: "info", Format: "console", Output: "stderr"},
		},
		{
			name: "file output",
			config: &Config{
				Level:  "debug",
				Format: "json",
				Output: "file",
				File: FileConfig{
					Filename:   filepath.Join(dir, "relay.log"),
					MaxSize:    10,
					MaxAge:     7,
					MaxBackups: 3,
				},
			},
		},
		{
			name:    "invalid level",
			config:  &Config{Level: "verbose", Format: "json", Output: "console"},
			wantErr: true,
		},
		{
			name:    "invalid format",
			config:  &Config{Level: "info", Format: "xml", Output: "console"},
			wantErr: true,
		},
		{
			name:    "invalid output",
			config:  &Config{Level: "info", Format: "json", Output: "syslog"},
			wantErr: true,
		},
		{
			name:    "file output without filename",
			config:  &Config{Level: "info", Format: "json", Output: "file"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
			_ = logger.Sync()
		})
	}
}

func TestContextFields(t *testing.T) {
	base, logs := observed(zapcore.DebugLevel)

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithThreadID(ctx, "thread-9")
	ctx = WithTurnID(ctx, "turn-3")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "thread-9", GetThreadID(ctx))
	assert.Equal(t, "turn-3", GetTurnID(ctx))

	base.WithContext(ctx).Info("frame dropped")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "thread-9", fields["thread_id"])
	assert.Equal(t, "turn-3", fields["turn_id"])
}

func TestWithContextWithoutValues(t *testing.T) {
	base, _ := observed(zapcore.InfoLevel)
	assert.Same(t, base, base.WithContext(context.Background()))
	assert.Equal(t, "", GetThreadID(context.Background()))
}

func TestGlobalLogger(t *testing.T) {
	assert.NotNil(t, L())

	nop := NewNop()
	SetGlobal(nop)
	assert.Same(t, nop, L())

	SetGlobal(nil)
	assert.Same(t, nop, L())

	L().WithContext(WithThreadID(context.Background(), "t")).Info("ctx message", zap.String("key", "value"))
}

func TestCLI(t *testing.T) {
	logger, err := CLI("warn")
	require.NoError(t, err)
	assert.Equal(t, "stderr", logger.Config().Output)
	assert.Equal(t, "console", logger.Config().Format)
	assert.False(t, logger.Config().EnableCaller)

	_, err = CLI("chatty")
	assert.Error(t, err)
}

func TestGinLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	base, logs := observed(zapcore.DebugLevel)

	r := gin.New()
	r.Use(GinLogger(base, MiddlewareOptions{SkipPaths: []string{"/health"}}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) {
		assert.NotEmpty(t, GetRequestID(c.Request.Context()))
		c.String(http.StatusBadGateway, "upstream down")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, 0, logs.Len())
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(HeaderRequestID, "fixed-id")
	r.ServeHTTP(w, req)

	assert.Equal(t, "fixed-id", w.Header().Get(HeaderRequestID))
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "fixed-id", entries[0].ContextMap()["request_id"])
	assert.EqualValues(t, http.StatusBadGateway, entries[0].ContextMap()["status"])
}

func TestGinRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	base, logs := observed(zapcore.DebugLevel)

	r := gin.New()
	r.Use(GinRecovery(base))
	r.GET("/panic", func(c *gin.Context) { panic("bad frame") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}
