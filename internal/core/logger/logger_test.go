package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestToWriter_TrimsNewline(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	w := ToWriter(zap.New(core), zapcore.InfoLevel)

	n, err := w.Write([]byte("hello gorm\n"))
	assert.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, "hello gorm", logs.All()[0].Message)
}

func TestToWriter_RespectsLevel(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	w := ToWriter(zap.New(core), zapcore.InfoLevel)
	_, _ = w.Write([]byte("dropped"))
	assert.Equal(t, 0, logs.Len())
}

func TestNew_FileRotate(t *testing.T) {
	l, cleanup := New("debug", true, t.TempDir()+"/app.log")
	defer cleanup()
	l.Info("written")
}
