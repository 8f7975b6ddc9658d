package logger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetCoreRoutesAndRestores(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := SetCore(core)

	Sugar.Infow("routed", "key", "value")
	Log.Debug("below level")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "routed", logs.All()[0].Message)
	assert.Equal(t, "value", logs.All()[0].ContextMap()["key"])

	restore()
	Sugar.Info("after restore")
	assert.Equal(t, 1, logs.Len())
}

func TestSetCoreWhileLogging(t *testing.T) {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					Sugar.Infow("busy", "n", i)
					Log.Info("busy", zap.Int("n", i))
				}
			}
		}()
	}

	for i := 0; i < 100; i++ {
		core, _ := observer.New(zapcore.InfoLevel)
		SetCore(core)()
	}
	close(stop)
	wg.Wait()
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	assert.Error(t, Init("loud"))
}
