package logger

import (
	"fmt"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log and Sugar are created once and never reassigned; Init and SetCore swap
// the core behind them, so goroutines may keep logging while it changes.
// Until Init is called they discard everything.
var (
	global = newSwapCore(zapcore.NewNopCore())
	Log    = zap.New(global, zap.AddCaller())
	Sugar  = Log.Sugar()
)

// Init initializes the global logger configuration at the given level
// ("debug", "info", "warn", "error").
func Init(level string) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	encoder := zapcore.NewJSONEncoder(encoderConfig)
	writer := zapcore.AddSync(os.Stdout)

	SetCore(zapcore.NewCore(encoder, writer, lvl))
	return nil
}

// SetCore routes the global logger to core and returns a func restoring the
// previous one. Tests use it to install an observer core.
func SetCore(core zapcore.Core) (restore func()) {
	prev := global.swap(core)
	return func() { global.swap(prev) }
}

type coreBox struct{ zapcore.Core }

// swapCore forwards to whichever core was stored last.
type swapCore struct {
	current atomic.Pointer[coreBox]
}

func newSwapCore(core zapcore.Core) *swapCore {
	c := &swapCore{}
	c.current.Store(&coreBox{core})
	return c
}

func (c *swapCore) load() zapcore.Core { return c.current.Load().Core }

func (c *swapCore) swap(core zapcore.Core) zapcore.Core {
	return c.current.Swap(&coreBox{core}).Core
}

func (c *swapCore) Enabled(lvl zapcore.Level) bool { return c.load().Enabled(lvl) }

// With binds fields to the core that is current now.
func (c *swapCore) With(fields []zapcore.Field) zapcore.Core { return c.load().With(fields) }

func (c *swapCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return c.load().Check(ent, ce)
}

func (c *swapCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return c.load().Write(ent, fields)
}

func (c *swapCore) Sync() error { return c.load().Sync() }
