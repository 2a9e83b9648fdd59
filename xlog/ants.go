package xlog

import (
	"runtime"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

var _ zapcore.WriteSyncer = (*xLogAsyncSyncer)(nil)

// xLogAsyncSyncer hands log writes to a single-worker ants pool so the
// logging goroutine does not perform the write itself; Write waits only
// while the worker is still busy with an earlier entry. A single worker
// keeps the write order.
type xLogAsyncSyncer struct {
	ws       zapcore.WriteSyncer
	pool     *ants.Pool
	writeErr atomic.Pointer[error]
}

func XLogAsyncSyncer(ws zapcore.WriteSyncer) zapcore.WriteSyncer {
	pool, err := ants.NewPool(1, ants.WithPreAlloc(true))
	if err != nil {
		// Pool creation only fails on invalid sizes; fall back to the
		// synchronous writer.
		return ws
	}
	return &xLogAsyncSyncer{ws: ws, pool: pool}
}

func (syncer *xLogAsyncSyncer) Write(log []byte) (int, error) {
	// zap reuses the entry buffer after Write returns.
	cp := make([]byte, len(log))
	copy(cp, log)
	if err := syncer.pool.Submit(func() {
		if _, err := syncer.ws.Write(cp); err != nil {
			syncer.writeErr.Store(&err)
		}
	}); err != nil {
		// Pool released or overloaded; write in place.
		return syncer.ws.Write(cp)
	}
	return len(log), nil
}

func (syncer *xLogAsyncSyncer) Sync() error {
	for syncer.pool.Running() > 0 {
		runtime.Gosched()
	}
	var err error
	if wErr := syncer.writeErr.Swap(nil); wErr != nil {
		err = multierr.Append(err, *wErr)
	}
	return multierr.Append(err, syncer.ws.Sync())
}

func (syncer *xLogAsyncSyncer) Stop() error {
	err := syncer.Sync()
	syncer.pool.Release()
	return err
}

// AntsXLogger adapts an XLogger to the ants.Logger interface so worker
// pools built next to these containers can share the diagnostics
// stream.
type AntsXLogger struct {
	logger XLogger
}

func NewAntsXLogger(logger XLogger) *AntsXLogger {
	return &AntsXLogger{logger: logger}
}

func (l *AntsXLogger) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Logf(zapcore.ErrorLevel, format, args...)
}
