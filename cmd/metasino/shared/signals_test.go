package shared

import (
	"bytes"
	"context"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSignalContextCancelsOnSignal(t *testing.T) {
	var out lockedBuffer
	logger := log.NewWithOptions(&out, log.Options{Level: log.InfoLevel})

	ctx, stop := SignalContext(context.Background(), logger)
	defer stop()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not cancelled by SIGTERM")
	}
	assert.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("Received signal"))
	}, time.Second, 10*time.Millisecond)
}

func TestSignalContextStopIsQuiet(t *testing.T) {
	var out lockedBuffer
	logger := log.NewWithOptions(&out, log.Options{Level: log.InfoLevel})

	ctx, stop := SignalContext(context.Background(), logger)
	stop()

	<-ctx.Done()
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, out.String())
}
