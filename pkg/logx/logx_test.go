package logx

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *slowBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *slowBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAsyncWriterDelivers(t *testing.T) {
	dst := &slowBuffer{}
	w := newAsyncWriter(dst, 16)

	n, err := w.Write([]byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	w.Stop()
	assert.Equal(t, "hello\n", dst.String())
	assert.Equal(t, int64(0), w.Dropped())
}

func TestAsyncWriterDropsWhenFull(t *testing.T) {
	blocked := make(chan struct{})
	dst := writerFunc(func(p []byte) (int, error) {
		<-blocked
		return len(p), nil
	})
	w := newAsyncWriter(dst, 1)

	// first write parks in the goroutine, second fills the buffer,
	// the rest must drop without blocking
	for i := 0; i < 5; i++ {
		w.Write([]byte("x"))
	}
	assert.GreaterOrEqual(t, w.Dropped(), int64(3))

	close(blocked)
	done := make(chan struct{})
	go func() { w.Stop(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not drain")
	}
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func TestComponentField(t *testing.T) {
	entry := Component("hedger")
	assert.Equal(t, "hedger", entry.Data["comp"])
}
