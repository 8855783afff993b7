package locker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	m := NewKeyedMutex()

	var inside int32
	var maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(context.Background(), "package:1")
			require.NoError(t, err)
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, m.size())
}

func TestKeyedMutexHonorsContext(t *testing.T) {
	m := NewKeyedMutex()
	release, err := m.Acquire(context.Background(), "student:1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx, "student:1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := m.Acquire(context.Background(), "student:2")
	require.NoError(t, err)
	other()
}

func TestInstrumentReportsTimeout(t *testing.T) {
	m := NewKeyedMutex()
	l := Instrument(m, nil, 10*time.Millisecond)

	release, err := l.Acquire(context.Background(), "notification:1")
	require.NoError(t, err)
	defer release()

	_, err = l.Acquire(context.Background(), "notification:1")
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestReleaseIsIdempotent(t *testing.T) {
	m := NewKeyedMutex()
	release, err := m.Acquire(context.Background(), "bill:1")
	require.NoError(t, err)
	release()
	release()
	assert.Equal(t, 0, m.size())
}

func TestResourceOf(t *testing.T) {
	assert.Equal(t, "package", resourceOf("package:123"))
	assert.Equal(t, "plain", resourceOf("plain"))
}
