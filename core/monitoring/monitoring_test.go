package monitoring

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMonitor struct {
	mu      sync.Mutex
	errs    []error
	tags    []map[string]string
	flushed int
}

func (m *recordingMonitor) CaptureException(err error, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, err)
	m.tags = append(m.tags, tags)
}

func (m *recordingMonitor) Recover() {}

func (m *recordingMonitor) Flush(time.Duration) {
	m.mu.Lock()
	m.flushed++
	m.mu.Unlock()
}

func install(t *testing.T) *recordingMonitor {
	t.Helper()
	prev := Current()
	m := &recordingMonitor{}
	Init(m)
	t.Cleanup(func() { Init(prev) })
	return m
}

func TestCaptureException(t *testing.T) {
	m := install(t)
	CaptureException(nil, nil)
	CaptureException(errors.New("boom"), map[string]string{"component": "dispatch"})
	require.Len(t, m.errs, 1)
	assert.EqualError(t, m.errs[0], "boom")
	assert.Equal(t, "dispatch", m.tags[0]["component"])

	Init(nil)
	assert.Same(t, m, Current())
}

func TestRecoverReportsAndRepanics(t *testing.T) {
	m := install(t)
	assert.PanicsWithValue(t, "tick exploded", func() {
		defer Recover()
		panic("tick exploded")
	})
	require.Len(t, m.errs, 1)
	assert.EqualError(t, m.errs[0], "panic: tick exploded")
	assert.Equal(t, 1, m.flushed)

	assert.NotPanics(t, func() {
		defer Recover()
	})
	assert.Len(t, m.errs, 1)
}
