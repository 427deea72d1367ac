package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sceneflow/sceneflow/internal/app/editor"
	"github.com/sceneflow/sceneflow/internal/core/asset"
	"github.com/sceneflow/sceneflow/internal/core/flow"
)

type saveLog struct {
	mu    sync.Mutex
	names []string
}

func (l *saveLog) hook(name string, err error) {
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
}

func (l *saveLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.names)
}

func (l *saveLog) last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.names) == 0 {
		return ""
	}
	return l.names[len(l.names)-1]
}

func TestAutoSaver_Debounces(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)
	ed := editor.New(flow.New(""), nil)
	var log saveLog
	saver := NewAutoSaver(svc, ed, WithDelay(100*time.Millisecond), WithSaveHook(log.hook))
	ed.OnChange(func(editor.Change) { saver.Schedule() })

	for i := range 5 {
		_, err := ed.AddNode(ctx, "Scene", float64(100*i), 0)
		require.NoError(t, err)
	}
	assert.True(t, saver.Pending())

	require.Eventually(t, func() bool { return log.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, saver.Pending())
	assert.Equal(t, DefaultFlowName, log.last())

	g, err := svc.Load(ctx, DefaultFlowName)
	require.NoError(t, err)
	assert.Equal(t, 6, g.NodeCount())

	// a draft save does not bundle
	_, err = repo.LoadBundle(ctx, DefaultFlowName)
	assert.ErrorIs(t, err, asset.ErrBundleNotFound)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, log.count())
	require.NoError(t, saver.Stop(ctx))
}

func TestAutoSaver_FlushUsesEditorName(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	ed := editor.New(flow.New("story"), nil)
	ed.SetName("story")
	var log saveLog
	saver := NewAutoSaver(svc, ed, WithDelay(time.Hour), WithSaveHook(log.hook))

	require.NoError(t, saver.Flush(ctx))
	assert.Equal(t, 0, log.count(), "nothing pending")

	saver.Schedule()
	require.NoError(t, saver.Flush(ctx))
	assert.Equal(t, 1, log.count())
	assert.Equal(t, "story", log.last())
	assert.False(t, saver.Pending())

	_, err := svc.Load(ctx, "story")
	assert.NoError(t, err)
}

func TestAutoSaver_StopDisablesScheduling(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	ed := editor.New(flow.New(""), nil)
	var log saveLog
	saver := NewAutoSaver(svc, ed, WithDelay(10*time.Millisecond), WithSaveHook(log.hook))

	saver.Schedule()
	require.NoError(t, saver.Stop(ctx))
	assert.Equal(t, 1, log.count(), "stop flushes pending work")

	saver.Schedule()
	assert.False(t, saver.Pending())
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 1, log.count())
}

func TestAutoSaver_ReportsErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	ed := editor.New(flow.New(""), nil)
	ed.SetName("bad/name")

	var got error
	saver := NewAutoSaver(svc, ed, WithDelay(time.Hour), WithSaveHook(func(_ string, err error) { got = err }))
	saver.Schedule()

	assert.ErrorIs(t, saver.Flush(ctx), asset.ErrInvalidName)
	assert.ErrorIs(t, got, asset.ErrInvalidName)
}
