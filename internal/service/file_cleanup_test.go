package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admission-api/pkg/jobs"
)

type recordingQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func TestReplacedPassportIsQueuedForCleanup(t *testing.T) {
	f := newApplicationFixture(t)
	queue := &recordingQueue{}
	WithFileCleanupQueue(queue)(f.svc)

	first, err := f.svc.SavePassport(context.Background(), "acc-1", Upload{Filename: "me.png", Size: int64(len(pngBytes)), Body: bytes.NewReader(pngBytes)})
	require.NoError(t, err)
	firstKey := *first.PassportPhoto

	_, err = f.svc.SavePassport(context.Background(), "acc-1", Upload{Filename: "me-again.png", Size: int64(len(pngBytes)), Body: bytes.NewReader(pngBytes)})
	require.NoError(t, err)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobTypeDeleteFile, queue.jobs[0].Type)
	assert.Equal(t, firstKey, queue.jobs[0].Payload)
	assert.Len(t, f.files.keys(), 2, "old file stays until the worker runs")

	handler := FileCleanupHandler(f.files, nil)
	require.NoError(t, handler(context.Background(), queue.jobs[0]))
	assert.NotContains(t, f.files.keys(), firstKey)
}

func TestCleanupFallsBackInlineWhenQueueRejects(t *testing.T) {
	f := newApplicationFixture(t)
	WithFileCleanupQueue(&recordingQueue{err: errors.New("queue stopped")})(f.svc)

	_, err := f.svc.SavePassport(context.Background(), "acc-1", Upload{Filename: "me.png", Size: int64(len(pngBytes)), Body: bytes.NewReader(pngBytes)})
	require.NoError(t, err)
	second, err := f.svc.SavePassport(context.Background(), "acc-1", Upload{Filename: "me-again.png", Size: int64(len(pngBytes)), Body: bytes.NewReader(pngBytes)})
	require.NoError(t, err)

	assert.Equal(t, []string{*second.PassportPhoto}, f.files.keys())
}

func TestFileCleanupHandlerIgnoresMissingKeys(t *testing.T) {
	handler := FileCleanupHandler(newMemStorage(), nil)

	assert.NoError(t, handler(context.Background(), jobs.Job{ID: "1", Payload: "applications/x/passport/gone.png"}))
	assert.NoError(t, handler(context.Background(), jobs.Job{ID: "2", Payload: 42}))
}
