package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArchiver struct {
	actionCutoff time.Time
	auditCutoff  time.Time
	actionCount  int64
	auditCount   int64
	actionErr    error
}

func (f *fakeArchiver) ArchiveActions(_ context.Context, before time.Time) (int64, error) {
	f.actionCutoff = before
	return f.actionCount, f.actionErr
}

func (f *fakeArchiver) ArchiveAudit(_ context.Context, before time.Time) (int64, error) {
	f.auditCutoff = before
	return f.auditCount, nil
}

func TestArchiveRunnerRun(t *testing.T) {
	fake := &fakeArchiver{actionCount: 12, auditCount: 40}
	r := NewArchiveRunner(fake, 90, time.Hour, testLogger())

	require.NoError(t, r.Run(context.Background()))

	wantCutoff := time.Now().UTC().AddDate(0, 0, -90)
	assert.WithinDuration(t, wantCutoff, fake.actionCutoff, time.Minute)
	assert.WithinDuration(t, wantCutoff, fake.auditCutoff, time.Minute)
}

func TestArchiveRunnerPropagatesError(t *testing.T) {
	fake := &fakeArchiver{actionErr: errors.New("bucket gone")}
	r := NewArchiveRunner(fake, 30, time.Hour, testLogger())

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket gone")
	// Audit archival is not attempted after the action pass fails.
	assert.True(t, fake.auditCutoff.IsZero())
}

func TestArchiveRunnerDefaultInterval(t *testing.T) {
	r := NewArchiveRunner(&fakeArchiver{}, 30, 0, testLogger())
	assert.Equal(t, 24*time.Hour, r.interval)
}
