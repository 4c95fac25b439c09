package schedule

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timereport/internal/calendar"
	"timereport/internal/config"
	"timereport/internal/host"
	"timereport/internal/model"
)

type fakeSource struct {
	got host.Window
}

func (f *fakeSource) Events(_ context.Context, w host.Window) (host.Page, error) {
	f.got = w
	return host.Page{Events: []model.Event{{
		Subject: "Revue",
		Start:   time.Date(2024, 3, 8, 14, 0, 0, 0, time.UTC),
		End:     time.Date(2024, 3, 8, 15, 0, 0, 0, time.UTC),
	}}}, nil
}

func newJob(t *testing.T, src *fakeSource) *Job {
	t.Helper()
	return &Job{
		Sources:   func(string, string) (host.CalendarSource, error) { return src, nil },
		Mailbox:   "jean.dupont@example.com",
		Days:      7,
		OutputDir: filepath.Join(t.TempDir(), "exports"),
		Format:    "csv",
		Location:  time.UTC,
		Guard:     host.Guard{Timeout: time.Second},
		now:       func() time.Time { return time.Date(2024, 3, 10, 18, 30, 0, 0, time.UTC) },
	}
}

func TestRange(t *testing.T) {
	now := time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC)

	from, to := Range(now, 7, time.UTC)
	assert.Equal(t, "2024-03-04", from)
	assert.Equal(t, "2024-03-10", to)

	from, to = Range(now, 0, time.UTC)
	assert.Equal(t, "2024-03-10", from)
	assert.Equal(t, "2024-03-10", to)

	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	from, to = Range(now, 1, paris)
	assert.Equal(t, "2024-03-11", from)
	assert.Equal(t, "2024-03-11", to)
}

func TestJobWritesFile(t *testing.T) {
	src := &fakeSource{}
	j := newJob(t, src)

	path, err := j.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(j.OutputDir, "TR_jean_dupont_04032024_10032024.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-08T14:00:00;2024-03-08T15:00:00;Revue;;\n", string(data))

	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), src.got.Start)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), src.got.End)

	entries, err := os.ReadDir(j.OutputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestJobErrors(t *testing.T) {
	j := newJob(t, &fakeSource{})
	j.Mailbox = ""
	_, err := j.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoMailbox)

	j = newJob(t, &fakeSource{})
	j.Format = "pdf"
	_, err = j.Run(context.Background())
	assert.Error(t, err)

	cfg := config.DefaultConfig()
	cfg.Export.Mailbox = "jean.dupont@example.com"
	j = NewJob(cfg, calendar.NewFactory(cfg, nil), host.Guard{})
	_, err = j.Run(context.Background())
	assert.ErrorIs(t, err, calendar.ErrNoToken)
}

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New("every tuesday", newJob(t, &fakeSource{}))
	assert.Error(t, err)
}

func TestSchedulerRuns(t *testing.T) {
	src := &fakeSource{}
	j := newJob(t, src)
	s, err := New("@every 1s", j)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	want := filepath.Join(j.OutputDir, "TR_jean_dupont_04032024_10032024.csv")
	require.Eventually(t, func() bool {
		_, err := os.Stat(want)
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
