package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"timereport/internal/host"
	"timereport/internal/model"
)

type fakeSource struct {
	page  host.Page
	err   error
	calls int
	got   host.Window
}

func (s *fakeSource) Events(_ context.Context, w host.Window) (host.Page, error) {
	s.calls++
	s.got = w
	return s.page, s.err
}

type countRecorder map[string]int

func (r countRecorder) Export(result string) { r[result]++ }

func sampleEvents() []model.Event {
	return []model.Event{
		{
			Subject:     "Atelier",
			BodyPreview: "Préparation",
			Location:    "Salle 2",
			Start:       time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC),
			End:         time.Date(2024, 3, 6, 10, 30, 0, 0, time.UTC),
		},
		{
			Subject: "Point hebdo",
			Start:   time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC),
			End:     time.Date(2024, 3, 5, 15, 0, 0, 0, time.UTC),
		},
	}
}

func TestCollectCSV(t *testing.T) {
	src := &fakeSource{page: host.Page{Events: sampleEvents()}}
	rec := countRecorder{}
	c := &Collector{
		Source:   src,
		Mailbox:  host.StaticMailbox("jean.dupont@example.com"),
		Location: time.UTC,
		Recorder: rec,
	}

	f, err := c.Collect(context.Background(), "2024-03-05", "2024-03-10")
	require.NoError(t, err)
	assert.Equal(t, "TR_jean_dupont_05032024_10032024.csv", f.Name)
	assert.Equal(t, 2, f.Events)
	assert.False(t, f.Truncated)

	// Source order is kept.
	want := "2024-03-06T09:00:00;2024-03-06T10:30:00;Atelier;Préparation;Salle 2\n" +
		"2024-03-05T14:00:00;2024-03-05T15:00:00;Point hebdo;;\n"
	assert.Equal(t, want, string(f.Data))

	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), src.got.Start)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), src.got.End)
	assert.Equal(t, 1, rec["ok"])
}

func TestCollectInvalidRangeBeforeNetwork(t *testing.T) {
	src := &fakeSource{}
	rec := countRecorder{}
	c := &Collector{Source: src, Mailbox: host.StaticMailbox("jean.dupont@example.com"), Recorder: rec}

	_, err := c.Collect(context.Background(), "2024-03-10", "2024-03-05")
	require.ErrorIs(t, err, ErrInvalidDateRange)
	assert.Zero(t, src.calls)
	assert.Equal(t, 1, rec["error"])
}

func TestCollectSameDay(t *testing.T) {
	src := &fakeSource{}
	c := &Collector{Source: src, Mailbox: host.StaticMailbox("a.b@x.org"), Location: time.UTC}

	f, err := c.Collect(context.Background(), "2024-03-05", "2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, "TR_a_b_05032024_05032024.csv", f.Name)
	assert.Empty(t, f.Data)
	assert.Equal(t, 24*time.Hour, src.got.End.Sub(src.got.Start))
}

func TestCollectNoSurname(t *testing.T) {
	src := &fakeSource{}
	c := &Collector{Source: src, Mailbox: host.StaticMailbox("jdoe@example.com")}

	_, err := c.Collect(context.Background(), "2024-03-05", "2024-03-10")
	require.ErrorIs(t, err, ErrNoSurnameSegment)
	assert.Zero(t, src.calls)
}

func TestCollectBadDate(t *testing.T) {
	c := &Collector{Source: &fakeSource{}, Mailbox: host.StaticMailbox("a.b@x.org")}
	_, err := c.Collect(context.Background(), "05/03/2024", "2024-03-10")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidDateRange)
}

func TestCollectSourceFailure(t *testing.T) {
	boom := errors.New("401 unauthorized")
	c := &Collector{Source: &fakeSource{err: boom}, Mailbox: host.StaticMailbox("a.b@x.org")}

	_, err := c.Collect(context.Background(), "2024-03-05", "2024-03-10")
	require.ErrorIs(t, err, host.ErrCallFailed)
	assert.ErrorIs(t, err, boom)
}

func TestCollectFirstPageOnly(t *testing.T) {
	src := &fakeSource{page: host.Page{Events: sampleEvents()[:1], NextLink: "https://next"}}
	c := &Collector{Source: src, Mailbox: host.StaticMailbox("a.b@x.org")}

	f, err := c.Collect(context.Background(), "2024-03-05", "2024-03-10")
	require.NoError(t, err)
	assert.True(t, f.Truncated)
	assert.Equal(t, 1, f.Events)
	assert.Equal(t, 1, src.calls)
}

func TestSplitMailbox(t *testing.T) {
	u, s, err := SplitMailbox("marie.curie.labo@example.com")
	require.NoError(t, err)
	assert.Equal(t, "marie", u)
	assert.Equal(t, "curie", s)

	for _, bad := range []string{"jdoe@example.com", "jdoe.@example.com", ".doe@example.com", ""} {
		_, _, err := SplitMailbox(bad)
		assert.ErrorIs(t, err, ErrNoSurnameSegment, bad)
	}
}

func TestCSVQuotesSeparators(t *testing.T) {
	data, err := CSV{}.Write([]model.Event{{Subject: "a;b", BodyPreview: "l1\nl2"}})
	require.NoError(t, err)
	assert.Equal(t, ";;\"a;b\";\"l1\nl2\";\n", string(data))
}

func TestCSVKeepsSourceDateTimeText(t *testing.T) {
	data, err := CSV{}.Write([]model.Event{{
		Subject:   "Atelier",
		Start:     time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
		StartText: "2024-03-05T09:00:00.0000000",
		EndText:   "2024-03-05T10:00:00.0000000",
	}})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05T09:00:00.0000000;2024-03-05T10:00:00.0000000;Atelier;;\n", string(data))
}

func TestCSVWindows1252(t *testing.T) {
	data, err := CSV{Windows1252: true}.Write([]model.Event{{Subject: "Réunion ✓"}})
	require.NoError(t, err)
	assert.True(t, bytes.Contains(data, []byte{'R', 0xe9}))

	back, err := charmap.Windows1252.NewDecoder().Bytes(data)
	require.NoError(t, err)
	assert.Contains(t, string(back), "Réunion ")
}

func TestXLSXWriter(t *testing.T) {
	data, err := XLSX{}.Write(sampleEvents())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, "Atelier", rows[1][2])
	assert.Equal(t, "Salle 2", rows[1][4])
}

func TestNewWriter(t *testing.T) {
	w, err := NewWriter("", "")
	require.NoError(t, err)
	assert.Equal(t, "csv", w.Ext())

	w, err = NewWriter("CSV", "windows-1252")
	require.NoError(t, err)
	assert.Equal(t, CSV{Windows1252: true}, w)

	w, err = NewWriter("xlsx", "")
	require.NoError(t, err)
	assert.Equal(t, "xlsx", w.Ext())

	_, err = NewWriter("pdf", "")
	assert.Error(t, err)
	_, err = NewWriter("csv", "latin9")
	assert.Error(t, err)
}
