package outlook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timereport/internal/host"
)

const viewJSON = `{
  "value": [
    {
      "Id": "AAA",
      "Subject": "Atelier",
      "BodyPreview": "Préparation du sprint",
      "Start": {"DateTime": "2024-03-06T09:00:00.0000000", "TimeZone": "UTC"},
      "End": {"DateTime": "2024-03-06T10:30:00.0000000", "TimeZone": "UTC"},
      "Location": {"DisplayName": "Salle 2"}
    },
    {
      "Id": "BBB",
      "Subject": "Point",
      "BodyPreview": "",
      "Start": {"DateTime": "2024-03-05T14:00:00", "TimeZone": "UTC"},
      "End": {"DateTime": "2024-03-05T15:00:00", "TimeZone": "UTC"}
    }
  ],
  "@odata.nextLink": "https://outlook.office.com/next"
}`

func TestEvents(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(viewJSON))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL + "/", Mailbox: "jean.dupont@example.com", Token: "tok", HTTP: srv.Client()}
	w := host.Window{
		Start: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
	}
	page, err := c.Events(context.Background(), w)
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "/Users/jean.dupont@example.com/CalendarView", got.URL.Path)
	assert.Equal(t, "2024-03-05T00:00:00Z", got.URL.Query().Get("startDateTime"))
	assert.Equal(t, "2024-03-11T00:00:00Z", got.URL.Query().Get("endDateTime"))
	assert.Equal(t, "Bearer tok", got.Header.Get("Authorization"))
	assert.Equal(t, "application/json; odata.metadata=none", got.Header.Get("Accept"))

	require.Len(t, page.Events, 2)
	assert.Equal(t, "https://outlook.office.com/next", page.NextLink)

	first := page.Events[0]
	assert.Equal(t, "Atelier", first.Subject)
	assert.Equal(t, "Salle 2", first.Location)
	assert.Equal(t, "AAA", first.UID)
	assert.True(t, first.Start.Equal(time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)))
	assert.True(t, first.End.Equal(time.Date(2024, 3, 6, 10, 30, 0, 0, time.UTC)))
	assert.Equal(t, "2024-03-06T09:00:00.0000000", first.StartText)
	assert.Equal(t, "2024-03-06T10:30:00.0000000", first.EndText)

	// Source order, missing location.
	assert.Equal(t, "Point", page.Events[1].Subject)
	assert.Empty(t, page.Events[1].Location)
}

func TestEventsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, Mailbox: "a.b@x.org", HTTP: srv.Client()}
	_, err := c.Events(context.Background(), host.Window{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "token expired")
}

func TestEventsBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, Mailbox: "a.b@x.org", HTTP: srv.Client()}
	_, err := c.Events(context.Background(), host.Window{})
	assert.Error(t, err)
}

func TestEventsNeedsMailbox(t *testing.T) {
	_, err := (&Client{}).Events(context.Background(), host.Window{})
	assert.Error(t, err)
}

func TestParseDateTimeZones(t *testing.T) {
	ts, err := parseDateTime(dateTime{DateTime: "2024-03-06T09:00:00.0000000", TimeZone: "Europe/Paris"})
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2024, 3, 6, 8, 0, 0, 0, time.UTC)))

	// Windows zone names are not in the tz database.
	ts, err = parseDateTime(dateTime{DateTime: "2024-03-06T09:00:00", TimeZone: "Romance Standard Time"})
	require.NoError(t, err)
	assert.Equal(t, time.UTC, ts.Location())

	_, err = parseDateTime(dateTime{DateTime: "06/03/2024"})
	assert.Error(t, err)
}

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return s
}

func TestMailboxFromToken(t *testing.T) {
	addr, err := MailboxFromToken(signed(t, jwt.MapClaims{"smtp": "jean.dupont@example.com", "upn": "other@example.com"}))
	require.NoError(t, err)
	assert.Equal(t, "jean.dupont@example.com", addr)

	addr, err = MailboxFromToken(signed(t, jwt.MapClaims{"preferred_username": "marie.curie@example.com"}))
	require.NoError(t, err)
	assert.Equal(t, "marie.curie@example.com", addr)

	_, err = MailboxFromToken(signed(t, jwt.MapClaims{"sub": "123"}))
	assert.ErrorIs(t, err, ErrNoMailboxClaim)

	_, err = MailboxFromToken("not-a-token")
	assert.Error(t, err)
}
