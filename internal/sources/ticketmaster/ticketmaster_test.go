package ticketmaster_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FairHead/eventourismo-discover/internal/geo"
	"github.com/FairHead/eventourismo-discover/internal/sources/ticketmaster"
	"github.com/FairHead/eventourismo-discover/pkg/venues"
)

const discoveryBody = `{
  "_embedded": {
    "events": [
      {
        "id": "Z698xZb_Z17q339",
        "name": "Blue Night Concert",
        "url": "https://www.ticketmaster.de/event/Z698xZb_Z17q339",
        "images": [{"url": "https://s1.ticketm.net/dam/a/abc.jpg"}],
        "dates": {
          "start": {"dateTime": "2026-09-12T19:00:00Z"},
          "status": {"code": "onsale"}
        },
        "info": "Doors at 18:00.",
        "_embedded": {
          "venues": [
            {
              "id": "Z598xZb_Z173b4f",
              "name": "Hirsch Live Music GmbH",
              "url": "https://www.ticketmaster.de/venue/Z598xZb_Z173b4f",
              "location": {"latitude": "49.4529", "longitude": "11.0768"},
              "address": {"line1": "Vogelweiherstr. 66"},
              "city": {"name": "Nürnberg"},
              "country": {"countryCode": "DE"},
              "postalCode": "90441",
              "classifications": [{"segment": {"name": "Music"}}]
            }
          ]
        }
      },
      {
        "id": "Z698xZb_Z17q340",
        "name": "Online Stream Special",
        "dates": {"start": {"dateTime": "2026-09-13T20:00:00Z"}, "status": {"code": "onsale"}},
        "_embedded": {
          "venues": [
            {"id": "Z598xZb_Z173b50", "name": "", "location": {"latitude": "", "longitude": ""}}
          ]
        }
      }
    ]
  },
  "page": {"size": 200, "totalPages": 3, "number": 0}
}`

func testCell() geo.Cell {
	return geo.Cell{Row: 1, Col: 2, BBox: geo.BBox{
		MinLat: 49.3, MinLng: 11.0, MaxLat: 49.55, MaxLng: 11.25,
	}}
}

func newServer(t *testing.T, body string, gotQuery *url.Values) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func TestFetchPageQueryShape(t *testing.T) {
	var gotQuery url.Values
	server := newServer(t, discoveryBody, &gotQuery)
	defer server.Close()

	src := ticketmaster.New("tm-key", ticketmaster.WithEndpoint(server.URL))
	_, err := src.FetchPage(context.Background(), testCell(), "")
	require.NoError(t, err)

	assert.Equal(t, "tm-key", gotQuery.Get("apikey"))
	assert.Equal(t, "200", gotQuery.Get("size"))
	assert.Equal(t, "0", gotQuery.Get("page"))
	assert.Equal(t, "km", gotQuery.Get("unit"))

	// The geohash encodes the cell center; its coarse prefix is stable.
	lat, lng := testCell().Center()
	assert.Len(t, gotQuery.Get("geoPoint"), 9)
	assert.Equal(t, geo.Geohash(lat, lng, 4), gotQuery.Get("geoPoint")[:4])

	// Radius must cover the whole cell from its center.
	assert.NotEmpty(t, gotQuery.Get("radius"))
}

func TestFetchPageParsesEventsAndVenues(t *testing.T) {
	var gotQuery url.Values
	server := newServer(t, discoveryBody, &gotQuery)
	defer server.Close()

	src := ticketmaster.New("tm-key", ticketmaster.WithEndpoint(server.URL))
	page, err := src.FetchPage(context.Background(), testCell(), "")
	require.NoError(t, err)

	assert.Equal(t, 2, page.Seen)
	require.Len(t, page.Events, 2)
	assert.Empty(t, page.Venues)

	concert := page.Events[0]
	assert.Equal(t, venues.ProviderTicketmaster, concert.Provider)
	assert.Equal(t, "Z698xZb_Z17q339", concert.ExternalID)
	assert.Equal(t, "Blue Night Concert", concert.Title)
	assert.Equal(t, "onsale", concert.Status)
	assert.Equal(t, time.Date(2026, 9, 12, 19, 0, 0, 0, time.UTC), concert.StartsAt)
	assert.Equal(t, []string{"https://s1.ticketm.net/dam/a/abc.jpg"}, concert.Images)

	require.NotNil(t, concert.Venue)
	assert.Equal(t, "Hirsch Live Music GmbH", concert.Venue.Name)
	assert.Equal(t, 49.4529, concert.Venue.Lat)
	assert.Equal(t, 11.0768, concert.Venue.Lng)
	assert.Equal(t, "Vogelweiherstr. 66", concert.Venue.Address)
	assert.Equal(t, []string{"Music"}, concert.Venue.Categories)
	assert.Equal(t, "Z598xZb_Z173b4f", concert.VenueExternalID)

	// The streaming event's venue has no name or coordinates: the inline
	// venue is dropped but the linkage hint survives.
	stream := page.Events[1]
	assert.Nil(t, stream.Venue)
	assert.Equal(t, "Z598xZb_Z173b50", stream.VenueExternalID)
}

func TestFetchPagePagination(t *testing.T) {
	var gotQuery url.Values
	server := newServer(t, discoveryBody, &gotQuery)
	defer server.Close()

	src := ticketmaster.New("tm-key", ticketmaster.WithEndpoint(server.URL))

	page, err := src.FetchPage(context.Background(), testCell(), "")
	require.NoError(t, err)
	assert.Equal(t, "1", page.NextPage)

	page, err = src.FetchPage(context.Background(), testCell(), "1")
	require.NoError(t, err)
	assert.Equal(t, "1", gotQuery.Get("page"))
	assert.Equal(t, "2", page.NextPage)
}

func TestFetchPageDeepPagingCap(t *testing.T) {
	body := `{"_embedded":{"events":[]},"page":{"size":200,"totalPages":40,"number":4}}`
	var gotQuery url.Values
	server := newServer(t, body, &gotQuery)
	defer server.Close()

	src := ticketmaster.New("tm-key", ticketmaster.WithEndpoint(server.URL))
	page, err := src.FetchPage(context.Background(), testCell(), "4")
	require.NoError(t, err)

	// Page 4 is the last one reachable under the 1000-item cap.
	assert.Empty(t, page.NextPage)
}

func TestFetchPageInvalidToken(t *testing.T) {
	src := ticketmaster.New("tm-key")
	_, err := src.FetchPage(context.Background(), testCell(), "last")
	require.Error(t, err)
}
