package venues

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceRefKey(t *testing.T) {
	ref := SourceRef{Provider: ProviderTicketmaster, ExternalID: "Z7r9jZ1AdJ9PK"}
	assert.Equal(t, "ticketmaster:Z7r9jZ1AdJ9PK", ref.Key())
}

func TestVenueAttribution(t *testing.T) {
	v := &Venue{
		Name: "Hirsch Live Music",
		Sources: []SourceRef{
			{Provider: ProviderOSM, ExternalID: "node/123"},
			{Provider: ProviderTicketmaster, ExternalID: "KovZ9"},
		},
	}

	assert.True(t, v.HasSource(ProviderOSM, "node/123"))
	assert.False(t, v.HasSource(ProviderOSM, "node/999"))
	assert.False(t, v.HasSource(ProviderEventbrite, "node/123"))

	assert.Equal(t, 1, v.SourceIndex(SourceRef{Provider: ProviderTicketmaster, ExternalID: "KovZ9"}))
	assert.Equal(t, -1, v.SourceIndex(SourceRef{Provider: ProviderEventbrite, ExternalID: "KovZ9"}))
}

func TestVenueHasCategory(t *testing.T) {
	v := &Venue{Categories: []string{"music_venue", "bar"}}
	assert.True(t, v.HasCategory("bar"))
	assert.False(t, v.HasCategory("theatre"))

	var empty Venue
	assert.False(t, empty.HasCategory("bar"))
}

func TestEventAttribution(t *testing.T) {
	e := &Event{
		Title:   "Jazz Night",
		Sources: []SourceRef{{Provider: ProviderEventbrite, ExternalID: "evt-1"}},
		Images:  []string{"https://img.example.com/a.jpg"},
	}

	assert.True(t, e.HasSource(ProviderEventbrite, "evt-1"))
	assert.False(t, e.HasSource(ProviderTicketmaster, "evt-1"))
	assert.Equal(t, 0, e.SourceIndex(SourceRef{Provider: ProviderEventbrite, ExternalID: "evt-1"}))

	assert.True(t, e.HasImage("https://img.example.com/a.jpg"))
	assert.False(t, e.HasImage("https://img.example.com/b.jpg"))
}
