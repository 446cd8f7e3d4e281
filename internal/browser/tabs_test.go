package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugifyTitle(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"Hotel Results", "hotel_results"},
		{"Booking.com | Official site", "booking_com_official_site"},
		{"  Zurich -- Hotels  ", "zurich_hotels"},
		{"日本語タイトル", ""},
		{"", ""},
		{"---", ""},
		{"Google Travel Hotels Search Results Page For Switzerland", "google_travel_hotels_search_resu"},
	}

	for _, tc := range cases {
		t.Run(tc.title, func(t *testing.T) {
			assert.Equal(t, tc.want, slugifyTitle(tc.title))
		})
	}
}

func TestSlugifyTitleLengthBound(t *testing.T) {
	slug := slugifyTitle("a very long page title that keeps going and going and going")
	assert.LessOrEqual(t, len(slug), 32)
	assert.NotEmpty(t, slug)
}

func TestNextTabIDFallbackAndCollision(t *testing.T) {
	s := &Session{tabs: make(map[string]*tab)}

	assert.Equal(t, "tab_1", s.nextTabID(""))

	id := s.nextTabID("Hotel Results")
	assert.Equal(t, "hotel_results", id)

	s.tabs["hotel_results"] = &tab{id: "hotel_results"}
	assert.Equal(t, "hotel_results_3", s.nextTabID("Hotel Results"))
}
