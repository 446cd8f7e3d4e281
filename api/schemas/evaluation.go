package schemas

import "time"

// -- Quality Evaluation Schemas --

// Feature identifies one evaluable aspect of a travel-booking site.
type Feature string

const (
	FeatureRelevanceOfTopListings Feature = "relevance_of_top_listings"
	FeatureAutocomplete           Feature = "autocomplete_for_destinations_hotels"
	FeatureFivePartnersPerHotel   Feature = "five_partners_per_hotel"
	FeatureMapExperience          Feature = "map_experience"
)

// Website is one evaluation target. Key is the stable identifier used for
// per-site instruction overrides and artifact names; Instructions, when set,
// override the generic navigation guidance for this site.
type Website struct {
	Key          string `json:"key"`
	URL          string `json:"url"`
	Instructions string `json:"instructions,omitempty"`
}

// Rating is the 1-7 quality scale the evaluator applies per check.
type Rating int

const (
	RatingTerrible  Rating = 1
	RatingVeryBad   Rating = 2
	RatingBad       Rating = 3
	RatingNeutral   Rating = 4
	RatingGood      Rating = 5
	RatingVeryGood  Rating = 6
	RatingExcellent Rating = 7
)

// String returns the rubric label for the rating.
func (r Rating) String() string {
	switch r {
	case RatingTerrible:
		return "Terrible"
	case RatingVeryBad:
		return "Very Bad"
	case RatingBad:
		return "Bad"
	case RatingNeutral:
		return "Neutral"
	case RatingGood:
		return "Good"
	case RatingVeryGood:
		return "Very Good"
	case RatingExcellent:
		return "Excellent"
	default:
		return "Unrated"
	}
}

// Observation is one structured note the recorder stores while driving a
// site. Step numbers are assigned in arrival order.
type Observation struct {
	Step      int       `json:"step"`
	Action    string    `json:"action"`
	Result    string    `json:"result"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SiteRecording is the full outcome of one recorder run against one website.
// Err is set when the run failed; the transcript and observations up to the
// failure are still kept so the comparison can note what happened.
type SiteRecording struct {
	Website      Website       `json:"website"`
	Feature      Feature       `json:"feature"`
	SessionName  string        `json:"session_name"`
	Transcript   string        `json:"transcript"`
	Observations []Observation `json:"observations"`
	Steps        int           `json:"steps"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
	ReplayLinks  []string      `json:"replay_links,omitempty"`
	Err          string        `json:"error,omitempty"`
}

// ComparisonReport is the evaluator's cross-site verdict for one feature.
type ComparisonReport struct {
	Feature     Feature   `json:"feature"`
	Websites    []string  `json:"websites"`
	Markdown    string    `json:"markdown"`
	GeneratedAt time.Time `json:"generated_at"`
}
