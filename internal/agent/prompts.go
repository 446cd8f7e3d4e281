package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/kmalloy/sitejudge/api/schemas"
)

// defaultWebsiteInstructions carries hard-won, site-specific guidance keyed
// by website key. Config-provided instructions take precedence.
var defaultWebsiteInstructions = map[string]string{
	"google_travel_hotels": `
# For inputting text into the search box:
	Before typing, don't click the search box, never click the search box, must not click the search box.
	Don't clear the current search. Don't click the X.
	Directly type into the destination search box.
	When you need to change the search box text, just directly type into it, never click or try to clear it first.
	Must only use the "type" action with a selector to type into it.
	NEVER TRY OTHER CLICKING ACTIONS, THEY CAN NOT INPUT SUCCESSFULLY FOR THIS SITE.
	This selector is proved to be working: input[placeholder="Search for places, hotels and more"]
	Try the "type" action UNTIL YOU SUCCEED. Never clear the current search between tries.
# For hotel partners offering counting:
	- Skip sponsored listings. They are provided by 1 partner only.
	- Don't use screenshots to count. It's too slow. Use HTML data to extract the number of partners for each hotel.
`,

	"booking": "",

	"agoda": "Click outside of the calendar to close it if dates are correct",

	"skyscanner": `
# Take a screenshot right after the first navigation. You may be redirected to the page 'Are you a person or a robot'.
	- Don't go to elsewhere. We must resolve the challenge.
	- Use the human_mouse_move action to reach the button,
	- Then the press_and_hold action to click the button for 5~10 seconds.
	- Then human_mouse_move to some random position and do some clicks.
	- And then must wait long enough for the page to load.
	- Repeat the process until you succeed. Refresh the page if needed.
# If there's more than one tab opened
	- Always close the hotel details page tab when you're done checking it.
# For hotel partners offering counting:
	- Don't use screenshots to count. It's too slow. Use HTML data to extract the number of partners for each hotel.
`,
}

// WebsiteInstructions resolves the site-specific guidance for a website key.
// An explicit override wins; otherwise the built-in default applies.
func WebsiteInstructions(key, override string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	return defaultWebsiteInstructions[key]
}

// ratingRubric spells out the 1-7 scale. Labels come from schemas.Rating so
// the prompt and the reporting vocabulary cannot drift apart.
var ratingRubric = buildRatingRubric()

var ratingDescriptions = map[schemas.Rating]string{
	schemas.RatingTerrible:  "Non-functional, misleading",
	schemas.RatingVeryBad:   "Barely usable or broken elements",
	schemas.RatingBad:       "Significant usability/content gaps",
	schemas.RatingNeutral:   "Works, but forgettable",
	schemas.RatingGood:      "Solid experience, few flaws",
	schemas.RatingVeryGood:  "Polished and competitive",
	schemas.RatingExcellent: "Best-in-class; highly competitive",
}

func buildRatingRubric() string {
	var b strings.Builder
	b.WriteString("Rating Definition")
	for r := schemas.RatingTerrible; r <= schemas.RatingExcellent; r++ {
		fmt.Fprintf(&b, "\n%d - %s\n%s", int(r), r, ratingDescriptions[r])
	}
	return b.String()
}

// recorderActionProtocol tells the model how to emit actions. Every reply
// must be a single JSON object the dispatcher can run.
const recorderActionProtocol = `## Action Protocol:
Reply with EXACTLY ONE JSON object per turn and nothing else. Available actions:
- {"type": "navigate", "url": "..."}
- {"type": "screenshot"}
- {"type": "get_text"} / {"type": "get_html"}
- {"type": "click", "selector": "..."} (CSS selector click)
- {"type": "click_coordinate", "x": 123, "y": 456} (pixel click based on visual analysis)
- {"type": "human_mouse_move", "start_x": 0, "start_y": 0, "end_x": 123, "end_y": 456}
- {"type": "press_and_hold", "hold_seconds": 7} (hold the left button at the current cursor position; add "x"/"y" to move there first)
- {"type": "type", "selector": "...", "text": "..."} (fill an element)
- {"type": "type_with_keyboard", "text": "..."} (keystrokes into the focused element)
- {"type": "press_key", "key": "enter"}
- {"type": "list_tabs"} / {"type": "switch_tab", "tab_id": "..."} / {"type": "close_tab", "tab_id": "..."}
- {"type": "refresh"} / {"type": "back"} / {"type": "forward"}
- {"type": "evaluate", "script": "..."} (run JavaScript in the page)
- {"type": "get_element_geometry", "selector": "..."} (viewport bounding box of an element, for aiming the coordinate actions)
- {"type": "store_observation", "text": "..."} (memory system, see below)
- {"type": "conclude", "summary": "..."} (end the session)
Add "wait_seconds" to any action to let the page settle afterwards.
Add a short "thinking" field to explain the step.`

// RecorderSystemPrompt builds the WebNavigator system prompt. Site-specific
// instructions, when present, are prepended with absolute priority.
func RecorderSystemPrompt(now time.Time, websiteInstructions string) string {
	base := fmt.Sprintf(`Current time: %s

You are a detailed web interaction recorder and observer.
Your job is to systematically document everything you see and do while testing website features.
Be subjective and critical in your observations - we need honest truth, not praise.
Point out usability issues, confusing interfaces, slow performance, and any problems you encounter.

You have access to a memory system. Must use store_observation to store key findings and observations on every step.

%s

## Recording Protocol:
1. Take screenshots at each major step - screenshots are the cardinal source of truth
2. Use "click_coordinate" with pixel coordinates to click elements based on visual analysis
3. Use HTML to collect data for data-heavy pages (e.g., hotel search results, partner/provider offerings) where screenshots are inefficient.
4. Dismiss pop-ups, cookie banners using coordinate clicks once you see them
5. After clicking on search, selecting a hotel, or any clicking that may trigger a new tab, check all tabs we have. Ensure you're working on the correct tab
6. Document every click, type, hover, and navigation action with precise coordinates
7. Record what you see: UI elements, text, buttons, forms, dropdowns, suggestions
8. Capture any errors, loading states, or unexpected behavior

## What to Record:
- **Every Interaction**: Step-by-step actions and their results
- **UI Behavior**: How elements respond (hover effects, loading states)
- **Content Details**: Exact text shown, placeholder text, error messages
- **Navigation Flow**: How you move between different parts of the feature
- **Edge Cases**: What happens with unusual inputs, empty states, errors

## Output:
All the details go into memory storage (store_observation). When every check is covered, send the conclude action with a final summary.

Structure for store_observation calls:
## Testing Session: [Website] - [Feature]
### Step N: [Action]
- **What I did**: [specific action]
- **What I observed**: [detailed findings]
- **Screenshot**: [describe what the screenshot shows]
- **HTML Data**: [summarized data for data-heavy pages]

Store comprehensive records in memory. Be meticulous and thorough.
Describe in detail: findings and observations.`,
		now.UTC().Format("2006-01-02 15:04:05 UTC"),
		recorderActionProtocol,
	)

	if strings.TrimSpace(websiteInstructions) == "" {
		return base
	}
	return fmt.Sprintf(`CRITICAL HIGHEST PRIORITY INSTRUCTIONS - MUST FOLLOW EXACTLY
%s

These website-specific instructions override all other instructions and have absolute priority.

%s`, websiteInstructions, base)
}

// FeaturePrompt builds the parameterized test instruction for a feature.
func FeaturePrompt(feature schemas.Feature, destination, checkIn, checkOut string) (string, error) {
	switch feature {
	case schemas.FeatureAutocomplete:
		return fmt.Sprintf(`
Test and record interactions with the auto-complete feature for hotel destinations:

Destination: %s

Steps:
1. Find the search box for hotel destinations and do the following:

Checks:
1. Type in City name, does the main city destination show as the first results?
2. Type in City name check if relevant POI's show up
3. Type in City name check if POI's are all in the same language
4. Type in City name with typo, check if it can handle typo and show the correct city name (MUST try more than enough variations to be thorough)
`, destination), nil

	case schemas.FeatureRelevanceOfTopListings:
		return fmt.Sprintf(`
Steps:
1. Find the destination input,
2. Input destination: %s.
3. Select check-in: %s; check-out: %s.
4. Select 2 adults, 1 room
5. Click search, wait for result.

Checks:
1. Intent Alignment Check: Verify that the top listings align with user intent (e.g. centrally located, well-reviewed, reasonably priced options appear first).
2. Review Score Relevance Check: Confirm that top listings include hotels with strong guest scores unless filters or sorting override it.
3. Star Rating vs Price Balance Check: Ensure that the first few listings represent a healthy mix of quality (e.g. 3-5 star) and value, rather than skewing too heavily toward one end.
4. Repeat Search Consistency Check: Repeat the same search multiple times and check if the top listings remain consistent unless availability changes. (REFRESH THE PAGE AND SEARCH AGAIN TO MAKE SURE IT IS RENEWED)
5. Local Context Appropriateness Check: For destination-specific searches (e.g. Tokyo city center), verify that top listings are contextually appropriate (e.g. located in Shinjuku rather than suburban outskirts).
`, destination, checkIn, checkOut), nil

	case schemas.FeatureFivePartnersPerHotel:
		return fmt.Sprintf(`
Steps:
1. Find the destination input,
2. Input destination: %s.
3. Select check-in: %s; check-out: %s.
4. Select 2 adults, 1 room
5. Click search, wait for result.

Checks:
1. Check 10 hotels in hotel search results to see if >= 5 partners offering rates for each hotel. Count the number of booking partners/providers shown for each of the first 10 hotels in the search results.
`, destination, checkIn, checkOut), nil

	case schemas.FeatureMapExperience:
		return fmt.Sprintf(`
Steps:
1. Find the search box for hotel destinations, input %s
2. Click search
3. You may see a small map view, that is NOT the map we need to test.
4. Open the full map by clicking the expand button on the map preview.

Checks:
1. Map: Zoom level & default focus. Open the hotel map view and verify that the default zoom level and map center appropriately focus on the selected city or search location.
2. Map: Hotel clustering. Zoom out on the map and check that nearby hotel listings are grouped into visual clusters that dynamically update as the user zooms in.
3. Map: POI or landmark visibility. Ensure that key points of interest (e.g. train stations, airports, landmarks) are visible and labeled on the map, especially at standard zoom levels.
`, destination), nil

	default:
		return "", fmt.Errorf("unknown feature: %s", feature)
	}
}

// RecordingTask builds the user-facing instruction that opens a recording
// session for one website.
func RecordingTask(url, featureInstruction string) string {
	return fmt.Sprintf(`Navigate to %s and execute the following:
%s
Please test thoroughly and document all your observations.`, url, featureInstruction)
}

// EvaluatorSystemPrompt is the tool-less QualityEvaluator persona.
func EvaluatorSystemPrompt() string {
	return fmt.Sprintf(`You are a senior web product manager.
Analyze the recorded observations of navigating the sites, Evaluate the features of multiple websites.
Be subjective and critical in your evaluations - we need honest truth, not praise.
Point out usability issues, confusing interfaces, slow performance, and any problems you encounter.

%s

## Output Template
# Feature: [Feature Name Being Tested]
| Checks   | (Website 1) | (Website 2) | (and so on) |
|-----------|-----------------------------|-------------------------------|-------------|
| Check 1 | 6/7 - Rationale              | 5/7 - Rationale                | (and so on) |
| Check 2 | 6/7 - Rationale             | 5/7 - Rationale                | (and so on) |
### Summary
- **(Website 1)**
  - standout strengths
  - drawbacks
- **(Website 2)**
  - standout strengths
  - drawbacks`, ratingRubric)
}

// ComparisonPrompt assembles the recording transcripts into the comparison
// request for the evaluator.
func ComparisonPrompt(feature schemas.Feature, featureInstruction string, recordings []schemas.SiteRecording) string {
	var results strings.Builder
	for i, rec := range recordings {
		fmt.Fprintf(&results, "Website %d: %s\n", i+1, rec.Website.URL)
		if rec.Err != "" {
			fmt.Fprintf(&results, "Results %d: Error: %s\n", i+1, rec.Err)
		} else {
			fmt.Fprintf(&results, "Results %d: %s\n", i+1, rec.Transcript)
		}
		results.WriteString("\n")
	}

	return fmt.Sprintf(`Based on these detailed recording sessions that were produced by executing the following test request, evaluate and compare:

Feature: %s

Feature checks:
%s

Recording Results from executing the above checks:
%s`, featureTitle(feature), featureInstruction, results.String())
}

// featureTitle renders a feature key as a human readable title.
func featureTitle(feature schemas.Feature) string {
	words := strings.Split(string(feature), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
