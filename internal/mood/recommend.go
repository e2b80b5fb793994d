package mood

import (
	"fmt"
	"strings"
)

// Link is a named URL rendered as a markdown link.
type Link struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Markdown returns the link as "[name](url)".
func (l Link) Markdown() string {
	return fmt.Sprintf("[%s](%s)", l.Name, l.URL)
}

// Recommendation is the fixed response for a mood label.
type Recommendation struct {
	Mood     Label   `json:"mood"`
	Song     Link    `json:"song"`
	Products [3]Link `json:"products"`
	Tip      string  `json:"tip"`
}

var recommendations = map[Label]Recommendation{
	Negative: {
		Mood: Negative,
		Song: Link{"Someone Like You - Adele", "https://open.spotify.com/track/4kflIGfjdZJW4ot2ioixTB"},
		Products: [3]Link{
			{"Tissues", "https://www.amazon.in/s?k=tissues"},
			{"Journal", "https://www.amazon.in/s?k=journal"},
			{"Comfort food", "https://www.amazon.in/s?k=comfort+food"},
		},
		Tip: "It’s okay to feel down. Take a deep breath. ❤️",
	},
	Positive: {
		Mood: Positive,
		Song: Link{"Happy - Pharrell Williams", "https://open.spotify.com/track/6NPVjNh8Jhru9xOmyQigds"},
		Products: [3]Link{
			{"Sunglasses", "https://www.amazon.in/s?k=sunglasses"},
			{"Party Lights", "https://www.amazon.in/s?k=party+lights"},
			{"Travel Backpack", "https://www.amazon.in/s?k=travel+backpack"},
		},
		Tip: "You’re on fire! 🔥 Maybe share your joy with someone?",
	},
	Neutral: {
		Mood: Neutral,
		Song: Link{"Weightless - Marconi Union", "https://open.spotify.com/track/1bDbXMyjaUIooNwFE9wn0N"},
		Products: [3]Link{
			{"Notebook", "https://www.amazon.in/s?k=notebook"},
			{"Indoor Plant", "https://www.amazon.in/s?k=indoor+plant"},
			{"Scented Candle", "https://www.amazon.in/s?k=scented+candle"},
		},
		Tip: "Balance is good. Keep it steady 💪",
	},
}

// Recommend returns the canned recommendation for l. Unknown labels get the
// Neutral recommendation.
func Recommend(l Label) Recommendation {
	if r, ok := recommendations[l]; ok {
		return r
	}
	return recommendations[Neutral]
}

// SongMarkdown returns the song as a markdown link.
func (r Recommendation) SongMarkdown() string {
	return r.Song.Markdown()
}

// ProductsMarkdown returns the product links joined by two spaces.
func (r Recommendation) ProductsMarkdown() string {
	parts := make([]string, len(r.Products))
	for i, p := range r.Products {
		parts[i] = p.Markdown()
	}
	return strings.Join(parts, "  ")
}
