package views

// SiteConfig holds site-wide settings passed to the landing and error pages.
type SiteConfig struct {
	Name string // SITE_NAME (default "Wishpage")
	URL  string // SITE_URL; empty when links are derived from the request
}

// Option is one entry of a select or preset list on the landing form.
type Option struct {
	Label string
	Value string
}

// LandingData feeds the generation form.
type LandingData struct {
	Site        SiteConfig
	Templates   []Option
	Gifts       []Option // preset gift images
	Tracks      []Option // preset music
	MusicSearch bool     // show the catalog search box
}

// Theme is the per-template look of a generated page.
type Theme struct {
	Key      string // data-theme attribute value
	Emoji    string
	Greeting string
}
