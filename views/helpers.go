package views

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/eringen/wishpage/manifest"
	"github.com/eringen/wishpage/page"
)

var themes = map[string]Theme{
	page.TemplateBirthday:        {Key: "birthday", Emoji: "🎂", Greeting: "Wishing a wonderful day to"},
	page.TemplateAnniversary:     {Key: "anniversary", Emoji: "💞", Greeting: "Celebrating you,"},
	page.TemplateCongratulations: {Key: "congratulations", Emoji: "🏆", Greeting: "Well done,"},
	page.TemplateCustom:          {Key: "custom", Emoji: "✨", Greeting: "For"},
}

// ThemeFor returns the theme of a template, using the birthday theme for
// anything unrecognized.
func ThemeFor(template string) Theme {
	if t, ok := themes[template]; ok {
		return t
	}
	return themes[page.DefaultTemplate]
}

// IsEmbed reports whether music is an embeddable player rather than an audio file.
func IsEmbed(music string) bool {
	return strings.HasPrefix(music, "https://open.spotify.com/embed/")
}

// MediaURL sanitizes a stored asset reference for use in src attributes.
func MediaURL(s string) string {
	return string(templ.URL(s))
}

// Templates renders generated pages. It implements page.Renderer.
type Templates struct{}

// RenderPage writes the themed page for template.
func (Templates) RenderPage(ctx context.Context, w io.Writer, template string, data manifest.Context) error {
	return Page(ThemeFor(template), data).Render(ctx, w)
}

// RenderGallery writes the gallery page.
func (Templates) RenderGallery(ctx context.Context, w io.Writer, images []string, music string) error {
	return Gallery(images, music).Render(ctx, w)
}
