package views

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/wishpage/manifest"
	"github.com/eringen/wishpage/page"
)

var _ page.Renderer = Templates{}

func renderPage(t *testing.T, template string, data manifest.Context) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Templates{}.RenderPage(context.Background(), &buf, template, data))
	return buf.String()
}

func TestRenderPage(t *testing.T) {
	main := "/generated/abc/assets/abc_main_me.png"
	html := renderPage(t, page.TemplateAnniversary, manifest.Context{
		Name:        "Dana",
		Title:       "💖 Happy Anniversary",
		Messages:    []string{"first", "second"},
		MainImage:   &main,
		GiftImage:   "/static/default_gift.png",
		Music:       "/static/default_music.mp3",
		GalleryLink: "/generated/abc/gallery",
	})

	assert.True(t, strings.HasPrefix(html, "<!doctype html>"))
	assert.Contains(t, html, "<title>💖 Happy Anniversary</title>")
	assert.Contains(t, html, `data-theme="anniversary"`)
	assert.Contains(t, html, "<strong>Dana</strong>")
	assert.Contains(t, html, `<p class="message">first</p><p class="message">second</p>`)
	assert.Contains(t, html, `src="/generated/abc/assets/abc_main_me.png"`)
	assert.Contains(t, html, `<audio class="player" src="/static/default_music.mp3"`)
	assert.Contains(t, html, `href="/generated/abc/gallery"`)
}

func TestRenderPageOmitsEmptySections(t *testing.T) {
	html := renderPage(t, page.TemplateBirthday, manifest.Context{Name: "Friend", Title: "t", Messages: []string{}})
	assert.NotContains(t, html, "main-image")
	assert.NotContains(t, html, `class="messages"`)
	assert.Contains(t, html, `data-theme="birthday"`)
}

func TestRenderPageEscapesUserText(t *testing.T) {
	html := renderPage(t, page.TemplateCustom, manifest.Context{
		Name:     `<script>alert(1)</script>`,
		Title:    `"quoted" & <b>`,
		Messages: []string{"<img src=x onerror=alert(1)>"},
		Music:    "javascript:alert(1)",
	})
	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.NotContains(t, html, "<img src=x")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.NotContains(t, html, `src="javascript:`)
}

func TestRenderPageSpotifyEmbed(t *testing.T) {
	html := renderPage(t, page.TemplateBirthday, manifest.Context{
		Music: "https://open.spotify.com/embed/track/abc",
	})
	assert.Contains(t, html, `<iframe class="player" src="https://open.spotify.com/embed/track/abc"`)
	assert.NotContains(t, html, "<audio")
}

func TestRenderGallery(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Templates{}.RenderGallery(context.Background(), &buf, []string{"/a.png", "/b.png"}, "/static/x.mp3"))
	html := buf.String()
	assert.Equal(t, 2, strings.Count(html, "<figure>"))
	assert.Contains(t, html, `src="/a.png"`)
	assert.Contains(t, html, `src="/static/x.mp3"`)

	buf.Reset()
	require.NoError(t, Templates{}.RenderGallery(context.Background(), &buf, nil, "/static/x.mp3"))
	assert.Contains(t, buf.String(), "No photos were added")
}

func TestLanding(t *testing.T) {
	var buf bytes.Buffer
	err := Landing(LandingData{
		Site:      SiteConfig{Name: "Wishpage"},
		Templates: []Option{{Label: "Birthday", Value: "birthday.html"}},
		Gifts:     []Option{{Label: "Gift box", Value: "/static/default_gift.png"}},
		Tracks:    []Option{{Label: "Default melody", Value: "/static/default_music.mp3"}},
	}).Render(context.Background(), &buf)
	require.NoError(t, err)
	html := buf.String()
	assert.Contains(t, html, `<option value="birthday.html">Birthday</option>`)
	assert.Contains(t, html, `name="gift_image_selected" value="/static/default_gift.png"`)
	assert.Contains(t, html, `name="gallery" accept="image/*" multiple`)
	assert.NotContains(t, html, "music-search")
}

func TestErrorPages(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NotFound(SiteConfig{Name: "Wishpage"}).Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), "This page does not exist")

	buf.Reset()
	require.NoError(t, ServerError(SiteConfig{Name: "Wishpage"}).Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), "Back to Wishpage")
}

func TestThemeFor(t *testing.T) {
	assert.Equal(t, "congratulations", ThemeFor(page.TemplateCongratulations).Key)
	assert.Equal(t, "birthday", ThemeFor("unknown.html").Key)
	assert.True(t, IsEmbed("https://open.spotify.com/embed/track/1"))
	assert.False(t, IsEmbed("/static/default_music.mp3"))
	assert.Equal(t, "about:invalid#TemplFailedSanitizationURL", MediaURL("javascript:alert(1)"))
}
