package page

import (
	"io"
	"strings"
)

// Limits applied to every submission.
const (
	MaxMessages = 20
	MaxGallery  = 8
	DefaultName = "Friend"

	DefaultGiftImage = "/static/default_gift.png"
	DefaultMusic     = "/static/default_music.mp3"
)

// Fields are the scalar values of a generation form.
type Fields struct {
	Name          string
	Title         string
	Messages      string // newline-delimited
	Template      string
	GiftSelected  string // preset gift image chosen instead of an upload
	MusicSelected string // preset or searched track chosen instead of an upload
	MusicOption   string // dropdown preset, consulted after MusicSelected
}

// Upload is one file received for a slot.
type Upload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// Submission is a complete generation request.
type Submission struct {
	Fields  Fields
	Main    *Upload
	Gift    *Upload
	Music   *Upload
	Gallery []Upload
}

type parsedFields struct {
	name     string
	title    string
	messages []string
	template string
}

func parseFields(f Fields) parsedFields {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		name = DefaultName
	}

	selector := strings.TrimSpace(f.Template)
	if selector == "" {
		selector = DefaultTemplate
	}
	title := strings.TrimSpace(f.Title)
	if title == "" {
		title = DefaultTitle(selector)
	}

	return parsedFields{
		name:     name,
		title:    title,
		messages: ParseMessages(f.Messages),
		template: ResolveTemplate(selector),
	}
}

// ParseMessages splits raw text on newlines, trims each line, drops blank
// lines and keeps at most MaxMessages entries.
func ParseMessages(raw string) []string {
	messages := make([]string, 0)
	for _, line := range strings.Split(raw, "\n") {
		if len(messages) == MaxMessages {
			break
		}
		if m := strings.TrimSpace(line); m != "" {
			messages = append(messages, m)
		}
	}
	return messages
}

// firstNonEmpty returns the first argument that is not blank after trimming.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
