package page

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/eringen/wishpage/assets"
	"github.com/eringen/wishpage/manifest"
)

const fixedID = "0123456789abcdef0123456789abcdef"

var fixedNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestAssembler(t *testing.T, as *memAssets, ms *memManifests, opts ...AssemblerOption) *Assembler {
	t.Helper()
	base := []AssemblerOption{
		WithLogger(zaptest.NewLogger(t)),
		WithIDGenerator(func() string { return fixedID }),
		WithClock(func() time.Time { return fixedNow }),
	}
	return NewAssembler(as, ms, append(base, opts...)...)
}

func TestAssembleWorkedExample(t *testing.T) {
	as, ms := newMemAssets(), newMemManifests()
	a := newTestAssembler(t, as, ms)

	res, err := a.Assemble(context.Background(), Submission{Fields: Fields{
		Name:     "Alice",
		Title:    "",
		Messages: "Hi\n\nThere",
		Template: "birthday.html",
	}})
	require.NoError(t, err)
	assert.Equal(t, fixedID, res.ID)
	assert.Equal(t, "/generated/"+fixedID+"/", res.Path)

	m := ms.only(t)
	assert.Equal(t, fixedID, m.ID)
	assert.Equal(t, "birthday.html", m.Template)
	assert.Equal(t, fixedNow, m.CreatedAt)
	assert.Equal(t, manifest.Context{
		Name:          "Alice",
		Title:         "🎉 Happy Birthday",
		Messages:      []string{"Hi", "There"},
		MainImage:     nil,
		GiftImage:     "/static/default_gift.png",
		Music:         "/static/default_music.mp3",
		GalleryLink:   "/generated/" + fixedID + "/gallery",
		GalleryImages: []string{},
	}, m.Context)
	assert.Zero(t, as.count())
}

func TestAssembleDefaults(t *testing.T) {
	ms := newMemManifests()
	_, err := newTestAssembler(t, newMemAssets(), ms).Assemble(context.Background(), Submission{})
	require.NoError(t, err)

	m := ms.only(t)
	assert.Equal(t, DefaultName, m.Context.Name)
	assert.Equal(t, DefaultTemplate, m.Template)
	assert.Equal(t, "🎉 Happy Birthday", m.Context.Title)
	assert.NotNil(t, m.Context.Messages)
	assert.Empty(t, m.Context.Messages)
}

func TestAssembleBounds(t *testing.T) {
	lines := make([]string, 30)
	for i := range lines {
		lines[i] = fmt.Sprintf("  message %d  ", i)
	}
	as, ms := newMemAssets(), newMemManifests()
	_, err := newTestAssembler(t, as, ms).Assemble(context.Background(), Submission{
		Fields:  Fields{Name: "Bob", Messages: strings.Join(lines, "\r\n")},
		Gallery: galleryFiles(12),
	})
	require.NoError(t, err)

	m := ms.only(t)
	require.Len(t, m.Context.Messages, MaxMessages)
	assert.Equal(t, "message 0", m.Context.Messages[0])
	assert.Equal(t, "message 19", m.Context.Messages[19])
	assert.Len(t, m.Context.GalleryImages, MaxGallery)
	assert.Equal(t, MaxGallery, as.count())
}

func TestAssembleGalleryKeepsSubmissionOrder(t *testing.T) {
	as, ms := newMemAssets(), newMemManifests()
	// Earlier slots take longer, so completion order is the reverse of submission order.
	as.delay = func(slot string) time.Duration {
		var i int
		fmt.Sscanf(slot, "g%d", &i)
		return time.Duration(5-i) * 10 * time.Millisecond
	}
	_, err := newTestAssembler(t, as, ms, WithWorkers(5)).Assemble(context.Background(), Submission{
		Gallery: []Upload{file("f1.png", "1"), file("f2.png", "2"), file("f3.png", "3")},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/generated/" + fixedID + "/assets/" + fixedID + "_g0_f1.png",
		"/generated/" + fixedID + "/assets/" + fixedID + "_g1_f2.png",
		"/generated/" + fixedID + "/assets/" + fixedID + "_g2_f3.png",
	}, ms.only(t).Context.GalleryImages)
}

func TestAssembleGallerySkipsDisallowedFiles(t *testing.T) {
	ms := newMemManifests()
	_, err := newTestAssembler(t, newMemAssets(), ms).Assemble(context.Background(), Submission{
		Gallery: []Upload{file("a.png", "a"), file("notes.txt", "x"), file("b.webp", "b"), file("song.mp3", "m")},
	})
	require.NoError(t, err)

	imgs := ms.only(t).Context.GalleryImages
	require.Len(t, imgs, 2)
	assert.True(t, strings.HasSuffix(imgs[0], "_g0_a.png"))
	assert.True(t, strings.HasSuffix(imgs[1], "_g1_b.webp"))
}

func TestAssembleGiftFallbackChain(t *testing.T) {
	tests := []struct {
		name     string
		upload   *Upload
		selected string
		want     string
	}{
		{"uploaded image wins", filePtr("gift.png", "g"), "/static/gifts/rose.png", "/generated/" + fixedID + "/assets/" + fixedID + "_gift_gift.png"},
		{"disallowed upload falls to selection", filePtr("gift.txt", "g"), "/static/gifts/rose.png", "/static/gifts/rose.png"},
		{"disallowed upload falls to default", filePtr("gift.txt", "g"), "", DefaultGiftImage},
		{"blank selection falls to default", nil, "   ", DefaultGiftImage},
		{"selection only", nil, "/static/gifts/cake.png", "/static/gifts/cake.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := newMemManifests()
			_, err := newTestAssembler(t, newMemAssets(), ms).Assemble(context.Background(), Submission{
				Fields: Fields{GiftSelected: tt.selected},
				Gift:   tt.upload,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ms.only(t).Context.GiftImage)
		})
	}
}

func TestAssembleMusicFallbackChain(t *testing.T) {
	tests := []struct {
		name   string
		upload *Upload
		fields Fields
		want   string
	}{
		{"uploaded track wins", filePtr("Our Song.MP3", "m"), Fields{MusicSelected: "https://x/preview.m4a"}, "/generated/" + fixedID + "/assets/" + fixedID + "_music_our-song.mp3"},
		{"image as music is rejected", filePtr("cover.png", "m"), Fields{MusicSelected: " https://x/preview.m4a "}, "https://x/preview.m4a"},
		{"option after selection", nil, Fields{MusicOption: "/static/music/happy.mp3"}, "/static/music/happy.mp3"},
		{"selection before option", nil, Fields{MusicSelected: "a", MusicOption: "b"}, "a"},
		{"default", nil, Fields{}, DefaultMusic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := newMemManifests()
			_, err := newTestAssembler(t, newMemAssets(), ms).Assemble(context.Background(), Submission{
				Fields: tt.fields,
				Music:  tt.upload,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ms.only(t).Context.Music)
		})
	}
}

func TestAssembleMainImage(t *testing.T) {
	ms := newMemManifests()
	_, err := newTestAssembler(t, newMemAssets(), ms).Assemble(context.Background(), Submission{
		Main: filePtr("Me.JPG", "face"),
	})
	require.NoError(t, err)

	main := ms.only(t).Context.MainImage
	require.NotNil(t, main)
	assert.Equal(t, "/generated/"+fixedID+"/assets/"+fixedID+"_main_me.jpg", *main)
}

func TestAssembleRejectedMainImageIsAbsent(t *testing.T) {
	ms := newMemManifests()
	_, err := newTestAssembler(t, newMemAssets(), ms).Assemble(context.Background(), Submission{
		Main: filePtr("resume.pdf", "%PDF"),
	})
	require.NoError(t, err)
	assert.Nil(t, ms.only(t).Context.MainImage)
}

func TestAssembleTemplateAndTitle(t *testing.T) {
	tests := []struct {
		selector, title       string
		wantTemplate, wantTit string
	}{
		{"anniversary.html", "", "anniversary.html", "💖 Happy Anniversary"},
		{"congratulations.html", "", "congratulations.html", "🎊 Congratulations"},
		{"custom.html", "", "custom.html", GenericTitle},
		{"../../etc/passwd", "", DefaultTemplate, GenericTitle},
		{"wedding.html", "", DefaultTemplate, GenericTitle},
		{"birthday.html", "  For You  ", "birthday.html", "For You"},
	}
	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			ms := newMemManifests()
			_, err := newTestAssembler(t, newMemAssets(), ms).Assemble(context.Background(), Submission{
				Fields: Fields{Template: tt.selector, Title: tt.title},
			})
			require.NoError(t, err)
			m := ms.only(t)
			assert.Equal(t, tt.wantTemplate, m.Template)
			assert.Equal(t, tt.wantTit, m.Context.Title)
		})
	}
}

func TestAssembleUploadFailureWritesNoManifest(t *testing.T) {
	as, ms := newMemAssets(), newMemManifests()
	as.failSlot = "g1"

	res, err := newTestAssembler(t, as, ms).Assemble(context.Background(), Submission{
		Main:    filePtr("me.png", "m"),
		Gallery: galleryFiles(3),
	})
	require.Error(t, err)
	assert.Empty(t, res.ID)
	assert.Equal(t, KindUpload, KindOf(err))

	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "g1", pe.Slot)
	assert.Empty(t, ms.byID)
}

func TestAssembleManifestFailure(t *testing.T) {
	ms := newMemManifests()
	ms.putErr = errors.New("read-only filesystem")

	res, err := newTestAssembler(t, newMemAssets(), ms).Assemble(context.Background(), Submission{
		Fields: Fields{Name: "Carol"},
	})
	require.Error(t, err)
	assert.Equal(t, KindManifest, KindOf(err))
	assert.Empty(t, res.ID)
	assert.Empty(t, res.Path)
	assert.NotContains(t, err.Error(), "Carol")
}

func TestAssembleBoundsConcurrentUploads(t *testing.T) {
	as, ms := newMemAssets(), newMemManifests()
	as.delay = func(string) time.Duration { return 15 * time.Millisecond }

	_, err := newTestAssembler(t, as, ms, WithWorkers(2)).Assemble(context.Background(), Submission{
		Main:    filePtr("main.png", "m"),
		Gift:    filePtr("gift.png", "g"),
		Gallery: galleryFiles(8),
	})
	require.NoError(t, err)

	assert.Equal(t, 10, as.count())
	assert.LessOrEqual(t, as.maxInFlight.Load(), int32(2))
	assert.Equal(t, int32(0), as.inFlight.Load(), "uploads outstanding after Assemble returned")
}

func TestAssembleUploadTimeout(t *testing.T) {
	as, ms := newMemAssets(), newMemManifests()
	as.block = true

	start := time.Now()
	_, err := newTestAssembler(t, as, ms, WithUploadTimeout(20*time.Millisecond)).Assemble(context.Background(), Submission{
		Gallery: galleryFiles(2),
	})
	require.Error(t, err)
	assert.Equal(t, KindUpload, KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Empty(t, ms.byID)
}

func TestAssembleObservesUploads(t *testing.T) {
	var slots []string
	observer := func(slot string, _ assets.Kind, _ time.Duration, err error) {
		if err == nil {
			slots = append(slots, slot)
		}
	}
	_, err := newTestAssembler(t, newMemAssets(), newMemManifests(),
		WithWorkers(1),
		WithUploadObserver(observer),
	).Assemble(context.Background(), Submission{Gallery: galleryFiles(2)})
	require.NoError(t, err)
	assert.Equal(t, []string{"g0", "g1"}, slots)
}

func TestAssembleFreshIdentifiers(t *testing.T) {
	ms := newMemManifests()
	a := NewAssembler(newMemAssets(), ms)

	r1, err := a.Assemble(context.Background(), Submission{})
	require.NoError(t, err)
	r2, err := a.Assemble(context.Background(), Submission{})
	require.NoError(t, err)

	assert.NotEqual(t, r1.ID, r2.ID)
	assert.True(t, ValidID(r1.ID), r1.ID)
	assert.True(t, ValidID(r2.ID), r2.ID)
	assert.Len(t, ms.byID, 2)
}
