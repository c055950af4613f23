package wishpage

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/wishpage/page"
	"github.com/eringen/wishpage/views"
)

const healthTimeout = 3 * time.Second

// generateFailed is the only failure detail a generation client sees for
// server-side errors.
const generateFailed = "could not generate page"

func (a *App) siteConfig() views.SiteConfig {
	return views.SiteConfig{Name: a.Config.Name, URL: a.Config.URL}
}

func (a *App) handleLanding(c echo.Context) error {
	return Render(c, views.Landing(views.LandingData{
		Site: a.siteConfig(),
		Templates: []views.Option{
			{Label: "Birthday", Value: page.TemplateBirthday},
			{Label: "Anniversary", Value: page.TemplateAnniversary},
			{Label: "Congratulations", Value: page.TemplateCongratulations},
			{Label: "Custom", Value: page.TemplateCustom},
		},
		Gifts:       []views.Option{{Label: "Gift box", Value: page.DefaultGiftImage}},
		Tracks:      []views.Option{{Label: "Celebration melody", Value: page.DefaultMusic}},
		MusicSearch: true,
	}))
}

func (a *App) handleGenerate(c echo.Context) error {
	sub, err := submissionFromRequest(c)
	if err != nil {
		return err
	}

	log := a.requestLog(c)
	res, err := a.assembler.Assemble(c.Request().Context(), sub)
	a.metrics.generated.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		log.Error("generate failed", zap.String("kind", string(page.KindOf(err))), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": generateFailed})
	}

	link := BuildURL(a.publicBase(c), "generated", res.ID)
	log.Info("page link issued", zap.String("page_id", res.ID))
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, map[string]string{"link": link})
	}
	return c.Redirect(http.StatusSeeOther, link)
}

// submissionFromRequest maps the generation form onto a page.Submission.
// Plain urlencoded posts are accepted and simply carry no files.
func submissionFromRequest(c echo.Context) (page.Submission, error) {
	// Parse before reading fields so body errors surface here.
	form, err := c.MultipartForm()
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return page.Submission{}, he
		}
		return page.Submission{}, echo.NewHTTPError(http.StatusBadRequest, "malformed form").SetInternal(err)
	}

	sub := page.Submission{Fields: page.Fields{
		Name:          c.FormValue("name"),
		Title:         c.FormValue("title"),
		Messages:      c.FormValue("messages"),
		Template:      c.FormValue("template"),
		GiftSelected:  c.FormValue("gift_image_selected"),
		MusicSelected: c.FormValue("music_selected"),
		MusicOption:   c.FormValue("music_option"),
	}}
	if form == nil {
		return sub, nil
	}

	sub.Main = firstUpload(form.File["main_image"])
	sub.Gift = firstUpload(form.File["gift_image"])
	sub.Music = firstUpload(form.File["music"])
	for _, fh := range form.File["gallery"] {
		if fh.Filename != "" {
			sub.Gallery = append(sub.Gallery, toUpload(fh))
		}
	}
	return sub, nil
}

func firstUpload(files []*multipart.FileHeader) *page.Upload {
	for _, fh := range files {
		if fh.Filename != "" {
			u := toUpload(fh)
			return &u
		}
	}
	return nil
}

func toUpload(fh *multipart.FileHeader) page.Upload {
	return page.Upload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// publicBase is the configured site URL, or the scheme and host the request
// arrived on.
func (a *App) publicBase(c echo.Context) string {
	if a.Config.URL != "" {
		return a.Config.URL
	}
	return c.Scheme() + "://" + c.Request().Host
}

func (a *App) handlePage(c echo.Context) error {
	body, err := a.resolver.ResolvePage(c.Request().Context(), c.Param("id"))
	a.metrics.resolved.WithLabelValues("page", outcome(err)).Inc()
	if err != nil {
		return a.resolveError(c, err)
	}
	return c.HTMLBlob(http.StatusOK, body)
}

func (a *App) handleGallery(c echo.Context) error {
	body, err := a.resolver.ResolveGallery(c.Request().Context(), c.Param("id"))
	a.metrics.resolved.WithLabelValues("gallery", outcome(err)).Inc()
	if err != nil {
		return a.resolveError(c, err)
	}
	return c.HTMLBlob(http.StatusOK, body)
}

func (a *App) resolveError(c echo.Context, err error) error {
	if page.IsNotFound(err) {
		return RenderStatus(c, http.StatusNotFound, views.NotFound(a.siteConfig()))
	}
	a.requestLog(c).Error("resolve failed", zap.String("page_id", c.Param("id")), zap.Error(err))
	c.Response().Header().Set("Cache-Control", "no-store")
	return RenderStatus(c, http.StatusInternalServerError, views.ServerError(a.siteConfig()))
}

func (a *App) handleAsset(c echo.Context) error {
	p, err := a.assetFiles.Path(c.Param("id"), c.Param("filename"))
	if err != nil {
		return echo.ErrNotFound
	}
	return c.File(p)
}

func (a *App) handleMusicSearch(c echo.Context) error {
	tracks, err := a.music.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		a.requestLog(c).Warn("music search failed", zap.Error(err))
	}
	return c.JSON(http.StatusOK, tracks)
}

func (a *App) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string)
	for name, ping := range a.pingers() {
		if err := ping(ctx); err != nil {
			a.Log.Warn("health check failed", zap.String("check", name), zap.Error(err))
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	result := "ok"
	if status != http.StatusOK {
		result = "degraded"
	}
	return c.JSON(status, map[string]any{"status": result, "checks": checks})
}

// requestLog returns the app logger tagged with the request id.
func (a *App) requestLog(c echo.Context) *zap.Logger {
	return a.Log.With(zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)))
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if c.Request().URL.Path == "/generate" {
		a.generateError(c, he, err)
		return
	}
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, views.NotFound(a.siteConfig()))
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.requestLog(c).Error("server error", zap.String("uri", c.Request().RequestURI), zap.Error(err))
		c.Response().Header().Set("Cache-Control", "no-store")
		_ = RenderStatus(c, code, views.ServerError(a.siteConfig()))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}

// generateError answers a failed generation request with {"error": msg},
// whichever layer (limiter, body limit, form parsing) rejected it.
func (a *App) generateError(c echo.Context, he *echo.HTTPError, err error) {
	code := http.StatusInternalServerError
	msg := generateFailed
	if he != nil {
		code = he.Code
		if m, ok := he.Message.(string); ok && code < 500 {
			msg = m
		}
	}
	if code >= 500 {
		a.requestLog(c).Error("generate failed", zap.Error(err))
	}
	_ = c.JSON(code, map[string]string{"error": msg})
}
