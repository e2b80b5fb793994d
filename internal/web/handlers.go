package web

import (
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/hpungsan/moodmart/internal/config"
	"github.com/hpungsan/moodmart/internal/errors"
	"github.com/hpungsan/moodmart/internal/mood"
	"github.com/hpungsan/moodmart/internal/ops"
	"github.com/hpungsan/moodmart/internal/safefile"
)

// multipartMemory is how much of an upload ParseMultipartForm keeps in memory.
const multipartMemory = 8 << 20

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	deps     *ops.Deps
	renderer *Renderer
}

// HandleIndex handles GET /: the mood form.
func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	h.renderer.renderPage(w, r, "index", h.indexData())
}

// HandlePredict handles POST /mood: classify text and show the recommendation.
func (h *Handlers) HandlePredict(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form body"))
		return
	}
	text := r.PostFormValue("text")

	out, err := ops.Predict(r.Context(), h.deps, ops.PredictInput{Text: text})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, out)
		return
	}

	data := h.indexData()
	data.Text = text
	data.Result = resultView(out)

	// If htmx targets #result, render only the result section
	if isHTMX(r, "result") {
		h.renderer.renderBlock(w, http.StatusOK, "index", "result", data)
		return
	}
	h.renderer.renderPage(w, r, "index", data)
}

// HandleTranscribe handles POST /transcribe: turn an uploaded voice clip
// into text and pre-fill the form with it.
func (h *Handlers) HandleTranscribe(w http.ResponseWriter, r *http.Request) {
	maxBytes := config.DefaultConfig().MaxUploadBytes
	if h.deps.Config != nil {
		maxBytes = h.deps.Config.MaxUploadBytes
	}
	if maxBytes > 0 {
		if r.ContentLength > maxBytes {
			h.renderer.renderError(w, r, errors.NewPayloadTooLarge(maxBytes, r.ContentLength))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			h.renderer.renderError(w, r, errors.NewPayloadTooLarge(tooLarge.Limit, r.ContentLength))
			return
		}
		h.renderer.renderError(w, r, errors.NewInvalidRequest("expected a multipart form with an audio file"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, hdr, err := r.FormFile("audio")
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("audio file is required"))
		return
	}
	defer file.Close()

	out, err := ops.Transcribe(r.Context(), h.deps, ops.TranscribeInput{
		Audio:    file,
		Filename: hdr.Filename,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, out)
		return
	}

	data := h.indexData()
	if out.Recognized {
		data.Text = out.Text
	} else {
		data.Notice = out.Text
	}

	if isHTMX(r, "mood-form") {
		h.renderer.renderBlock(w, http.StatusOK, "index", "form", data)
		return
	}
	h.renderer.renderPage(w, r, "index", data)
}

// HandleChart handles GET /chart: render the mood chart and serve the PNG.
func (h *Handlers) HandleChart(w http.ResponseWriter, r *http.Request) {
	out, err := ops.Chart(r.Context(), h.deps, ops.ChartInput{})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if out == nil {
		h.renderer.renderError(w, r, errors.NewNoHistory())
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	h.serveFile(w, r, out.Path, "image/png", "")
}

// HandleExport handles GET /export: download the mood log as CSV.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	out, err := ops.Export(r.Context(), h.deps, ops.ExportInput{})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if out == nil {
		h.renderer.renderError(w, r, errors.NewNoHistory())
		return
	}

	h.serveFile(w, r, out.Path, "text/csv; charset=utf-8", "mood_history.csv")
}

// HandleHistory handles GET /history: page through logged classifications.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	moodParam := r.URL.Query().Get("mood")

	result, err := ops.List(r.Context(), h.deps, ops.ListInput{
		Mood:   moodParam,
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
		Newest: true,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	data := HistoryPageData{
		PageData:   h.renderer.page("History", "history"),
		Items:      result.Items,
		Pagination: result.Pagination,
		Mood:       moodParam,
		Moods:      mood.Labels,
	}

	// If htmx targets #entries, render only the table
	if isHTMX(r, "entries") {
		h.renderer.renderBlock(w, http.StatusOK, "history", "entries", data)
		return
	}
	h.renderer.renderPage(w, r, "history", data)
}

// HandleStats handles GET /stats: per-mood counts as JSON.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	out, err := ops.Stats(r.Context(), h.deps, ops.StatsInput{
		Since: r.URL.Query().Get("since"),
		Until: r.URL.Query().Get("until"),
	})
	if err != nil {
		renderJSONError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// serveFile streams a file without following symlinks. A non-empty
// attachment name makes the browser download it.
func (h *Handlers) serveFile(w http.ResponseWriter, r *http.Request, path, contentType, attachment string) {
	f, err := safefile.OpenNoFollowRead(path)
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInternal(err))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentType)
	if attachment != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+attachment+`"`)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		h.renderer.logger.Warn("response copy failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
}

func (h *Handlers) indexData() IndexPageData {
	return IndexPageData{
		PageData:   h.renderer.page("MoodMart", "home"),
		HasHistory: h.deps.Log.Exists(),
	}
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
