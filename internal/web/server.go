// Package web serves the JSON API, media assets, and the client
// single-page application from one process.
package web

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/conorfennell/deckserve/internal/anki"
	"github.com/conorfennell/deckserve/internal/importer"
	"github.com/conorfennell/deckserve/internal/storage"
)

// Options carry the filesystem roots and limits the server needs.
type Options struct {
	ClientDir      string
	MediaDir       string
	MaxUploadBytes int64
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	db        *storage.DB
	pipeline  *importer.Pipeline
	log       zerolog.Logger
	content   ContentRoot
	mediaDir  string
	maxUpload int64
}

// NewServer creates and configures a new server. The client bundle
// directory is probed once here, not per request.
func NewServer(db *storage.DB, pipeline *importer.Pipeline, log zerolog.Logger, opts Options) *Server {
	return &Server{
		db:        db,
		pipeline:  pipeline,
		log:       log,
		content:   ResolveContentRoot(opts.ClientDir),
		mediaDir:  opts.MediaDir,
		maxUpload: opts.MaxUploadBytes,
	}
}

// Handler builds the route tree. Reserved prefixes (/api, /media) are
// matched before the static catch-all; unknown API paths return JSON
// 404 and never fall through to static serving.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(chimiddleware.Recoverer)

	r.Route(apiPrefix, func(api chi.Router) {
		api.Get("/health", s.handleHealth)
		api.Get("/decks", s.handleListDecks)
		api.Get("/decks/{deckID}/cards", s.handleDeckCards)
		api.Post("/import/{kind}", s.handleImport)
		api.NotFound(func(w http.ResponseWriter, r *http.Request) {
			s.writeError(w, http.StatusNotFound, "unknown API route: "+r.URL.Path)
		})
	})

	r.Get(mediaPrefix+"/*", s.handleMedia)
	r.Get("/", s.handleIndex)
	r.Get("/*", s.handleCatchAll)

	return r
}

// handleHealth probes store connectivity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status": false,
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": true})
}

type deckResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CardCount   int       `json:"cardCount"`
	LessonCount int       `json:"lessonCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// handleListDecks returns all decks, newest first.
func (s *Server) handleListDecks(w http.ResponseWriter, r *http.Request) {
	decks, err := s.db.ListDecks(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list decks")
		s.writeError(w, http.StatusInternalServerError, "failed to list decks")
		return
	}

	out := make([]deckResponse, 0, len(decks))
	for _, d := range decks {
		out = append(out, deckResponse{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			CardCount:   d.CardCount,
			LessonCount: d.LessonCount,
			CreatedAt:   d.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"decks": out})
}

type cardResponse struct {
	ID        string    `json:"id"`
	Front     string    `json:"front"`
	Back      string    `json:"back"`
	AudioRef  string    `json:"audioRef,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// handleDeckCards returns the cards of one deck.
func (s *Server) handleDeckCards(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")

	deck, err := s.db.FindDeck(r.Context(), deckID)
	if err != nil {
		s.log.Error().Err(err).Str("deck_id", deckID).Msg("failed to find deck")
		s.writeError(w, http.StatusInternalServerError, "failed to load deck")
		return
	}
	if deck == nil {
		s.writeError(w, http.StatusNotFound, "deck not found: "+deckID)
		return
	}

	cards, err := s.db.CardsByDeck(r.Context(), deckID)
	if err != nil {
		s.log.Error().Err(err).Str("deck_id", deckID).Msg("failed to load cards")
		s.writeError(w, http.StatusInternalServerError, "failed to load cards")
		return
	}

	out := make([]cardResponse, 0, len(cards))
	for _, c := range cards {
		out = append(out, cardResponse{
			ID:        c.ID,
			Front:     c.Front,
			Back:      c.Back,
			AudioRef:  c.AudioRef,
			CreatedAt: c.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"cards": out})
}

// handleImport dispatches on the archive kind in the URL.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	switch kind := chi.URLParam(r, "kind"); kind {
	case "anki":
		s.importAnki(w, r)
	case "git":
		s.importGit(w, r)
	default:
		s.writeError(w, http.StatusNotFound, "unsupported archive kind: "+kind)
	}
}

// importAnki buffers the multipart upload to a temporary file, removed
// on every exit path, and runs the archive import pipeline.
func (s *Server) importAnki(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	upload, header, err := r.FormFile("file")
	if err != nil {
		if errIsMaxBytes(err) {
			s.writeError(w, http.StatusBadRequest, "upload exceeds the size limit")
			return
		}
		s.writeError(w, http.StatusBadRequest, "missing file upload")
		return
	}
	defer upload.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), anki.Extension) {
		s.writeError(w, http.StatusBadRequest, "file must be a "+anki.Extension+" archive")
		return
	}

	tmp, err := os.CreateTemp("", "deckserve-upload-*"+anki.Extension)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to buffer upload")
		s.writeError(w, http.StatusInternalServerError, "failed to buffer upload")
		return
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	_, copyErr := io.Copy(tmp, upload)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		s.log.Error().AnErr("copy", copyErr).AnErr("close", closeErr).Msg("failed to buffer upload")
		s.writeError(w, http.StatusInternalServerError, "failed to buffer upload")
		return
	}

	result, err := s.pipeline.ImportArchive(r.Context(), tmpPath, header.Filename)
	if err != nil {
		s.log.Error().Err(err).Str("filename", header.Filename).Msg("import failed")
		s.writeError(w, http.StatusInternalServerError, "import failed: "+err.Error())
		return
	}

	s.writeImportResult(w, result)
}

type gitImportRequest struct {
	URL string `json:"url"`
}

// importGit imports markdown card sources from a git repository.
func (s *Server) importGit(w http.ResponseWriter, r *http.Request) {
	var req gitImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "request must carry a repository url")
		return
	}

	result, err := s.pipeline.ImportGit(r.Context(), req.URL)
	if err != nil {
		s.log.Error().Err(err).Str("url", req.URL).Msg("git import failed")
		s.writeError(w, http.StatusInternalServerError, "import failed: "+err.Error())
		return
	}

	s.writeImportResult(w, result)
}

func (s *Server) writeImportResult(w http.ResponseWriter, result *importer.Result) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "deck imported successfully",
		"deck_id":    result.DeckID,
		"card_count": result.CardCount,
	})
}

// handleMedia serves media file bytes. A miss is a plain 404, never
// the entry document.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	rel := path.Clean("/" + chi.URLParam(r, "*"))
	full := filepath.Join(s.mediaDir, filepath.FromSlash(rel))

	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		s.writeError(w, http.StatusNotFound, "media file not found: "+rel)
		return
	}
	http.ServeFile(w, r, full)
}

// handleIndex serves the client entry document for /.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.content.ServeEntry(w, r)
}

// handleCatchAll serves an existing static file verbatim, or the entry
// document so deep client-side routes resolve on full page load.
// Reserved prefixes never reach the fallback.
func (s *Server) handleCatchAll(w http.ResponseWriter, r *http.Request) {
	if ClassifyPath(r.URL.Path) != RouteStaticOrFallback {
		s.writeError(w, http.StatusNotFound, "not found: "+r.URL.Path)
		return
	}

	if full, ok := s.content.Resolve(r.URL.Path); ok {
		http.ServeFile(w, r, full)
		return
	}
	s.content.ServeEntry(w, r)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requestLogger logs each request with its status and duration.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

// errIsMaxBytes reports whether err came from the upload size limit.
func errIsMaxBytes(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
