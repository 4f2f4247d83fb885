package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/himanishpuri/barricade/internal/config"
	"github.com/himanishpuri/barricade/pkg/barricade"
	"github.com/himanishpuri/barricade/pkg/barricade/clip"
	"github.com/himanishpuri/barricade/pkg/errors"
	"github.com/himanishpuri/barricade/pkg/logger"
	"github.com/himanishpuri/barricade/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service  *barricade.Service
	config   config.Server
	tempDir  string
	gatherer prometheus.Gatherer
	log      *logger.Logger
	now      func() time.Time
}

// NewServer creates a new server instance
func NewServer(service *barricade.Service, cfg config.Server, tempDir string, gatherer prometheus.Gatherer, log *logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Server{
		service:  service,
		config:   cfg,
		tempDir:  tempDir,
		gatherer: gatherer,
		log:      log,
		now:      time.Now,
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// respondErr maps err to a status code by its kind.
func (s *Server) respondErr(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Errorf("request failed: %v", err)
	}
	s.respondError(w, code, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(errors.InvalidArgument, err):
		return http.StatusBadRequest
	case errors.Is(errors.ConcertUnknown, err),
		errors.Is(errors.SongUnknown, err),
		errors.Is(errors.TrackUnknown, err):
		return http.StatusNotFound
	case errors.Is(errors.DetectionBusy, err),
		errors.Is(errors.SessionBusy, err):
		return http.StatusConflict
	case errors.Is(errors.ImportError, err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.E(errors.InvalidArgument, fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "multipart/form-data"
}

// spoolUpload copies the multipart file field into tempDir so it outlives the
// request. The caller owns the returned path.
func (s *Server) spoolUpload(r *http.Request, field string) (path, name, contentType string, err error) {
	if err := r.ParseMultipartForm(s.config.MaxUploadMB << 20); err != nil {
		return "", "", "", errors.E(errors.InvalidArgument, "failed to parse form data")
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", "", "", errors.E(errors.InvalidArgument, field+" file is required")
	}
	defer file.Close()

	out, err := os.CreateTemp(s.tempDir, "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		return "", "", "", fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", "", "", fmt.Errorf("saving upload: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", "", "", fmt.Errorf("saving upload: %w", err)
	}
	return out.Name(), header.Filename, header.Header.Get("Content-Type"), nil
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"time":      s.now().Format(time.RFC3339),
		"detection": s.service.Detection().State.String(),
		"matching":  s.service.Matching(),
	})
}

// Concerts

func (req ConcertRequest) concert(id string) (models.Concert, error) {
	date, err := time.Parse(dateLayout, strings.TrimSpace(req.Date))
	if err != nil {
		return models.Concert{}, errors.E(errors.InvalidArgument, errors.Info("date"),
			"date must be YYYY-MM-DD")
	}
	return models.Concert{
		ID:       id,
		Date:     date,
		Artist:   strings.TrimSpace(req.Artist),
		Tour:     strings.TrimSpace(req.Tour),
		City:     strings.TrimSpace(req.City),
		Nickname: strings.TrimSpace(req.Nickname),
		ColorHex: strings.TrimPrefix(strings.TrimSpace(req.ColorHex), "#"),
	}, nil
}

// handleListConcerts handles GET /api/concerts
func (s *Server) handleListConcerts(w http.ResponseWriter, r *http.Request) {
	concerts, err := s.service.ListConcerts()
	if err != nil {
		s.respondErr(w, err)
		return
	}
	now := s.now()
	dtos := make([]ConcertDTO, len(concerts))
	for i, c := range concerts {
		dtos[i] = concertDTO(c, now)
	}
	s.respondJSON(w, http.StatusOK, ListConcertsResponse{Concerts: dtos, Count: len(dtos)})
}

// handleCreateConcert handles POST /api/concerts
func (s *Server) handleCreateConcert(w http.ResponseWriter, r *http.Request) {
	var req ConcertRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondErr(w, err)
		return
	}
	c, err := req.concert("")
	if err != nil {
		s.respondErr(w, err)
		return
	}
	created, err := s.service.CreateConcert(r.Context(), c)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, concertDTO(created, s.now()))
}

// handleGetConcert handles GET /api/concerts/{id}
func (s *Server) handleGetConcert(w http.ResponseWriter, r *http.Request) {
	c, err := s.service.GetConcert(mux.Vars(r)["id"])
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, concertDTO(*c, s.now()))
}

// handleUpdateConcert handles PUT /api/concerts/{id}
func (s *Server) handleUpdateConcert(w http.ResponseWriter, r *http.Request) {
	var req ConcertRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondErr(w, err)
		return
	}
	c, err := req.concert(mux.Vars(r)["id"])
	if err != nil {
		s.respondErr(w, err)
		return
	}
	updated, err := s.service.UpdateConcert(r.Context(), c)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, concertDTO(updated, s.now()))
}

// handleDeleteConcert handles DELETE /api/concerts/{id}
func (s *Server) handleDeleteConcert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.service.DeleteConcert(r.Context(), id); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, DeleteResponse{Message: "Concert deleted successfully", ID: id})
}

// Songs

// handleAddSong handles POST /api/concerts/{id}/songs
func (s *Server) handleAddSong(w http.ResponseWriter, r *http.Request) {
	var req SongRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondErr(w, err)
		return
	}
	res, err := s.service.AddSong(r.Context(), mux.Vars(r)["id"], req.Title, req.Artist, req.ClipRef)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	code := http.StatusOK
	if res.Created {
		code = http.StatusCreated
	}
	s.respondJSON(w, code, resolutionDTO(res))
}

// handleReorderSetlist handles PUT /api/concerts/{id}/setlist
func (s *Server) handleReorderSetlist(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondErr(w, err)
		return
	}
	setlist, err := s.service.ReorderSetlist(r.Context(), mux.Vars(r)["id"], req.SongIDs)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, setlistDTO(setlist))
}

// handleDeleteSong handles DELETE /api/songs/{id}
func (s *Server) handleDeleteSong(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.service.DeleteSong(r.Context(), id); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, DeleteResponse{Message: "Song deleted successfully", ID: id})
}

// handleSetSongLink handles PUT /api/songs/{id}/link
func (s *Server) handleSetSongLink(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondErr(w, err)
		return
	}
	song, err := s.service.SetSongLink(r.Context(), mux.Vars(r)["id"], req.Link)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, songDTO(song))
}

// Detection

// handleStartDetection handles POST /api/concerts/{id}/detections. The clip
// is either a multipart "video" upload or a JSON {"url": ...} to download.
// With ?wait=true the response carries the finished detection.
func (s *Server) handleStartDetection(w http.ResponseWriter, r *http.Request) {
	concertID := mux.Vars(r)["id"]

	var src clip.Source
	if isMultipart(r) {
		path, name, ct, err := s.spoolUpload(r, "video")
		if err != nil {
			s.respondErr(w, err)
			return
		}
		src = clip.FileSource{Path: path, Name: name, ContentType: ct, Remove: true}
	} else {
		var req DetectionRequest
		if err := decodeJSON(r, &req); err != nil {
			s.respondErr(w, err)
			return
		}
		if strings.TrimSpace(req.URL) == "" {
			s.respondError(w, http.StatusBadRequest, "video upload or url is required")
			return
		}
		src = clip.RemoteSource{URL: strings.TrimSpace(req.URL), TempDir: s.tempDir}
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		snap, err := s.service.DetectSong(r.Context(), concertID, src)
		if errors.Is(errors.Canceled, err) {
			s.log.Infof("detection for concert %s cancelled", concertID)
			s.respondJSON(w, http.StatusOK, detectionDTO(snap))
			return
		}
		if err != nil && !errors.Is(errors.MatchError, err) {
			s.discard(src)
			s.respondErr(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, detectionDTO(snap))
		return
	}

	if err := s.service.StartDetection(r.Context(), concertID, src); err != nil {
		s.discard(src)
		s.respondErr(w, err)
		return
	}
	s.log.Infof("detection started for concert %s", concertID)
	s.respondJSON(w, http.StatusAccepted, detectionDTO(s.service.Detection()))
}

// discard removes a spooled upload the coordinator never opened.
func (s *Server) discard(src clip.Source) {
	if fs, ok := src.(clip.FileSource); ok && fs.Remove {
		os.Remove(fs.Path)
	}
}

// handleGetDetection handles GET /api/detection
func (s *Server) handleGetDetection(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, detectionDTO(s.service.Detection()))
}

// handleCancelDetection handles DELETE /api/detection
func (s *Server) handleCancelDetection(w http.ResponseWriter, r *http.Request) {
	if !s.service.CancelDetection() {
		s.respondError(w, http.StatusConflict, "no detection in progress")
		return
	}
	s.respondJSON(w, http.StatusOK, detectionDTO(s.service.Detection()))
}

// handleResetDetection handles POST /api/detection/reset
func (s *Server) handleResetDetection(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ResetDetection(); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, detectionDTO(s.service.Detection()))
}

// Catalog

// handleListTracks handles GET /api/catalog
func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.service.ListTracks()
	if err != nil {
		s.respondErr(w, err)
		return
	}
	dtos := make([]TrackDTO, len(tracks))
	for i, t := range tracks {
		dtos[i] = trackDTO(t)
	}
	s.respondJSON(w, http.StatusOK, ListTracksResponse{Tracks: dtos, Count: len(dtos)})
}

// handleAddTrack handles POST /api/catalog, either a multipart "audio"
// upload with title, artist and youtube_id fields or a JSON youtube_url.
func (s *Server) handleAddTrack(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	var (
		id  string
		err error
	)
	if isMultipart(r) {
		path, _, _, serr := s.spoolUpload(r, "audio")
		if serr != nil {
			s.respondErr(w, serr)
			return
		}
		defer os.Remove(path)
		id, err = s.service.AddTrack(ctx, path, r.FormValue("title"), r.FormValue("artist"), r.FormValue("youtube_id"))
	} else {
		var req AddTrackURLRequest
		if derr := decodeJSON(r, &req); derr != nil {
			s.respondErr(w, derr)
			return
		}
		s.log.Infof("Adding track from YouTube URL: %s", req.YouTubeURL)
		id, err = s.service.AddTrackFromURL(ctx, req.YouTubeURL, req.Title, req.Artist)
	}
	if err != nil {
		s.respondErr(w, err)
		return
	}

	track, err := s.service.GetTrack(id)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, trackDTO(*track))
}

// handleDeleteTrack handles DELETE /api/catalog/{id}
func (s *Server) handleDeleteTrack(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.service.DeleteTrack(r.Context(), id); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, DeleteResponse{Message: "Track deleted successfully", ID: id})
}
