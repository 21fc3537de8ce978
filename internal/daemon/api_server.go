package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"grabit/internal/api"
	"grabit/internal/config"
	"grabit/internal/language"
	"grabit/internal/logging"
	"grabit/internal/media"
	"grabit/internal/preflight"
	"grabit/internal/services"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Server.Bind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	token := strings.TrimSpace(cfg.Server.APIToken)
	guard := func(next http.HandlerFunc) http.HandlerFunc {
		return requireToken(token, next)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/extract", guard(srv.handleExtract))
	mux.HandleFunc("/api/download/single", guard(srv.handleDownloadSingle))
	mux.HandleFunc("/api/download/playlist", guard(srv.handleDownloadPlaylist))
	mux.HandleFunc("/api/download/batch", guard(srv.handleDownloadBatch))
	mux.HandleFunc("/api/task/", guard(srv.handleTask))
	mux.HandleFunc("/api/tasks", guard(srv.handleTasks))
	mux.HandleFunc("/api/subtitles", guard(srv.handleSubtitles))
	mux.HandleFunc("/api/thumbnail", guard(srv.handleThumbnail))
	mux.HandleFunc("/api/status", guard(srv.handleStatus))
	mux.HandleFunc("/api/health", srv.handleHealth)
	mux.HandleFunc("/api/history", guard(srv.handleHistory))
	mux.HandleFunc("/api/logs", guard(srv.handleLogs))
	mux.Handle("/ws", d.hub.Handler())

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// address reports the bound listener address, once listening.
func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleExtract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.ExtractRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	if req.Playlist {
		meta, err := s.daemon.svc.ExtractPlaylist(r.Context(), req.URL)
		if err != nil {
			s.writeError(w, statusForError(err), err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.ExtractResponse{IsPlaylist: true, Playlist: meta})
		return
	}

	meta, err := s.daemon.svc.Extract(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.ExtractResponse{Video: meta})
}

func (s *apiServer) handleDownloadSingle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req media.DownloadRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		return
	}
	id, err := s.daemon.SubmitSingle(req)
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.SubmitResponse{TaskID: id, Status: "started"})
}

func (s *apiServer) handleDownloadPlaylist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req media.PlaylistRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		return
	}
	id, err := s.daemon.SubmitPlaylist(req)
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.SubmitResponse{TaskID: id, Status: "started"})
}

func (s *apiServer) handleDownloadBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req media.BatchRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		return
	}
	id, err := s.daemon.SubmitBatch(req)
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.SubmitResponse{TaskID: id, Status: "started"})
}

func (s *apiServer) handleTask(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/task/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		t, ok := s.daemon.Task(id)
		if !ok {
			s.writeError(w, http.StatusNotFound, "task not found")
			return
		}
		s.writeJSON(w, http.StatusOK, api.FromTask(t))
	case http.MethodDelete:
		if s.daemon.Cancel(id) {
			s.writeJSON(w, http.StatusOK, api.CancelResponse{TaskID: id, Cancelled: true, Message: "Task cancelled"})
			return
		}
		if _, ok := s.daemon.Task(id); ok {
			s.writeJSON(w, http.StatusOK, api.CancelResponse{TaskID: id, Cancelled: false, Message: "Task already finished"})
			return
		}
		s.writeError(w, http.StatusNotFound, "task not found")
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromTasks(s.daemon.Tasks()))
}

func (s *apiServer) handleSubtitles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req media.SubtitleRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	files, err := s.daemon.svc.Subtitles(r.Context(), req.URL, req.Languages, req.Format, req.AutoGenerated)
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	names := make(map[string]string, len(files))
	for code := range files {
		names[code] = language.DisplayName(code)
	}
	s.writeJSON(w, http.StatusOK, api.SubtitlesResponse{URL: req.URL, Files: files, Languages: names})
}

func (s *apiServer) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req media.ThumbnailRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	file, err := s.daemon.svc.Thumbnail(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.ThumbnailResponse{URL: req.URL, File: file})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	st := s.daemon.Status(r.Context())
	payload := api.ServerStatus{
		Version:                st.Version,
		UptimeSeconds:          st.UptimeSeconds,
		ActiveDownloads:        st.ActiveDownloads,
		TotalDownloads:         st.TotalDownloads,
		MemoryUsageMB:          st.MemoryUsageMB,
		DiskFreeMB:             st.DiskFreeMB,
		MaxConcurrentDownloads: st.MaxConcurrent,
		SupportedFormats:       media.SupportedFormats(),
		SupportedQualities:     media.QualityLadder(),
		FFmpegAvailable:        st.FFmpegAvailable,
		Connections:            api.FromHubStats(st.Hub),
		Timestamp:              api.Now(),
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	payload := api.HealthStatus{
		Status:       "healthy",
		Version:      api.Version,
		Timestamp:    api.Now(),
		Dependencies: api.FromDependencies(preflight.CheckSystemDeps(s.daemon.cfg)),
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := 100
	if value := strings.TrimSpace(r.URL.Query().Get("limit")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	entries, err := s.daemon.HistoryList(r.Context(), limit)
	if err != nil {
		if errors.Is(err, ErrHistoryUnavailable) {
			s.writeJSON(w, http.StatusOK, api.HistoryListResponse{Entries: nil, Count: 0})
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.HistoryListResponse{Entries: entries, Count: len(entries)})
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stream := s.daemon.LogStream()
	if stream == nil {
		s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: nil, Next: 0})
		return
	}

	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	follow := query.Get("follow") == "1" || strings.EqualFold(query.Get("follow"), "true")
	tail := query.Get("tail") == "1" || strings.EqualFold(query.Get("tail"), "true")

	var (
		events []logging.LogEvent
		next   uint64
	)
	if tail && since == 0 && !follow {
		events, next = stream.Tail(limit)
	} else {
		var err error
		events, next, err = stream.Fetch(r.Context(), since, limit, follow)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	component := strings.TrimSpace(query.Get("component"))
	taskID := strings.TrimSpace(query.Get("task"))
	level := strings.TrimSpace(query.Get("level"))
	search := strings.TrimSpace(query.Get("search"))

	filtered := make([]logging.LogEvent, 0, len(events))
	for _, evt := range events {
		if component != "" && !strings.EqualFold(component, evt.Component) {
			continue
		}
		if taskID != "" && taskID != evt.TaskID {
			continue
		}
		if level != "" && !strings.EqualFold(level, evt.Level) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(evt.Message), strings.ToLower(search)) {
			continue
		}
		filtered = append(filtered, evt)
	}

	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: filtered, Next: next})
}

// decodeJSON reads the request body into dst, writing the error response
// itself so handlers can simply return.
func (s *apiServer) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return err
	}
	return nil
}

// statusForError maps backend failures onto HTTP codes. Validation problems
// are the caller's fault; everything else is reported as a server error.
func statusForError(err error) int {
	if errors.Is(err, services.ErrValidation) {
		return http.StatusBadRequest
	}
	if services.Classify(err) == services.KindCancelled {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
