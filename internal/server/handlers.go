package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/luzhipeng728/sora/internal/auth"
	"github.com/luzhipeng728/sora/internal/job"
	"github.com/luzhipeng728/sora/internal/user"
	"github.com/luzhipeng728/sora/internal/video"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	jobs      *job.GenerationService
	videos    video.Repository
	auth      *auth.Service
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(jobs *job.GenerationService, videos video.Repository, authService *auth.Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		jobs:      jobs,
		videos:    videos,
		auth:      authService,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Register handles POST /auth/register requests.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	u, token, err := h.auth.Register(r.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		case errors.Is(err, user.ErrEmailInUse):
			writeError(w, http.StatusConflict, err.Error(), "EMAIL_IN_USE")
		default:
			h.logger.Error("registration failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "registration failed", "REGISTRATION_FAILED")
		}
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{User: newUserResponse(u), Token: token})
}

// Login handles POST /auth/login requests.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	u, token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials", "INVALID_CREDENTIALS")
			return
		}
		h.logger.Error("login failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "login failed", "LOGIN_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{User: newUserResponse(u), Token: token})
}

// Me handles GET /auth/me requests.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.auth.UserFromToken(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token", "UNAUTHORIZED")
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(u))
}

// CreateVideo handles POST /videos requests. The job is created
// synchronously; processing runs in the background and is not awaited.
func (h *Handlers) CreateVideo(w http.ResponseWriter, r *http.Request) {
	var req CreateVideoRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	userID := UserID(r.Context())
	created, err := h.jobs.CreateJob(r.Context(), userID, req.Prompt, job.Orientation(req.Orientation))
	if err != nil {
		switch {
		case errors.Is(err, job.ErrEmptyPrompt), errors.Is(err, job.ErrPromptTooLong):
			writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		default:
			h.logger.Error("failed to create job",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		}
		return
	}

	// Detach from the request context so the run outlives this response.
	h.jobs.StartBackgroundProcessing(context.WithoutCancel(r.Context()), created.ID)

	h.logger.Info("job accepted",
		slog.String("job_id", created.ID),
		slog.String("user_id", userID),
	)

	writeJSON(w, http.StatusAccepted, CreateVideoResponse{
		Job:     newJobResponse(created),
		Message: "Video generation started",
	})
}

// ActiveJobs handles GET /videos/jobs requests.
func (h *Handlers) ActiveJobs(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	jobs, err := h.jobs.ActiveJobs(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list active jobs",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_LIST_FAILED")
		return
	}

	resp := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		resp = append(resp, newJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetJob handles GET /videos/jobs/{jobID} requests, the polling endpoint.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	found, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	if found.UserID != UserID(r.Context()) {
		writeError(w, http.StatusForbidden, "you do not have permission to access this job", "FORBIDDEN")
		return
	}

	writeJSON(w, http.StatusOK, newJobResponse(found))
}

// GetVideo handles GET /videos/{videoID} requests.
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")

	found, err := h.videos.FindByID(r.Context(), videoID)
	if err != nil {
		if errors.Is(err, video.ErrVideoNotFound) {
			writeError(w, http.StatusNotFound, "video not found", "NOT_FOUND")
			return
		}
		h.logger.Error("failed to get video",
			slog.String("video_id", videoID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get video", "VIDEO_FETCH_FAILED")
		return
	}

	if found.UserID != UserID(r.Context()) {
		writeError(w, http.StatusForbidden, "you do not have permission to access this video", "FORBIDDEN")
		return
	}

	writeJSON(w, http.StatusOK, newVideoResponse(found))
}

// ListVideos handles GET /videos requests with pagination.
func (h *Handlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	opts := video.ListOptions{
		Page:   queryInt(r, "page"),
		Limit:  queryInt(r, "limit"),
		Status: video.Status(r.URL.Query().Get("status")),
	}

	page, err := h.videos.ListByUser(r.Context(), userID, opts)
	if err != nil {
		h.logger.Error("failed to list videos",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list videos", "VIDEO_LIST_FAILED")
		return
	}

	resp := VideoListResponse{
		Videos: make([]VideoResponse, 0, len(page.Videos)),
		Pagination: Pagination{
			Page:       page.Page,
			Limit:      page.Limit,
			Total:      page.Total,
			TotalPages: page.TotalPages,
		},
	}
	for _, v := range page.Videos {
		resp.Videos = append(resp.Videos, newVideoResponse(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeAndValidate decodes the JSON body into dst and validates it,
// writing a 400 response and returning false on failure.
func (h *Handlers) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

// bearerToken extracts the bearer token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && header[:7] == "Bearer " {
		return header[7:]
	}
	return ""
}

// queryInt parses an integer query parameter, returning 0 when absent or invalid.
func queryInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
