// Package server provides the HTTP API for the video generation service.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/luzhipeng728/sora/internal/job"
	"github.com/luzhipeng728/sora/internal/user"
	"github.com/luzhipeng728/sora/internal/video"
)

// CreateVideoRequest is the HTTP request body for creating a generation job.
type CreateVideoRequest struct {
	// Prompt is the generation prompt (1-1000 characters).
	Prompt string `json:"prompt" validate:"required,min=1,max=1000"`
	// Orientation selects the aspect ratio; defaults to portrait.
	Orientation string `json:"orientation" validate:"omitempty,oneof=portrait landscape"`
}

// CreateVideoResponse is the HTTP response after accepting a job.
type CreateVideoResponse struct {
	Job     JobResponse `json:"job"`
	Message string      `json:"message"`
}

// JobResponse is the HTTP representation of a job.
type JobResponse struct {
	ID           string     `json:"id"`
	Prompt       string     `json:"prompt"`
	Orientation  string     `json:"orientation"`
	Status       string     `json:"status"`
	Progress     int        `json:"progress"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	VideoID      string     `json:"videoId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// newJobResponse maps a job to its HTTP representation.
func newJobResponse(j *job.Job) JobResponse {
	resp := JobResponse{
		ID:           j.ID,
		Prompt:       j.Prompt,
		Orientation:  string(j.Orientation),
		Status:       string(j.Status),
		Progress:     j.Progress,
		ErrorMessage: j.ErrorMessage,
		VideoID:      j.VideoID,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
	if !j.CompletedAt.IsZero() {
		t := j.CompletedAt
		resp.CompletedAt = &t
	}
	return resp
}

// VideoResponse is the HTTP representation of a finished video.
type VideoResponse struct {
	ID           string            `json:"id"`
	Prompt       string            `json:"prompt"`
	Orientation  string            `json:"orientation"`
	ModelUsed    string            `json:"modelUsed"`
	VideoURL     string            `json:"videoUrl"`
	ThumbnailURL string            `json:"thumbnailUrl,omitempty"`
	Duration     int               `json:"duration,omitempty"`
	Status       string            `json:"status"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// newVideoResponse maps a video to its HTTP representation.
func newVideoResponse(v *video.Video) VideoResponse {
	return VideoResponse{
		ID:           v.ID,
		Prompt:       v.Prompt,
		Orientation:  v.Orientation,
		ModelUsed:    v.ModelUsed,
		VideoURL:     v.VideoURL,
		ThumbnailURL: v.ThumbnailURL,
		Duration:     v.Duration,
		Status:       string(v.Status),
		Metadata:     v.Metadata,
		CreatedAt:    v.CreatedAt,
	}
}

// VideoListResponse is one page of a user's videos.
type VideoListResponse struct {
	Videos     []VideoResponse `json:"videos"`
	Pagination Pagination      `json:"pagination"`
}

// Pagination describes the page returned by a listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// RegisterRequest is the HTTP request body for account registration.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Username string `json:"username" validate:"omitempty,max=50"`
}

// LoginRequest is the HTTP request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserResponse is the HTTP representation of an account.
// The password hash is never exposed.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// newUserResponse maps a user to its HTTP representation.
func newUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
	}
}

// AuthResponse is the HTTP response for register and login.
type AuthResponse struct {
	User  UserResponse `json:"user"`
	Token string       `json:"token"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
