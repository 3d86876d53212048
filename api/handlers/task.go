package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"imageGateway/api/dto"
	"imageGateway/api/middleware"
	"imageGateway/api/models"
	"imageGateway/api/provider"
	"imageGateway/api/storage"
	"imageGateway/api/validation"
)

const maxUploadMemory = 32 << 20

type taskService interface {
	CreateTask(ctx context.Context, traceID, sessionID string, req *dto.CreateTaskRequest) (*dto.TaskCreatedResponse, error)
	PollTask(ctx context.Context, taskID, sessionID string) (*dto.PollResponse, error)
	ListSessionRequests(ctx context.Context, sessionID string) ([]*dto.RequestResponse, error)
}

type objectStore interface {
	Put(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error)
}

type TaskHandler struct {
	service taskService
	objects objectStore
	logger  *zap.Logger
}

func NewTaskHandler(service taskService, objects objectStore, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		service: service,
		objects: objects,
		logger:  logger,
	}
}

// Create handles POST /api/tasks: multipart form with kind, prompt,
// optional enum parameters and optional reference images.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	if r.Method != http.MethodPost {
		h.handleError(w, "Method not allowed", nil, nil, traceID, http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.Header.Get("X-Session-ID")
	if sessionID == "" {
		h.handleError(w, "X-Session-ID header is required", nil, nil, traceID, http.StatusBadRequest)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		h.handleError(w, "Failed to parse form", nil, err, traceID, http.StatusBadRequest)
		return
	}

	kind := models.TaskKind(r.FormValue("kind"))
	if kind == "" {
		kind = models.KindGeneration
	}
	prompt := r.FormValue("prompt")
	style := r.FormValue("style")
	aspectRatio := r.FormValue("aspect_ratio")
	size := r.FormValue("size")

	var files []*multipart.FileHeader
	if r.MultipartForm != nil {
		files = r.MultipartForm.File["images"]
	}

	verr := validation.ValidateParams(kind, prompt, style, aspectRatio, size, len(files))
	images := validateImages(files, verr)
	if !verr.Empty() {
		h.handleError(w, "Validation failed", verr.Items, nil, traceID, http.StatusBadRequest)
		return
	}

	imageURLs, err := h.storeImages(r.Context(), sessionID, images)
	if err != nil {
		h.handleError(w, "Failed to store images", nil, err, traceID, http.StatusInternalServerError)
		return
	}

	resp, err := h.service.CreateTask(r.Context(), traceID, sessionID, &dto.CreateTaskRequest{
		Kind:        kind,
		Prompt:      prompt,
		Style:       style,
		AspectRatio: aspectRatio,
		Size:        size,
		ImageURLs:   imageURLs,
	})
	if err != nil {
		var perr *provider.Error
		if errors.As(err, &perr) {
			h.handleError(w, perr.Message, nil, err, traceID, perr.StatusCode)
			return
		}
		h.handleError(w, "Failed to create task", nil, err, traceID, http.StatusInternalServerError)
		return
	}

	h.logger.Info("Task created",
		zap.String("trace_id", traceID),
		zap.String("request_id", resp.RequestID),
		zap.String("task_id", resp.TaskID),
		zap.String("kind", string(kind)),
	)

	h.respondJSON(w, http.StatusCreated, resp)
}

// Poll handles GET /api/tasks/{taskId}. Every terminal outcome is a 200
// with a failed or completed body; only unknown and foreign tasks map to
// HTTP errors.
func (h *TaskHandler) Poll(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	if r.Method != http.MethodGet {
		h.handleError(w, "Method not allowed", nil, nil, traceID, http.StatusMethodNotAllowed)
		return
	}

	taskID := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	if taskID == "" || strings.Contains(taskID, "/") {
		h.handleError(w, "Task ID is required", nil, nil, traceID, http.StatusBadRequest)
		return
	}

	sessionID := r.Header.Get("X-Session-ID")
	if sessionID == "" {
		h.handleError(w, "X-Session-ID header is required", nil, nil, traceID, http.StatusBadRequest)
		return
	}

	resp, err := h.service.PollTask(r.Context(), taskID, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, dto.ErrTaskNotFound):
			h.handleError(w, "Task not found", nil, err, traceID, http.StatusNotFound)
		case errors.Is(err, dto.ErrForbidden):
			h.handleError(w, "Task belongs to a different session", nil, err, traceID, http.StatusForbidden)
		default:
			h.handleError(w, "Failed to poll task", nil, err, traceID, http.StatusInternalServerError)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// History handles GET /api/sessions/{sessionId}/requests.
func (h *TaskHandler) History(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	if r.Method != http.MethodGet {
		h.handleError(w, "Method not allowed", nil, nil, traceID, http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	sessionID, ok := strings.CutSuffix(rest, "/requests")
	if !ok || sessionID == "" || strings.Contains(sessionID, "/") {
		h.handleError(w, "Session ID is required", nil, nil, traceID, http.StatusBadRequest)
		return
	}

	requests, err := h.service.ListSessionRequests(r.Context(), sessionID)
	if err != nil {
		h.handleError(w, "Failed to list requests", nil, err, traceID, http.StatusInternalServerError)
		return
	}

	h.respondJSON(w, http.StatusOK, requests)
}

type refImage struct {
	filename string
	format   models.ImageFormat
	data     []byte
}

// validateImages checks every uploaded reference image, appending problems
// to verr so the caller can return one itemized 400. Nothing is stored
// until the whole request is known to be valid.
func validateImages(files []*multipart.FileHeader, verr *validation.Errors) []refImage {
	var images []refImage
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			verr.Add(fmt.Sprintf("Failed to read image %q", header.Filename))
			continue
		}

		format, err := validation.ValidateImage(header, file)
		if err != nil {
			verr.Add(fmt.Sprintf("Image %q: %v", header.Filename, err))
			file.Close()
			continue
		}

		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			verr.Add(fmt.Sprintf("Failed to read image %q", header.Filename))
			continue
		}

		images = append(images, refImage{filename: header.Filename, format: format, data: data})
	}
	return images
}

func (h *TaskHandler) storeImages(ctx context.Context, sessionID string, images []refImage) ([]string, error) {
	var urls []string
	for _, img := range images {
		name := uuid.New().String()
		objectName := fmt.Sprintf("refs/%s/%s.%s", sessionID, name, img.format)
		url, err := h.objects.Put(ctx, objectName, bytes.NewReader(img.data), int64(len(img.data)), "image/"+string(img.format))
		if err != nil {
			h.logger.Error("Failed to store reference image",
				zap.String("object", objectName),
				zap.Error(err),
			)
			return nil, fmt.Errorf("store image %q: %w", img.filename, err)
		}

		// History listings use a small preview; losing it is not worth
		// failing the upload over.
		if preview, err := storage.MakePreview(bytes.NewReader(img.data)); err == nil {
			previewName := fmt.Sprintf("refs/%s/%s_preview.jpeg", sessionID, name)
			if _, err := h.objects.Put(ctx, previewName, preview, int64(preview.Len()), "image/jpeg"); err != nil {
				h.logger.Warn("Failed to store preview", zap.String("object", previewName), zap.Error(err))
			}
		} else {
			h.logger.Warn("Failed to build preview", zap.String("image", img.filename), zap.Error(err))
		}

		urls = append(urls, url)
	}
	return urls, nil
}

func (h *TaskHandler) handleError(w http.ResponseWriter, message string, details []string, err error, traceID string, status int) {
	h.logger.Error(message,
		zap.String("trace_id", traceID),
		zap.Strings("details", details),
		zap.Error(err),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Details: details,
		TraceID: traceID,
	})
}

func (h *TaskHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
