package handler

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/edusphere-api/internal/application/material"
	"github.com/edusphere-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

const (
	maxAttachmentBytes = 10 << 20
	multipartMemory    = 32 << 20
)

// MaterialHandler serves study materials and their S3 attachments.
type MaterialHandler struct {
	svc material.Service
}

func NewMaterialHandler(svc material.Service) *MaterialHandler { return &MaterialHandler{svc: svc} }

// Create takes multipart form-data: title, content and up to MaxAttachments "attachments" files.
func (h *MaterialHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No autenticado.")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, int64(material.MaxAttachments)*maxAttachmentBytes+(1<<20))
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Formulario multipart inválido.")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["attachments"]
	if len(headers) > material.MaxAttachments {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Máximo %d archivos por material.", material.MaxAttachments))
		return
	}
	files := make([]material.UploadInput, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > maxAttachmentBytes {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("El archivo %s supera los 10MB.", fh.Filename))
			return
		}
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "No se pudo leer el archivo adjunto.")
			return
		}
		defer closeFile(f)
		files = append(files, material.UploadInput{
			Reader:      f,
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
		})
	}

	m, err := h.svc.Create(r.Context(), p, material.CreateInput{
		Title:   r.FormValue("title"),
		Content: r.FormValue("content"),
		Files:   files,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *MaterialHandler) List(w http.ResponseWriter, r *http.Request) {
	ms, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

func (h *MaterialHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Download streams one attachment through the API.
func (h *MaterialHandler) Download(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Índice de adjunto inválido.")
		return
	}
	rc, a, err := h.svc.Download(r.Context(), chi.URLParam(r, "id"), index)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Name))
	if a.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(a.Size, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		slog.WarnContext(r.Context(), "attachment stream interrupted", "key", a.Key, "err", err)
	}
}

func (h *MaterialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No autenticado.")
		return
	}
	if err := h.svc.Delete(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func closeFile(f multipart.File) { _ = f.Close() }
