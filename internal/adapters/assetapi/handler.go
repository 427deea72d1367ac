// Package assetapi serves an asset backend over the REST routes the editor
// and the httpstore client speak (mounted under /api/assets), plus the
// /external-import/ file route used by running scenes.
package assetapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/sceneflow/sceneflow/internal/core/asset"
	"github.com/sceneflow/sceneflow/pkg/validation"
)

// Prefix is where the asset routes live.
const Prefix = "/api/assets"

// StagingPrefix serves staged files by relative path.
const StagingPrefix = "/external-import/"

const maxUploadBytes = 256 << 20

// Backend is an asset backend that can also write into staging.
type Backend interface {
	asset.Backend
	StageFile(ctx context.Context, file asset.File) error
	StagedFiles(ctx context.Context) ([]asset.File, error)
}

// Handler routes asset requests to a Backend.
type Handler struct {
	backend Backend
	logger  *slog.Logger
	mux     *http.ServeMux
	bodies  *validation.Middleware
}

// New builds the handler; a nil logger uses slog.Default.
func New(backend Backend, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		backend: backend,
		logger:  logger,
		mux:     http.NewServeMux(),
		bodies:  validation.NewMiddleware(nil).WithBodyLimit(maxUploadBytes),
	}
	h.mux.HandleFunc("POST "+Prefix+"/save", h.save)
	h.mux.HandleFunc("GET "+Prefix+"/load/{type}/{name}", h.load)
	h.mux.HandleFunc("GET "+Prefix+"/list/{type}", h.list)
	h.mux.HandleFunc("DELETE "+Prefix+"/delete/{type}/{name}", h.remove)
	h.mux.HandleFunc("POST "+Prefix+"/save-thumbnail", h.saveThumbnail)
	h.mux.HandleFunc("GET "+Prefix+"/thumbnail/{type}/{name}", h.thumbnail)
	h.mux.HandleFunc("POST "+Prefix+"/import-external", h.importExternal)
	h.mux.HandleFunc("GET "+Prefix+"/list-external", h.listExternal)
	h.mux.HandleFunc("DELETE "+Prefix+"/clear-external", h.clearExternal)
	h.mux.HandleFunc("POST "+Prefix+"/bundle-flow-project", h.bundleFlow)
	h.mux.HandleFunc("POST "+Prefix+"/restore-flow-assets", h.restoreFlow)
	h.mux.HandleFunc("GET "+StagingPrefix+"{path...}", h.stagedFile)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Document is the asset record on the wire.
type Document struct {
	Name      string    `json:"name" validate:"required,asset_name"`
	Type      string    `json:"type" validate:"required,asset_kind"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Entry is one row of a listing.
type Entry struct {
	Name         string    `json:"name"`
	Folder       string    `json:"folder"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	HasThumbnail bool      `json:"has_thumbnail"`
}

// StagedEntry is one row of the staging listing.
type StagedEntry struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

type thumbnailRequest struct {
	Type      string `json:"type" validate:"required,asset_kind"`
	Name      string `json:"name" validate:"required,asset_name"`
	Thumbnail string `json:"thumbnail" validate:"required"`
}

type restoreRequest struct {
	FlowName string `json:"flowName" validate:"required,asset_name"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, asset.ErrInvalidKind), errors.Is(err, asset.ErrInvalidName),
		errors.Is(err, asset.ErrInvalidLimit), errors.Is(err, asset.ErrInvalidOffset):
		status = http.StatusBadRequest
	case errors.Is(err, asset.ErrNotFound), errors.Is(err, asset.ErrBundleNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("asset request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"error": msg})
}

// decode reads and validates a JSON body, answering 400 itself on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if errs := h.bodies.Decode(r, v); errs != nil {
		h.bodies.WriteErrors(w, http.StatusBadRequest, errs)
		return false
	}
	return true
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	var doc Document
	if !h.decode(w, r, &doc) {
		return
	}
	if err := h.backend.Save(r.Context(), asset.Kind(doc.Type), doc.Name, doc.Code); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "filename": doc.Name + ".json"})
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) {
	a, err := h.backend.Load(r.Context(), asset.Kind(r.PathValue("type")), r.PathValue("name"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": Document{
			Name:      a.Name,
			Type:      string(a.Kind),
			Code:      a.Content,
			CreatedAt: a.CreatedAt,
			UpdatedAt: a.UpdatedAt,
		},
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := asset.Filter{Prefix: q.Get("prefix")}
	var err error
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			badRequest(w, "invalid limit")
			return
		}
	}
	if v := q.Get("offset"); v != "" {
		if filter.Offset, err = strconv.Atoi(v); err != nil {
			badRequest(w, "invalid offset")
			return
		}
	}
	infos, err := h.backend.List(r.Context(), asset.Kind(r.PathValue("type")), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, Entry{
			Name:         info.Name,
			Folder:       info.Name,
			CreatedAt:    info.CreatedAt,
			UpdatedAt:    info.UpdatedAt,
			HasThumbnail: info.HasThumbnail,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "assets": entries})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.Delete(r.Context(), asset.Kind(r.PathValue("type")), r.PathValue("name")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) saveThumbnail(w http.ResponseWriter, r *http.Request) {
	var req thumbnailRequest
	if !h.decode(w, r, &req) {
		return
	}
	encoded := req.Thumbnail
	if strings.HasPrefix(encoded, "data:image") {
		if _, after, ok := strings.Cut(encoded, ","); ok {
			encoded = after
		}
	}
	img, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		badRequest(w, "thumbnail is not base64")
		return
	}
	if err := h.backend.SaveThumbnail(r.Context(), asset.Kind(req.Type), req.Name, img); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) thumbnail(w http.ResponseWriter, r *http.Request) {
	img, err := h.backend.LoadThumbnail(r.Context(), asset.Kind(r.PathValue("type")), r.PathValue("name"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(img)
}

// importExternal replaces the staging area with the uploaded files. Each
// "files" part may be paired with a "paths" value holding its relative path.
func (h *Handler) importExternal(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		badRequest(w, "expected multipart form")
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		badRequest(w, "no files to upload")
		return
	}
	paths := r.MultipartForm.Value["paths"]

	ctx := r.Context()
	if err := h.backend.ClearStaging(ctx); err != nil {
		h.fail(w, r, err)
		return
	}
	uploaded := make([]StagedEntry, 0, len(files))
	for i, fh := range files {
		rel := fh.Filename
		if i < len(paths) && paths[i] != "" {
			rel = paths[i]
		}
		rel = strings.TrimLeft(path.Clean("/"+strings.ReplaceAll(rel, `\`, "/")), "/")
		f, err := fh.Open()
		if err != nil {
			h.fail(w, r, err)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if err := h.backend.StageFile(ctx, asset.File{Path: rel, Data: data}); err != nil {
			h.fail(w, r, err)
			return
		}
		uploaded = append(uploaded, StagedEntry{Name: rel, Size: len(data)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "files": uploaded})
}

func (h *Handler) listExternal(w http.ResponseWriter, r *http.Request) {
	files, err := h.backend.StagedFiles(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entries := make([]StagedEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, StagedEntry{Name: f.Path, Size: len(f.Data)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "files": entries})
}

func (h *Handler) clearExternal(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.ClearStaging(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) stagedFile(w http.ResponseWriter, r *http.Request) {
	want := r.PathValue("path")
	files, err := h.backend.StagedFiles(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	for _, f := range files {
		if f.Path != want {
			continue
		}
		ctype := mime.TypeByExtension(path.Ext(want))
		if path.Ext(want) == ".glb" {
			ctype = "model/gltf-binary"
		}
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ctype)
		_, _ = w.Write(f.Data)
		return
	}
	http.NotFound(w, r)
}

func (h *Handler) bundleFlow(w http.ResponseWriter, r *http.Request) {
	var req asset.BundleRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.backend.BundleFlow(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"bundledScenes": res.BundledScenes,
		"totalFiles":    res.TotalFiles,
	})
}

func (h *Handler) restoreFlow(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.backend.RestoreFlowAssets(r.Context(), req.FlowName)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"foundAssets":    res.FoundAssets,
		"restoredFiles":  res.RestoredFiles,
		"restoredScenes": res.RestoredScenes,
	})
}
