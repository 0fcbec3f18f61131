package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/youssefsiam38/activitypg/blob"
	"github.com/youssefsiam38/activitypg/gateway"
)

type reviewRequest struct {
	Content string `json:"content"`
}

// Photo handlers

func (rt *router) handleListPhotos(w http.ResponseWriter, r *http.Request) {
	q := rt.listQuery(r)
	photos, err := rt.gw.Photos.ListPage(r.Context(), r.URL.Query().Get("category"), q)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	writeJSONWithMeta(w, http.StatusOK, photos, pageMeta(q, len(photos)))
}

func (rt *router) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	photo, err := rt.gw.Photos.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, photo)
}

// parseUpload reads a multipart photo form. The image part is optional.
func (rt *router) parseUpload(w http.ResponseWriter, r *http.Request) (*gateway.Image, func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(rt.config.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", "upload exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return nil, nil, false
		}
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid multipart form")
		return nil, nil, false
	}
	cleanup := func() { _ = r.MultipartForm.RemoveAll() }

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, cleanup, true
	}
	if err != nil {
		cleanup()
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid image part")
		return nil, nil, false
	}
	img := &gateway.Image{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	}
	return img, func() { _ = file.Close(); cleanup() }, true
}

func (rt *router) handleCreatePhoto(w http.ResponseWriter, r *http.Request) {
	img, cleanup, ok := rt.parseUpload(w, r)
	if !ok {
		return
	}
	defer cleanup()

	in := gateway.PhotoInput{
		Name:     r.FormValue("name"),
		Category: r.FormValue("category"),
	}
	if img != nil {
		in.Image = *img
	}
	photo, err := rt.gw.Photos.Create(r.Context(), in)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, photo)
}

func (rt *router) handleUpdatePhoto(w http.ResponseWriter, r *http.Request) {
	img, cleanup, ok := rt.parseUpload(w, r)
	if !ok {
		return
	}
	defer cleanup()

	patch := gateway.PhotoPatch{Image: img}
	if _, set := r.MultipartForm.Value["name"]; set {
		name := r.FormValue("name")
		patch.Name = &name
	}
	photo, err := rt.gw.Photos.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, photo)
}

func (rt *router) handleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	if _, err := rt.gw.Photos.Delete(r.Context(), r.PathValue("id")); err != nil {
		rt.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Review handlers

func (rt *router) handleListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := rt.gw.Reviews.List(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

func (rt *router) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !decode(w, r, &req) {
		return
	}
	review, err := rt.gw.Reviews.Create(r.Context(), r.PathValue("id"), req.Content)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (rt *router) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !decode(w, r, &req) {
		return
	}
	review, err := rt.gw.Reviews.Update(r.Context(), r.PathValue("id"), req.Content)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (rt *router) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	if _, err := rt.gw.Reviews.Delete(r.Context(), r.PathValue("id")); err != nil {
		rt.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Blob handlers

func (rt *router) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	info, body, err := rt.gw.Blobs().Get(r.Context(), r.PathValue("key"))
	if err != nil {
		switch {
		case errors.Is(err, blob.ErrNotFound), errors.Is(err, blob.ErrInvalidKey):
			writeError(w, http.StatusNotFound, "not_found", "object not found")
		default:
			rt.writeErr(w, err)
		}
		return
	}
	defer body.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		rt.config.Logger.Debug("blob write interrupted", "key", info.Key, "error", err)
	}
}
