package file

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/deptfile/file-management/internal/auth"
	"github.com/deptfile/file-management/internal/sharing"
	"github.com/deptfile/file-management/internal/transport"
	"github.com/deptfile/file-management/pkg/logger"
)

// uploads above this spill to disk instead of memory
const maxMultipartMemory = 32 << 20

type Handler struct {
	*transport.BaseHandler
	Service *Service
	Sharing *sharing.Service
}

func NewHandler(service *Service, sharingService *sharing.Service) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
		Sharing:     sharingService,
	}
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	part, header, err := r.FormFile("file")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "missing file part")
		return
	}
	defer part.Close()

	f, err := h.Service.Upload(r.Context(), session.Actor(), chi.URLParam(r, "folderID"), UploadInput{
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Size:     header.Size,
		Content:  part,
	})
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, ToResponse(f))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	f, err := h.Service.Get(r.Context(), session.Actor(), chi.URLParam(r, "fileID"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToResponse(f))
}

func (h *Handler) serveStream(w http.ResponseWriter, stream io.ReadCloser, name, mimeType string, size int64) {
	defer stream.Close()

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	if _, err := io.Copy(w, stream); err != nil {
		h.Logger.Error("download stream interrupted", "error", err, "name", name)
	}
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	stream, f, err := h.Service.Download(r.Context(), session.Actor(), chi.URLParam(r, "fileID"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.serveStream(w, stream, f.Name, f.MimeType, f.Size)
}

// DownloadShared is the anonymous download path behind a share link token.
func (h *Handler) DownloadShared(w http.ResponseWriter, r *http.Request) {
	_, f, err := h.Sharing.ResolveForDownload(r.Context(), chi.URLParam(r, "token"), r.Header.Get("X-Share-Password"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	stream, err := h.Service.OpenContent(r.Context(), f)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.serveStream(w, stream, f.Name, f.MimeType, f.Size)
}

func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto RenameFileDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	f, err := h.Service.Rename(r.Context(), session.Actor(), chi.URLParam(r, "fileID"), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToResponse(f))
}

func (h *Handler) Move(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto MoveFileDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	f, err := h.Service.Move(r.Context(), session.Actor(), chi.URLParam(r, "fileID"), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToResponse(f))
}

func (h *Handler) Trash(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.Service.Trash(r.Context(), session.Actor(), chi.URLParam(r, "fileID")); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]string{"message": "file moved to trash"})
}

func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.Service.Restore(r.Context(), session.Actor(), chi.URLParam(r, "fileID")); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]string{"message": "file restored"})
}

func (h *Handler) Purge(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.Service.Purge(r.Context(), session.Actor(), chi.URLParam(r, "fileID")); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]string{"message": "file permanently deleted"})
}

func (h *Handler) UploadVersion(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	part, header, err := r.FormFile("file")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "missing file part")
		return
	}
	defer part.Close()

	f, err := h.Service.UploadVersion(r.Context(), session.Actor(), chi.URLParam(r, "fileID"), UploadInput{
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Size:     header.Size,
		Content:  part,
	})
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, ToResponse(f))
}

func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	versions, err := h.Service.ListVersions(r.Context(), session.Actor(), chi.URLParam(r, "fileID"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	out := make([]VersionResponse, 0, len(versions))
	for _, v := range versions {
		out = append(out, ToVersionResponse(v))
	}
	h.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) DownloadVersion(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	versionNo, err := strconv.Atoi(chi.URLParam(r, "versionNo"))
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid version number")
		return
	}

	stream, v, err := h.Service.DownloadVersion(r.Context(), session.Actor(), chi.URLParam(r, "fileID"), versionNo)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.serveStream(w, stream, fmt.Sprintf("v%d", v.VersionNo), "", v.Size)
}
