package folder

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/deptfile/file-management/internal/auth"
	filemodel "github.com/deptfile/file-management/internal/core/datamodel/file"
	foldermodel "github.com/deptfile/file-management/internal/core/datamodel/folder"
	"github.com/deptfile/file-management/internal/transport"
	"github.com/deptfile/file-management/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service *Service
}

func NewHandler(service *Service) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func folderView(fo *foldermodel.Folder) map[string]any {
	return map[string]any{
		"id":            fo.PublicID,
		"name":          fo.Name,
		"department_id": fo.DepartmentID,
		"visibility":    fo.Visibility,
		"trashed":       fo.IsDeleted(),
		"created_at":    fo.CreatedAt,
		"updated_at":    fo.UpdatedAt,
	}
}

func fileView(f *filemodel.File) map[string]any {
	return map[string]any{
		"id":          f.PublicID,
		"name":        f.Name,
		"size":        f.Size,
		"mime_type":   f.MimeType,
		"scan_status": f.ScanStatus,
		"trashed":     f.IsDeleted(),
		"created_at":  f.CreatedAt,
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto CreateFolderDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fo, err := h.Service.Create(r.Context(), session.Actor(), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, folderView(fo))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	fo, err := h.Service.Get(r.Context(), session.Actor(), chi.URLParam(r, "folderID"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, folderView(fo))
}

func (h *Handler) ListChildren(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	folders, files, err := h.Service.ListChildren(r.Context(), session.Actor(), chi.URLParam(r, "folderID"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	folderViews := make([]map[string]any, 0, len(folders))
	for _, fo := range folders {
		folderViews = append(folderViews, folderView(fo))
	}
	fileViews := make([]map[string]any, 0, len(files))
	for _, f := range files {
		fileViews = append(fileViews, fileView(f))
	}

	h.WriteJSON(w, http.StatusOK, map[string]any{
		"folders": folderViews,
		"files":   fileViews,
	})
}

func (h *Handler) ListRoots(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	roots, err := h.Service.ListRoots(r.Context(), session.Actor())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	views := make([]map[string]any, 0, len(roots))
	for _, fo := range roots {
		views = append(views, folderView(fo))
	}
	h.WriteJSON(w, http.StatusOK, map[string]any{"folders": views})
}

func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto RenameFolderDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fo, err := h.Service.Rename(r.Context(), session.Actor(), chi.URLParam(r, "folderID"), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, folderView(fo))
}

func (h *Handler) Move(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto MoveFolderDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fo, err := h.Service.Move(r.Context(), session.Actor(), chi.URLParam(r, "folderID"), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, folderView(fo))
}

func (h *Handler) Trash(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.Service.Trash(r.Context(), session.Actor(), chi.URLParam(r, "folderID")); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]string{"message": "folder moved to trash"})
}

func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.Service.Restore(r.Context(), session.Actor(), chi.URLParam(r, "folderID")); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]string{"message": "folder restored"})
}

func (h *Handler) Purge(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.Service.Purge(r.Context(), session.Actor(), chi.URLParam(r, "folderID")); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]string{"message": "folder permanently deleted"})
}
