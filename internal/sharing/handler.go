package sharing

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/deptfile/file-management/internal/auth"
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

func (h *Handler) GrantFilePermission(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto GrantFilePermissionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	grant, err := h.Service.GrantFilePermission(r.Context(), session.Actor(), chi.URLParam(r, "fileID"), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, grant)
}

func (h *Handler) RevokeFilePermission(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	granteeID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.Service.RevokeFilePermission(r.Context(), session.Actor(), chi.URLParam(r, "fileID"), granteeID); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]string{"message": "permission revoked"})
}

func (h *Handler) GrantFolderPermission(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto GrantFolderPermissionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	grant, err := h.Service.GrantFolderPermission(r.Context(), session.Actor(), chi.URLParam(r, "folderID"), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, grant)
}

func (h *Handler) GrantFolderToDepartment(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto GrantFolderToDepartmentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	granted, err := h.Service.GrantFolderToDepartment(r.Context(), session.Actor(), chi.URLParam(r, "folderID"), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, map[string]any{
		"message":      "department grant applied",
		"member_count": granted,
	})
}

func (h *Handler) RevokeFolderPermission(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	granteeID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.Service.RevokeFolderPermission(r.Context(), session.Actor(), chi.URLParam(r, "folderID"), granteeID); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]string{"message": "permission revoked"})
}

func (h *Handler) CreateShareLink(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto CreateShareLinkDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	link, err := h.Service.CreateShareLink(r.Context(), session.Actor(), chi.URLParam(r, "fileID"), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, ToShareLinkResponse(link))
}

func (h *Handler) ListShareLinks(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	links, err := h.Service.ListShareLinks(r.Context(), session.Actor(), chi.URLParam(r, "fileID"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	out := make([]ShareLinkResponse, 0, len(links))
	for _, link := range links {
		out = append(out, ToShareLinkResponse(link))
	}
	h.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) RevokeShareLink(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.Service.RevokeShareLink(r.Context(), session.Actor(), chi.URLParam(r, "linkID")); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]string{"message": "share link revoked"})
}

// ResolveShareLink is the unauthenticated metadata endpoint behind a token.
// The password travels in a header so it never lands in access logs.
func (h *Handler) ResolveShareLink(w http.ResponseWriter, r *http.Request) {
	link, f, err := h.Service.Resolve(r.Context(), chi.URLParam(r, "token"), r.Header.Get("X-Share-Password"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]any{
		"file": map[string]any{
			"id":        f.PublicID,
			"name":      f.Name,
			"size":      f.Size,
			"mime_type": f.MimeType,
		},
		"link": ToShareLinkResponse(link),
	})
}
