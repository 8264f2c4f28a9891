package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/phoenixiam/phoenix/internal/iam/domain"
	"github.com/phoenixiam/phoenix/internal/iam/store"
	"github.com/phoenixiam/phoenix/pkg/authsdk"
	"github.com/phoenixiam/phoenix/pkg/httpx"
	"github.com/phoenixiam/phoenix/pkg/slogx"
)

// TenantsHandler handles the admin tenant registry endpoints. The router
// gates every route here behind the admin role.
type TenantsHandler struct {
	Store store.Store
}

type createTenantRequest struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	RedirectURI string   `json:"redirect_uri"`
	Scopes      []string `json:"scopes"`
}

type tenantResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	RedirectURI string    `json:"redirect_uri"`
	Scopes      []string  `json:"scopes"`
	Protected   bool      `json:"protected"`
	CreatedAt   time.Time `json:"created_at"`
}

func toTenantResponse(t domain.Tenant) tenantResponse {
	return tenantResponse{
		ID:          t.ID,
		Name:        t.Name,
		RedirectURI: t.RedirectURI,
		Scopes:      t.Scopes,
		Protected:   t.Protected,
		CreatedAt:   t.CreatedAt,
	}
}

// HandleList handles GET /v1/tenants.
func (h *TenantsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	tenants, err := h.Store.Tenants().ListTenants(ctx)
	if err != nil {
		log.Error("failed to list tenants", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	out := make([]tenantResponse, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, toTenantResponse(t))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"tenants": out})
}

// HandleCreate handles POST /v1/tenants.
func (h *TenantsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req createTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		authsdk.NewOAuth2Error(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest,
			"Invalid JSON in request body").WriteError(w)
		return
	}

	req.ID = strings.TrimSpace(req.ID)
	req.RedirectURI = strings.TrimSpace(req.RedirectURI)
	if req.ID == "" || req.RedirectURI == "" || len(req.Scopes) == 0 {
		authsdk.NewOAuth2Error(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest,
			"id, redirect_uri and scopes are required").WriteError(w)
		return
	}
	if req.Name == "" {
		req.Name = req.ID
	}

	tenant := domain.Tenant{
		ID:          req.ID,
		Name:        req.Name,
		RedirectURI: req.RedirectURI,
		Scopes:      req.Scopes,
	}
	if err := h.Store.Tenants().CreateTenant(ctx, tenant); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			authsdk.NewOAuth2Error(http.StatusConflict, authsdk.ErrorCodeInvalidRequest,
				"A tenant with this id already exists").WriteError(w)
			return
		}
		log.Error("failed to create tenant", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	created, err := h.Store.Tenants().GetTenantByID(ctx, tenant.ID)
	if err != nil {
		log.Error("failed to reload tenant", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toTenantResponse(created))
}

// HandleDelete handles DELETE /v1/tenants/{id}. Protected tenants, such as
// the bootstrap tenant, cannot be removed over the API.
func (h *TenantsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	id := r.PathValue("id")
	tenant, err := h.Store.Tenants().GetTenantByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			authsdk.NewOAuth2Error(http.StatusNotFound, authsdk.ErrorCodeInvalidRequest,
				"No such tenant").WriteError(w)
			return
		}
		log.Error("failed to load tenant", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}
	if tenant.Protected {
		authsdk.NewOAuth2Error(http.StatusForbidden, authsdk.ErrorCodeAccessDenied,
			"Protected tenants cannot be deleted").WriteError(w)
		return
	}

	if err := h.Store.Tenants().DeleteTenant(ctx, id); err != nil {
		log.Error("failed to delete tenant", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
