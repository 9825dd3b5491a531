package handlers

import (
	"net/http"

	"github.com/isdelr/stencil-be/internal/api/respond"
	"github.com/isdelr/stencil-be/internal/auth"
	"github.com/isdelr/stencil-be/internal/services"
)

// TemplateHandler handles HTTP requests related to templates.
type TemplateHandler struct {
	service services.TemplateServiceProvider
}

// NewTemplateHandler creates a new TemplateHandler.
func NewTemplateHandler(service services.TemplateServiceProvider) *TemplateHandler {
	return &TemplateHandler{service: service}
}

// templateInput reads name, content and visibility from a JSON body, or from
// query parameters when the request has no body.
func templateInput(w http.ResponseWriter, r *http.Request) (services.TemplateInput, error) {
	query := r.URL.Query()
	if r.ContentLength == 0 && query.Has("name") {
		return services.TemplateInput{
			Name:       query.Get("name"),
			Content:    query.Get("content"),
			Visibility: query.Get("visibility"),
		}, nil
	}
	var input services.TemplateInput
	err := decodeJSON(w, r, &input)
	return input, err
}

// Create handles the request to create a new template. A bearer token is
// optional; when present its subject owns the template.
func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, err := templateInput(w, r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	template, err := h.service.CreateTemplate(r.Context(), auth.CallerFromContext(r.Context()), input)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, template)
}

// ListPublic handles the request to page through public templates.
func (h *TemplateHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	skip, err := intQuery(r, "skip")
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	limit, err := intQuery(r, "limit")
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	templates, err := h.service.ListPublicTemplates(r.Context(), skip, limit)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, templates)
}

// ListMine handles the request for the caller's own templates.
func (h *TemplateHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	templates, err := h.service.ListCallerTemplates(r.Context(), auth.CallerFromContext(r.Context()))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, templates)
}

// Get handles the request to get a single template by its ID.
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	template, err := h.service.GetTemplate(r.Context(), auth.CallerFromContext(r.Context()), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, template)
}

// Update handles the request to update an existing template.
func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	input, err := templateInput(w, r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	template, err := h.service.UpdateTemplate(r.Context(), auth.CallerFromContext(r.Context()), id, input)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, template)
}

// Delete handles the request to delete a template.
func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	if err := h.service.DeleteTemplate(r.Context(), auth.CallerFromContext(r.Context()), id); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Template deleted successfully")
}
