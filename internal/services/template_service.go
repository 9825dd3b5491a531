package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/isdelr/stencil-be/internal/apperr"
	"github.com/isdelr/stencil-be/internal/auth"
	"github.com/isdelr/stencil-be/internal/models"
	"github.com/isdelr/stencil-be/internal/store"
)

const (
	maxTemplateNameLength = 255
	maxTemplateContentLen = 1 << 20
)

// Live feed actions for public templates.
const (
	ActionTemplateCreated = "template.created"
	ActionTemplateUpdated = "template.updated"
	ActionTemplateRemoved = "template.removed"
)

// TemplateServiceProvider defines the interface for template services.
type TemplateServiceProvider interface {
	CreateTemplate(ctx context.Context, caller auth.Caller, input TemplateInput) (models.Template, error)
	ListPublicTemplates(ctx context.Context, skip, limit int) ([]models.Template, error)
	ListCallerTemplates(ctx context.Context, caller auth.Caller) ([]models.Template, error)
	GetTemplate(ctx context.Context, caller auth.Caller, id int64) (models.Template, error)
	UpdateTemplate(ctx context.Context, caller auth.Caller, id int64, input TemplateInput) (models.Template, error)
	DeleteTemplate(ctx context.Context, caller auth.Caller, id int64) error
}

// TemplateInput carries client-supplied template fields. An empty Visibility
// means PUBLIC on create and "unchanged" on update.
type TemplateInput struct {
	Name       string `json:"name"`
	Content    string `json:"content"`
	Visibility string `json:"visibility,omitempty"`
}

// TemplateOptions tunes access control and paging.
type TemplateOptions struct {
	// DeleteRequiresOwner restricts deletion to the authenticated owner, the
	// same rule update follows. When false any caller may delete any
	// template.
	DeleteRequiresOwner bool
	DefaultLimit        int
	MaxLimit            int
}

// DefaultTemplateOptions returns the options used when none are configured.
func DefaultTemplateOptions() TemplateOptions {
	return TemplateOptions{DeleteRequiresOwner: true, DefaultLimit: 10, MaxLimit: 100}
}

// TemplateService provides business logic for template management.
type TemplateService struct {
	templates TemplateStore
	events    EventServiceProvider
	publisher Publisher
	opts      TemplateOptions
}

// NewTemplateService creates a new TemplateService. events and publisher may
// be nil.
func NewTemplateService(templates TemplateStore, events EventServiceProvider, publisher Publisher, opts TemplateOptions) *TemplateService {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultTemplateOptions().DefaultLimit
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = opts.DefaultLimit
	}
	return &TemplateService{templates: templates, events: events, publisher: publisher, opts: opts}
}

func validateTemplate(name, content string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", apperr.InvalidInput("name is required")
	case utf8.RuneCountInString(name) > maxTemplateNameLength:
		return "", apperr.InvalidInput(fmt.Sprintf("name must be at most %d characters", maxTemplateNameLength))
	case len(content) > maxTemplateContentLen:
		return "", apperr.InvalidInput(fmt.Sprintf("content must be at most %d bytes", maxTemplateContentLen))
	}
	return name, nil
}

// CreateTemplate adds a new template. Authenticated callers become its
// owner; anonymous callers create an ownerless template.
func (s *TemplateService) CreateTemplate(ctx context.Context, caller auth.Caller, input TemplateInput) (models.Template, error) {
	name, err := validateTemplate(input.Name, input.Content)
	if err != nil {
		return models.Template{}, err
	}
	visibility, err := models.ParseVisibility(input.Visibility)
	if err != nil {
		return models.Template{}, apperr.InvalidInput("visibility must be PUBLIC or PRIVATE")
	}

	tmpl := models.Template{Name: name, Content: input.Content, Visibility: visibility}
	if userID, ok := caller.UserID(); ok {
		tmpl.OwnerID = &userID
	}

	if err := s.templates.Create(ctx, &tmpl); err != nil {
		return models.Template{}, err
	}

	recordEvent(ctx, s.events, "template.created", fmt.Sprintf("Template %d created", tmpl.ID), tmpl.OwnerID)
	if tmpl.IsPublic() {
		s.publish(ActionTemplateCreated, tmpl)
	}
	return tmpl, nil
}

// ListPublicTemplates returns one page of PUBLIC templates. A zero limit
// selects the default page size; larger limits are clamped to the maximum.
func (s *TemplateService) ListPublicTemplates(ctx context.Context, skip, limit int) ([]models.Template, error) {
	if skip < 0 || limit < 0 {
		return nil, apperr.InvalidInput("skip and limit must not be negative")
	}
	if limit == 0 {
		limit = s.opts.DefaultLimit
	}
	if limit > s.opts.MaxLimit {
		limit = s.opts.MaxLimit
	}
	return s.templates.ListByVisibility(ctx, models.VisibilityPublic, skip, limit)
}

// ListCallerTemplates returns every template owned by the caller.
func (s *TemplateService) ListCallerTemplates(ctx context.Context, caller auth.Caller) ([]models.Template, error) {
	userID, err := requireUser(caller)
	if err != nil {
		return nil, err
	}
	return s.templates.ListByOwner(ctx, userID)
}

// GetTemplate returns a public template, or a private one to its owner.
// Private templates of other users are reported as missing.
func (s *TemplateService) GetTemplate(ctx context.Context, caller auth.Caller, id int64) (models.Template, error) {
	tmpl, err := s.find(ctx, id)
	if err != nil {
		return models.Template{}, err
	}
	if !tmpl.IsPublic() {
		if userID, ok := caller.UserID(); !ok || !tmpl.IsOwnedBy(userID) {
			return models.Template{}, apperr.NotFound("Template not found")
		}
	}
	return tmpl, nil
}

// UpdateTemplate replaces name and content, and visibility when given, of a
// template owned by the caller. The ownership check and the write happen
// against the same stored version of the record.
func (s *TemplateService) UpdateTemplate(ctx context.Context, caller auth.Caller, id int64, input TemplateInput) (models.Template, error) {
	userID, err := requireUser(caller)
	if err != nil {
		return models.Template{}, err
	}

	var wasPublic bool
	tmpl, err := s.templates.Modify(ctx, id, func(tmpl *models.Template) error {
		if !tmpl.IsOwnedBy(userID) {
			return apperr.Forbidden("Not authorized to update this template")
		}
		name, err := validateTemplate(input.Name, input.Content)
		if err != nil {
			return err
		}
		wasPublic = tmpl.IsPublic()
		tmpl.Name = name
		tmpl.Content = input.Content
		if input.Visibility != "" {
			visibility, err := models.ParseVisibility(input.Visibility)
			if err != nil {
				return apperr.InvalidInput("visibility must be PUBLIC or PRIVATE")
			}
			tmpl.Visibility = visibility
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Template{}, apperr.NotFound("Template not found")
		}
		return models.Template{}, err
	}

	recordEvent(ctx, s.events, "template.updated", fmt.Sprintf("Template %d updated", tmpl.ID), &userID)
	switch {
	case tmpl.IsPublic():
		s.publish(ActionTemplateUpdated, tmpl)
	case wasPublic:
		s.publish(ActionTemplateRemoved, removedPayload{ID: tmpl.ID})
	}
	return tmpl, nil
}

// DeleteTemplate permanently removes a template. Whether the caller must own
// it depends on TemplateOptions.DeleteRequiresOwner.
func (s *TemplateService) DeleteTemplate(ctx context.Context, caller auth.Caller, id int64) error {
	var actor *int64
	if s.opts.DeleteRequiresOwner {
		userID, err := requireUser(caller)
		if err != nil {
			return err
		}
		actor = &userID
	} else if userID, ok := caller.UserID(); ok {
		actor = &userID
	}

	tmpl, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if s.opts.DeleteRequiresOwner && !tmpl.IsOwnedBy(*actor) {
		return apperr.Forbidden("Not authorized to delete this template")
	}

	if err := s.templates.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Template not found")
		}
		return err
	}

	recordEvent(ctx, s.events, "template.deleted", fmt.Sprintf("Template %d deleted", id), actor)
	if tmpl.IsPublic() {
		s.publish(ActionTemplateRemoved, removedPayload{ID: id})
	}
	return nil
}

func (s *TemplateService) find(ctx context.Context, id int64) (models.Template, error) {
	tmpl, err := s.templates.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Template{}, apperr.NotFound("Template not found")
		}
		return models.Template{}, err
	}
	return tmpl, nil
}

type removedPayload struct {
	ID int64 `json:"id"`
}

func (s *TemplateService) publish(action string, payload interface{}) {
	if s.publisher != nil {
		s.publisher.Publish(action, payload)
	}
}
