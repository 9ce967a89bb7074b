package handler

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-group-coordinator/internal/model"
	"github.com/iliyamo/tour-group-coordinator/internal/repository"
	"github.com/iliyamo/tour-group-coordinator/internal/utils"
)

// GuideHandler manages the guide directory.
type GuideHandler struct {
	Guides     GuideStore
	Tokens     TokenStore
	BcryptCost int
}

func NewGuideHandler(g GuideStore, t TokenStore, bcryptCost int) *GuideHandler {
	return &GuideHandler{Guides: g, Tokens: t, BcryptCost: bcryptCost}
}

// publicGuide is what anonymous visitors see when picking a preferred
// guide.
type publicGuide struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Languages []string `json:"languages"`
}

type guideBody struct {
	Email     *string   `json:"email"`
	Password  *string   `json:"password"`
	FirstName *string   `json:"first_name"`
	LastName  *string   `json:"last_name"`
	Phone     *string   `json:"phone"`
	Languages *[]string `json:"languages"`
	IsAdmin   *bool     `json:"is_admin"`
	IsActive  *bool     `json:"is_active"`
}

// PublicList handles GET /v1/guides: active guides only.
func (h *GuideHandler) PublicList(c echo.Context) error {
	guides, err := h.Guides.List(c.Request().Context(), false)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list guides"})
	}
	out := make([]publicGuide, 0, len(guides))
	for _, g := range guides {
		out = append(out, publicGuide{ID: g.ID, Name: g.DisplayName(), Languages: g.Languages})
	}
	return c.JSON(http.StatusOK, out)
}

// List handles GET /v1/admin/guides.  ?active=true hides inactive guides.
func (h *GuideHandler) List(c echo.Context) error {
	includeInactive := c.QueryParam("active") != "true"
	guides, err := h.Guides.List(c.Request().Context(), includeInactive)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list guides"})
	}
	return c.JSON(http.StatusOK, guides)
}

// Create handles POST /v1/admin/guides.
func (h *GuideHandler) Create(c echo.Context) error {
	var body guideBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.Email == nil || body.Password == nil || body.FirstName == nil {
		return badRequest(c, "email, password and first_name are required")
	}
	now := time.Now().UTC()
	g := &model.Guide{
		ID:        uuid.NewString(),
		IsActive:  true,
		Languages: []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if msg := applyGuideBody(g, body); msg != "" {
		return badRequest(c, msg)
	}
	hash, err := utils.HashPassword(*body.Password, h.BcryptCost)
	if err != nil {
		if errors.Is(err, utils.ErrWeakPassword) {
			return badRequest(c, "password must be at least 8 characters")
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash password failed"})
	}
	g.PasswordHash = hash

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Guides.Create(ctx, g); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create guide failed"})
	}
	return c.JSON(http.StatusCreated, g)
}

// Update handles PATCH /v1/admin/guides/:id.  Only fields present in the
// body change.  Deactivating a guide also revokes their sessions.
func (h *GuideHandler) Update(c echo.Context) error {
	var body guideBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	g, err := h.Guides.GetByID(ctx, c.Param("id"))
	if err != nil {
		return guideLookupError(c, err)
	}
	wasActive := g.IsActive
	g.PasswordHash = ""
	if msg := applyGuideBody(g, body); msg != "" {
		return badRequest(c, msg)
	}
	if body.Password != nil {
		hash, err := utils.HashPassword(*body.Password, h.BcryptCost)
		if err != nil {
			if errors.Is(err, utils.ErrWeakPassword) {
				return badRequest(c, "password must be at least 8 characters")
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash password failed"})
		}
		g.PasswordHash = hash
	}
	if err := h.Guides.Update(ctx, g); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return guideLookupError(c, err)
	}
	if wasActive && !g.IsActive {
		_ = h.Tokens.RevokeAllForGuide(ctx, g.ID)
	}
	g.PasswordHash = ""
	return c.JSON(http.StatusOK, g)
}

// Deactivate handles DELETE /v1/admin/guides/:id.  Guides are kept so
// tour groups keep a valid reference; they can no longer sign in.
func (h *GuideHandler) Deactivate(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	id := c.Param("id")
	if err := h.Guides.Deactivate(ctx, id); err != nil {
		return guideLookupError(c, err)
	}
	if err := h.Tokens.RevokeAllForGuide(ctx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke sessions failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// applyGuideBody copies the present fields of body onto g and returns a
// validation message, or "" when g is acceptable.
func applyGuideBody(g *model.Guide, body guideBody) string {
	if body.Email != nil {
		g.Email = strings.ToLower(strings.TrimSpace(*body.Email))
	}
	if body.FirstName != nil {
		g.FirstName = strings.TrimSpace(*body.FirstName)
	}
	if body.LastName != nil {
		g.LastName = strings.TrimSpace(*body.LastName)
	}
	if body.Phone != nil {
		if p := strings.TrimSpace(*body.Phone); p != "" {
			g.Phone = &p
		} else {
			g.Phone = nil
		}
	}
	if body.Languages != nil {
		g.Languages = *body.Languages
	}
	if body.IsAdmin != nil {
		g.IsAdmin = *body.IsAdmin
	}
	if body.IsActive != nil {
		g.IsActive = *body.IsActive
	}
	if g.FirstName == "" {
		return "first_name is required"
	}
	if _, err := mail.ParseAddress(g.Email); err != nil {
		return "email is not valid"
	}
	return ""
}

func guideLookupError(c echo.Context, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "guide not found"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "guide update failed"})
}
