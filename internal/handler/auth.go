package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-group-coordinator/internal/config"
	"github.com/iliyamo/tour-group-coordinator/internal/middleware"
	"github.com/iliyamo/tour-group-coordinator/internal/model"
	"github.com/iliyamo/tour-group-coordinator/internal/repository"
	"github.com/iliyamo/tour-group-coordinator/internal/utils"
)

// GuideStore is the guide account storage used by the auth and guide
// handlers.  *repository.GuideRepo implements it.
type GuideStore interface {
	Create(ctx context.Context, g *model.Guide) error
	GetByEmail(ctx context.Context, email string) (*model.Guide, error)
	GetByID(ctx context.Context, id string) (*model.Guide, error)
	List(ctx context.Context, includeInactive bool) ([]model.Guide, error)
	Update(ctx context.Context, g *model.Guide) error
	Deactivate(ctx context.Context, id string) error
}

// TokenStore persists refresh token hashes.  *repository.TokenRepo
// implements it.
type TokenStore interface {
	StoreRefresh(ctx context.Context, t model.RefreshToken) error
	ValidateRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForGuide(ctx context.Context, guideID string) error
}

// AuthHandler bundles dependencies for staff auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Guides GuideStore
	Tokens TokenStore
}

func NewAuthHandler(cfg config.Config, g GuideStore, t TokenStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Guides: g, Tokens: t}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type guidePart struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}
type authResp struct {
	Guide   guidePart `json:"guide"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// Login: verify credentials of an active guide and return a token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	g, err := h.Guides.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !g.IsActive || !utils.VerifyPassword(g.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	return h.issue(ctx, c, g, http.StatusOK)
}

// Refresh: validate by hash, revoke the old token, issue a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	guideID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	_ = h.Tokens.RevokeByHash(ctx, hash)

	g, err := h.Guides.GetByID(ctx, guideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load guide failed"})
	}
	if !g.IsActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "guide deactivated"})
	}
	return h.issue(ctx, c, g, http.StatusOK)
}

// Logout revokes one refresh token when given in the body, otherwise every
// token of the bearer's guide.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
		}
		return c.NoContent(http.StatusNoContent)
	}

	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return badRequest(c, "provide Authorization header or refresh_token")
	}
	claims, err := middleware.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.Tokens.RevokeAllForGuide(ctx, sub); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the signed-in guide's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	g, err := h.Guides.GetByID(c.Request().Context(), middleware.GuideID(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "guide not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load guide failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"guide": g, "role": middleware.Role(c)})
}

func (h *AuthHandler) issue(ctx context.Context, c echo.Context, g *model.Guide, status int) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, g.ID, g.Role(), h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}
	err = h.Tokens.StoreRefresh(ctx, model.RefreshToken{
		GuideID:   g.ID,
		TokenHash: utils.HashRefreshRaw(refresh.Raw),
		ExpiresAt: refresh.Exp,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
	}
	return c.JSON(status, authResp{
		Guide:   guidePart{ID: g.ID, Email: g.Email, Name: g.DisplayName(), Role: g.Role()},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	})
}
