package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"gatekeeper/internal/domain"
	"gatekeeper/internal/service"
)

// credentialsRequest accepts the login under any of the names the client
// services use for it.
type credentialsRequest struct {
	LoginName string `json:"loginName"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

func (r credentialsRequest) login() string {
	for _, v := range []string{r.LoginName, r.Email, r.Username} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

type registerRequest struct {
	credentialsRequest
	IsAdmin     bool   `json:"isAdmin"`
	AdminSecret string `json:"adminSecret"`
}

type refreshRequest struct {
	UserID       string `json:"userId"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type PrincipalResponse struct {
	ID        string `json:"id"`
	LoginName string `json:"loginName"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

type TokenResponse struct {
	UserID           string `json:"userId"`
	Token            string `json:"token"`
	RefreshToken     string `json:"refreshToken"`
	ExpiresAt        string `json:"expiresAt"`
	RefreshExpiresAt string `json:"refreshExpiresAt"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, domain.ErrValidation)
		return
	}

	p, err := h.accounts.Register(c.Request.Context(), service.RegisterInput{
		LoginName:   req.login(),
		Password:    req.Password,
		Admin:       req.IsAdmin,
		AdminSecret: req.AdminSecret,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, principalToResponse(p))
}

func (h *Handler) issueTokens(c *gin.Context) {
	sess, err := h.login(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionToResponse(sess))
}

// legacyToken answers failed logins with 400 like the original todo service.
func (h *Handler) legacyToken(c *gin.Context) {
	sess, err := h.login(c)
	if err != nil {
		if errors.Is(err, domain.ErrAuthentication) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid credentials"})
			return
		}
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionToResponse(sess))
}

func (h *Handler) login(c *gin.Context) (*service.Session, error) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return h.accounts.Login(c.Request.Context(), req.login(), req.Password)
}

func (h *Handler) refreshTokens(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, domain.ErrInvalidCredentials)
		return
	}
	sess, err := h.accounts.Refresh(c.Request.Context(), service.RefreshInput{
		UserID:       req.UserID,
		AccessToken:  req.Token,
		RefreshToken: req.RefreshToken,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionToResponse(sess))
}

func (h *Handler) logout(c *gin.Context) {
	identity := identityFrom(c)
	if identity == nil {
		h.writeError(c, domain.ErrTokenMissing)
		return
	}
	if err := h.accounts.Logout(c.Request.Context(), *identity); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) me(c *gin.Context) {
	identity := identityFrom(c)
	if identity == nil {
		h.writeError(c, domain.ErrTokenMissing)
		return
	}
	p, err := h.accounts.GetPrincipal(c.Request.Context(), identity.PrincipalID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, principalToResponse(p))
}

func principalToResponse(p *domain.Principal) PrincipalResponse {
	return PrincipalResponse{
		ID:        p.ID,
		LoginName: p.LoginName,
		Role:      string(p.Role),
		CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func sessionToResponse(s *service.Session) TokenResponse {
	return TokenResponse{
		UserID:           s.PrincipalID,
		Token:            s.Tokens.Access.Value,
		RefreshToken:     s.Tokens.Refresh.Value,
		ExpiresAt:        s.Tokens.Access.ExpiresAt.UTC().Format(time.RFC3339),
		RefreshExpiresAt: s.Tokens.Refresh.ExpiresAt.UTC().Format(time.RFC3339),
	}
}
