package handler

import (
	"net/http"

	"visit-tracker/internal/middleware"
	"visit-tracker/internal/service"
	"visit-tracker/pkg/response"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService service.UserService
	guard       *middleware.Guard
}

// NewUserHandler sets up the routing dependencies for auth endpoints
func NewUserHandler(userService service.UserService, guard *middleware.Guard) *UserHandler {
	return &UserHandler{userService: userService, guard: guard}
}

// RegisterRoutes binds the auth endpoints. loginLimit guards password attempts.
func (h *UserHandler) RegisterRoutes(api *gin.RouterGroup, loginLimit gin.HandlerFunc) {
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", loginLimit, h.Login)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/logout", h.Logout)
		// any valid token
		authGroup.GET("/me", h.guard.RequireRole(), h.GetMe)
	}
}

// Login handles POST /api/auth/login to authenticate and return tokens
// @Summary      Login user
// @Description  Authenticates by email and password. Tokens are also set as HttpOnly cookies.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginUserRequest   true  "Login Credentials"
// @Success      200      {object}  response.Response{data=service.TokenResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Failure      429      {object}  response.Response
// @Router       /api/auth/login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var req service.LoginUserRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}

	tokenRes, err := h.userService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	// Set tokens as HttpOnly cookies
	h.guard.SetTokenCookies(c, tokenRes.AccessToken, tokenRes.RefreshToken)

	c.JSON(http.StatusOK, response.Success(http.StatusOK, tokenRes))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

// refreshToken prefers the cookie and falls back to the body.
func refreshToken(c *gin.Context) string {
	if token, err := c.Cookie(middleware.RefreshCookie); err == nil && token != "" {
		return token
	}
	var req refreshRequest
	_ = bind(c, &req)
	return req.RefreshToken
}

// Refresh rotates the refresh token and issues a new access token
// @Summary      Refresh tokens
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.TokenResponse}
// @Failure      401  {object}  response.Response
// @Router       /api/auth/refresh [post]
func (h *UserHandler) Refresh(c *gin.Context) {
	tokenRes, err := h.userService.Refresh(c.Request.Context(), refreshToken(c))
	if err != nil {
		h.guard.ClearTokenCookies(c)
		respondError(c, err)
		return
	}
	h.guard.SetTokenCookies(c, tokenRes.AccessToken, tokenRes.RefreshToken)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tokenRes))
}

func (h *UserHandler) Logout(c *gin.Context) {
	if err := h.userService.Logout(c.Request.Context(), refreshToken(c)); err != nil {
		respondError(c, err)
		return
	}
	h.guard.ClearTokenCookies(c)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"logged_out": true}))
}

// GetMe returns the currently authenticated user
// @Summary      Get current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200      {object}  response.Response{data=service.UserResponse}
// @Failure      401      {object}  response.Response
// @Router       /api/auth/me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.userService.Me(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}
