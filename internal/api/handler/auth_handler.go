package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/facegate/facegate/internal/core/domain"
	"github.com/facegate/facegate/internal/core/ports"
	"github.com/facegate/facegate/internal/infrastructure/upload"
)

const imageField = "image"

type AuthHandler struct {
	authService ports.AuthService
	stager      *upload.Stager
}

func NewAuthHandler(authService ports.AuthService, stager *upload.Stager) *AuthHandler {
	return &AuthHandler{authService: authService, stager: stager}
}

type registerRequest struct {
	Email    string `form:"email"    validate:"required,email,max=254"`
	Password string `form:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type accountResponse struct {
	Account *domain.Account `json:"account"`
}

type loginResponse struct {
	Token    string          `json:"token"`
	Account  *domain.Account `json:"account"`
	Distance *float64        `json:"distance,omitempty"`
}

// Register creates an account from an email, a password and a face image.
//
// @Summary      Register a new account
// @Tags         auth
// @Accept       multipart/form-data
// @Produce      json
// @Param        email     formData  string  true  "Account email"
// @Param        password  formData  string  true  "Password (min 8 characters)"
// @Param        image     formData  file    true  "Image with exactly one face"
// @Success      201  {object}  accountResponse
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      413  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	image, err := h.stageImage(c)
	if err != nil {
		return err
	}
	defer image.Close()

	account, err := h.authService.Register(c.Request().Context(), ports.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Image:    image,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, accountResponse{Account: account})
}

// Login authenticates with email and password.
//
// @Summary      Password login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := h.authService.LoginPassword(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, loginResponse{Token: result.Token, Account: result.Account})
}

// LoginFace authenticates by matching a face image against enrolled templates.
//
// @Summary      Face login
// @Tags         auth
// @Accept       multipart/form-data
// @Produce      json
// @Param        image  formData  file  true  "Image with exactly one face"
// @Success      200  {object}  loginResponse
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      413  {object}  map[string]string
// @Router       /auth/login/face [post]
func (h *AuthHandler) LoginFace(c echo.Context) error {
	image, err := h.stageImage(c)
	if err != nil {
		return err
	}
	defer image.Close()

	result, err := h.authService.LoginFace(c.Request().Context(), image)
	if err != nil {
		return err
	}

	distance := result.Distance
	return c.JSON(http.StatusOK, loginResponse{Token: result.Token, Account: result.Account, Distance: &distance})
}

// Logout revokes the current session.
//
// @Summary      Logout
// @Tags         auth
// @Security     BearerAuth
// @Success      204
// @Failure      401  {object}  map[string]string
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	session, err := currentSession(c)
	if err != nil {
		return err
	}
	if err := h.authService.Logout(c.Request().Context(), session); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the account behind the current session.
//
// @Summary      Current account
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  accountResponse
// @Failure      401  {object}  map[string]string
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	session, err := currentSession(c)
	if err != nil {
		return err
	}

	account, err := h.authService.CurrentAccount(c.Request().Context(), session)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.ErrSessionNotFound
		}
		return err
	}
	return c.JSON(http.StatusOK, accountResponse{Account: account})
}

// stageImage copies the uploaded image to disk. The caller must Close the
// returned file, which also deletes it.
func (h *AuthHandler) stageImage(c echo.Context) (*upload.File, error) {
	fh, err := c.FormFile(imageField)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "image is required")
	}
	if fh.Size > h.stager.MaxBytes() {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "image too large")
	}

	src, err := fh.Open()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "unreadable image")
	}
	defer src.Close()

	staged, err := h.stager.Stage(src)
	if err != nil {
		if errors.Is(err, upload.ErrTooLarge) {
			return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "image too large")
		}
		return nil, err
	}
	return staged, nil
}
