package handlers

import (
	"net/http"
	"time"

	"github.com/nkiryanov/secureauth/internal/handlers/middleware"
	"github.com/nkiryanov/secureauth/internal/handlers/render"
	"github.com/nkiryanov/secureauth/internal/handlers/userctx"
	"github.com/nkiryanov/secureauth/internal/logger"
	"github.com/nkiryanov/secureauth/internal/models"
	"github.com/nkiryanov/secureauth/internal/service/auth"
)

type AuthHandler struct {
	auth   authService
	logger logger.Logger
}

type AuthResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int      `json:"expires_in"`
	UserID       int64    `json:"user_id"`
	Email        string   `json:"email"`
	Phone        string   `json:"phone,omitempty"`
	Roles        []string `json:"roles"`
}

type SessionResponse struct {
	ID         int64     `json:"id"`
	DeviceInfo string    `json:"device_info,omitempty"`
	DeviceType string    `json:"device_type,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type MeResponse struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expires_at"`
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	type RegisterRequest struct {
		Email      string `json:"email" validate:"required,email,max=255"`
		Phone      string `json:"phone" validate:"omitempty,e164"`
		Password   string `json:"password" validate:"required,min=8,max=128"`
		DeviceInfo string `json:"device_info" validate:"max=255"`
		DeviceType string `json:"device_type" validate:"devicetype"`
	}

	data, err := render.BindAndValidate[RegisterRequest](w, r)
	if err != nil {
		return
	}

	result, err := h.auth.Register(r.Context(), auth.RegisterParams{
		Email:    data.Email,
		Phone:    data.Phone,
		Password: data.Password,
		Device:   device(r, data.DeviceInfo, data.DeviceType),
	})
	if err != nil {
		serviceError(w, err, h.logger)
		return
	}

	render.JSON(w, authResponse(result))
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		Email      string `json:"email" validate:"required,email,max=255"`
		Password   string `json:"password" validate:"required,max=128"`
		DeviceInfo string `json:"device_info" validate:"max=255"`
		DeviceType string `json:"device_type" validate:"devicetype"`
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		return
	}

	result, err := h.auth.Login(r.Context(), auth.LoginParams{
		Email:    data.Email,
		Password: data.Password,
		Device:   device(r, data.DeviceInfo, data.DeviceType),
	})
	if err != nil {
		serviceError(w, err, h.logger)
		return
	}

	render.JSON(w, authResponse(result))
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	data, err := render.BindAndValidate[refreshTokenRequest](w, r)
	if err != nil {
		return
	}

	result, err := h.auth.Refresh(r.Context(), data.RefreshToken)
	if err != nil {
		serviceError(w, err, h.logger)
		return
	}

	render.JSON(w, authResponse(result))
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	data, err := render.BindAndValidate[refreshTokenRequest](w, r)
	if err != nil {
		return
	}

	err = h.auth.Logout(r.Context(), data.RefreshToken)
	if err != nil {
		serviceError(w, err, h.logger)
		return
	}

	render.NoContent(w)
}

// Handlers below are served behind auth middleware, so principal is always in context
func (h *AuthHandler) logoutAll(w http.ResponseWriter, r *http.Request) {
	principal, _ := userctx.FromContext(r.Context())

	err := h.auth.LogoutAll(r.Context(), principal.UserID)
	if err != nil {
		serviceError(w, err, h.logger)
		return
	}

	h.logger.Info("User logged out from all devices", "user_id", principal.UserID)
	render.NoContent(w)
}

func (h *AuthHandler) sessions(w http.ResponseWriter, r *http.Request) {
	principal, _ := userctx.FromContext(r.Context())

	deviceType, err := models.ParseDeviceType(r.URL.Query().Get("device_type"))
	if err != nil {
		render.ServiceError(w, "Device type must be one of ANDROID, IOS, WEB, DESKTOP", http.StatusBadRequest)
		return
	}

	sessions, err := h.auth.Sessions(r.Context(), principal, deviceType)
	if err != nil {
		serviceError(w, err, h.logger)
		return
	}

	response := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		response = append(response, SessionResponse{
			ID:         s.ID,
			DeviceInfo: s.DeviceInfo,
			DeviceType: string(s.DeviceType),
			IPAddress:  s.IPAddress,
			CreatedAt:  s.CreatedAt,
			LastUsedAt: s.LastUsedAt,
			ExpiresAt:  s.ExpiresAt,
		})
	}

	render.JSON(w, response)
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	principal, _ := userctx.FromContext(r.Context())

	roles := make([]string, 0, len(principal.Roles))
	for _, role := range principal.Roles {
		roles = append(roles, string(role))
	}

	render.JSON(w, MeResponse{
		UserID:    principal.UserID,
		Email:     principal.Email,
		Roles:     roles,
		ExpiresAt: principal.ExpiresAt,
	})
}

// Device type is already validated by request tags
func device(r *http.Request, info string, deviceType string) models.Device {
	t, _ := models.ParseDeviceType(deviceType)
	return models.Device{
		Info:      info,
		Type:      t,
		IPAddress: middleware.ClientIP(r),
	}
}

func authResponse(result models.AuthResult) AuthResponse {
	return AuthResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    result.TokenType,
		ExpiresIn:    result.ExpiresIn,
		UserID:       result.UserID,
		Email:        result.Email,
		Phone:        result.Phone,
		Roles:        result.Roles,
	}
}
