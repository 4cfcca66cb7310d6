package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/taskmanager/internal/apperrors"
	"github.com/nkiryanov/taskmanager/internal/handlers/render"
	"github.com/nkiryanov/taskmanager/internal/handlers/userctx"
	"github.com/nkiryanov/taskmanager/internal/logger"
)

func handleRegister(s authService, logger logger.Logger) http.Handler {
	type request struct {
		Email    string  `json:"email" validate:"required,email,max=255"`
		Password string  `json:"password" validate:"required,min=6,max=255"`
		Name     *string `json:"name" validate:"omitempty,max=255"`
	}
	type response struct {
		Message string    `json:"message"`
		UserID  uuid.UUID `json:"userId"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, err := s.Register(r.Context(), data.Email, data.Password, data.Name)
		switch {
		case err == nil:
			render.JSONWithStatus(w, response{Message: "User created", UserID: user.ID}, http.StatusCreated)
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User already exists", http.StatusConflict)
		default:
			logger.Error("Failed to register user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleLogin(s authService, logger logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	type userResponse struct {
		Email string  `json:"email"`
		Name  *string `json:"name"`
	}
	type response struct {
		AccessToken  string       `json:"accessToken"`
		RefreshToken string       `json:"refreshToken"`
		User         userResponse `json:"user"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		res, err := s.Login(r.Context(), data.Email, data.Password)
		switch {
		case err == nil:
			render.JSON(w, response{
				AccessToken:  res.Tokens.Access.Value,
				RefreshToken: res.Tokens.Refresh.Value,
				User:         userResponse{Email: res.User.Email, Name: res.User.Name},
			})
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Invalid credentials", http.StatusUnauthorized)
		default:
			logger.Error("Failed to login user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleRefresh(s authService, logger logger.Logger) http.Handler {
	type request struct {
		RefreshToken string `json:"refreshToken" validate:"required"`
	}
	type response struct {
		AccessToken string `json:"accessToken"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		access, err := s.Refresh(r.Context(), data.RefreshToken)
		switch {
		case err == nil:
			render.JSON(w, response{AccessToken: access.Value})
		case errors.Is(err, apperrors.ErrRefreshTokenExpired):
			render.ServiceError(w, "Refresh token expired", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrRefreshTokenNotFound),
			errors.Is(err, apperrors.ErrRefreshTokenRevoked),
			errors.Is(err, apperrors.ErrRefreshTokenInvalid):
			render.ServiceError(w, "Invalid refresh token", http.StatusUnauthorized)
		default:
			logger.Error("Failed to refresh token", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleLogout(s authService, logger logger.Logger) http.Handler {
	type request struct {
		RefreshToken string `json:"refreshToken"`
		All          bool   `json:"all"`
	}
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claim, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		data, err := render.BindAndValidateOptional[request](w, r)
		if err != nil {
			return
		}

		err = s.Logout(r.Context(), claim, data.RefreshToken, data.All)
		if err != nil {
			logger.Error("Failed to logout user", "error", err, "user_id", claim.UserID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, response{Message: "Logged out"})
	})
}
