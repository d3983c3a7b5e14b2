package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/vidtube/internal/handlers/render"
	"github.com/nkiryanov/vidtube/internal/handlers/userctx"
	"github.com/nkiryanov/vidtube/internal/logger"
	"github.com/nkiryanov/vidtube/internal/media"
	"github.com/nkiryanov/vidtube/internal/models"
	"github.com/nkiryanov/vidtube/internal/service/user"
)

type tokensResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func handleRegister(as authService, l logger.Logger) http.Handler {
	type RegisterRequest struct {
		Username string `form:"username" validate:"max=50"`
		Email    string `form:"email" validate:"omitempty,email"`
		FullName string `form:"fullName" validate:"max=100"`
		Password string `form:"password"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		form, err := readUploads(w, r)
		if err != nil {
			renderError(w, r, l, err)
			return
		}
		defer form.Close()

		data := RegisterRequest{
			Username: form.value("username"),
			Email:    form.value("email"),
			FullName: form.value("fullName"),
			Password: form.value("password"),
		}
		if err := render.Validate(w, data); err != nil {
			return
		}

		avatar, err := form.file("avatar")
		if err != nil {
			renderError(w, r, l, err)
			return
		}
		cover, err := form.file("coverImage")
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		params := user.CreateUserParams{
			Username: data.Username,
			Email:    data.Email,
			FullName: data.FullName,
			Password: data.Password,
			Avatar:   avatar,
		}
		if cover.Body != nil {
			params.CoverImage = &cover
		}

		created, err := as.Register(r.Context(), params)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.JSONWithStatus(w, created, "User registered Successfully", http.StatusCreated)
	})
}

func handleLogin(as authService, l logger.Logger) http.Handler {
	type LoginRequest struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password" validate:"required"`
	}
	type LoginResponse struct {
		User models.PublicUser `json:"user"`
		tokensResponse
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[LoginRequest](w, r)
		if err != nil {
			return
		}

		result, err := as.Login(r.Context(), data.Username, data.Email, data.Password)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		as.SetTokenPairToResponse(w, result.Pair)
		render.JSON(w, LoginResponse{
			User: result.User,
			tokensResponse: tokensResponse{
				AccessToken:  result.Pair.Access.Value,
				RefreshToken: result.Pair.Refresh.Value,
			},
		}, "User logged in successfully")
	})
}

func handleLogout(as authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := as.Logout(r.Context(), userctx.UserID(r.Context())); err != nil {
			renderError(w, r, l, err)
			return
		}

		as.ClearTokens(w)
		render.JSON(w, struct{}{}, "User logged out")
	})
}

// Refresh token is taken from cookie, then from the body for clients that keep tokens themselves
func handleRefreshToken(as authService, l logger.Logger) http.Handler {
	type RefreshRequest struct {
		RefreshToken string `json:"refreshToken"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh := as.GetRefreshString(r)
		if refresh == "" {
			var body RefreshRequest
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				refresh = body.RefreshToken
			}
		}

		pair, err := as.Refresh(r.Context(), refresh)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		as.SetTokenPairToResponse(w, pair)
		render.JSON(w, tokensResponse{
			AccessToken:  pair.Access.Value,
			RefreshToken: pair.Refresh.Value,
		}, "Access Token Refreshed")
	})
}

func handleChangePassword(as authService, l logger.Logger) http.Handler {
	type ChangePasswordRequest struct {
		OldPassword string `json:"oldPassword" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required,notblank"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[ChangePasswordRequest](w, r)
		if err != nil {
			return
		}

		err = as.ChangePassword(r.Context(), userctx.UserID(r.Context()), data.OldPassword, data.NewPassword)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.JSON(w, struct{}{}, "Password Changed successfully")
	})
}

func handleCurrentUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, _ := userctx.FromContext(r.Context())
		render.JSON(w, u.Public(), "Current User fetch Successfully")
	})
}

func handleUpdateAccount(us userService, l logger.Logger) http.Handler {
	type UpdateAccountRequest struct {
		FullName string `json:"fullName" validate:"required,notblank,max=100"`
		Email    string `json:"email" validate:"required,email"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[UpdateAccountRequest](w, r)
		if err != nil {
			return
		}

		updated, err := us.UpdateAccount(r.Context(), userctx.UserID(r.Context()), data.FullName, data.Email)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.JSON(w, updated.Public(), "Account Details update Successfully")
	})
}

func handleUpdateAvatar(us userService, l logger.Logger) http.Handler {
	return handleImageUpdate(us.UpdateAvatar, "avatar", "Avatar image Updated Successfully", l)
}

func handleUpdateCoverImage(us userService, l logger.Logger) http.Handler {
	return handleImageUpdate(us.UpdateCoverImage, "coverImage", "Cover image Updated Successfully", l)
}

func handleImageUpdate(update func(ctx context.Context, userID uuid.UUID, file media.File) (models.User, error), field string, message string, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		form, err := readUploads(w, r)
		if err != nil {
			renderError(w, r, l, err)
			return
		}
		defer form.Close()

		file, err := form.file(field)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		updated, err := update(r.Context(), userctx.UserID(r.Context()), file)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.JSON(w, updated.Public(), message)
	})
}

func handleChannelProfile(us userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profile, err := us.GetChannelProfile(r.Context(), r.PathValue("username"), userctx.UserID(r.Context()))
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.JSON(w, profile, "User Channel fetched Successfully")
	})
}

func handleWatchHistory(us userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		history, err := us.GetWatchHistory(r.Context(), userctx.UserID(r.Context()))
		if err != nil {
			renderError(w, r, l, err)
			return
		}
		if history == nil {
			history = []models.Video{}
		}

		render.JSON(w, history, "watch history fetched Successfully")
	})
}

func handleToggleSubscription(us userService, l logger.Logger) http.Handler {
	type SubscriptionResponse struct {
		Subscribed bool `json:"subscribed"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		channelID, err := pathUUID(r, "channelId")
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		subscribed, err := us.ToggleSubscription(r.Context(), userctx.UserID(r.Context()), channelID)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		message := "Subscribed successfully"
		if !subscribed {
			message = "Unsubscribed successfully"
		}
		render.JSON(w, SubscriptionResponse{Subscribed: subscribed}, message)
	})
}
