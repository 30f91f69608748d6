package httpapi

import (
	"net/http"

	"github.com/samber/lo"

	"github.com/parley-chat/parley/internal/store"
)

func (a *API) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	user, err := a.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		a.writeJSON(w, http.StatusNotFound, map[string]any{
			"success": false,
			"error":   "User not found",
		})
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"profile": map[string]string{
			"username":  user.Username,
			"email":     user.Email,
			"image_url": user.ImageURL,
		},
		"message": "Profile retrieved successfully",
	})
}

// handleUpdateProfile updates the caller's email and/or profile picture. The
// request is multipart form data; the optional picture arrives in the "file"
// part and is pushed to object storage before the profile row is updated.
func (a *API) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	// 10 MiB in-memory cap; larger files spill to disk.
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		a.writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Invalid form data",
		})
		return
	}

	var email, imageURL *string
	if v := r.FormValue("email"); v != "" {
		email = &v
	}

	if file, header, err := r.FormFile("file"); err == nil {
		defer func() { _ = file.Close() }()

		url, err := a.uploader.Upload(r.Context(), header.Filename, file, header.Size)
		if err != nil {
			a.log.Error("image upload failed", "user_id", claims.UserID, "error", err)
			a.writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   "Image upload failed",
			})
			return
		}
		imageURL = &url
	}

	if err := a.users.UpdateProfile(r.Context(), claims.UserID, email, imageURL); err != nil {
		a.log.Error("profile update failed", "user_id", claims.UserID, "error", err)
		a.writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "An error occurred while updating the profile",
		})
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Profile updated successfully",
	})
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	users, err := a.users.ListOthers(r.Context(), claims.UserID)
	if err != nil {
		a.log.Error("user listing failed", "error", err)
		a.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"users": lo.Map(users, func(u store.User, _ int) map[string]any {
			return map[string]any{
				"id":        u.ID,
				"username":  u.Username,
				"email":     u.Email,
				"image_url": u.ImageURL,
				"last_seen": u.LastSeen,
			}
		}),
	})
}
