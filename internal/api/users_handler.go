package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alecgard/cascade/internal/auth"
	"github.com/alecgard/cascade/internal/storage"
	"github.com/alecgard/cascade/internal/user"
)

// maxImageSize bounds profile image uploads.
const maxImageSize = 5 << 20

var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// usersHandler groups the caller's own account handlers.
type usersHandler struct {
	store UserStore
	files storage.ObjectStore
	now   func() time.Time
}

func newUsersHandler(store UserStore, files storage.ObjectStore) *usersHandler {
	return &usersHandler{store: store, files: files, now: time.Now}
}

type publicUser struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Image     string `json:"image"`
}

// current loads the caller's record, writing the 404 itself.
func (h *usersHandler) current(w http.ResponseWriter, r *http.Request, message, detail string) (*user.User, bool) {
	p := auth.PayloadFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusNotFound, message, detail)
		return nil, false
	}
	u, err := h.store.GetByID(r.Context(), p.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, message, detail)
			return nil, false
		}
		writeAppError(w, r, err)
		return nil, false
	}
	return u, true
}

// GetMe handles GET /users/me.
func (h *usersHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	u, ok := h.current(w, r, "User is not found.", "User ID is not valid.")
	if !ok {
		return
	}
	writeSuccess(w, http.StatusOK, u, "User data is retrieved successfully.")
}

// Search handles GET /users/search?email=.
func (h *usersHandler) Search(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, msgBadRequest, "email query parameter is required")
		return
	}

	u, err := h.store.GetByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User is not found.", "User ID is not valid.")
			return
		}
		writeAppError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, publicUser{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Image:     u.Image,
	}, "User was found successfully.")
}

// UpdateMe handles PUT /users/me.
func (h *usersHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName *string `json:"firstName"`
		LastName  *string `json:"lastName"`
		Email     *string `json:"email"`
		Password  *string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadRequest, "failed to parse request body")
		return
	}

	p := auth.PayloadFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusNotFound, "User not found.", "User was not found and hence cannot update.")
		return
	}

	in := user.UpdateUserInput{FirstName: req.FirstName, LastName: req.LastName}

	if req.Email != nil && *req.Email != "" {
		if !validEmail(*req.Email) {
			writeError(w, http.StatusBadRequest, msgBadRequest, "Email must be valid.")
			return
		}
		existing, err := h.store.GetByEmail(r.Context(), *req.Email)
		switch {
		case err == nil && existing.ID != p.UserID:
			writeError(w, http.StatusBadRequest, "You can not use this email.", "This email is used for another user.")
			return
		case err != nil && !errors.Is(err, user.ErrNotFound):
			writeAppError(w, r, err)
			return
		}
		in.Email = req.Email
	}

	if req.Password != nil && *req.Password != "" {
		if len(*req.Password) < minPasswordLength {
			writeError(w, http.StatusBadRequest, msgBadRequest, "Password must be at least 8 characters long.")
			return
		}
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		in.PasswordHash = &hash
	}

	if _, err := h.store.Update(r.Context(), p.UserID, in); err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			writeError(w, http.StatusNotFound, "User not found.", "User was not found and hence cannot update.")
		case errors.Is(err, user.ErrEmailTaken):
			writeError(w, http.StatusBadRequest, "You can not use this email.", "This email is used for another user.")
		default:
			writeAppError(w, r, err)
		}
		return
	}

	auditLog(r, "update", "user", p.UserID)
	writeSuccess(w, http.StatusOK, nil, "User is updated successfully.")
}

// DeleteMe handles DELETE /users/me.
func (h *usersHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	u, ok := h.current(w, r, "User not found.", "Invalid user ID.")
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), u.ID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found.", "Invalid user ID.")
			return
		}
		writeAppError(w, r, err)
		return
	}
	h.removeImage(r, u.Image)

	auditLog(r, "delete", "user", u.ID)
	writeSuccess(w, http.StatusOK, nil, "The user was deleted successfully.")
}

// GetImage handles GET /users/me/image and returns a presigned URL.
func (h *usersHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	u, ok := h.current(w, r, "User not found.", "Invalid user ID.")
	if !ok {
		return
	}

	url, err := h.files.PresignGet(r.Context(), u.Image)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Image not found.", "Invalid user image.")
			return
		}
		writeAppError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"image": url}, "Image is retrieved successfully.")
}

// UploadImage handles PUT /users/me/image with a multipart "image" field.
// The previous image is removed from storage unless it is the default.
func (h *usersHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize)
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Please upload a file.", "Nothing was uploaded.")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !imageTypes[contentType] {
		writeError(w, http.StatusBadRequest, "Invalid file type. Please upload an image file.", "Unsupported file type.")
		return
	}

	u, ok := h.current(w, r, "User not found.", "Invalid user ID.")
	if !ok {
		return
	}

	key := storage.ImageKey(h.now(), header.Filename)
	if err := h.files.Put(r.Context(), key, file, contentType); err != nil {
		writeAppError(w, r, err)
		return
	}
	h.removeImage(r, u.Image)

	if _, err := h.store.Update(r.Context(), u.ID, user.UpdateUserInput{Image: &key}); err != nil {
		writeAppError(w, r, err)
		return
	}

	url, err := h.files.PresignGet(r.Context(), key)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	auditLog(r, "upload_image", "user", u.ID, "key", key)
	writeSuccess(w, http.StatusOK, map[string]string{"image": url}, "Image uploaded successfully.")
}

// DeleteImage handles DELETE /users/me/image and reverts to the default.
func (h *usersHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	u, ok := h.current(w, r, "User not found.", "Invalid user ID.")
	if !ok {
		return
	}
	if u.Image == "" || u.Image == user.DefaultImage {
		writeError(w, http.StatusNotFound, "Image not found.", "Invalid user image to delete.")
		return
	}

	h.removeImage(r, u.Image)
	def := user.DefaultImage
	if _, err := h.store.Update(r.Context(), u.ID, user.UpdateUserInput{Image: &def}); err != nil {
		writeAppError(w, r, err)
		return
	}

	auditLog(r, "delete_image", "user", u.ID)
	writeSuccess(w, http.StatusOK, map[string]string{"image": def}, "Image deleted and reverted to default successfully.")
}

// removeImage deletes a stored profile image. Failures are logged only.
func (h *usersHandler) removeImage(r *http.Request, key string) {
	if key == "" || key == user.DefaultImage {
		return
	}
	if err := h.files.Delete(r.Context(), key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		slog.Warn("removing stored image", "key", key, "error", err)
	}
}
