package api

import (
	"errors"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/alecgard/cascade/internal/storage"
	"github.com/alecgard/cascade/internal/work"
	"github.com/go-chi/chi/v5"
)

// maxUploadSize bounds a multipart task file upload.
const maxUploadSize = 32 << 20

// tasksHandler groups task HTTP handlers scoped to the role in the URL.
type tasksHandler struct {
	store TaskStore
	files storage.ObjectStore
}

func newTasksHandler(store TaskStore, files storage.ObjectStore) *tasksHandler {
	return &tasksHandler{store: store, files: files}
}

func validateTaskFields(title *string, status *work.Status, priority *work.Priority) string {
	if title != nil && strings.TrimSpace(*title) == "" {
		return "Task title is required."
	}
	if status != nil && *status != "" && !status.Valid() {
		return "Status must be one of TO_DO, IN_PROGRESS, DONE, CANCELED, DRAFTED or ON_HOLD."
	}
	if priority != nil && *priority != "" && !priority.Valid() {
		return "Priority must be one of VERY_HIGH, HIGH, MEDIUM, LOW or VERY_LOW."
	}
	return ""
}

// List handles GET /roles/{roleId}/tasks.
func (h *tasksHandler) List(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleId")

	owned, err := h.store.ListOwned(r.Context(), roleID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	assigned, err := h.store.ListAssigned(r.Context(), roleID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"ownedTasks":    owned,
		"assignedTasks": assigned,
	}, "Tasks retrieved successfully.")
}

// Get handles GET /roles/{roleId}/tasks/{taskId}.
func (h *tasksHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, ok := h.accessible(w, r, "Task not accessible by the specified role.")
	if !ok {
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"task": task}, "Task retrieved successfully.")
}

// Create handles POST /roles/{roleId}/tasks. The role in the URL owns the task.
func (h *tasksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in work.TaskInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, msgValidation, "failed to parse request body")
		return
	}
	if msg := validateTaskFields(&in.Title, &in.Status, &in.Priority); msg != "" {
		writeError(w, http.StatusBadRequest, msgValidation, msg)
		return
	}

	roleID := chi.URLParam(r, "roleId")
	task, err := h.store.Create(r.Context(), roleID, in)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	auditLog(r, "create", "task", task.ID, "role_id", roleID)
	writeSuccess(w, http.StatusCreated, map[string]any{"task": task}, "Task was created successfully.")
}

// Update handles PUT /roles/{roleId}/tasks/{taskId}. Only the owning role
// may update.
func (h *tasksHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch work.TaskPatch
	if err := readJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, msgValidation, "failed to parse request body")
		return
	}
	if msg := validateTaskFields(patch.Title, patch.Status, patch.Priority); msg != "" {
		writeError(w, http.StatusBadRequest, msgValidation, msg)
		return
	}

	roleID := chi.URLParam(r, "roleId")
	taskID := chi.URLParam(r, "taskId")
	task, err := h.store.Update(r.Context(), roleID, taskID, patch)
	if err != nil {
		if errors.Is(err, work.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "Task not found.", "Invalid ID for task or role.")
			return
		}
		writeAppError(w, r, err)
		return
	}

	auditLog(r, "update", "task", taskID, "role_id", roleID)
	writeSuccess(w, http.StatusOK, map[string]any{"updatedTask": task}, "Task updated successfully.")
}

// Delete handles DELETE /roles/{roleId}/tasks/{taskId}.
func (h *tasksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleId")
	taskID := chi.URLParam(r, "taskId")

	if err := h.store.Delete(r.Context(), roleID, taskID); err != nil {
		if errors.Is(err, work.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "Task not found, hence could not be deleted.", "Invalid ID for task or role.")
			return
		}
		writeAppError(w, r, err)
		return
	}

	auditLog(r, "delete", "task", taskID, "role_id", roleID)
	writeSuccess(w, http.StatusOK, nil, "The task was deleted successfully.")
}

// UploadFiles handles POST /roles/{roleId}/tasks/{taskId}/{fileKind} with
// a multipart "files" field.
func (h *tasksHandler) UploadFiles(w http.ResponseWriter, r *http.Request) {
	kind, ok := fileKindParam(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "Please upload a file.", "Nothing was uploaded.")
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "Please upload a file.", "Nothing was uploaded.")
		return
	}

	task, ok := h.accessible(w, r, "Task Resources not accessible by the specified role.")
	if !ok {
		return
	}

	names := make([]string, 0, len(headers))
	for _, fh := range headers {
		name := path.Base(fh.Filename)
		f, err := fh.Open()
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		err = h.files.Put(r.Context(), storage.TaskFileKey(task.ID, name), f, contentType)
		f.Close()
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		if err := h.store.AddFile(r.Context(), task.ID, kind, name); err != nil {
			writeAppError(w, r, err)
			return
		}
		names = append(names, name)
	}

	auditLog(r, "upload_files", "task", task.ID, "kind", string(kind), "count", len(names))
	writeSuccess(w, http.StatusOK, names, "Files uploaded successfully.")
}

// DownloadFile handles GET /roles/{roleId}/tasks/{taskId}/{fileKind}/{fileName}
// and returns a presigned URL.
func (h *tasksHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	kind, ok := fileKindParam(w, r)
	if !ok {
		return
	}
	task, ok := h.accessible(w, r, "Task Resources not accessible by the specified role.")
	if !ok {
		return
	}
	name, ok := listedFile(w, r, task, kind)
	if !ok {
		return
	}

	u, err := h.files.PresignGet(r.Context(), storage.TaskFileKey(task.ID, name))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Task Resource not found.", "Invalid Task Resource Name.")
			return
		}
		writeAppError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, u, "Document is downloaded successfully.")
}

// DeleteFile handles DELETE /roles/{roleId}/tasks/{taskId}/{fileKind}/{fileName}.
func (h *tasksHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	kind, ok := fileKindParam(w, r)
	if !ok {
		return
	}
	task, ok := h.accessible(w, r, "Task Resources not accessible by the specified role.")
	if !ok {
		return
	}
	name, ok := listedFile(w, r, task, kind)
	if !ok {
		return
	}

	if err := h.files.Delete(r.Context(), storage.TaskFileKey(task.ID, name)); err != nil && !errors.Is(err, storage.ErrNotFound) {
		writeAppError(w, r, err)
		return
	}
	if err := h.store.RemoveFile(r.Context(), task.ID, kind, name); err != nil {
		writeAppError(w, r, err)
		return
	}

	auditLog(r, "delete_file", "task", task.ID, "kind", string(kind), "file", name)
	writeSuccess(w, http.StatusOK, nil, "File deleted successfully.")
}

// accessible loads the task in the URL and checks the role in the URL owns
// or is assigned it. It writes the 404 or 403 itself.
func (h *tasksHandler) accessible(w http.ResponseWriter, r *http.Request, denied string) (*work.Task, bool) {
	task, err := h.store.GetByID(r.Context(), chi.URLParam(r, "taskId"))
	if err != nil {
		if errors.Is(err, work.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "Task not found.", "Invalid Task ID.")
			return nil, false
		}
		writeAppError(w, r, err)
		return nil, false
	}
	if !task.AccessibleBy(chi.URLParam(r, "roleId")) {
		writeError(w, http.StatusForbidden, "Access denied.", denied)
		return nil, false
	}
	return task, true
}

func fileKindParam(w http.ResponseWriter, r *http.Request) (work.FileKind, bool) {
	switch k := work.FileKind(chi.URLParam(r, "fileKind")); k {
	case work.FileResource, work.FileOutput:
		return k, true
	}
	writeError(w, http.StatusNotFound, "Task Resource not found.", "Unknown file list.")
	return "", false
}

// listedFile resolves the fileName URL parameter against the task's list.
func listedFile(w http.ResponseWriter, r *http.Request, task *work.Task, kind work.FileKind) (string, bool) {
	raw := chi.URLParam(r, "fileName")
	name, err := url.PathUnescape(raw)
	if err != nil {
		name = raw
	}
	for _, f := range task.Files(kind) {
		if f == name {
			return name, true
		}
	}
	writeError(w, http.StatusNotFound, "Task Resource not found.", "Invalid Task Resource Name.")
	return "", false
}
