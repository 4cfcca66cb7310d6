package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/taskmanager/internal/apperrors"
	"github.com/nkiryanov/taskmanager/internal/handlers/render"
	"github.com/nkiryanov/taskmanager/internal/handlers/userctx"
	"github.com/nkiryanov/taskmanager/internal/logger"
	"github.com/nkiryanov/taskmanager/internal/models"
	"github.com/nkiryanov/taskmanager/internal/service/task"
)

type taskResponse struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	UserID      uuid.UUID  `json:"userId"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func newTaskResponse(t models.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		DueDate:     t.DueDate,
		UserID:      t.UserID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// Write error of task operation
// Unexpected errors are logged and hidden from user
func renderTaskError(w http.ResponseWriter, logger logger.Logger, err error) {
	switch {
	case errors.Is(err, apperrors.ErrTaskNotFound):
		render.ServiceError(w, "Task not found", http.StatusNotFound)
	default:
		logger.Error("Task operation failed", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// Read caller claim and task id from request
// Malformed id is reported as not found task
func taskRequestParams(w http.ResponseWriter, r *http.Request) (models.AccessClaim, uuid.UUID, bool) {
	claim, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return claim, uuid.Nil, false
	}

	taskID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Task not found", http.StatusNotFound)
		return claim, uuid.Nil, false
	}

	return claim, taskID, true
}

func handleCreateTask(s taskService, logger logger.Logger) http.Handler {
	type request struct {
		Title       string     `json:"title" validate:"required,notblank,max=255"`
		Description *string    `json:"description" validate:"omitempty,max=5000"`
		Status      string     `json:"status" validate:"omitempty,oneof=TODO IN_PROGRESS DONE"`
		Priority    string     `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
		DueDate     *time.Time `json:"dueDate"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claim, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		t, err := s.CreateTask(r.Context(), claim.UserID, task.CreateTaskOpts{
			Title:       data.Title,
			Description: data.Description,
			Status:      data.Status,
			Priority:    data.Priority,
			DueDate:     data.DueDate,
		})
		if err != nil {
			renderTaskError(w, logger, err)
			return
		}

		render.JSONWithStatus(w, newTaskResponse(t), http.StatusCreated)
	})
}

func handleListTasks(s taskService, logger logger.Logger) http.Handler {
	type query struct {
		Status   string `json:"status" validate:"omitempty,oneof=TODO IN_PROGRESS DONE"`
		Priority string `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
		Page     int    `json:"page" validate:"gte=0"`
		PageSize int    `json:"pageSize" validate:"gte=0"`
	}
	type meta struct {
		Total      int `json:"total"`
		Page       int `json:"page"`
		PageSize   int `json:"pageSize"`
		TotalPages int `json:"totalPages"`
	}
	type response struct {
		Data []taskResponse `json:"data"`
		Meta meta           `json:"meta"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claim, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		values := r.URL.Query()
		q := query{
			Status:   values.Get("status"),
			Priority: values.Get("priority"),
		}

		fields := map[string]string{}
		for name, dst := range map[string]*int{"page": &q.Page, "pageSize": &q.PageSize} {
			raw := values.Get(name)
			if raw == "" {
				continue
			}
			n, err := strconv.Atoi(raw)
			if err != nil {
				fields[name] = "Value must be an integer"
				continue
			}
			*dst = n
		}
		if q.Page > task.MaxPage {
			fields["page"] = fmt.Sprintf("Value is too large (maximum %d)", task.MaxPage)
		}
		if len(fields) > 0 {
			render.FieldErrors(w, fields)
			return
		}

		if err := render.Validate(w, q); err != nil {
			return
		}

		page, err := s.ListTasks(r.Context(), claim.UserID, task.ListTasksOpts{
			Status:   q.Status,
			Priority: q.Priority,
			Page:     q.Page,
			PageSize: q.PageSize,
		})
		if err != nil {
			renderTaskError(w, logger, err)
			return
		}

		data := make([]taskResponse, 0, len(page.Tasks))
		for _, t := range page.Tasks {
			data = append(data, newTaskResponse(t))
		}

		render.JSON(w, response{
			Data: data,
			Meta: meta{
				Total:      page.Total,
				Page:       page.Page,
				PageSize:   page.PageSize,
				TotalPages: page.TotalPages(),
			},
		})
	})
}

func handleGetTask(s taskService, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claim, taskID, ok := taskRequestParams(w, r)
		if !ok {
			return
		}

		t, err := s.GetTask(r.Context(), claim.UserID, taskID)
		if err != nil {
			renderTaskError(w, logger, err)
			return
		}

		render.JSON(w, newTaskResponse(t))
	})
}

func handleUpdateTask(s taskService, logger logger.Logger) http.Handler {
	type request struct {
		Title       *string    `json:"title" validate:"omitempty,notblank,max=255"`
		Description *string    `json:"description" validate:"omitempty,max=5000"`
		Status      *string    `json:"status" validate:"omitempty,oneof=TODO IN_PROGRESS DONE"`
		Priority    *string    `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
		DueDate     *time.Time `json:"dueDate"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claim, taskID, ok := taskRequestParams(w, r)
		if !ok {
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		t, err := s.UpdateTask(r.Context(), claim.UserID, taskID, models.TaskUpdate{
			Title:       data.Title,
			Description: data.Description,
			Status:      data.Status,
			Priority:    data.Priority,
			DueDate:     data.DueDate,
		})
		if err != nil {
			renderTaskError(w, logger, err)
			return
		}

		render.JSON(w, newTaskResponse(t))
	})
}

func handleDeleteTask(s taskService, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claim, taskID, ok := taskRequestParams(w, r)
		if !ok {
			return
		}

		if err := s.DeleteTask(r.Context(), claim.UserID, taskID); err != nil {
			renderTaskError(w, logger, err)
			return
		}

		render.NoContent(w)
	})
}
