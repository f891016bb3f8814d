package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/hexaquery/internal/task/application"
	taskDomain "github.com/davicafu/hexaquery/internal/task/domain"
	"github.com/davicafu/hexaquery/pkg/operators"
	"github.com/davicafu/hexaquery/pkg/operators/middleware"
	"github.com/davicafu/hexaquery/pkg/utils"
)

// TaskHandler encapsula los endpoints HTTP relacionados con Task.
type TaskHandler struct {
	service *application.TaskService
	log     *zap.Logger
}

// NewTaskHandler crea un nuevo TaskHandler.
func NewTaskHandler(service *application.TaskService, log *zap.Logger) *TaskHandler {
	return &TaskHandler{service: service, log: log}
}

// --- Handlers CRUD ---

// CreateTask endpoint POST /tasks
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req struct {
		Title       string    `json:"title" binding:"required"`
		Description string    `json:"description"`
		AssigneeID  uuid.UUID `json:"assigneeId" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	task, err := h.service.CreateTask(c.Request.Context(), req.Title, req.Description, req.AssigneeID)
	if err != nil {
		h.sendError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusCreated, task)
}

// GetTask endpoint GET /tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	task, err := h.service.GetTaskByID(c.Request.Context(), id)
	if err != nil {
		h.sendError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, task)
}

// UpdateTask endpoint PUT /tasks/:id
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	// Usamos punteros para que los campos sean opcionales en el JSON
	var req struct {
		Title       *string                `json:"title,omitempty"`
		Description *string                `json:"description,omitempty"`
		Status      *taskDomain.TaskStatus `json:"status,omitempty"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	task, err := h.service.GetTaskByID(c.Request.Context(), id)
	if err != nil {
		h.sendError(c, err)
		return
	}

	title, description := task.Title, task.Description
	if req.Title != nil {
		title = *req.Title
	}
	if req.Description != nil {
		description = *req.Description
	}
	task.Update(title, description)

	if req.Status != nil {
		switch *req.Status {
		case taskDomain.TaskCompleted:
			task.Complete()
		case taskDomain.TaskFailed:
			task.Fail()
		case taskDomain.TaskPending:
			task.Status = taskDomain.TaskPending
		default:
			utils.SendBadRequest(c, "invalid status")
			return
		}
	}

	if err := h.service.UpdateTask(c.Request.Context(), task); err != nil {
		h.sendError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, task)
}

// DeleteTask endpoint DELETE /tasks/:id
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteTask(c.Request.Context(), id); err != nil {
		h.sendError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListTasks endpoint GET /tasks. Los operadores ($sort, $page...) llegan
// ya extraídos por el middleware; el resto de parámetros son filtros.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	criteria, err := taskDomain.CriteriaFromParams(middleware.Params(c))
	if err != nil {
		h.sendError(c, err)
		return
	}

	ex := middleware.FromContext(c)
	tasks, err := h.service.ListTasks(c.Request.Context(), criteria, ex)
	if err != nil {
		h.sendError(c, err)
		return
	}

	utils.SendList(c, tasks, utils.ListMeta{Count: len(tasks), Operators: ex.Operators})
}

// RegisterAssignee endpoint POST /assignees
func (h *TaskHandler) RegisterAssignee(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
		Name  string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	a, err := h.service.RegisterAssignee(c.Request.Context(), req.Email, req.Name)
	if err != nil {
		h.sendError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusCreated, a)
}

// --- Helpers ---

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.SendBadRequest(c, "invalid task id")
		return uuid.Nil, false
	}
	return id, true
}

// sendError traduce errores de dominio y de operadores a códigos HTTP.
func (h *TaskHandler) sendError(c *gin.Context, err error) {
	var opErr operators.InvalidOperatorError
	switch {
	case errors.As(err, &opErr):
		utils.SendErrorCode(c, http.StatusBadRequest, "invalid_operator", err.Error())
	case errors.Is(err, taskDomain.ErrInvalidTask), errors.Is(err, taskDomain.ErrInvalidAssignee):
		utils.SendBadRequest(c, err.Error())
	case errors.Is(err, taskDomain.ErrTaskNotFound):
		utils.SendNotFound(c, "task not found")
	case errors.Is(err, taskDomain.ErrTaskAlreadyExists):
		utils.SendConflict(c, err.Error())
	case errors.Is(err, taskDomain.ErrNoAssigneeStore):
		utils.SendError(c, http.StatusNotImplemented, err.Error())
	default:
		h.log.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		utils.SendInternalServerError(c, "internal error")
	}
}
