package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskflow-api/internal/dto"
	"github.com/yukikurage/taskflow-api/internal/middleware"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/response"
	"github.com/yukikurage/taskflow-api/internal/services"
	"github.com/yukikurage/taskflow-api/internal/utils"
)

type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// ListTasks returns tasks newest first
// Can filter by status and user_id
//
// @Summary  List tasks
// @Tags     Tasks
// @Produce  json
// @Param    status   query  string  false  "pending, in_progress or completed"
// @Param    user_id  query  int     false  "owner id"
// @Param    page     query  int     false  "page number"
// @Param    limit    query  int     false  "page size"
// @Success  200  {object}  response.SuccessBody
// @Router   /api/v1/tasks [get]
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, err := queryUint(c, "user_id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	var status *models.TaskStatus
	if s := c.Query("status"); s != "" {
		v := models.TaskStatus(s)
		status = &v
	}

	params := utils.GetPaginationParams(c)
	p, size := page(params)

	tasks, total, err := h.taskService.List(c.Request.Context(), services.ListTasksInput{
		Status:   status,
		UserID:   userID,
		Page:     p,
		PageSize: size,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, dto.ToTaskDTOs(tasks), response.WithPagination(params.Response(total)))
}

// GetTask returns a specific task by ID
//
// @Summary  Get a task
// @Tags     Tasks
// @Produce  json
// @Param    id  path  int  true  "task id"
// @Success  200  {object}  response.SuccessBody
// @Failure  404  {object}  response.ErrorBody
// @Router   /api/v1/tasks/{id} [get]
func (h *TaskHandler) GetTask(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	task, err := h.taskService.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, dto.ToTaskDTO(*task))
}

// CreateTask creates a new task
//
// @Summary  Create a task
// @Tags     Tasks
// @Accept   json
// @Produce  json
// @Param    body  body  object  true  "{\"task\": {\"title\": \"...\"}}"
// @Success  201  {object}  response.SuccessBody
// @Failure  400  {object}  response.ErrorBody
// @Failure  422  {object}  response.ErrorBody
// @Router   /api/v1/tasks [post]
func (h *TaskHandler) CreateTask(c *gin.Context) {
	body, err := requireParam(c, "task")
	if err != nil {
		_ = c.Error(err)
		return
	}

	var input services.CreateTaskInput
	for key, dst := range map[string]any{
		"title":       &input.Title,
		"description": &input.Description,
		"status":      &input.Status,
		"user_id":     &input.UserID,
	} {
		if err := body.decode(key, dst); err != nil {
			_ = c.Error(err)
			return
		}
	}

	task, err := h.taskService.Create(c.Request.Context(), middleware.AuditMeta(c), input)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.Created(c, dto.ToTaskDTO(*task))
}

// UpdateTask applies a partial update. Explicit nulls clear description and user_id.
//
// @Summary  Update a task
// @Tags     Tasks
// @Accept   json
// @Produce  json
// @Param    id    path  int     true  "task id"
// @Param    body  body  object  true  "{\"task\": {...}}"
// @Success  200  {object}  response.SuccessBody
// @Failure  404  {object}  response.ErrorBody
// @Failure  422  {object}  response.ErrorBody
// @Router   /api/v1/tasks/{id} [patch]
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	body, err := requireParam(c, "task")
	if err != nil {
		_ = c.Error(err)
		return
	}

	input := services.UpdateTaskInput{
		ClearDescription: body.isNull("description"),
		ClearUserID:      body.isNull("user_id"),
	}
	decodes := map[string]any{"title": &input.Title, "status": &input.Status}
	if !input.ClearDescription {
		decodes["description"] = &input.Description
	}
	if !input.ClearUserID {
		decodes["user_id"] = &input.UserID
	}
	for key, dst := range decodes {
		if err := body.decode(key, dst); err != nil {
			_ = c.Error(err)
			return
		}
	}

	task, err := h.taskService.Update(c.Request.Context(), middleware.AuditMeta(c), id, input)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, dto.ToTaskDTO(*task))
}

// ToggleStatus flips a task between pending and completed
//
// @Summary  Toggle task status
// @Tags     Tasks
// @Produce  json
// @Param    id  path  int  true  "task id"
// @Success  200  {object}  response.SuccessBody
// @Router   /api/v1/tasks/{id}/toggle_status [patch]
func (h *TaskHandler) ToggleStatus(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	task, err := h.taskService.ToggleStatus(c.Request.Context(), middleware.AuditMeta(c), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, dto.ToTaskDTO(*task))
}

// DeleteTask removes a task and returns its final state
//
// @Summary  Delete a task
// @Tags     Tasks
// @Produce  json
// @Param    id  path  int  true  "task id"
// @Success  200  {object}  response.SuccessBody
// @Router   /api/v1/tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	task, err := h.taskService.Destroy(c.Request.Context(), middleware.AuditMeta(c), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, dto.ToTaskDTO(*task))
}
