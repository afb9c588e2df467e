package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskflow-api/internal/dto"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/response"
	"github.com/yukikurage/taskflow-api/internal/services"
	"github.com/yukikurage/taskflow-api/internal/utils"
)

type AuditLogHandler struct {
	auditLogService *services.AuditLogService
}

func NewAuditLogHandler(auditLogService *services.AuditLogService) *AuditLogHandler {
	return &AuditLogHandler{
		auditLogService: auditLogService,
	}
}

// ListAuditLogs returns audit rows newest first
//
// @Summary  List audit logs
// @Tags     Audit
// @Produce  json
// @Param    resource_type  query  string  false  "User or Task"
// @Param    resource_id    query  int     false  "resource id"
// @Param    user_id        query  int     false  "acting user id"
// @Param    page           query  int     false  "page number"
// @Param    limit          query  int     false  "page size"
// @Success  200  {object}  response.SuccessBody
// @Router   /api/v1/audit_logs [get]
func (h *AuditLogHandler) ListAuditLogs(c *gin.Context) {
	var input services.ListAuditLogsInput

	if value := c.Query("resource_type"); value != "" {
		kind, err := models.ParseResourceKind(value)
		if err != nil {
			_ = c.Error(apierrors.BadRequest("Invalid resource_type: %s", value))
			return
		}
		input.ResourceType = &kind
	}

	var err error
	if input.ResourceID, err = queryUint(c, "resource_id"); err != nil {
		_ = c.Error(err)
		return
	}
	if input.UserID, err = queryUint(c, "user_id"); err != nil {
		_ = c.Error(err)
		return
	}

	params := utils.GetPaginationParams(c)
	input.Page, input.PageSize = page(params)

	logs, total, err := h.auditLogService.List(c.Request.Context(), input)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, dto.ToAuditLogDTOs(logs), response.WithPagination(params.Response(total)))
}
