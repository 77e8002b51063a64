package httptransport

import (
	"github.com/gin-gonic/gin"

	"communitymsg/backend/internal/domain"
	"communitymsg/backend/internal/service"
	"communitymsg/backend/internal/template"
)

// TemplateHandler 模板查询与下发处理器。
type TemplateHandler struct {
	engine   *template.Engine
	messages *service.MessageService
}

// NewTemplateHandler 创建模板处理器
func NewTemplateHandler(engine *template.Engine, messages *service.MessageService) *TemplateHandler {
	return &TemplateHandler{
		engine:   engine,
		messages: messages,
	}
}

// listTemplates godoc
// @Summary 模板列表
// @Description 列出所有已注册的消息模板
// @Tags Templates
// @Produce json
// @Success 200 {object} Response{data=[]domain.MessageTemplate}
// @Failure 401 {object} Response
// @Failure 403 {object} Response
// @Security BearerAuth
// @Router /v1/templates [get]
func (h *TemplateHandler) listTemplates(c *gin.Context) {
	Success(c, h.engine.List())
}

// getTemplate godoc
// @Summary 模板详情
// @Description 获取单个消息模板
// @Tags Templates
// @Produce json
// @Param id path string true "模板ID"
// @Success 200 {object} Response{data=domain.MessageTemplate}
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /v1/templates/{id} [get]
func (h *TemplateHandler) getTemplate(c *gin.Context) {
	tmpl, err := h.engine.Get(c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}

	Success(c, tmpl)
}

// dispatchTemplateRequest 模板下发请求体
type dispatchTemplateRequest struct {
	RecipientID   string             `json:"recipientId,omitempty"`
	Addressing    *domain.Addressing `json:"addressing,omitempty"`
	AppendContent string             `json:"appendContent,omitempty"`
}

// dispatchTemplate godoc
// @Summary 下发模板消息
// @Description 渲染模板并按模板目标或显式寻址投递,仅管理员可用
// @Tags Templates
// @Accept json
// @Produce json
// @Param id path string true "模板ID"
// @Param dispatch body dispatchTemplateRequest true "下发参数"
// @Success 201 {object} Response{data=[]domain.Message}
// @Failure 400 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 422 {object} Response
// @Security BearerAuth
// @Router /v1/templates/{id}/dispatch [post]
func (h *TemplateHandler) dispatchTemplate(c *gin.Context) {
	var req dispatchTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	userID, exists := c.Get("userID")
	if !exists {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	messages, err := h.messages.DispatchTemplate(service.DispatchTemplateInput{
		TemplateID:    c.Param("id"),
		SenderID:      userID.(string),
		RecipientID:   req.RecipientID,
		Addressing:    req.Addressing,
		AppendContent: req.AppendContent,
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	Created(c, messages)
}
