package httptransport

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"communitymsg/backend/internal/config"
	"communitymsg/backend/internal/domain"
	"communitymsg/backend/internal/monitoring"
	"communitymsg/backend/internal/service"
)

// 联系表单类别到模板的映射
var contactTemplates = map[string]string{
	"bug_report":      "contact_bug_report",
	"feature_request": "contact_feature_request",
	"feedback":        "contact_feedback",
}

// ContactHandler 联系表单处理器。来件经共享密钥校验后
// 以系统账户身份转为站内信投递给管理员。
type ContactHandler struct {
	messages *service.MessageService
	cfg      config.ContactConfig
	metrics  *monitoring.Metrics
}

// NewContactHandler 创建联系表单处理器
func NewContactHandler(messages *service.MessageService, cfg config.ContactConfig, metrics *monitoring.Metrics) *ContactHandler {
	return &ContactHandler{
		messages: messages,
		cfg:      cfg,
		metrics:  metrics,
	}
}

// contactRequest 联系表单请求体
type contactRequest struct {
	Secret   string `json:"secret" binding:"required"`
	Category string `json:"category" binding:"required"`
	Email    string `json:"email"`
	Body     string `json:"body" binding:"required"`
}

// submitContact godoc
// @Summary 提交联系表单
// @Description 校验共享密钥后把来件作为站内信投递给全体管理员
// @Tags Contact
// @Accept json
// @Produce json
// @Param inquiry body contactRequest true "表单内容"
// @Success 201 {object} Response
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Router /v1/contact [post]
func (h *ContactHandler) submitContact(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(h.cfg.SecretHash), []byte(req.Secret)); err != nil {
		Unauthorized(c, MsgSecretInvalid)
		return
	}

	templateID, ok := contactTemplates[req.Category]
	if !ok {
		BadRequest(c, "未知的表单类别")
		return
	}

	appendContent := req.Body
	if req.Email != "" {
		appendContent = fmt.Sprintf("%s\n\n联系邮箱: %s", req.Body, req.Email)
	}

	addressing := domain.AddressPredicate("admins")
	_, err := h.messages.DispatchTemplate(service.DispatchTemplateInput{
		TemplateID:    templateID,
		SenderID:      h.cfg.SenderID,
		Addressing:    &addressing,
		AppendContent: appendContent,
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordContactInquiry(req.Category)
	}

	Created(c, nil)
}
