package httptransport

import (
	"github.com/gin-gonic/gin"

	"communitymsg/backend/internal/domain"
	"communitymsg/backend/internal/service"
)

// Handler 聚合站内信相关的 HTTP 处理逻辑。
type Handler struct {
	messages *service.MessageService
}

// NewHandler 创建消息处理器
func NewHandler(messages *service.MessageService) *Handler {
	return &Handler{messages: messages}
}

// createMessageRequest 撰写消息的请求体
type createMessageRequest struct {
	Subject     string               `json:"subject"`
	Content     string               `json:"content" binding:"required"`
	Addressing  domain.Addressing    `json:"addressing"`
	InReplyTo   string               `json:"inReplyTo,omitempty"`
	Attachments []*domain.Attachment `json:"attachments,omitempty"`
}

// createMessage godoc
// @Summary 发送消息
// @Description 创建一条站内信并投递给解析出的收件人
// @Tags Messages
// @Accept json
// @Produce json
// @Param message body createMessageRequest true "消息内容与寻址方式"
// @Success 201 {object} Response{data=domain.Message}
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /v1/messages [post]
func (h *Handler) createMessage(c *gin.Context) {
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	userID, exists := c.Get("userID")
	if !exists {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	message, err := h.messages.Create(service.CreateMessageInput{
		SenderID:    userID.(string),
		Subject:     req.Subject,
		Content:     req.Content,
		Addressing:  req.Addressing,
		InReplyTo:   req.InReplyTo,
		Attachments: req.Attachments,
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	Created(c, message)
}

// listMessages godoc
// @Summary 消息列表
// @Description 按插入顺序列出当前用户可见的全部消息
// @Tags Messages
// @Produce json
// @Success 200 {object} Response{data=[]domain.InboxMessage}
// @Failure 401 {object} Response
// @Security BearerAuth
// @Router /v1/messages [get]
func (h *Handler) listMessages(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	messages, err := h.messages.List(userID.(string))
	if err != nil {
		RespondError(c, err)
		return
	}

	Success(c, messages)
}

// getMessage godoc
// @Summary 消息详情
// @Description 获取单条消息,仅发件人与收件人可见
// @Tags Messages
// @Produce json
// @Param id path string true "消息ID"
// @Success 200 {object} Response{data=domain.Message}
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /v1/messages/{id} [get]
func (h *Handler) getMessage(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	message, err := h.messages.Get(c.Param("id"), userID.(string))
	if err != nil {
		RespondError(c, err)
		return
	}

	Success(c, message)
}

// markMessageRead godoc
// @Summary 标记已读
// @Description 将当前用户的投递记录标记为已读,重复调用幂等
// @Tags Messages
// @Produce json
// @Param id path string true "消息ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /v1/messages/{id}/read [post]
func (h *Handler) markMessageRead(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	if err := h.messages.MarkRead(c.Param("id"), userID.(string)); err != nil {
		RespondError(c, err)
		return
	}

	SuccessWithMsg(c, "已标记为已读", nil)
}

// deleteMessage godoc
// @Summary 删除消息
// @Description 删除当前用户的消息副本,不影响其他收件人
// @Tags Messages
// @Produce json
// @Param id path string true "消息ID"
// @Success 204 {object} Response
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /v1/messages/{id} [delete]
func (h *Handler) deleteMessage(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	if err := h.messages.DeleteForUser(c.Param("id"), userID.(string)); err != nil {
		RespondError(c, err)
		return
	}

	NoContent(c)
}

// inboxResponse 收件箱视图
type inboxResponse struct {
	Threads     []domain.Thread `json:"threads"`
	UnreadCount int             `json:"unreadCount"`
}

// getInbox godoc
// @Summary 收件箱
// @Description 返回按最近活跃排序的会话列表与未读会话数
// @Tags Inbox
// @Produce json
// @Success 200 {object} Response{data=inboxResponse}
// @Failure 401 {object} Response
// @Security BearerAuth
// @Router /v1/inbox [get]
func (h *Handler) getInbox(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	threads, unread, err := h.messages.Inbox(userID.(string))
	if err != nil {
		RespondError(c, err)
		return
	}

	Success(c, inboxResponse{
		Threads:     threads,
		UnreadCount: unread,
	})
}

// getUnreadCount godoc
// @Summary 未读会话数
// @Description 返回当前用户收件箱中的未读会话数量
// @Tags Inbox
// @Produce json
// @Success 200 {object} Response{data=map[string]int}
// @Failure 401 {object} Response
// @Security BearerAuth
// @Router /v1/inbox/unread-count [get]
func (h *Handler) getUnreadCount(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	count, err := h.messages.UnreadCount(userID.(string))
	if err != nil {
		RespondError(c, err)
		return
	}

	Success(c, gin.H{"unreadCount": count})
}
