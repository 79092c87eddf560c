package recordstub

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"messaging-core/internal/models"
)

const maxAttachmentsPerMessage = 5

// Handler serves the record API surface.
type Handler struct {
	conversations ConversationRepository
	messages      MessageRepository
	users         UserRepository
	log           *zap.Logger
}

// NewHandler builds a Handler.
func NewHandler(conversations ConversationRepository, messages MessageRepository, users UserRepository, log *zap.Logger) *Handler {
	return &Handler{
		conversations: conversations,
		messages:      messages,
		users:         users,
		log:           log,
	}
}

// Register wires the record API routes onto the router group.
func (h *Handler) Register(router gin.IRoutes) {
	router.GET("/conversations", h.ListConversations)
	router.GET("/conversations/:matricule/messages", h.GetMessages)
	router.POST("/conversations/start", h.StartConversation)
	router.POST("/messages/send", h.SendMessage)
	router.PUT("/messages/:matricule/edit", h.EditMessage)
	router.DELETE("/messages/:matricule", h.DeleteMessage)
	router.PUT("/messages/:matricule/toggle-pin", h.TogglePin)
	router.POST("/conversations/:matricule/participants/add", h.AddParticipants)
	router.DELETE("/conversations/:matricule/participants/remove", h.RemoveParticipants)
	router.PUT("/conversations/:matricule/toggle-archive", h.ToggleArchive)
	router.GET("/conversations/:matricule/search", h.SearchMessages)
	router.GET("/users/search", h.SearchUsers)
}

// ListConversations returns the caller's conversation summaries.
func (h *Handler) ListConversations(c *gin.Context) {
	caller := callerFromContext(c)
	conversations, err := h.conversations.ListForUser(c.Request.Context(), caller)
	if err != nil {
		h.log.Error("list conversations failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// GetMessages returns one page of history plus the full roster. Loading
// page 1 marks the window read for the caller.
func (h *Handler) GetMessages(c *gin.Context) {
	caller := callerFromContext(c)
	matricule := c.Param("matricule")

	member, err := h.conversations.IsParticipant(c.Request.Context(), matricule, caller)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation member"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	msgs, hasMore, err := h.messages.Page(c.Request.Context(), matricule, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	roster, err := h.conversations.Roster(c.Request.Context(), matricule)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load roster"})
		return
	}

	if page == 1 {
		if err := h.messages.MarkRead(c.Request.Context(), matricule, caller); err != nil {
			h.log.Warn("mark read failed", zap.Error(err))
		}
	}

	if err := h.decorateCapabilities(c, msgs, matricule, caller); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve capabilities"})
		return
	}

	c.JSON(http.StatusOK, models.MessagePage{
		Messages:     msgs,
		Participants: roster,
		Page:         page,
		HasMore:      hasMore,
	})
}

// StartConversation creates a conversation with the caller as creator.
func (h *Handler) StartConversation(c *gin.Context) {
	caller := callerFromContext(c)

	var req struct {
		Participants []string `json:"participants"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Participants) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "participants must not be empty"})
		return
	}

	for _, participant := range req.Participants {
		if _, err := h.users.Get(c.Request.Context(), participant); err != nil {
			if errors.Is(err, ErrUserNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown participant " + participant})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve participants"})
			return
		}
	}

	conv, err := h.conversations.Create(c.Request.Context(), caller, req.Participants)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create conversation"})
		return
	}

	roster, err := h.conversations.Roster(c.Request.Context(), conv.Matricule)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load roster"})
		return
	}

	c.JSON(http.StatusCreated, models.ConversationDetail{Conversation: conv, Participants: roster})
}

// SendMessage accepts the multipart send contract.
func (h *Handler) SendMessage(c *gin.Context) {
	caller := callerFromContext(c)

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}

	conversationMatricule := c.PostForm("conversation_matricule")
	content := c.PostForm("content")
	parentMatricule := c.PostForm("parent_matricule")
	files := form.File["files"]

	if conversationMatricule == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_matricule is required"})
		return
	}
	if strings.TrimSpace(content) == "" && len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a message needs content or attachments"})
		return
	}
	if len(files) > maxAttachmentsPerMessage {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many attachments"})
		return
	}

	conv, err := h.conversations.Get(c.Request.Context(), conversationMatricule)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrConversationNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "conversation not found"})
		return
	}
	if conv.IsArchived() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation is archived"})
		return
	}

	member, err := h.conversations.IsParticipant(c.Request.Context(), conversationMatricule, caller)
	if err != nil || !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation member"})
		return
	}

	params := CreateMessageParams{
		ConversationMatricule: conversationMatricule,
		SenderMatricule:       caller,
		Type:                  models.MessageText,
	}
	if strings.TrimSpace(content) != "" {
		params.Content = &content
	}
	if parentMatricule != "" {
		parent, err := h.messages.Get(c.Request.Context(), parentMatricule)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "parent message not found"})
			return
		}
		if parent.ConversationMatricule != conversationMatricule {
			c.JSON(http.StatusBadRequest, gin.H{"error": "parent belongs to another conversation"})
			return
		}
		params.ParentMatricule = &parentMatricule
	}

	for _, file := range files {
		mimeType := file.Header.Get("Content-Type")
		params.Attachments = append(params.Attachments, models.Attachment{
			Name:     file.Filename,
			URL:      "/files/" + uuid.NewString(),
			Size:     file.Size,
			MimeType: mimeType,
		})
		if params.Content == nil {
			if strings.HasPrefix(mimeType, "image/") {
				params.Type = models.MessageImage
			} else {
				params.Type = models.MessageFile
			}
		}
		// Attachment bodies are discarded; file storage is out of scope.
		if src, err := file.Open(); err == nil {
			_, _ = io.Copy(io.Discard, src)
			_ = src.Close()
		}
	}

	if _, err := h.messages.Create(c.Request.Context(), params); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}
	if err := h.conversations.TouchActivity(c.Request.Context(), conversationMatricule, time.Now().UTC()); err != nil {
		h.log.Warn("touch activity failed", zap.Error(err))
	}

	c.Status(http.StatusAccepted)
}

// EditMessage rewrites content, sender only.
func (h *Handler) EditMessage(c *gin.Context) {
	caller := callerFromContext(c)
	matricule := c.Param("matricule")

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messages.Get(c.Request.Context(), matricule)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}
	if msg.SenderMatricule != caller {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the sender can edit a message"})
		return
	}

	updated, err := h.messages.UpdateContent(c.Request.Context(), matricule, req.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not edit message"})
		return
	}

	h.decorateOne(c, &updated, caller)
	c.JSON(http.StatusOK, updated)
}

// DeleteMessage removes a message, moderators only.
func (h *Handler) DeleteMessage(c *gin.Context) {
	caller := callerFromContext(c)
	matricule := c.Param("matricule")

	msg, err := h.messages.Get(c.Request.Context(), matricule)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}

	canModerate, err := h.canModerate(c, msg.ConversationMatricule, caller)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve privileges"})
		return
	}
	if !canModerate {
		c.JSON(http.StatusForbidden, gin.H{"error": "moderation rights required"})
		return
	}

	if err := h.messages.Delete(c.Request.Context(), matricule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete message"})
		return
	}
	c.Status(http.StatusNoContent)
}

// TogglePin flips the pinned flag, moderators only.
func (h *Handler) TogglePin(c *gin.Context) {
	caller := callerFromContext(c)
	matricule := c.Param("matricule")

	msg, err := h.messages.Get(c.Request.Context(), matricule)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}

	canModerate, err := h.canModerate(c, msg.ConversationMatricule, caller)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve privileges"})
		return
	}
	if !canModerate {
		c.JSON(http.StatusForbidden, gin.H{"error": "moderation rights required"})
		return
	}

	updated, err := h.messages.TogglePin(c.Request.Context(), matricule)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not toggle pin"})
		return
	}

	h.decorateOne(c, &updated, caller)
	c.JSON(http.StatusOK, updated)
}

// AddParticipants appends members, any participant may do it.
func (h *Handler) AddParticipants(c *gin.Context) {
	caller := callerFromContext(c)
	matricule := c.Param("matricule")

	var req struct {
		Participants []string `json:"participants"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Participants) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "participants must not be empty"})
		return
	}

	member, err := h.conversations.IsParticipant(c.Request.Context(), matricule, caller)
	if err != nil || !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation member"})
		return
	}

	for _, participant := range req.Participants {
		if _, err := h.users.Get(c.Request.Context(), participant); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown participant " + participant})
			return
		}
	}

	if err := h.conversations.AddParticipants(c.Request.Context(), matricule, req.Participants); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add participants"})
		return
	}

	h.respondRoster(c, matricule)
}

// RemoveParticipants drops members, creator only; the creator can never be
// a removal target.
func (h *Handler) RemoveParticipants(c *gin.Context) {
	caller := callerFromContext(c)
	matricule := c.Param("matricule")

	var req struct {
		Participants []string `json:"participants"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Participants) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "participants must not be empty"})
		return
	}

	conv, err := h.conversations.Get(c.Request.Context(), matricule)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrConversationNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "conversation not found"})
		return
	}
	for _, participant := range req.Participants {
		if participant == conv.CreatorMatricule {
			c.JSON(http.StatusBadRequest, gin.H{"error": "the creator cannot be removed"})
			return
		}
	}
	if conv.CreatorMatricule != caller {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the creator can remove participants"})
		return
	}

	if err := h.conversations.RemoveParticipants(c.Request.Context(), matricule, req.Participants); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not remove participants"})
		return
	}

	h.respondRoster(c, matricule)
}

// ToggleArchive flips archive status, creator only.
func (h *Handler) ToggleArchive(c *gin.Context) {
	caller := callerFromContext(c)
	matricule := c.Param("matricule")

	conv, err := h.conversations.Get(c.Request.Context(), matricule)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrConversationNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "conversation not found"})
		return
	}
	if conv.CreatorMatricule != caller {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the creator can toggle archive"})
		return
	}

	updated, err := h.conversations.ToggleArchive(c.Request.Context(), matricule)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not toggle archive"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

// SearchMessages filters history by content.
func (h *Handler) SearchMessages(c *gin.Context) {
	caller := callerFromContext(c)
	matricule := c.Param("matricule")

	member, err := h.conversations.IsParticipant(c.Request.Context(), matricule, caller)
	if err != nil || !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation member"})
		return
	}

	query := c.Query("query")
	if strings.TrimSpace(query) == "" {
		c.JSON(http.StatusOK, gin.H{"messages": []models.Message{}})
		return
	}

	msgs, err := h.messages.Search(c.Request.Context(), matricule, query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	if err := h.decorateCapabilities(c, msgs, matricule, caller); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve capabilities"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SearchUsers looks up candidate participants. An empty search returns an
// empty list.
func (h *Handler) SearchUsers(c *gin.Context) {
	query := c.Query("search")
	if strings.TrimSpace(query) == "" {
		c.JSON(http.StatusOK, gin.H{"users": []models.Participant{}})
		return
	}

	users, err := h.users.Search(c.Request.Context(), query, c.Query("roleFilter"), c.Query("scopeFilter"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *Handler) respondRoster(c *gin.Context, conversationMatricule string) {
	roster, err := h.conversations.Roster(c.Request.Context(), conversationMatricule)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load roster"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": roster})
}

// canModerate grants moderation to instructors and to the conversation
// creator.
func (h *Handler) canModerate(c *gin.Context, conversationMatricule, caller string) (bool, error) {
	user, err := h.users.Get(c.Request.Context(), caller)
	if err != nil {
		return false, err
	}
	if user.Role == models.RoleInstructor {
		return true, nil
	}
	conv, err := h.conversations.Get(c.Request.Context(), conversationMatricule)
	if err != nil {
		return false, err
	}
	return conv.CreatorMatricule == caller, nil
}

func (h *Handler) decorateCapabilities(c *gin.Context, msgs []models.Message, conversationMatricule, caller string) error {
	canModerate, err := h.canModerate(c, conversationMatricule, caller)
	if err != nil {
		return err
	}
	for i := range msgs {
		msgs[i].CanEdit = msgs[i].SenderMatricule == caller
		msgs[i].CanModerate = canModerate
	}
	return nil
}

func (h *Handler) decorateOne(c *gin.Context, msg *models.Message, caller string) {
	msg.CanEdit = msg.SenderMatricule == caller
	if canModerate, err := h.canModerate(c, msg.ConversationMatricule, caller); err == nil {
		msg.CanModerate = canModerate
	}
}
