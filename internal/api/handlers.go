package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"aimessage/internal/models"
	"aimessage/internal/service/messaging"
	"aimessage/internal/worker"
)

const (
	syncReplyTimeout  = 2 * time.Minute
	twilioEmptyTwiML  = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
	defaultPageLimit  = 50
	maxPageLimit      = 200
	whatsappCuePrefix = "whatsapp:"
)

// Pipeline is the dispatch surface the handlers need.
type Pipeline interface {
	Submit(*worker.DispatchTask) error
	CancelUser(userID int64)
}

// HistoryStore drops the in-memory context window for a user.
type HistoryStore interface {
	Clear(userID int64)
}

// Deduper recognizes webhook retries by provider message id.
type Deduper interface {
	Seen(ctx context.Context, messageSID string) bool
}

// Handler wires HTTP routes to the messaging service and the dispatch
// pipeline.
type Handler struct {
	messages  *messaging.Service
	pipeline  Pipeline
	history   HistoryStore
	dedupe    Deduper
	botUserID int64
}

func NewHandler(messages *messaging.Service, pipeline Pipeline, history HistoryStore, dedupe Deduper, botUserID int64) *Handler {
	return &Handler{
		messages:  messages,
		pipeline:  pipeline,
		history:   history,
		dedupe:    dedupe,
		botUserID: botUserID,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)
	router.POST("/webhook/sms", h.smsWebhook)

	userRoutes := router.Group("/api/users/:id")
	userRoutes.POST("/chat", h.chat)
	userRoutes.POST("/messages", h.postMessage)
	userRoutes.GET("/conversations/:conversation_id/messages", h.getConversationMessages)
	userRoutes.DELETE("/history", h.clearHistory)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func pathUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return userID, true
}

// smsWebhook accepts Twilio form posts for SMS and WhatsApp. The provider
// gets an immediate empty TwiML ack; the reply goes out later through the
// REST API, not in this response.
func (h *Handler) smsWebhook(c *gin.Context) {
	from := strings.TrimSpace(c.PostForm("From"))
	body := strings.TrimSpace(c.PostForm("Body"))
	messageSID := strings.TrimSpace(c.PostForm("MessageSid"))

	if from == "" || body == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "From and Body are required"})
		return
	}
	if h.dedupe != nil && h.dedupe.Seen(c.Request.Context(), messageSID) {
		// provider retry of a message already accepted
		c.Data(http.StatusOK, "text/xml", []byte(twilioEmptyTwiML))
		return
	}

	user, err := h.messages.FindUserByPhone(c.Request.Context(), from)
	if err != nil {
		// Unknown senders are acked and dropped; error details never go
		// back to the provider.
		c.Data(http.StatusOK, "text/xml", []byte(twilioEmptyTwiML))
		return
	}

	conversationID := messaging.ConversationID(user.ID, h.botUserID)
	saved, err := h.messages.SaveInbound(c.Request.Context(), models.Message{
		SenderID:       user.ID,
		RecipientID:    h.botUserID,
		Content:        body,
		ConversationID: conversationID,
		Channel:        models.ChannelWebhook,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store message failed"})
		return
	}

	task := &worker.DispatchTask{
		Ctx: context.Background(), // outlives the webhook request
		Msg: saved,
		Dispatch: models.DispatchContext{
			UserID:         user.ID,
			ConversationID: conversationID,
			Channel:        models.ChannelWebhook,
			OriginalFrom:   from,
			IsWhatsApp:     strings.HasPrefix(from, whatsappCuePrefix),
		},
	}
	if err := h.pipeline.Submit(task); err != nil {
		if errors.Is(err, worker.ErrDispatcherBusy) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server is busy, please retry"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/xml", []byte(twilioEmptyTwiML))
}

type contentRequest struct {
	Content string `json:"content"`
}

// chat runs a full round trip in one request: the handler blocks until the
// pipeline produces the reply text.
func (h *Handler) chat(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	conversationID := messaging.ConversationID(userID, h.botUserID)
	saved, err := h.messages.SaveInbound(c.Request.Context(), models.Message{
		SenderID:       userID,
		RecipientID:    h.botUserID,
		Content:        strings.TrimSpace(req.Content),
		ConversationID: conversationID,
		Channel:        models.ChannelSync,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store message failed"})
		return
	}

	replyCh := make(chan string, 1)
	task := &worker.DispatchTask{
		Ctx: context.Background(),
		Msg: saved,
		Dispatch: models.DispatchContext{
			UserID:         userID,
			ConversationID: conversationID,
			Channel:        models.ChannelSync,
		},
		ReplyCh: replyCh,
	}
	if err := h.pipeline.Submit(task); err != nil {
		if errors.Is(err, worker.ErrDispatcherBusy) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "server is busy, please retry"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	select {
	case reply := <-replyCh:
		c.JSON(http.StatusOK, gin.H{
			"reply":           reply,
			"conversation_id": conversationID,
			"message_id":      saved.ID,
		})
	case <-time.After(syncReplyTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "reply timed out"})
	case <-c.Request.Context().Done():
		c.Status(http.StatusRequestTimeout)
	}
}

// postMessage accepts a web-channel message and returns immediately; the
// client polls the conversation endpoint for the reply row.
func (h *Handler) postMessage(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	conversationID := messaging.ConversationID(userID, h.botUserID)
	saved, err := h.messages.SaveInbound(c.Request.Context(), models.Message{
		SenderID:       userID,
		RecipientID:    h.botUserID,
		Content:        strings.TrimSpace(req.Content),
		ConversationID: conversationID,
		Channel:        models.ChannelWeb,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store message failed"})
		return
	}

	task := &worker.DispatchTask{
		Ctx: context.Background(),
		Msg: saved,
		Dispatch: models.DispatchContext{
			UserID:         userID,
			ConversationID: conversationID,
			Channel:        models.ChannelWeb,
		},
	}
	if err := h.pipeline.Submit(task); err != nil {
		if errors.Is(err, worker.ErrDispatcherBusy) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "server is busy, please retry"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"message_id":      saved.ID,
		"conversation_id": conversationID,
	})
}

func (h *Handler) getConversationMessages(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}
	conversationID := c.Param("conversation_id")
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}
	limit := defaultPageLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxPageLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	messages, err := h.messages.ListConversation(c.Request.Context(), userID, conversationID, limit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.messages.MarkConversationRead(c.Request.Context(), userID, conversationID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(messages) == 0 {
		messages = make([]*models.Message, 0)
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation_id": conversationID,
		"messages":        messages,
	})
}

// clearHistory drops the user's in-memory context window and any queued
// jobs. Persisted messages are untouched.
func (h *Handler) clearHistory(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}
	h.pipeline.CancelUser(userID)
	h.history.Clear(userID)
	c.Status(http.StatusNoContent)
}
