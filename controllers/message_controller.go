package controllers

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/gadar/bestrong/models"
	"github.com/gadar/bestrong/utils"
)

// MessageController handles direct messages and the SSE event stream.
type MessageController struct {
	db *gorm.DB
}

// NewMessageController creates a new controller instance.
func NewMessageController(db *gorm.DB) *MessageController {
	return &MessageController{db: db}
}

// Send persists a message and pushes it to the receiver's channel.
func (m *MessageController) Send(ctx *gin.Context) {
	type request struct {
		ReceiverID uint   `json:"receiver_id" binding:"required"`
		Content    string `json:"content" binding:"required"`
		Kind       string `json:"kind"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40060, "invalid request payload")
		return
	}

	content := utils.Sanitize(strings.TrimSpace(req.Content))
	if content == "" {
		utils.Error(ctx, http.StatusBadRequest, 40061, "message is empty")
		return
	}
	if len(content) > 2000 {
		utils.Error(ctx, http.StatusBadRequest, 40062, "message too long")
		return
	}

	senderID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	if req.ReceiverID == senderID {
		utils.Error(ctx, http.StatusBadRequest, 40063, "cannot message yourself")
		return
	}

	var receiver models.User
	if err := m.db.First(&receiver, req.ReceiverID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}

	kind := models.MessageText
	if req.Kind == string(models.MessageSystem) && isAdmin(ctx) {
		kind = models.MessageSystem
	}

	msg := models.Message{
		SenderID:   senderID,
		ReceiverID: receiver.ID,
		Content:    content,
		Kind:       kind,
		CreatedAt:  time.Now(),
	}
	if err := m.db.Create(&msg).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50060, "failed to send message")
		return
	}

	utils.PublishMessage(&msg)
	utils.Created(ctx, gin.H{"message": msg})
}

// List returns the conversation history with one peer, oldest first, and
// marks the peer's messages as read.
func (m *MessageController) List(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	peerStr := ctx.Query("peer")
	peer, err := strconv.ParseUint(peerStr, 10, 32)
	if err != nil || peer == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40064, "peer query parameter required")
		return
	}

	var msgs []models.Message
	if err := m.db.Where(
		"(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
		userID, peer, peer, userID,
	).Order("created_at ASC").Limit(200).Find(&msgs).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50061, "failed to list messages")
		return
	}

	m.db.Model(&models.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND `read` = ?", peer, userID, false).
		Update("read", true)

	utils.Success(ctx, gin.H{"messages": msgs})
}

// Conversations lists the caller's distinct peers with unread counts.
func (m *MessageController) Conversations(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	type row struct {
		PeerID uint  `json:"peer_id"`
		Unread int64 `json:"unread"`
	}
	var rows []row
	err := m.db.Raw(`
		SELECT peer_id, SUM(unread) AS unread FROM (
			SELECT receiver_id AS peer_id, 0 AS unread FROM messages WHERE sender_id = ?
			UNION ALL
			SELECT sender_id AS peer_id, CASE WHEN `+"`read`"+` THEN 0 ELSE 1 END FROM messages WHERE receiver_id = ?
		) conv GROUP BY peer_id`, userID, userID).Scan(&rows).Error
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50061, "failed to list messages")
		return
	}

	utils.Success(ctx, gin.H{"conversations": rows})
}

// Delete removes one of the caller's own sent messages.
func (m *MessageController) Delete(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40065, "invalid message id")
		return
	}

	userID, _ := getUserID(ctx)

	var msg models.Message
	if err := m.db.First(&msg, uint(id)).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40460, "message not found")
		return
	}
	if msg.SenderID != userID && !isAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40360, "only the sender can delete a message")
		return
	}

	if err := m.db.Delete(&msg).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50062, "failed to delete message")
		return
	}

	utils.Success(ctx, gin.H{"message": "deleted"})
}

// Stream is the SSE endpoint. Each client holds one Redis subscription on its
// own channel; events arrive as they are published and the handler returns
// when the client goes away.
func (m *MessageController) Stream(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	sub := utils.SubscribeMessages(ctx.Request.Context(), userID)
	if sub == nil {
		utils.Error(ctx, http.StatusServiceUnavailable, 50360, "message stream unavailable")
		return
	}
	defer sub.Close()

	ctx.Writer.Header().Set("Content-Type", "text/event-stream")
	ctx.Writer.Header().Set("Cache-Control", "no-cache")
	ctx.Writer.Header().Set("Connection", "keep-alive")
	ctx.Writer.Header().Set("X-Accel-Buffering", "no")

	ch := sub.Channel()
	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	ctx.Stream(func(w io.Writer) bool {
		select {
		case msg, open := <-ch:
			if !open {
				return false
			}
			ctx.SSEvent("message", msg.Payload)
			return true
		case <-heartbeat.C:
			ctx.SSEvent("ping", time.Now().Unix())
			return true
		case <-ctx.Request.Context().Done():
			return false
		}
	})
}
