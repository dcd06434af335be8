package ws

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"realtime-service/internal/auth"
	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/presence"
	"realtime-service/internal/repositories"
	"realtime-service/internal/services"
)

// Inbound flood guard per connection.
const (
	inboundEventRate  = rate.Limit(10)
	inboundEventBurst = 20
)

// SocketHandler owns the realtime channel: handshake, the client action
// loop, and presence transitions.
type SocketHandler struct {
	hub           *Hub
	tracker       *presence.Tracker
	verifier      auth.Verifier
	conversations repositories.ConversationRepository
	messages      *services.MessageService
	stories       *services.StoryService
}

// NewSocketHandler constructs a SocketHandler.
func NewSocketHandler(hub *Hub, tracker *presence.Tracker, verifier auth.Verifier, conversations repositories.ConversationRepository, messages *services.MessageService, stories *services.StoryService) *SocketHandler {
	return &SocketHandler{
		hub:           hub,
		tracker:       tracker,
		verifier:      verifier,
		conversations: conversations,
		messages:      messages,
		stories:       stories,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates the handshake, upgrades the connection and runs the
// action loop. A bad token rejects the connection before any room join.
func (h *SocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("realtime-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		if q := c.Query("token"); q != "" {
			token = "Bearer " + q
		}
	}

	identity, err := h.validateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      identity.UserID,
		Username:    identity.Username,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	h.hub.AddConnection(conn, info)
	wentOnline := h.tracker.Register(info.UserID, info.ConnID, conn)
	if wentOnline {
		h.hub.BroadcastAll(models.EventUserOnline, gin.H{
			"user_id":  info.UserID,
			"username": info.Username,
		}, conn)
	}

	observability.IncWSActive("realtime")
	observability.IncWSEvent("realtime", "ws_connect")
	h.publishLifecycleEvent(ctx, info, "ws_connect", "")

	go h.readLoop(ctx, conn, info)
}

func (h *SocketHandler) readLoop(ctx context.Context, conn *websocket.Conn, info ConnInfo) {
	var closeReason string
	limiter := rate.NewLimiter(inboundEventRate, inboundEventBurst)

	defer func() {
		h.hub.RemoveConnection(conn)
		if wentOffline := h.tracker.Unregister(info.UserID, info.ConnID); wentOffline {
			h.hub.BroadcastAll(models.EventUserOffline, gin.H{"user_id": info.UserID}, nil)
		}
		observability.DecWSActive("realtime")
		observability.IncWSEvent("realtime", "ws_disconnect")
		h.publishLifecycleEvent(ctx, info, "ws_disconnect", closeReason)
		conn.Close()
	}()

	for {
		var action models.ClientAction
		if err := conn.ReadJSON(&action); err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("realtime", "ws_error")
			}
			return
		}

		if !limiter.Allow() {
			log.Printf("dropping flooded %s action from user %d", action.Action, info.UserID)
			continue
		}

		h.dispatch(ctx, conn, info, action)
	}
}

func (h *SocketHandler) dispatch(ctx context.Context, conn *websocket.Conn, info ConnInfo, action models.ClientAction) {
	switch action.Action {
	case models.ActionJoinConversation:
		member, err := h.conversations.IsParticipant(ctx, action.ConversationID, info.UserID)
		if err != nil || !member {
			h.sendError(conn, "not a conversation participant")
			return
		}
		h.hub.JoinRoom(conn, models.ConversationRoom(action.ConversationID))

	case models.ActionLeaveConversation:
		h.hub.LeaveRoom(conn, models.ConversationRoom(action.ConversationID))

	case models.ActionSendMessage:
		msg, err := h.messages.Send(ctx, info.UserID, services.SendMessageInput{
			ConversationID: action.ConversationID,
			Content:        action.Content,
			MediaURL:       action.MediaURL,
			MediaType:      action.MediaType,
			ReplyToID:      action.ReplyToID,
		})
		if err != nil {
			h.sendError(conn, err.Error())
			return
		}
		h.send(conn, models.EventMessageSent, msg)

	case models.ActionTypingStart:
		h.hub.EmitToRoomExcept(models.ConversationRoom(action.ConversationID), models.EventUserTyping, gin.H{
			"conversation_id": action.ConversationID,
			"user_id":         info.UserID,
			"username":        info.Username,
		}, conn)

	case models.ActionTypingStop:
		h.hub.EmitToRoomExcept(models.ConversationRoom(action.ConversationID), models.EventUserStoppedTyping, gin.H{
			"conversation_id": action.ConversationID,
			"user_id":         info.UserID,
		}, conn)

	case models.ActionMarkMessageRead:
		if err := h.messages.MarkRead(ctx, info.UserID, action.MessageID); err != nil {
			h.sendError(conn, err.Error())
		}

	case models.ActionViewStory:
		if _, err := h.stories.View(ctx, info.UserID, info.Username, action.StoryID); err != nil {
			if !errors.Is(err, repositories.ErrStoryNotFound) {
				h.sendError(conn, err.Error())
			}
		}

	case models.ActionLikePost:
		h.notifyUser(info, action.TargetUserID, models.EventPostLiked, gin.H{"post_id": action.PostID})

	case models.ActionLikeReel:
		h.notifyUser(info, action.TargetUserID, models.EventReelLiked, gin.H{"reel_id": action.ReelID})

	case models.ActionNewComment:
		h.notifyUser(info, action.TargetUserID, models.EventNewComment, gin.H{
			"post_id":    action.PostID,
			"comment_id": action.CommentID,
			"content":    action.Content,
		})

	case models.ActionNewFollow:
		h.notifyUser(info, action.TargetUserID, models.EventNewFollow, nil)

	default:
		log.Printf("unknown ws action %q from user %d", action.Action, info.UserID)
	}
}

// notifyUser fans a directed notification into the target's personal room.
// A miss means the target is offline; the notification is simply lost.
func (h *SocketHandler) notifyUser(from ConnInfo, targetUserID int, event string, extra gin.H) {
	if targetUserID == 0 || targetUserID == from.UserID {
		return
	}
	data := gin.H{
		"user_id":  from.UserID,
		"username": from.Username,
	}
	for key, value := range extra {
		data[key] = value
	}
	if !h.hub.EmitToUser(targetUserID, event, data) {
		log.Printf("%s notification dropped, user %d offline", event, targetUserID)
	}
	observability.IncWSEvent("realtime", event)
}

func (h *SocketHandler) send(conn *websocket.Conn, event string, data interface{}) {
	if err := h.hub.Send(conn, event, data); err != nil {
		log.Printf("websocket write error: %v", err)
	}
}

func (h *SocketHandler) sendError(conn *websocket.Conn, message string) {
	h.send(conn, models.EventMessageError, gin.H{"error": message})
}

func (h *SocketHandler) validateToken(header string) (auth.Identity, error) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return h.verifier.Verify(parts[1])
}

func (h *SocketHandler) publishLifecycleEvent(ctx context.Context, info ConnInfo, name, reason string) {
	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(ctx, "ws_events.realtime", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       name,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, headers)
}
