package chat

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"classboard-service/model"

	"github.com/casbin/casbin/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StoredMessage is the typed record handed out by the gateway. Raw gorm rows
// never cross the package boundary.
type StoredMessage struct {
	ID         uint      `json:"id"`
	SenderID   uint      `json:"sender_id"`
	ReceiverID uint      `json:"receiver_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	Read       bool      `json:"is_read"`
	FileURL    string    `json:"file_url,omitempty"`
	FileType   string    `json:"file_type,omitempty"`
}

// Auditor records privileged and mutating operations on the audit trail.
type Auditor interface {
	Audit(action string, data any)
}

// Pusher delivers a stored message to a remote party, keyed by user id.
// Implemented by the socket.io layer (room per user).
type Pusher interface {
	Emit(id string, event string, message any)
}

// Audit actions emitted by the gateway.
const (
	AuditMessageSend        = "message_send"
	AuditConversationDelete = "conversation_delete"
)

// PushMessageEvent is the socket event carrying inserts to their receiver.
const PushMessageEvent = "message_received"

// Gateway is the CRUD boundary over the messages table: insert, ordered
// pair fetch, and the single privileged bulk delete.
type Gateway struct {
	db       *gorm.DB
	enforcer *casbin.Enforcer
	feed     *Feed
	pusher   Pusher
	audit    Auditor
	log      *zap.SugaredLogger
}

// NewGateway wires the gateway. feed, pusher and audit may be nil when the
// corresponding collaborator is absent (tests, tooling).
func NewGateway(db *gorm.DB, enforcer *casbin.Enforcer, feed *Feed, pusher Pusher, audit Auditor, log *zap.SugaredLogger) *Gateway {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Gateway{db: db, enforcer: enforcer, feed: feed, pusher: pusher, audit: audit, log: log}
}

func pairFilter(db *gorm.DB, a, b uint) *gorm.DB {
	return db.Where(
		"(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
		a, b, b, a,
	)
}

// FetchMessages returns every message exchanged between the pair, ascending
// by creation order. Symmetric in its arguments.
func (g *Gateway) FetchMessages(ctx context.Context, selfID, otherID uint) ([]StoredMessage, error) {
	if selfID == 0 {
		return nil, ErrUnauthenticated
	}

	var rows []model.Message
	if err := pairFilter(g.db.WithContext(ctx), selfID, otherID).
		Order("created_at asc, id asc").
		Find(&rows).Error; err != nil {
		return nil, storeErr(err)
	}

	messages := make([]StoredMessage, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, mapMessage(row))
	}
	return messages, nil
}

// SendMessage validates and inserts one message, then fans it out to the
// receiver: in-process feed for mounted sessions, socket room for remote
// clients. The push channel is receiver-filtered, so the sender never hears
// their own insert back.
func (g *Gateway) SendMessage(ctx context.Context, senderID, receiverID uint, content, fileURL, fileType string) (StoredMessage, error) {
	if senderID == 0 {
		return StoredMessage{}, ErrUnauthenticated
	}
	if senderID == receiverID {
		return StoredMessage{}, ErrSelfMessage
	}
	if strings.TrimSpace(content) == "" && fileURL == "" {
		return StoredMessage{}, ErrEmptyMessage
	}

	row := model.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Read:       false,
		FileURL:    fileURL,
		FileType:   fileType,
	}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return StoredMessage{}, storeErr(err)
	}

	stored := mapMessage(row)
	if g.feed != nil {
		g.feed.Publish(stored)
	}
	if g.pusher != nil {
		g.pusher.Emit(strconv.FormatUint(uint64(receiverID), 10), PushMessageEvent, stored)
	}
	if g.audit != nil {
		g.audit.Audit(AuditMessageSend, stored)
	}
	return stored, nil
}

// MarkConversationRead flips is_read on every message the caller received
// from the counterpart.
func (g *Gateway) MarkConversationRead(ctx context.Context, selfID, otherID uint) error {
	if selfID == 0 {
		return ErrUnauthenticated
	}
	if err := g.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("sender_id = ? AND receiver_id = ?", otherID, selfID).
		Update("read", true).Error; err != nil {
		return storeErr(err)
	}
	return nil
}

// DeleteConversation removes every message of the pair in both directions.
// Only teachers and superadmins pass the policy check; the hard delete below
// is the one privilege elevation in the subsystem (a teacher removes rows
// the student authored) and is always audited.
func (g *Gateway) DeleteConversation(ctx context.Context, callerID, otherID uint) error {
	caller := new(model.User)
	if err := g.db.WithContext(ctx).First(caller, callerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnauthenticated
		}
		return storeErr(err)
	}

	allowed, err := g.enforcer.Enforce(caller.Role, "conversation", "delete")
	if err != nil {
		return storeErr(err)
	}
	if !allowed {
		g.log.Warnw("conversation delete refused",
			"caller", callerID, "role", caller.Role, "other", otherID)
		return ErrPermissionDenied
	}

	res := pairFilter(g.db.WithContext(ctx), callerID, otherID).
		Unscoped().
		Delete(&model.Message{})
	if res.Error != nil {
		return storeErr(res.Error)
	}

	if g.audit != nil {
		g.audit.Audit(AuditConversationDelete, map[string]any{
			"caller":  callerID,
			"role":    caller.Role,
			"other":   otherID,
			"deleted": res.RowsAffected,
		})
	}
	g.log.Infow("conversation deleted",
		"caller", callerID, "other", otherID, "deleted", res.RowsAffected)
	return nil
}

// CanDeleteConversation reports whether the role may use the privileged
// delete, for gating the affordance before any attempt is made.
func (g *Gateway) CanDeleteConversation(role string) bool {
	allowed, err := g.enforcer.Enforce(role, "conversation", "delete")
	return err == nil && allowed
}

func mapMessage(row model.Message) StoredMessage {
	return StoredMessage{
		ID:         row.ID,
		SenderID:   row.SenderID,
		ReceiverID: row.ReceiverID,
		Content:    row.Content,
		CreatedAt:  row.CreatedAt,
		Read:       row.Read,
		FileURL:    row.FileURL,
		FileType:   row.FileType,
	}
}
