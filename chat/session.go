package chat

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State of the conversation view.
type State int

const (
	StateNoActiveContact State = iota
	StateLoadingHistory
	StateReady
)

// DeliveryState tracks a locally-originated message from optimistic append
// to store acknowledgement. Fetched and pushed messages are born Confirmed.
type DeliveryState string

const (
	DeliveryPending   DeliveryState = "pending"
	DeliveryConfirmed DeliveryState = "confirmed"
	DeliveryFailed    DeliveryState = "failed"
)

// ViewMessage is one entry of the visible list. LocalID is set only for
// optimistic entries and pairs the entry with its store acknowledgement.
type ViewMessage struct {
	StoredMessage
	LocalID  string        `json:"local_id,omitempty"`
	Delivery DeliveryState `json:"delivery"`
}

// Store is the message gateway surface the session depends on. *Gateway
// satisfies it; tests substitute fakes.
type Store interface {
	FetchMessages(ctx context.Context, selfID, otherID uint) ([]StoredMessage, error)
	SendMessage(ctx context.Context, senderID, receiverID uint, content, fileURL, fileType string) (StoredMessage, error)
	MarkConversationRead(ctx context.Context, selfID, otherID uint) error
	DeleteConversation(ctx context.Context, callerID, otherID uint) error
}

// Uploader puts an attachment into object storage and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Notifier surfaces passive notices and transient failures to the user.
type Notifier interface {
	Info(text string)
	Error(text string)
}

// Session owns the in-memory view of one user's active conversation: history
// loading with stale-response discard, optimistic sends, push receives,
// attachment upload, and the confirm-gated history delete. All mutation goes
// through the mutex; blocking I/O happens outside it.
type Session struct {
	self      uint
	canDelete bool
	contacts  []Contact
	store     Store
	uploader  Uploader
	notify    Notifier
	log       *zap.SugaredLogger

	mu               sync.Mutex
	state            State
	active           Contact
	gen              uint64
	messages         []ViewMessage
	uploading        bool
	confirmingDelete bool
}

func NewSession(self uint, canDelete bool, contacts []Contact, store Store, uploader Uploader, notify Notifier, log *zap.SugaredLogger) *Session {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Session{
		self:      self,
		canDelete: canDelete,
		contacts:  contacts,
		store:     store,
		uploader:  uploader,
		notify:    notify,
		log:       log,
	}
}

// Open switches the active conversation and loads its history. Switching
// again while a load is in flight invalidates the older load: its response
// is discarded at resolution time, never merged into the newer view.
func (s *Session) Open(ctx context.Context, contact Contact) error {
	s.mu.Lock()
	s.active = contact
	s.state = StateLoadingHistory
	s.messages = nil
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	history, err := s.store.FetchMessages(ctx, s.self, contact.ID)
	if err == nil {
		// best effort; an unread marker is cosmetic
		s.store.MarkConversationRead(ctx, s.self, contact.ID)
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.messages = nil
		s.state = StateReady
		s.mu.Unlock()
		s.notify.Error("Failed to load messages")
		return err
	}

	view := make([]ViewMessage, 0, len(history))
	for _, msg := range history {
		view = append(view, ViewMessage{StoredMessage: msg, Delivery: DeliveryConfirmed})
	}
	s.messages = view
	s.state = StateReady
	s.mu.Unlock()
	return nil
}

// Send appends an optimistic entry and issues the store insert. The entry
// resolves to Confirmed or Failed; a failed entry stays visible, marked.
func (s *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return ErrNoContact
	}
	if text == "" {
		s.mu.Unlock()
		return ErrEmptyMessage
	}
	receiver := s.active.ID
	local := s.appendOptimistic(text, "", "", receiver)
	s.mu.Unlock()

	stored, err := s.store.SendMessage(ctx, s.self, receiver, text, "", "")
	s.resolveOptimistic(local, stored, err)
	return err
}

// Attach uploads the binary, classifies it by MIME prefix and sends a
// message carrying the file reference. The uploading flag clears on every
// path; a failed upload leaves no optimistic entry behind.
func (s *Session) Attach(ctx context.Context, filename, mimeType string, data []byte) error {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return ErrNoContact
	}
	if s.uploader == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: no object store configured", ErrUpload)
	}
	receiver := s.active.ID
	s.uploading = true
	s.mu.Unlock()

	key := fmt.Sprintf("attachments/%d/%s%s", s.self, uuid.NewString(), path.Ext(filename))
	fileURL, err := s.uploader.Upload(ctx, key, mimeType, data)

	s.mu.Lock()
	s.uploading = false
	if err != nil {
		s.mu.Unlock()
		s.notify.Error("Failed to upload attachment")
		return fmt.Errorf("%w: %v", ErrUpload, err)
	}

	fileType := ClassifyAttachment(mimeType)
	local := ""
	if s.state == StateReady && s.active.ID == receiver {
		local = s.appendOptimistic("", fileURL, fileType, receiver)
	}
	s.mu.Unlock()

	stored, sendErr := s.store.SendMessage(ctx, s.self, receiver, "", fileURL, fileType)
	s.resolveOptimistic(local, stored, sendErr)
	return sendErr
}

// Receive handles a push-delivered insert addressed to this user. Messages
// from the active contact join the view in arrival order; anything else
// becomes a passive notice and leaves the view untouched.
func (s *Session) Receive(msg StoredMessage) {
	s.mu.Lock()
	if s.state == StateReady && msg.SenderID == s.active.ID {
		s.messages = append(s.messages, ViewMessage{StoredMessage: msg, Delivery: DeliveryConfirmed})
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	name := "someone"
	for _, c := range s.contacts {
		if c.ID == msg.SenderID {
			name = c.FullName
			break
		}
	}
	s.notify.Info("New message from " + name)
}

// RequestDelete opens the confirmation step. Only roles holding the
// conversation delete privilege ever get this far.
func (s *Session) RequestDelete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return ErrNoContact
	}
	if !s.canDelete {
		return ErrPermissionDenied
	}
	s.confirmingDelete = true
	return nil
}

// CancelDelete leaves the conversation untouched.
func (s *Session) CancelDelete() {
	s.mu.Lock()
	s.confirmingDelete = false
	s.mu.Unlock()
}

// ConfirmDelete performs the privileged delete. Success empties the visible
// list; failure keeps it as it was.
func (s *Session) ConfirmDelete(ctx context.Context) error {
	s.mu.Lock()
	if !s.confirmingDelete || s.state != StateReady {
		s.mu.Unlock()
		return ErrNoContact
	}
	s.confirmingDelete = false
	other := s.active.ID
	s.mu.Unlock()

	if err := s.store.DeleteConversation(ctx, s.self, other); err != nil {
		s.notify.Error("Failed to delete conversation")
		return err
	}

	s.mu.Lock()
	if s.state == StateReady && s.active.ID == other {
		s.messages = []ViewMessage{}
	}
	s.mu.Unlock()
	s.notify.Info("Conversation deleted")
	return nil
}

// State returns the current view state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ActiveContact returns the open conversation partner, if any.
func (s *Session) ActiveContact() (Contact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.state != StateNoActiveContact
}

// Messages returns a copy of the visible list, oldest first with optimistic
// entries at the tail.
func (s *Session) Messages() []ViewMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ViewMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) Uploading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploading
}

func (s *Session) ConfirmingDelete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmingDelete
}

func (s *Session) CanDelete() bool { return s.canDelete }

// appendOptimistic must run under s.mu. The local timestamp keeps the entry
// at the tail of the non-decreasing view until the store assigns the real one.
func (s *Session) appendOptimistic(content, fileURL, fileType string, receiver uint) string {
	local := uuid.NewString()
	s.messages = append(s.messages, ViewMessage{
		StoredMessage: StoredMessage{
			SenderID:   s.self,
			ReceiverID: receiver,
			Content:    content,
			CreatedAt:  time.Now(),
			FileURL:    fileURL,
			FileType:   fileType,
		},
		LocalID:  local,
		Delivery: DeliveryPending,
	})
	return local
}

// resolveOptimistic marks the pending entry Confirmed or Failed once the
// insert settles. The entry may be gone if the view was replaced by a
// conversation switch in the meantime; that is fine, the store holds truth.
func (s *Session) resolveOptimistic(localID string, stored StoredMessage, err error) {
	if localID == "" {
		if err != nil {
			s.notify.Error("Failed to send message")
		}
		return
	}

	s.mu.Lock()
	for i := range s.messages {
		if s.messages[i].LocalID != localID {
			continue
		}
		if err != nil {
			s.messages[i].Delivery = DeliveryFailed
		} else {
			s.messages[i].ID = stored.ID
			s.messages[i].CreatedAt = stored.CreatedAt
			s.messages[i].Read = stored.Read
			s.messages[i].Delivery = DeliveryConfirmed
		}
		break
	}
	s.mu.Unlock()

	if err != nil {
		s.notify.Error("Failed to send message")
	}
}

// ClassifyAttachment maps a MIME type onto the stored file_type.
func ClassifyAttachment(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio"
	default:
		return "file"
	}
}
