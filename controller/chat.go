package controller

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"

	"classboard-service/chat"
	"classboard-service/preview"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxAttachmentBytes = 10 << 20

// Chat exposes the messaging subsystem over REST: contacts, conversation
// fetch, send, read marking, the gated delete, attachment upload and link
// preview resolution.
type Chat struct {
	Contacts *chat.ContactResolver
	Gateway  *chat.Gateway
	Uploader chat.Uploader
	Preview  *preview.Resolver
	Log      *zap.SugaredLogger
}

func NewChat(contacts *chat.ContactResolver, gateway *chat.Gateway, uploader chat.Uploader, resolver *preview.Resolver, log *zap.SugaredLogger) *Chat {
	return &Chat{Contacts: contacts, Gateway: gateway, Uploader: uploader, Preview: resolver, Log: log}
}

type SendMessageInput struct {
	ReceiverID uint   `json:"receiver_id"`
	Content    string `json:"content"`
	FileURL    string `json:"file_url"`
	FileType   string `json:"file_type"`
}

func (h *Chat) ListContacts(c *fiber.Ctx) error {
	contacts, err := h.Contacts.ListContacts(c.Context(), callerID(c))
	if err != nil {
		return chatError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data":    contacts,
	})
}

func (h *Chat) FetchMessages(c *fiber.Ctx) error {
	otherID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return badRequest(c, "Invalid contact id")
	}

	messages, err := h.Gateway.FetchMessages(c.Context(), callerID(c), uint(otherID))
	if err != nil {
		return chatError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data":    messages,
	})
}

func (h *Chat) SendMessage(c *fiber.Ctx) error {
	input := new(SendMessageInput)
	if err := c.BodyParser(input); err != nil {
		return badRequest(c, "Review your input")
	}

	stored, err := h.Gateway.SendMessage(
		c.Context(),
		callerID(c),
		input.ReceiverID,
		input.Content,
		input.FileURL,
		input.FileType,
	)
	if err != nil {
		return chatError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data":    stored,
	})
}

func (h *Chat) MarkRead(c *fiber.Ctx) error {
	otherID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return badRequest(c, "Invalid contact id")
	}

	if err := h.Gateway.MarkConversationRead(c.Context(), callerID(c), uint(otherID)); err != nil {
		return chatError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data":    nil,
	})
}

func (h *Chat) DeleteConversation(c *fiber.Ctx) error {
	otherID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return badRequest(c, "Invalid contact id")
	}

	if err := h.Gateway.DeleteConversation(c.Context(), callerID(c), uint(otherID)); err != nil {
		return chatError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data":    nil,
	})
}

// UploadAttachment stores the binary and returns the file reference for a
// follow-up send.
func (h *Chat) UploadAttachment(c *fiber.Ctx) error {
	if h.Uploader == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "error",
			"message": "Attachments are not configured",
			"data":    nil,
		})
	}

	header, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "Missing file")
	}
	if header.Size > maxAttachmentBytes {
		return badRequest(c, "File too large")
	}

	file, err := header.Open()
	if err != nil {
		return internalError(c)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAttachmentBytes))
	if err != nil {
		return internalError(c)
	}

	mimeType := header.Header.Get("Content-Type")
	key := fmt.Sprintf("attachments/%d/%s%s", callerID(c), uuid.NewString(), path.Ext(header.Filename))

	fileURL, err := h.Uploader.Upload(c.Context(), key, mimeType, data)
	if err != nil {
		h.Log.Errorw("attachment upload failed", "key", key, "err", err)
		return internalError(c)
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data": fiber.Map{
			"file_url":  fileURL,
			"file_type": chat.ClassifyAttachment(mimeType),
		},
	})
}

// ResolveLinkPreview is best effort; an unresolvable URL is a success with
// null data and the client renders the bare link.
func (h *Chat) ResolveLinkPreview(c *fiber.Ctx) error {
	rawURL := c.Query("url")
	if rawURL == "" {
		return badRequest(c, "Missing url")
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data":    h.Preview.Resolve(c.Context(), rawURL),
	})
}

func callerID(c *fiber.Ctx) uint {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return 0
	}
	claims := token.Claims.(jwt.MapClaims)
	idStr, _ := claims["id"].(string)
	id, _ := strconv.ParseUint(idStr, 10, 64)
	return uint(id)
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"status":  "error",
		"message": message,
		"data":    nil,
	})
}

func chatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, chat.ErrUnauthenticated):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status":  "error",
			"message": "Unauthenticated",
			"data":    nil,
		})
	case errors.Is(err, chat.ErrPermissionDenied):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"status":  "error",
			"message": "Permission denied",
			"data":    nil,
		})
	case errors.Is(err, chat.ErrSelfMessage), errors.Is(err, chat.ErrEmptyMessage):
		return badRequest(c, err.Error())
	default:
		return internalError(c)
	}
}
