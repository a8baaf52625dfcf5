package router

import (
	"context"
	"encoding/base64"
	"strconv"

	"classboard-service/chat"
	"classboard-service/socketio"
	"classboard-service/utils"

	"github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

// SocketDeps carries the collaborators each connected session needs.
type SocketDeps struct {
	Contacts *chat.ContactResolver
	Gateway  *chat.Gateway
	Feed     *chat.Feed
	Uploader chat.Uploader
	Log      *zap.SugaredLogger
}

// Socket registers the chat surface on the socket server. Every
// authenticated connection gets its own Session; inserts addressed to the
// user arrive through the feed subscription, which is torn down with the
// connection.
func Socket(server *socketio.Server, deps SocketDeps) {
	server.IO().On("connection", func(clients ...interface{}) {
		client := clients[0].(*socket.Socket)

		claims, ok := client.Data().(*utils.TokenMetadata)
		if !ok {
			// unauthenticated connections get no chat surface
			return
		}
		userID64, err := strconv.ParseUint(claims.Id, 10, 64)
		if err != nil {
			return
		}
		userID := uint(userID64)

		contacts, err := deps.Contacts.ListContacts(context.Background(), userID)
		if err != nil {
			deps.Log.Warnw("contact list failed", "user", userID, "err", err)
		}

		notify := &socketNotifier{client: client}
		session := chat.NewSession(
			userID,
			deps.Gateway.CanDeleteConversation(claims.Role),
			contacts,
			deps.Gateway,
			deps.Uploader,
			notify,
			deps.Log,
		)

		sub := deps.Feed.Subscribe(userID)
		go func() {
			for msg := range sub.C {
				session.Receive(msg)
			}
		}()

		client.On("chat_contacts", func(args ...interface{}) {
			client.Emit("chat_contacts", contacts)
		})

		client.On("chat_open", func(args ...interface{}) {
			id, _ := strconv.ParseUint(argString(args, 0), 10, 64)
			for _, contact := range contacts {
				if contact.ID != uint(id) {
					continue
				}
				session.Open(context.Background(), contact)
				client.Emit("chat_history", session.Messages())
				return
			}
		})

		client.On("chat_send", func(args ...interface{}) {
			session.Send(context.Background(), argString(args, 0))
			client.Emit("chat_view", session.Messages())
		})

		client.On("chat_attach", func(args ...interface{}) {
			filename := argString(args, 0)
			mimeType := argString(args, 1)
			data, err := base64.StdEncoding.DecodeString(argString(args, 2))
			if err != nil {
				notify.Error("Invalid attachment payload")
				return
			}
			session.Attach(context.Background(), filename, mimeType, data)
			client.Emit("chat_view", session.Messages())
		})

		client.On("chat_delete", func(args ...interface{}) {
			if err := session.RequestDelete(); err != nil {
				notify.Error("You cannot delete this conversation")
				return
			}
			client.Emit("chat_confirm_delete")
		})

		client.On("chat_delete_confirm", func(args ...interface{}) {
			session.ConfirmDelete(context.Background())
			client.Emit("chat_view", session.Messages())
		})

		client.On("chat_delete_cancel", func(args ...interface{}) {
			session.CancelDelete()
		})

		client.On("disconnect", func(args ...interface{}) {
			sub.Close()
		})
	})
}

type socketNotifier struct {
	client *socket.Socket
}

func (n *socketNotifier) Info(text string) {
	n.client.Emit("chat_notice", text)
}

func (n *socketNotifier) Error(text string) {
	n.client.Emit("chat_error", text)
}

func argString(args []interface{}, i int) string {
	if i >= len(args) {
		return ""
	}
	s, _ := args[i].(string)
	return s
}
