package chat_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"classboard-service/chat"
	"classboard-service/database"
	"classboard-service/model"

	"github.com/casbin/casbin/v2"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	enforcer *casbin.Enforcer
	feed     *chat.Feed
	gateway  *chat.Gateway

	student    model.User
	teacher    model.User
	superadmin model.User
	student2   model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&model.User{}, &model.Message{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	enforcer, err := database.Casbin(db)
	if err != nil {
		t.Fatalf("casbin: %v", err)
	}

	f := &fixture{
		db:       db,
		enforcer: enforcer,
		feed:     chat.NewFeed(),
		student:  model.User{Username: "amin", Email: "amin@school.test", Password: "x", FullName: "Amin Diallo", Role: model.RoleStudent},
		teacher:  model.User{Username: "vera", Email: "vera@school.test", Password: "x", FullName: "Vera Osei", Role: model.RoleTeacher},
		superadmin: model.User{
			Username: "root", Email: "root@school.test", Password: "x", FullName: "Head Office", Role: model.RoleSuperadmin,
		},
		student2: model.User{Username: "jo", Email: "jo@school.test", Password: "x", FullName: "Jo Tran", Role: model.RoleStudent},
	}
	for _, u := range []*model.User{&f.student, &f.teacher, &f.superadmin, &f.student2} {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("seed user %s: %v", u.Username, err)
		}
	}

	f.gateway = chat.NewGateway(db, enforcer, f.feed, nil, nil, nil)
	return f
}

func TestSendAndFetch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stored, err := f.gateway.SendMessage(ctx, f.student.ID, f.teacher.ID, "Hello", "", "")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if stored.ID == 0 {
		t.Fatal("stored message has no id")
	}
	if stored.Read {
		t.Error("new message must start unread")
	}

	msgs, err := f.gateway.FetchMessages(ctx, f.student.ID, f.teacher.ID)
	if err != nil {
		t.Fatalf("FetchMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	last := msgs[len(msgs)-1]
	if last.Content != "Hello" || last.SenderID != f.student.ID || last.ReceiverID != f.teacher.ID {
		t.Errorf("unexpected message %+v", last)
	}

	// direction symmetric
	reverse, err := f.gateway.FetchMessages(ctx, f.teacher.ID, f.student.ID)
	if err != nil {
		t.Fatalf("reverse FetchMessages: %v", err)
	}
	if len(reverse) != len(msgs) || reverse[0].ID != msgs[0].ID {
		t.Errorf("fetch is not symmetric: %+v vs %+v", msgs, reverse)
	}
}

func TestFetchOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	// insert out of chronological order
	for _, offset := range []time.Duration{2 * time.Minute, 0, time.Minute} {
		row := model.Message{
			SenderID:   f.student.ID,
			ReceiverID: f.teacher.ID,
			Content:    offset.String(),
		}
		row.CreatedAt = base.Add(offset)
		if err := f.db.Create(&row).Error; err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}

	msgs, err := f.gateway.FetchMessages(ctx, f.student.ID, f.teacher.ID)
	if err != nil {
		t.Fatalf("FetchMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatalf("messages out of order at %d: %v before %v", i, msgs[i].CreatedAt, msgs[i-1].CreatedAt)
		}
	}
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name            string
		sender, receiver uint
		content, fileURL string
		wantErr         error
	}{
		{name: "no sender", sender: 0, receiver: f.teacher.ID, content: "hi", wantErr: chat.ErrUnauthenticated},
		{name: "self message", sender: f.student.ID, receiver: f.student.ID, content: "hi", wantErr: chat.ErrSelfMessage},
		{name: "empty", sender: f.student.ID, receiver: f.teacher.ID, content: "   ", wantErr: chat.ErrEmptyMessage},
		{name: "attachment only", sender: f.student.ID, receiver: f.teacher.ID, fileURL: "https://files.test/a.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.gateway.SendMessage(ctx, tt.sender, tt.receiver, tt.content, tt.fileURL, "")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SendMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDeleteConversationPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.gateway.SendMessage(ctx, f.student.ID, f.teacher.ID, "Hello", "", ""); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if _, err := f.gateway.SendMessage(ctx, f.teacher.ID, f.student.ID, "Hi back", "", ""); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	// a student may never bulk-delete
	err := f.gateway.DeleteConversation(ctx, f.student.ID, f.teacher.ID)
	if !errors.Is(err, chat.ErrPermissionDenied) {
		t.Fatalf("student delete error = %v, want ErrPermissionDenied", err)
	}
	msgs, _ := f.gateway.FetchMessages(ctx, f.student.ID, f.teacher.ID)
	if len(msgs) != 2 {
		t.Fatalf("message set changed by refused delete: %d messages", len(msgs))
	}

	// the teacher may
	if err := f.gateway.DeleteConversation(ctx, f.teacher.ID, f.student.ID); err != nil {
		t.Fatalf("teacher delete: %v", err)
	}
	msgs, _ = f.gateway.FetchMessages(ctx, f.student.ID, f.teacher.ID)
	if len(msgs) != 0 {
		t.Fatalf("conversation not emptied: %d messages", len(msgs))
	}

	// student retry against the now-empty conversation is still refused
	err = f.gateway.DeleteConversation(ctx, f.student.ID, f.teacher.ID)
	if !errors.Is(err, chat.ErrPermissionDenied) {
		t.Fatalf("student retry error = %v, want ErrPermissionDenied", err)
	}
	msgs, _ = f.gateway.FetchMessages(ctx, f.teacher.ID, f.student.ID)
	if len(msgs) != 0 {
		t.Fatalf("deleted conversation came back: %d messages", len(msgs))
	}
}

func TestDeleteConversationSuperadmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.gateway.SendMessage(ctx, f.student.ID, f.teacher.ID, "Hello", "", ""); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := f.gateway.DeleteConversation(ctx, f.superadmin.ID, f.student.ID); err != nil {
		t.Fatalf("superadmin delete: %v", err)
	}
	// the superadmin/student pair held no messages; the student/teacher pair is intact
	msgs, _ := f.gateway.FetchMessages(ctx, f.student.ID, f.teacher.ID)
	if len(msgs) != 1 {
		t.Fatalf("unrelated conversation touched: %d messages", len(msgs))
	}
}

func TestDeleteConversationUnknownCaller(t *testing.T) {
	f := newFixture(t)
	err := f.gateway.DeleteConversation(context.Background(), 9999, f.teacher.ID)
	if !errors.Is(err, chat.ErrUnauthenticated) {
		t.Fatalf("error = %v, want ErrUnauthenticated", err)
	}
}

func TestDeleteOnlyTouchesThePair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.gateway.SendMessage(ctx, f.student.ID, f.teacher.ID, "one", "", "")
	f.gateway.SendMessage(ctx, f.student2.ID, f.teacher.ID, "two", "", "")

	if err := f.gateway.DeleteConversation(ctx, f.teacher.ID, f.student.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	remaining, _ := f.gateway.FetchMessages(ctx, f.student2.ID, f.teacher.ID)
	if len(remaining) != 1 || remaining[0].Content != "two" {
		t.Fatalf("other conversation lost: %+v", remaining)
	}
}

func TestFeedPublishOnSend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	receiverSub := f.feed.Subscribe(f.teacher.ID)
	defer receiverSub.Close()
	senderSub := f.feed.Subscribe(f.student.ID)
	defer senderSub.Close()

	stored, err := f.gateway.SendMessage(ctx, f.student.ID, f.teacher.ID, "ping", "", "")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	select {
	case got := <-receiverSub.C:
		if got.ID != stored.ID || got.Content != "ping" {
			t.Errorf("pushed %+v, want %+v", got, stored)
		}
	case <-time.After(time.Second):
		t.Fatal("receiver never saw the insert")
	}

	// the sender-filtered channel stays silent for their own insert
	select {
	case got := <-senderSub.C:
		t.Fatalf("sender notified of own insert: %+v", got)
	default:
	}
}

func TestMarkConversationRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.gateway.SendMessage(ctx, f.student.ID, f.teacher.ID, "unread", "", "")
	f.gateway.SendMessage(ctx, f.teacher.ID, f.student.ID, "also unread", "", "")

	if err := f.gateway.MarkConversationRead(ctx, f.teacher.ID, f.student.ID); err != nil {
		t.Fatalf("MarkConversationRead: %v", err)
	}

	msgs, _ := f.gateway.FetchMessages(ctx, f.teacher.ID, f.student.ID)
	for _, msg := range msgs {
		received := msg.ReceiverID == f.teacher.ID
		if received && !msg.Read {
			t.Errorf("received message %d still unread", msg.ID)
		}
		if !received && msg.Read {
			t.Errorf("sent message %d marked read by the wrong side", msg.ID)
		}
	}
}

func TestCanDeleteConversation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		role string
		want bool
	}{
		{role: model.RoleStudent, want: false},
		{role: model.RoleTeacher, want: true},
		{role: model.RoleSuperadmin, want: true},
		{role: "unknown", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			if got := f.gateway.CanDeleteConversation(tt.role); got != tt.want {
				t.Errorf("CanDeleteConversation(%q) = %v, want %v", tt.role, got, tt.want)
			}
		})
	}
}
