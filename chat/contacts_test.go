package chat_test

import (
	"context"
	"errors"
	"testing"

	"classboard-service/chat"
	"classboard-service/model"
)

func TestListContactsRolePairing(t *testing.T) {
	f := newFixture(t)
	resolver := chat.NewContactResolver(f.db)
	ctx := context.Background()

	tests := []struct {
		name     string
		caller   uint
		wantRole string
	}{
		{name: "student sees teachers", caller: f.student.ID, wantRole: model.RoleTeacher},
		{name: "teacher sees students", caller: f.teacher.ID, wantRole: model.RoleStudent},
		{name: "superadmin sees students", caller: f.superadmin.ID, wantRole: model.RoleStudent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contacts, err := resolver.ListContacts(ctx, tt.caller)
			if err != nil {
				t.Fatalf("ListContacts: %v", err)
			}
			if len(contacts) == 0 {
				t.Fatal("no contacts returned")
			}
			for _, c := range contacts {
				if c.Role != tt.wantRole {
					t.Errorf("contact %q has role %q, want %q", c.FullName, c.Role, tt.wantRole)
				}
				if c.ID == tt.caller {
					t.Errorf("caller listed as their own contact")
				}
			}
		})
	}
}

func TestListContactsMapping(t *testing.T) {
	f := newFixture(t)
	resolver := chat.NewContactResolver(f.db)

	contacts, err := resolver.ListContacts(context.Background(), f.student.ID)
	if err != nil {
		t.Fatalf("ListContacts: %v", err)
	}
	if len(contacts) != 1 {
		t.Fatalf("got %d contacts, want 1 teacher", len(contacts))
	}
	got := contacts[0]
	if got.ID != f.teacher.ID || got.FullName != f.teacher.FullName || got.Role != model.RoleTeacher {
		t.Errorf("mapped contact %+v does not match teacher %+v", got, f.teacher)
	}
}

func TestListContactsUnknownCaller(t *testing.T) {
	f := newFixture(t)
	resolver := chat.NewContactResolver(f.db)

	_, err := resolver.ListContacts(context.Background(), 9999)
	if !errors.Is(err, chat.ErrUnauthenticated) {
		t.Fatalf("error = %v, want ErrUnauthenticated", err)
	}
}
