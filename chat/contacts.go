package chat

import (
	"context"
	"errors"

	"classboard-service/model"

	"gorm.io/gorm"
)

// Contact is a directory user the caller is allowed to message, mapped from
// the user row at the store boundary.
type Contact struct {
	ID        uint   `json:"id"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Role      string `json:"role"`
}

// ContactResolver derives the eligible chat partners for a caller from the
// fixed role pairing: students see teachers, everyone else sees students.
type ContactResolver struct {
	db *gorm.DB
}

func NewContactResolver(db *gorm.DB) *ContactResolver {
	return &ContactResolver{db: db}
}

// ListContacts returns the caller's eligible partners ordered by name.
// An unknown caller yields ErrUnauthenticated, never a silent empty list.
func (r *ContactResolver) ListContacts(ctx context.Context, callerID uint) ([]Contact, error) {
	caller := new(model.User)
	if err := r.db.WithContext(ctx).First(caller, callerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, storeErr(err)
	}

	target := model.RoleStudent
	if caller.Role == model.RoleStudent {
		target = model.RoleTeacher
	}

	var users []model.User
	if err := r.db.WithContext(ctx).
		Where(&model.User{Role: target}).
		Order("full_name asc").
		Find(&users).Error; err != nil {
		return nil, storeErr(err)
	}

	contacts := make([]Contact, 0, len(users))
	for _, u := range users {
		contacts = append(contacts, Contact{
			ID:        u.ID,
			FullName:  u.FullName,
			AvatarURL: u.AvatarURL,
			Role:      u.Role,
		})
	}
	return contacts, nil
}
