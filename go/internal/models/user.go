package models

import (
	"github.com/google/uuid"
)

// UserInfo is the denormalized display info carried on tickets and picks.
type UserInfo struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
}
