package model

import (
	"time"

	"github.com/google/uuid"
)

type Comment struct {
	ID        uuid.UUID    `json:"id"`
	ReportID  uuid.UUID    `json:"report_id"`
	UserID    uuid.UUID    `json:"user_id"`
	User      *UserSummary `json:"user,omitempty"`
	Message   string       `json:"message"`
	CreatedAt time.Time    `json:"created_at"`
}

type CreateCommentRequest struct {
	Message string `json:"message" validate:"required,min=1,max=1000"`
}
