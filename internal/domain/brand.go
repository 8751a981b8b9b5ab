package domain

import (
	"time"

	"github.com/google/uuid"
)

// Brand — владелец кампаний.
//
// Timezone бренда используется по умолчанию при расчёте времени публикаций
// и при reschedule без явного timezone.
type Brand struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`

	// Timezone — IANA-идентификатор, например "America/Los_Angeles".
	Timezone string `json:"timezone"`

	CreatedAt time.Time `json:"created_at"`
}
