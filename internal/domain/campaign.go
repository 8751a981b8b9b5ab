package domain

import (
	"fmt"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
)

// Campaign — набор постов, публикуемых в заданном окне дат.
//
// StartDate и EndDate — календарные даты без времени суток,
// интерпретируются в timezone бренда. Окно включает обе границы.
type Campaign struct {
	ID      uuid.UUID `json:"id"`
	BrandID uuid.UUID `json:"brand_id"`
	Name    string    `json:"name"`

	StartDate civil.Date `json:"start_date"`
	EndDate   civil.Date `json:"end_date"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate проверяет инварианты кампании.
func (c *Campaign) Validate() error {
	if !c.StartDate.IsValid() || !c.EndDate.IsValid() {
		return fmt.Errorf("campaign %s: invalid dates", c.ID)
	}
	if c.EndDate.Before(c.StartDate) {
		return fmt.Errorf("campaign %s: end date %s before start date %s", c.ID, c.EndDate, c.StartDate)
	}
	return nil
}
