package entity

import (
	"time"

	"github.com/google/uuid"
)

// Project is the single construction project reports belong to.
type Project struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Apartment is a sub-unit of the project, looked up by its number.
type Apartment struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Number    string    `json:"number"`
}
