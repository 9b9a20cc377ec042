package entities

import (
	"fmt"
	"time"
)

// Letter is a user written letter together with the generated reply
type Letter struct {
	ID                      string    `json:"letter_id" bson:"-"`
	TaskID                  string    `json:"task_id,omitempty" bson:"task_id"`
	UserID                  string    `json:"user_id" bson:"user_id"`
	UserLetter              string    `json:"user_letter" bson:"user_letter"`
	GeneratedResponseLetter string    `json:"generated_response_letter" bson:"generated_response_letter"`
	CreatedAt               time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt               time.Time `json:"updated_at" bson:"updated_at"`
}

// Validate validates the letter data
func (l *Letter) Validate() error {
	if l.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	if l.UserLetter == "" {
		return fmt.Errorf("%w: user_letter is required", ErrValidation)
	}
	return nil
}
