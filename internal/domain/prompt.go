package domain

import "time"

// Prompt is a challenge the player has to find resources for.
type Prompt struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	Level       int       `json:"level" yaml:"level"`
	CreatedAt   time.Time `json:"created_at,omitempty" yaml:"-"`
}

// PlayedPrompt is a prompt the user already has a match for.
type PlayedPrompt struct {
	PromptID string
	Level    int
}

// NextPrompt is the result of selecting the next challenge.
type NextPrompt struct {
	Done    bool    `json:"done"`
	Prompt  *Prompt `json:"prompt,omitempty"`
	Message string  `json:"message,omitempty"`
}
