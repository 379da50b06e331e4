// Package lead accumulates qualification details about the caller over the
// course of a conversation.
//
// The agent surfaces details through the update_lead_info tool whenever the
// caller reveals something relevant (their name, company, role, and so on).
// Each tool call carries only the freshly learned fields; [Store.Apply]
// merges them additively into the running [Record] so earlier answers are
// never lost when later calls omit them.
//
// All store operations are safe for concurrent use.
package lead

import (
	"encoding/json"
	"fmt"
)

// Record is the qualification sheet for one caller. All fields are
// free-text as captured by the model; empty means not yet learned.
type Record struct {
	// Name is the caller's name.
	Name string `json:"name,omitempty"`

	// Company is the caller's company or organisation.
	Company string `json:"company,omitempty"`

	// Email is the caller's contact email address.
	Email string `json:"email,omitempty"`

	// Role is the caller's job title or function.
	Role string `json:"role,omitempty"`

	// UseCase describes what the caller wants to use the product for.
	UseCase string `json:"useCase,omitempty"`

	// TeamSize is the size of the caller's team, as stated.
	TeamSize string `json:"teamSize,omitempty"`

	// Timeline is when the caller intends to adopt or decide.
	Timeline string `json:"timeline,omitempty"`

	// Summary is the agent's running summary of the conversation.
	Summary string `json:"summary,omitempty"`
}

// Empty reports whether no field has been captured yet.
func (r Record) Empty() bool {
	return r == Record{}
}

// Update carries the fields of a single update_lead_info invocation.
// Nil pointers mark fields the model did not mention; they leave the
// existing record values untouched.
type Update struct {
	Name     *string `json:"name"`
	Company  *string `json:"company"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
	UseCase  *string `json:"useCase"`
	TeamSize *string `json:"teamSize"`
	Timeline *string `json:"timeline"`
	Summary  *string `json:"summary"`
}

// ParseUpdate decodes the JSON arguments of an update_lead_info tool call.
// Unknown keys are ignored so schema drift on the model side does not break
// the call; a type mismatch or malformed JSON is an error.
func ParseUpdate(args string) (Update, error) {
	var u Update
	if err := json.Unmarshal([]byte(args), &u); err != nil {
		return Update{}, fmt.Errorf("lead: parse update: %w", err)
	}
	return u, nil
}
