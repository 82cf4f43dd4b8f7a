// Package drafts holds partially answered questionnaire profiles until the
// final answer commits them into the durable player record. Drafts are
// scratch state: losing them only restarts the questionnaire.
package drafts

import "context"

// Draft mirrors the profile fields in questionnaire order.
type Draft struct {
	Name      string `json:"name"`
	Race      string `json:"race"`
	Class     string `json:"class"`
	Origin    string `json:"origin"`
	Backstory string `json:"backstory"`
}

// Store keeps one draft per user. A draft is created when the user enters
// the questionnaire and deleted when the profile commits.
type Store interface {
	Get(ctx context.Context, userID int64) (Draft, bool, error)
	Put(ctx context.Context, userID int64, draft Draft) error
	Delete(ctx context.Context, userID int64) error
	Close() error
}
