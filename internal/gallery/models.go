package gallery

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateUsername is returned by AdminStore.CreateAdmin when the
// username already exists.
var ErrDuplicateUsername = errors.New("duplicate username")

// Image is one uploaded picture, addressed by its durable URL.
type Image struct {
	URL string `json:"url"`
}

// Submission is a user-created gallery entry. It is written once and
// never updated.
type Submission struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	SocialMediaHandle string    `json:"socialMediaHandle"`
	Images            []Image   `json:"images"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Metadata is the descriptive part of a submission supplied by the client.
type Metadata struct {
	Name              string
	SocialMediaHandle string
}

// File is one raw upload taken off the wire.
type File struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Admin is an administrator credential record. PasswordHash is a bcrypt
// hash and is never serialized.
type Admin struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SubmissionStore persists submissions.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, s *Submission) error
	ListSubmissions(ctx context.Context) ([]Submission, error)
}

// AdminStore persists administrator records. CreateAdmin must insert only
// if the username is absent and return ErrDuplicateUsername otherwise.
// FindAdminByUsername returns nil, nil when no record matches.
type AdminStore interface {
	CreateAdmin(ctx context.Context, a *Admin) error
	FindAdminByUsername(ctx context.Context, username string) (*Admin, error)
}

// Uploader pushes one object to the media store and returns its durable URL.
type Uploader interface {
	Upload(ctx context.Context, f File) (string, error)
}

// Remover is implemented by uploaders that can delete what they stored.
type Remover interface {
	Remove(ctx context.Context, url string) error
}

// Broadcaster fans a value out to live viewers. It never fails.
type Broadcaster interface {
	Broadcast(v any)
}
