package core

import (
	"context"
	"time"
)

type (
	// Project is a user-owned design persisted in the cloud. Content holds the
	// serialized document snapshot the editor last pushed.
	Project struct {
		ID        string    `json:"id"`
		UserID    string    `json:"userId"`
		Name      string    `json:"name"`
		Content   string    `json:"content,omitempty"` // Omitted from list views.
		Thumbnail string    `json:"thumbnail,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// ProjectUpdate carries the fields to change on a project. Nil fields are
	// left untouched.
	ProjectUpdate struct {
		Name      *string `json:"name,omitempty"`
		Content   *string `json:"content,omitempty"`
		Thumbnail *string `json:"thumbnail,omitempty"`
	}

	// ProjectStore defines the remote persistence layer for projects.
	ProjectStore interface {
		// ListProjects returns metadata for all projects owned by a user, most
		// recently updated first. Content is not populated.
		ListProjects(ctx context.Context, userID string) ([]*Project, error)

		// FetchProject returns a single project. Missing projects yield an error
		// matching ErrProjectNotFound.
		FetchProject(ctx context.Context, id string) (*Project, error)

		// CreateProject creates a project seeded with an empty document.
		CreateProject(ctx context.Context, userID, name string) (*Project, error)

		// UpdateProject applies upd and returns the updated record.
		UpdateProject(ctx context.Context, id string, upd ProjectUpdate) (*Project, error)

		// DeleteProject removes a project.
		DeleteProject(ctx context.Context, id string) error
	}
)

// Apply copies the non-nil fields of upd onto p.
func (upd ProjectUpdate) Apply(p *Project) {
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Content != nil {
		p.Content = *upd.Content
	}
	if upd.Thumbnail != nil {
		p.Thumbnail = *upd.Thumbnail
	}
}

// Empty reports whether upd changes nothing.
func (upd ProjectUpdate) Empty() bool {
	return upd.Name == nil && upd.Content == nil && upd.Thumbnail == nil
}

// Summary returns a copy of p without the content blob, for list views.
func (p *Project) Summary() *Project {
	return &Project{
		ID:        p.ID,
		UserID:    p.UserID,
		Name:      p.Name,
		Thumbnail: p.Thumbnail,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
