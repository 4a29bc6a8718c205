package projects

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"nocap-editor/core"
	"nocap-editor/document"
	"nocap-editor/middleware"
	"nocap-editor/persistence"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// DefaultName is given to projects created without a name.
const DefaultName = "Untitled Project"

// Notifier is told about every successful project update.
type Notifier interface {
	ProjectUpdated(p *core.Project)
}

type options struct {
	notifier  Notifier
	thumbnail persistence.Thumbnailer
}

// Option configures the update handler.
type Option func(*options)

// WithNotifier announces updates through n.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithThumbnailer renders a thumbnail for content updates that arrive
// without one.
func WithThumbnailer(fn persistence.Thumbnailer) Option {
	return func(o *options) {
		o.thumbnail = fn
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type createRequest struct {
	Name string `json:"name"`
}

func fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

func subject(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "User claims not found")
		return "", false
	}
	return claims.Subject, true
}

// owned fetches the project named by the URL and writes a 404 unless it
// belongs to userID. Foreign projects are indistinguishable from missing ones.
func owned(w http.ResponseWriter, r *http.Request, store core.ProjectStore, userID string) (*core.Project, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		fail(w, r, http.StatusBadRequest, "Project id is required")
		return nil, false
	}

	p, err := store.FetchProject(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrProjectNotFound) {
			fail(w, r, http.StatusNotFound, "Project not found")
			return nil, false
		}
		logrus.WithError(err).WithField("project_id", id).Error("Failed to fetch project")
		fail(w, r, http.StatusInternalServerError, "Failed to fetch project")
		return nil, false
	}
	if p.UserID != userID {
		logrus.WithFields(logrus.Fields{"project_id": id, "user_id": userID}).Warn("Project requested by another user")
		fail(w, r, http.StatusNotFound, "Project not found")
		return nil, false
	}
	return p, true
}

func HandleList(store core.ProjectStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := subject(w, r)
		if !ok {
			return
		}

		projects, err := store.ListProjects(r.Context(), userID)
		if err != nil {
			logrus.WithError(err).WithField("user_id", userID).Error("Failed to list projects")
			fail(w, r, http.StatusInternalServerError, "Failed to list projects")
			return
		}
		if projects == nil {
			projects = []*core.Project{}
		}
		render.JSON(w, r, projects)
	}
}

func HandleCreate(store core.ProjectStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := subject(w, r)
		if !ok {
			return
		}

		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			fail(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			name = DefaultName
		}

		p, err := store.CreateProject(r.Context(), userID, name)
		if err != nil {
			logrus.WithError(err).WithField("user_id", userID).Error("Failed to create project")
			fail(w, r, http.StatusInternalServerError, "Failed to create project")
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, p)
	}
}

func HandleGet(store core.ProjectStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := subject(w, r)
		if !ok {
			return
		}
		p, ok := owned(w, r, store, userID)
		if !ok {
			return
		}
		render.JSON(w, r, p)
	}
}

// HandleUpdate applies a partial update. Content must decode as a document
// snapshot; a blob the editor could not load is rejected up front.
func HandleUpdate(store core.ProjectStore, opts ...Option) http.HandlerFunc {
	o := buildOptions(opts)
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := subject(w, r)
		if !ok {
			return
		}

		var upd core.ProjectUpdate
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			fail(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}
		if upd.Empty() {
			fail(w, r, http.StatusBadRequest, "Nothing to update")
			return
		}
		if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
			fail(w, r, http.StatusBadRequest, "Project name cannot be empty")
			return
		}
		if upd.Content != nil {
			if _, err := document.Deserialize(document.Snapshot(*upd.Content)); err != nil {
				logrus.WithError(err).WithField("user_id", userID).Warn("Rejected corrupt project content")
				fail(w, r, http.StatusBadRequest, "Content is not a valid document snapshot")
				return
			}
		}

		p, ok := owned(w, r, store, userID)
		if !ok {
			return
		}
		if upd.Content != nil && upd.Thumbnail == nil && o.thumbnail != nil {
			thumb, err := o.thumbnail(document.Snapshot(*upd.Content))
			if err != nil {
				logrus.WithError(err).WithField("project_id", p.ID).Warn("Failed to render thumbnail")
			} else {
				upd.Thumbnail = &thumb
			}
		}
		updated, err := store.UpdateProject(r.Context(), p.ID, upd)
		if err != nil {
			if errors.Is(err, core.ErrProjectNotFound) {
				fail(w, r, http.StatusNotFound, "Project not found")
				return
			}
			logrus.WithError(err).WithField("project_id", p.ID).Error("Failed to update project")
			fail(w, r, http.StatusInternalServerError, "Failed to update project")
			return
		}
		if o.notifier != nil {
			o.notifier.ProjectUpdated(updated)
		}
		render.JSON(w, r, updated)
	}
}

func HandleDelete(store core.ProjectStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := subject(w, r)
		if !ok {
			return
		}
		p, ok := owned(w, r, store, userID)
		if !ok {
			return
		}
		if err := store.DeleteProject(r.Context(), p.ID); err != nil {
			if errors.Is(err, core.ErrProjectNotFound) {
				fail(w, r, http.StatusNotFound, "Project not found")
				return
			}
			logrus.WithError(err).WithField("project_id", p.ID).Error("Failed to delete project")
			fail(w, r, http.StatusInternalServerError, "Failed to delete project")
			return
		}
		render.NoContent(w, r)
	}
}

// Routes mounts the project handlers. Callers add authentication.
func Routes(store core.ProjectStore, opts ...Option) chi.Router {
	r := chi.NewRouter()
	r.Get("/", HandleList(store))
	r.Post("/", HandleCreate(store))
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", HandleGet(store))
		r.Patch("/", HandleUpdate(store, opts...))
		r.Delete("/", HandleDelete(store))
	})
	return r
}
