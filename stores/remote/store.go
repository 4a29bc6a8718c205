package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nocap-editor/core"

	"github.com/sirupsen/logrus"
)

const projectsPath = "/api/v1/projects"

// Option configures a remote store.
type Option func(*httpStore)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *httpStore) {
		s.client = c
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(s *httpStore) {
		s.token = token
	}
}

type httpStore struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewStore returns a ProjectStore talking to the project API at baseURL.
// The user of every call is the token's subject; the userID arguments of
// ListProjects and CreateProject are not sent.
func NewStore(baseURL string, opts ...Option) (*httpStore, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid remote store url %q", baseURL)
	}
	s := &httpStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type apiError struct {
	Error string `json:"error"`
}

// do sends a request and decodes a JSON response into out when out is not
// nil. 404 responses map to notFound.
func (s *httpStore) do(ctx context.Context, method, path string, body, out any, notFound error) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && notFound != nil {
		return notFound
	}
	if resp.StatusCode >= 300 {
		var apiErr apiError
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, apiErr.Error)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func projectPath(id string) string {
	return projectsPath + "/" + url.PathEscape(id)
}

func notFoundErr(id string) error {
	return fmt.Errorf("%w: project with id %s", core.ErrProjectNotFound, id)
}

func (s *httpStore) ListProjects(ctx context.Context, userID string) ([]*core.Project, error) {
	projects := make([]*core.Project, 0)
	if err := s.do(ctx, http.MethodGet, projectsPath, nil, &projects, nil); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to list remote projects")
		return nil, err
	}
	return projects, nil
}

func (s *httpStore) FetchProject(ctx context.Context, id string) (*core.Project, error) {
	var p core.Project
	if err := s.do(ctx, http.MethodGet, projectPath(id), nil, &p, notFoundErr(id)); err != nil {
		return nil, err
	}
	logrus.WithField("project_id", id).Debug("Remote project retrieved")
	return &p, nil
}

func (s *httpStore) CreateProject(ctx context.Context, userID, name string) (*core.Project, error) {
	var p core.Project
	if err := s.do(ctx, http.MethodPost, projectsPath, map[string]string{"name": name}, &p, nil); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"user_id": userID, "project_id": p.ID}).Info("Remote project created")
	return &p, nil
}

func (s *httpStore) UpdateProject(ctx context.Context, id string, upd core.ProjectUpdate) (*core.Project, error) {
	var p core.Project
	if err := s.do(ctx, http.MethodPatch, projectPath(id), upd, &p, notFoundErr(id)); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"project_id": id, "data_length": len(p.Content)}).Debug("Remote project updated")
	return &p, nil
}

func (s *httpStore) DeleteProject(ctx context.Context, id string) error {
	return s.do(ctx, http.MethodDelete, projectPath(id), nil, nil, notFoundErr(id))
}
