package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"nocap-editor/core"
	"nocap-editor/document"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// memStore implements ProjectStore and AssetStore in memory.
type memStore struct {
	mu       sync.RWMutex
	projects map[string]*core.Project
	assets   map[string]*core.Asset
	now      func() time.Time
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		projects: make(map[string]*core.Project),
		assets:   make(map[string]*core.Asset),
		now:      time.Now,
	}
}

func (s *memStore) ListProjects(ctx context.Context, userID string) ([]*core.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	projects := make([]*core.Project, 0)
	for _, p := range s.projects {
		if p.UserID == userID {
			projects = append(projects, p.Summary())
		}
	}
	sort.Slice(projects, func(i, j int) bool {
		if projects[i].UpdatedAt.Equal(projects[j].UpdatedAt) {
			return projects[i].ID > projects[j].ID
		}
		return projects[i].UpdatedAt.After(projects[j].UpdatedAt)
	})

	logrus.WithField("user_id", userID).Infof("Listed %d projects", len(projects))
	return projects, nil
}

func (s *memStore) FetchProject(ctx context.Context, id string) (*core.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := logrus.WithField("project_id", id)
	p, ok := s.projects[id]
	if !ok {
		log.Warn("Project with specified ID not found")
		return nil, fmt.Errorf("%w: project with id %s", core.ErrProjectNotFound, id)
	}
	log.Info("Project retrieved successfully")
	copied := *p
	return &copied, nil
}

func (s *memStore) CreateProject(ctx context.Context, userID, name string) (*core.Project, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}

	now := s.now()
	p := &core.Project{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Name:      name,
		Content:   string(document.EmptySnapshot()),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.projects[p.ID] = p
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{"user_id": userID, "project_id": p.ID}).Info("Project created successfully")
	copied := *p
	return &copied, nil
}

func (s *memStore) UpdateProject(ctx context.Context, id string, upd core.ProjectUpdate) (*core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithField("project_id", id)
	p, ok := s.projects[id]
	if !ok {
		log.Warn("Project not found for update")
		return nil, fmt.Errorf("%w: project with id %s", core.ErrProjectNotFound, id)
	}

	upd.Apply(p)
	p.UpdatedAt = s.now()
	log.Info("Project updated successfully")
	copied := *p
	return &copied, nil
}

func (s *memStore) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithField("project_id", id)
	if _, ok := s.projects[id]; !ok {
		log.Warn("Project not found for deletion")
		return fmt.Errorf("%w: project with id %s", core.ErrProjectNotFound, id)
	}
	delete(s.projects, id)
	log.Info("Project deleted successfully")
	return nil
}

func (s *memStore) ListAssets(ctx context.Context, userID string) ([]*core.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	assets := make([]*core.Asset, 0)
	for _, a := range s.assets {
		if a.UserID == userID {
			copied := *a
			assets = append(assets, &copied)
		}
	}
	sort.Slice(assets, func(i, j int) bool {
		if assets[i].CreatedAt.Equal(assets[j].CreatedAt) {
			return assets[i].ID > assets[j].ID
		}
		return assets[i].CreatedAt.After(assets[j].CreatedAt)
	})
	return assets, nil
}

func (s *memStore) CreateAsset(ctx context.Context, asset core.NewAsset) (*core.Asset, error) {
	if asset.UserID == "" || asset.URL == "" {
		return nil, fmt.Errorf("asset requires a user id and url")
	}

	a := &core.Asset{
		ID:        ulid.Make().String(),
		UserID:    asset.UserID,
		URL:       asset.URL,
		Name:      asset.Name,
		Size:      asset.Size,
		Type:      asset.Type,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.assets[a.ID] = a
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{"user_id": a.UserID, "asset_id": a.ID}).Info("Asset created successfully")
	copied := *a
	return &copied, nil
}

func (s *memStore) DeleteAsset(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assets[id]; !ok {
		logrus.WithField("asset_id", id).Warn("Asset not found for deletion")
		return fmt.Errorf("%w: asset with id %s", core.ErrAssetNotFound, id)
	}
	delete(s.assets, id)
	logrus.WithField("asset_id", id).Info("Asset deleted successfully")
	return nil
}
