package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"nocap-editor/core"
	"nocap-editor/document"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

type fsStore struct {
	basePath string
	mu       sync.Mutex
	now      func() time.Time
}

// NewStore creates a filesystem store keeping one JSON file per project and
// asset under basePath.
func NewStore(basePath string) (*fsStore, error) {
	for _, dir := range []string{"projects", "assets"} {
		if err := os.MkdirAll(filepath.Join(basePath, dir), 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}
	return &fsStore{basePath: basePath, now: time.Now}, nil
}

// entityPath returns the file of an entity. IDs that are not ULIDs cannot
// name a file, which keeps lookups inside basePath.
func (s *fsStore) entityPath(kind, id string) (string, bool) {
	if _, err := ulid.ParseStrict(id); err != nil {
		return "", false
	}
	return filepath.Join(s.basePath, kind, id+".json"), true
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// writeJSON replaces path atomically.
func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *fsStore) readDir(kind string, log *logrus.Entry, each func(data []byte) error) error {
	dir := filepath.Join(s.basePath, kind)
	files, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			log.WithError(err).Warnf("Failed to read %s, skipping", file.Name())
			continue
		}
		if err := each(data); err != nil {
			log.WithError(err).Warnf("Failed to unmarshal %s, skipping", file.Name())
		}
	}
	return nil
}

func (s *fsStore) ListProjects(ctx context.Context, userID string) ([]*core.Project, error) {
	log := logrus.WithField("user_id", userID)
	projects := make([]*core.Project, 0)
	err := s.readDir("projects", log, func(data []byte) error {
		var p core.Project
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		if p.UserID == userID {
			projects = append(projects, p.Summary())
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to read projects directory")
		return nil, err
	}
	sort.Slice(projects, func(i, j int) bool {
		if projects[i].UpdatedAt.Equal(projects[j].UpdatedAt) {
			return projects[i].ID > projects[j].ID
		}
		return projects[i].UpdatedAt.After(projects[j].UpdatedAt)
	})
	log.Infof("Listed %d projects", len(projects))
	return projects, nil
}

func (s *fsStore) FetchProject(ctx context.Context, id string) (*core.Project, error) {
	log := logrus.WithField("project_id", id)
	p, err := s.readProject(id)
	if err != nil {
		if errors.Is(err, core.ErrProjectNotFound) {
			log.Warn("Project file not found")
		} else {
			log.WithError(err).Error("Failed to read project file")
		}
		return nil, err
	}
	log.Info("Project retrieved successfully")
	return p, nil
}

func (s *fsStore) readProject(id string) (*core.Project, error) {
	notFound := fmt.Errorf("%w: project with id %s", core.ErrProjectNotFound, id)
	path, ok := s.entityPath("projects", id)
	if !ok {
		return nil, notFound
	}
	var p core.Project
	if err := readJSON(path, &p); err != nil {
		if os.IsNotExist(err) {
			return nil, notFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *fsStore) CreateProject(ctx context.Context, userID, name string) (*core.Project, error) {
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
	path, _ := s.entityPath("projects", p.ID)
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "project_id": p.ID, "path": path})

	if err := writeJSON(path, p); err != nil {
		log.WithError(err).Error("Failed to write project file")
		return nil, err
	}
	log.Info("Project created successfully")
	return p, nil
}

func (s *fsStore) UpdateProject(ctx context.Context, id string, upd core.ProjectUpdate) (*core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithField("project_id", id)
	p, err := s.readProject(id)
	if err != nil {
		if errors.Is(err, core.ErrProjectNotFound) {
			log.Warn("Project not found for update")
		}
		return nil, err
	}
	upd.Apply(p)
	p.UpdatedAt = s.now()

	path, _ := s.entityPath("projects", id)
	if err := writeJSON(path, p); err != nil {
		log.WithError(err).Error("Failed to write project file")
		return nil, err
	}
	log.WithField("data_length", len(p.Content)).Info("Project updated successfully")
	return p, nil
}

func (s *fsStore) DeleteProject(ctx context.Context, id string) error {
	return s.remove("projects", id, fmt.Errorf("%w: project with id %s", core.ErrProjectNotFound, id))
}

func (s *fsStore) remove(kind, id string, notFound error) error {
	log := logrus.WithFields(logrus.Fields{"kind": kind, "id": id})
	path, ok := s.entityPath(kind, id)
	if !ok {
		return notFound
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			log.Warn("File not found for deletion")
			return notFound
		}
		log.WithError(err).Error("Failed to delete file")
		return err
	}
	log.Info("Deleted successfully")
	return nil
}

func (s *fsStore) ListAssets(ctx context.Context, userID string) ([]*core.Asset, error) {
	log := logrus.WithField("user_id", userID)
	assets := make([]*core.Asset, 0)
	err := s.readDir("assets", log, func(data []byte) error {
		var a core.Asset
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		if a.UserID == userID {
			assets = append(assets, &a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(assets, func(i, j int) bool {
		if assets[i].CreatedAt.Equal(assets[j].CreatedAt) {
			return assets[i].ID > assets[j].ID
		}
		return assets[i].CreatedAt.After(assets[j].CreatedAt)
	})
	return assets, nil
}

func (s *fsStore) CreateAsset(ctx context.Context, asset core.NewAsset) (*core.Asset, error) {
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
	path, _ := s.entityPath("assets", a.ID)
	if err := writeJSON(path, a); err != nil {
		logrus.WithError(err).WithField("asset_id", a.ID).Error("Failed to write asset file")
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"user_id": a.UserID, "asset_id": a.ID}).Info("Asset created successfully")
	return a, nil
}

func (s *fsStore) DeleteAsset(ctx context.Context, id string) error {
	return s.remove("assets", id, fmt.Errorf("%w: asset with id %s", core.ErrAssetNotFound, id))
}
