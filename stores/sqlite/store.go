package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nocap-editor/core"
	"nocap-editor/document"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db  *sql.DB
	now func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	thumbnail TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS projects_user_updated ON projects (user_id, updated_at DESC);
CREATE TABLE IF NOT EXISTS assets (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	url TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	size INTEGER NOT NULL DEFAULT 0,
	type TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS assets_user_created ON assets (user_id, created_at DESC);`

// NewStore opens (or creates) a SQLite database holding projects and assets.
func NewStore(dataSourceName string) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &sqliteStore{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) ListProjects(ctx context.Context, userID string) ([]*core.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, thumbnail, created_at, updated_at FROM projects WHERE user_id = ? ORDER BY updated_at DESC, id DESC", userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to list projects")
		return nil, err
	}
	defer rows.Close()

	projects := make([]*core.Project, 0)
	for rows.Next() {
		p := core.Project{UserID: userID}
		var created, updated int64
		if err := rows.Scan(&p.ID, &p.Name, &p.Thumbnail, &created, &updated); err != nil {
			return nil, err
		}
		p.CreatedAt, p.UpdatedAt = fromNanos(created), fromNanos(updated)
		projects = append(projects, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logrus.WithField("user_id", userID).Infof("Listed %d projects", len(projects))
	return projects, nil
}

func (s *sqliteStore) FetchProject(ctx context.Context, id string) (*core.Project, error) {
	log := logrus.WithField("project_id", id)
	p, err := fetchProject(ctx, s.db, id)
	if err != nil {
		if errors.Is(err, core.ErrProjectNotFound) {
			log.Warn("Project with specified ID not found")
		} else {
			log.WithError(err).Error("Failed to retrieve project")
		}
		return nil, err
	}
	log.Info("Project retrieved successfully")
	return p, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func fetchProject(ctx context.Context, q queryer, id string) (*core.Project, error) {
	p := core.Project{ID: id}
	var created, updated int64
	err := q.QueryRowContext(ctx,
		"SELECT user_id, name, content, thumbnail, created_at, updated_at FROM projects WHERE id = ?", id).
		Scan(&p.UserID, &p.Name, &p.Content, &p.Thumbnail, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: project with id %s", core.ErrProjectNotFound, id)
		}
		return nil, err
	}
	p.CreatedAt, p.UpdatedAt = fromNanos(created), fromNanos(updated)
	return &p, nil
}

func (s *sqliteStore) CreateProject(ctx context.Context, userID, name string) (*core.Project, error) {
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
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "project_id": p.ID})

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO projects (id, user_id, name, content, thumbnail, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		p.ID, p.UserID, p.Name, p.Content, p.Thumbnail, now.UnixNano(), now.UnixNano())
	if err != nil {
		log.WithError(err).Error("Failed to create project")
		return nil, err
	}
	log.Info("Project created successfully")
	return p, nil
}

func (s *sqliteStore) UpdateProject(ctx context.Context, id string, upd core.ProjectUpdate) (*core.Project, error) {
	log := logrus.WithField("project_id", id)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	p, err := fetchProject(ctx, tx, id)
	if err != nil {
		if errors.Is(err, core.ErrProjectNotFound) {
			log.Warn("Project not found for update")
		}
		return nil, err
	}
	upd.Apply(p)
	p.UpdatedAt = s.now()

	_, err = tx.ExecContext(ctx,
		"UPDATE projects SET name = ?, content = ?, thumbnail = ?, updated_at = ? WHERE id = ?",
		p.Name, p.Content, p.Thumbnail, p.UpdatedAt.UnixNano(), id)
	if err != nil {
		log.WithError(err).Error("Failed to update project")
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	log.WithField("data_length", len(p.Content)).Info("Project updated successfully")
	return p, nil
}

func (s *sqliteStore) DeleteProject(ctx context.Context, id string) error {
	log := logrus.WithField("project_id", id)
	res, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		log.WithError(err).Error("Failed to delete project")
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Warn("Project not found for deletion")
		return fmt.Errorf("%w: project with id %s", core.ErrProjectNotFound, id)
	}
	log.Info("Project deleted successfully")
	return nil
}

func (s *sqliteStore) ListAssets(ctx context.Context, userID string) ([]*core.Asset, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, url, name, size, type, created_at FROM assets WHERE user_id = ? ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assets := make([]*core.Asset, 0)
	for rows.Next() {
		a := core.Asset{UserID: userID}
		var created int64
		if err := rows.Scan(&a.ID, &a.URL, &a.Name, &a.Size, &a.Type, &created); err != nil {
			return nil, err
		}
		a.CreatedAt = fromNanos(created)
		assets = append(assets, &a)
	}
	return assets, rows.Err()
}

func (s *sqliteStore) CreateAsset(ctx context.Context, asset core.NewAsset) (*core.Asset, error) {
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
	log := logrus.WithFields(logrus.Fields{"user_id": a.UserID, "asset_id": a.ID})

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO assets (id, user_id, url, name, size, type, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		a.ID, a.UserID, a.URL, a.Name, a.Size, a.Type, a.CreatedAt.UnixNano())
	if err != nil {
		log.WithError(err).Error("Failed to create asset")
		return nil, err
	}
	log.Info("Asset created successfully")
	return a, nil
}

func (s *sqliteStore) DeleteAsset(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM assets WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		logrus.WithField("asset_id", id).Warn("Asset not found for deletion")
		return fmt.Errorf("%w: asset with id %s", core.ErrAssetNotFound, id)
	}
	logrus.WithField("asset_id", id).Info("Asset deleted successfully")
	return nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n)
}
