package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"nocap-editor/core"
	"nocap-editor/document"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const (
	projectPrefix = "projects/"
	assetPrefix   = "assets/"
)

// s3API is the subset of *s3.Client the store uses.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type s3Store struct {
	s3Client s3API
	bucket   string
	now      func() time.Time
}

// NewStore creates an S3-backed store using the default AWS configuration
// chain.
func NewStore(ctx context.Context, bucketName string) (*s3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return newStore(s3.NewFromConfig(cfg), bucketName), nil
}

func newStore(client s3API, bucket string) *s3Store {
	return &s3Store{s3Client: client, bucket: bucket, now: time.Now}
}

// objectKey maps an entity id to its key. Only ULIDs are accepted, so an id
// can never address another prefix.
func objectKey(prefix, id string) (string, bool) {
	if _, err := ulid.ParseStrict(id); err != nil {
		return "", false
	}
	return prefix + id + ".json", true
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

func (s *s3Store) getJSON(ctx context.Context, key string, v any) error {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return json.Unmarshal(data, v)
}

func (s *s3Store) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	return err
}

// listJSON calls each with the body of every object under prefix.
func (s *s3Store) listJSON(ctx context.Context, prefix string, each func(data []byte) error) error {
	log := logrus.WithField("prefix", prefix)
	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, object := range page.Contents {
			resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    object.Key,
			})
			if err != nil {
				log.WithError(err).Warnf("Failed to get object %s, skipping", aws.ToString(object.Key))
				continue
			}
			data, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				log.WithError(err).Warnf("Failed to read object %s, skipping", aws.ToString(object.Key))
				continue
			}
			if err := each(data); err != nil {
				log.WithError(err).Warnf("Failed to unmarshal object %s, skipping", aws.ToString(object.Key))
			}
		}
	}
	return nil
}

func (s *s3Store) ListProjects(ctx context.Context, userID string) ([]*core.Project, error) {
	projects := make([]*core.Project, 0)
	err := s.listJSON(ctx, projectPrefix, func(data []byte) error {
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
		return nil, err
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

func (s *s3Store) FetchProject(ctx context.Context, id string) (*core.Project, error) {
	notFound := fmt.Errorf("%w: project with id %s", core.ErrProjectNotFound, id)
	log := logrus.WithField("project_id", id)
	key, ok := objectKey(projectPrefix, id)
	if !ok {
		return nil, notFound
	}

	var p core.Project
	if err := s.getJSON(ctx, key, &p); err != nil {
		if isNotFound(err) {
			log.Warn("Project object not found")
			return nil, notFound
		}
		log.WithError(err).Error("Failed to get project")
		return nil, fmt.Errorf("failed to get project %s: %w", id, err)
	}
	log.Info("Project retrieved successfully")
	return &p, nil
}

func (s *s3Store) CreateProject(ctx context.Context, userID, name string) (*core.Project, error) {
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
	key, _ := objectKey(projectPrefix, p.ID)
	if err := s.putJSON(ctx, key, p); err != nil {
		return nil, fmt.Errorf("failed to save project %s: %w", p.ID, err)
	}
	logrus.WithFields(logrus.Fields{"user_id": userID, "project_id": p.ID}).Info("Project created successfully")
	return p, nil
}

func (s *s3Store) UpdateProject(ctx context.Context, id string, upd core.ProjectUpdate) (*core.Project, error) {
	p, err := s.FetchProject(ctx, id)
	if err != nil {
		return nil, err
	}
	upd.Apply(p)
	p.UpdatedAt = s.now()

	key, _ := objectKey(projectPrefix, id)
	if err := s.putJSON(ctx, key, p); err != nil {
		return nil, fmt.Errorf("failed to save project %s: %w", id, err)
	}
	logrus.WithFields(logrus.Fields{"project_id": id, "data_length": len(p.Content)}).Info("Project updated successfully")
	return p, nil
}

func (s *s3Store) DeleteProject(ctx context.Context, id string) error {
	return s.deleteObject(ctx, projectPrefix, id, fmt.Errorf("%w: project with id %s", core.ErrProjectNotFound, id))
}

func (s *s3Store) deleteObject(ctx context.Context, prefix, id string, notFound error) error {
	key, ok := objectKey(prefix, id)
	if !ok {
		return notFound
	}
	_, err := s.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return notFound
		}
		return fmt.Errorf("failed to stat %s: %w", key, err)
	}
	_, err = s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	logrus.WithField("key", key).Info("Object deleted successfully")
	return nil
}

func (s *s3Store) ListAssets(ctx context.Context, userID string) ([]*core.Asset, error) {
	assets := make([]*core.Asset, 0)
	err := s.listJSON(ctx, assetPrefix, func(data []byte) error {
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

func (s *s3Store) CreateAsset(ctx context.Context, asset core.NewAsset) (*core.Asset, error) {
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
	key, _ := objectKey(assetPrefix, a.ID)
	if err := s.putJSON(ctx, key, a); err != nil {
		return nil, fmt.Errorf("failed to save asset %s: %w", a.ID, err)
	}
	logrus.WithFields(logrus.Fields{"user_id": a.UserID, "asset_id": a.ID}).Info("Asset created successfully")
	return a, nil
}

func (s *s3Store) DeleteAsset(ctx context.Context, id string) error {
	return s.deleteObject(ctx, assetPrefix, id, fmt.Errorf("%w: asset with id %s", core.ErrAssetNotFound, id))
}
