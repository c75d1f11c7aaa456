package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/workspacex/workspacex/internal/artifact"
)

// ObjectConfig holds the connection settings for an S3-compatible backend.
type ObjectConfig struct {
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
	Bucket          string `yaml:"bucket" json:"bucket"`
	Prefix          string `yaml:"prefix" json:"prefix"`
	UseSSL          bool   `yaml:"use_ssl" json:"use_ssl"`
}

// Validate fails eagerly on missing required settings.
func (c ObjectConfig) Validate() error {
	if c.Endpoint == "" {
		return errors.New("repository: object storage endpoint is required")
	}
	if c.Bucket == "" {
		return errors.New("repository: object storage bucket is required")
	}
	if c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return errors.New("repository: object storage credentials are required")
	}
	return nil
}

// objectStore is the narrow slice of the object-store API the repository
// uses. minioStore implements it against a real endpoint; tests substitute
// an in-memory implementation to exercise failure paths.
type objectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns (nil, nil) when the object is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
	// List returns every key under the prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	Copy(ctx context.Context, srcKey, dstKey string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// minioStore adapts a minio client to the objectStore interface.
type minioStore struct {
	client *minio.Client
	bucket string
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
}

func (s *minioStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	return err
}

func (s *minioStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (s *minioStore) Remove(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

func (s *minioStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			if isNoSuchKey(obj.Err) {
				return nil, nil
			}
			return nil, obj.Err
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func (s *minioStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: s.bucket, Object: srcKey})
	return err
}

func (s *minioStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNoSuchKey(err) {
		return false, nil
	}
	return false, err
}

var _ objectStore = (*minioStore)(nil)

// ObjectRepository stores artifacts and chunks in an S3-compatible object
// store. It implements the same contract and path grammar as the local
// backend, so data written by one can be read by the other.
type ObjectRepository struct {
	store  objectStore
	prefix string
	logger *slog.Logger
}

// ObjectOption configures an ObjectRepository.
type ObjectOption func(*ObjectRepository)

// WithObjectLogger sets the logger used by the repository.
func WithObjectLogger(l *slog.Logger) ObjectOption {
	return func(r *ObjectRepository) { r.logger = l }
}

// NewObject creates an object-storage repository. Configuration errors are
// fatal at construction; no network call is made until the first operation.
func NewObject(cfg ObjectConfig, opts ...ObjectOption) (*ObjectRepository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("repository: create object storage client: %w", err)
	}
	r := &ObjectRepository{
		store:  &minioStore{client: client, bucket: cfg.Bucket},
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// key converts a grammar path to an object key under the configured prefix.
func (r *ObjectRepository) key(rel string) string {
	if r.prefix == "" {
		return rel
	}
	return path.Join(r.prefix, rel)
}

// getObject reads a whole object, returning (nil, nil) when it is absent.
func (r *ObjectRepository) getObject(ctx context.Context, rel string) ([]byte, error) {
	data, err := r.store.Get(ctx, r.key(rel))
	if err != nil {
		return nil, fmt.Errorf("repository: get object %s: %w", rel, err)
	}
	return data, nil
}

func (r *ObjectRepository) putObject(ctx context.Context, rel string, data []byte) error {
	if err := r.store.Put(ctx, r.key(rel), data, guessContentType(rel)); err != nil {
		return fmt.Errorf("repository: put object %s: %w", rel, err)
	}
	return nil
}

func (r *ObjectRepository) putJSON(ctx context.Context, rel string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("repository: encode %s: %w", rel, err)
	}
	return r.putObject(ctx, rel, raw)
}

func (r *ObjectRepository) StoreIndex(ctx context.Context, data map[string]any) error {
	index, err := r.LoadIndex(ctx)
	if err != nil {
		return err
	}
	if index == nil {
		index = make(map[string]any)
	}
	index["workspace"] = data

	// Object stores have no rename; the previous index is copied into the
	// versions prefix. Last writer wins on a race.
	ok, err := r.store.Exists(ctx, r.key(indexFileName))
	if err != nil {
		return fmt.Errorf("repository: stat index: %w", err)
	}
	if ok {
		histKey := r.key(indexHistoryPath(time.Now().Unix()))
		if err := r.store.Copy(ctx, r.key(indexFileName), histKey); err != nil {
			return fmt.Errorf("repository: version previous index: %w", err)
		}
	}
	return r.putJSON(ctx, indexFileName, index)
}

func (r *ObjectRepository) LoadIndex(ctx context.Context) (map[string]any, error) {
	raw, err := r.getObject(ctx, indexFileName)
	if err != nil || raw == nil {
		return nil, err
	}
	var index map[string]any
	if err := json.Unmarshal(raw, &index); err != nil {
		return nil, fmt.Errorf("repository: decode index: %w", err)
	}
	return index, nil
}

func (r *ObjectRepository) StoreArtifact(ctx context.Context, a *artifact.Artifact, saveSublistContent bool) error {
	if saveSublistContent {
		for _, sub := range a.Sublist {
			if sub.Content == "" {
				continue
			}
			p := subArtifactContentPath(a.ID, sub.ID, contentExt(sub.Type))
			if err := r.putObject(ctx, p, []byte(sub.Content)); err != nil {
				return fmt.Errorf("repository: store sub-artifact content %s: %w", sub.ID, err)
			}
		}
	}
	doc := descriptorForStorage(a, saveSublistContent)
	r.logger.Debug("storing artifact",
		slog.String("artifact_id", a.ID),
		slog.Int("sublist", len(a.Sublist)))
	return r.putJSON(ctx, artifactIndexPath(a.ID), doc)
}

func (r *ObjectRepository) RetrieveArtifact(ctx context.Context, artifactID string) (*artifact.Artifact, error) {
	raw, err := r.getObject(ctx, artifactIndexPath(artifactID))
	if err != nil || raw == nil {
		return nil, err
	}
	var a artifact.Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("repository: decode artifact %s: %w", artifactID, err)
	}
	return &a, nil
}

// StoreArtifactChunks replaces the chunk prefix: existing chunk objects are
// removed, then the new set is written. Object stores offer no directory
// rename, so a failure mid-write removes the objects written so far rather
// than leaving a partial set. Callers must serialize rewrites per artifact.
func (r *ObjectRepository) StoreArtifactChunks(ctx context.Context, a *artifact.Artifact, chunks []*artifact.Chunk) error {
	dir := chunkDir(a.ID, a.ParentID)
	old, err := r.listKeys(ctx, dir)
	if err != nil {
		return err
	}
	for _, key := range old {
		if err := r.store.Remove(ctx, key); err != nil {
			return fmt.Errorf("repository: remove previous chunk object %s: %w", key, err)
		}
	}
	var written []string
	cleanup := func(err error) error {
		for _, key := range written {
			_ = r.store.Remove(context.WithoutCancel(ctx), key)
		}
		return err
	}
	for _, c := range chunks {
		raw, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return cleanup(fmt.Errorf("repository: encode chunk %s: %w", c.ID, err))
		}
		rel := path.Join(dir, c.FileName())
		if err := r.putObject(ctx, rel, raw); err != nil {
			return cleanup(err)
		}
		written = append(written, r.key(rel))
	}
	r.logger.Debug("stored chunk set",
		slog.String("artifact_id", a.ID),
		slog.Int("chunks", len(chunks)))
	return nil
}

// listKeys returns the object keys under a grammar directory.
func (r *ObjectRepository) listKeys(ctx context.Context, dir string) ([]string, error) {
	keys, err := r.store.List(ctx, r.key(dir)+"/")
	if err != nil {
		return nil, fmt.Errorf("repository: list %s: %w", dir, err)
	}
	return keys, nil
}

func (r *ObjectRepository) GetChunks(ctx context.Context, artifactID, parentID string) ([]*artifact.Chunk, error) {
	keys, err := r.listKeys(ctx, chunkDir(artifactID, parentID))
	if err != nil {
		return nil, err
	}
	var chunks []*artifact.Chunk
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		raw, err := r.store.Get(ctx, key)
		if err != nil {
			r.logger.Warn("skipping unreadable chunk object",
				slog.String("key", key), slog.Any("error", err))
			continue
		}
		if raw == nil {
			continue
		}
		var c artifact.Chunk
		if err := json.Unmarshal(raw, &c); err != nil {
			r.logger.Warn("skipping malformed chunk object",
				slog.String("key", key), slog.Any("error", err))
			continue
		}
		chunks = append(chunks, &c)
	}
	return chunks, nil
}

func (r *ObjectRepository) GetChunkWindow(ctx context.Context, artifactID, parentID string, chunkIndex, preN, nextN int) (*ChunkWindow, error) {
	fetch := func(idx int) (*artifact.Chunk, error) {
		raw, err := r.getObject(ctx, chunkPath(artifactID, parentID, idx))
		if err != nil || raw == nil {
			return nil, err
		}
		var c artifact.Chunk
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("repository: decode chunk %d of %s: %w", idx, artifactID, err)
		}
		return &c, nil
	}
	return buildWindow(fetch, chunkIndex, preN, nextN)
}

func (r *ObjectRepository) GetSubArtifactContent(ctx context.Context, artifactID, parentID string) (string, error) {
	keys, err := r.listKeys(ctx, subArtifactDir(parentID, artifactID))
	if err != nil {
		return "", err
	}
	originPrefix := r.key(path.Join(subArtifactDir(parentID, artifactID), originBaseName+"."))
	for _, key := range keys {
		if !strings.HasPrefix(key, originPrefix) {
			continue
		}
		raw, err := r.store.Get(ctx, key)
		if err != nil {
			return "", fmt.Errorf("repository: read sub-artifact content %s: %w", artifactID, err)
		}
		return string(raw), nil
	}
	return "", nil
}

func (r *ObjectRepository) StoreAttachmentFile(ctx context.Context, artifactID, fileName string, src io.Reader) error {
	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("repository: read attachment source %s: %w", fileName, err)
	}
	return r.putObject(ctx, attachmentPath(artifactID, fileName), data)
}

func (r *ObjectRepository) GetAttachmentFile(ctx context.Context, artifactID, fileName string) ([]byte, error) {
	return r.getObject(ctx, attachmentPath(artifactID, fileName))
}

var _ Repository = (*ObjectRepository)(nil)
