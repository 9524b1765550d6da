package filestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
)

// displayNameKey is the user metadata entry that carries a file's visible name.
// Object keys never change, so they serve as stable file ids.
const displayNameKey = "Display-Name"

// S3Store maps folders onto key prefixes of one bucket.
type S3Store struct {
	api    *minio.Client
	bucket string
	logger *slog.Logger
}

func NewS3Store(ctx context.Context, cfg common.StorageConfig, logger *slog.Logger) (*S3Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	ok, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !ok {
		return nil, common.NewNotFound("bucket", cfg.Bucket)
	}
	logger.Info("filestore.s3.connected", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	return &S3Store{api: client, bucket: cfg.Bucket, logger: logger}, nil
}

func folderPrefix(folderID string) string {
	p := strings.Trim(strings.TrimSpace(folderID), "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

// List returns the direct children of the folder prefix.
func (s *S3Store) List(ctx context.Context, folderID string) ([]entity.FileRef, error) {
	prefix := folderPrefix(folderID)
	opts := minio.ListObjectsOptions{Prefix: prefix, Recursive: false, WithMetadata: true}

	var out []entity.FileRef
	for obj := range s.api.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		if obj.Key == prefix || strings.HasSuffix(obj.Key, "/") {
			continue
		}
		info := obj
		// Only MinIO honours WithMetadata; other providers need a stat per object.
		if info.UserMetadata == nil {
			st, err := s.api.StatObject(ctx, s.bucket, obj.Key, minio.StatObjectOptions{})
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", obj.Key, err)
			}
			info = st
		}
		out = append(out, s.fileRef(info))
	}
	return out, nil
}

func (s *S3Store) fileRef(info minio.ObjectInfo) entity.FileRef {
	name := metaValue(info.UserMetadata, displayNameKey)
	if name == "" {
		name = path.Base(info.Key)
	}
	mt := info.ContentType
	if mt == "" || mt == "application/octet-stream" || mt == "binary/octet-stream" {
		if guess := constants.MimeForExt(path.Ext(name)); guess != "" {
			mt = guess
		}
	}
	return entity.FileRef{FileID: info.Key, Name: name, MimeType: mt}
}

func metaValue(meta map[string]string, key string) string {
	for k, v := range meta {
		if strings.EqualFold(k, key) || strings.EqualFold(k, "X-Amz-Meta-"+key) {
			return v
		}
	}
	return ""
}

// Rename rewrites the object's metadata in place with the new display name.
func (s *S3Store) Rename(ctx context.Context, fileID, newName string) error {
	st, err := s.api.StatObject(ctx, s.bucket, fileID, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return common.NewNotFound("file", fileID)
		}
		return fmt.Errorf("stat %s: %w", fileID, err)
	}
	meta := map[string]string{displayNameKey: newName}
	if st.ContentType != "" {
		meta["Content-Type"] = st.ContentType
	}
	_, err = s.api.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: fileID, UserMetadata: meta, ReplaceMetadata: true},
		minio.CopySrcOptions{Bucket: s.bucket, Object: fileID},
	)
	if err != nil {
		return fmt.Errorf("rename %s: %w", fileID, err)
	}
	s.logger.Debug("filestore.s3.rename", "file_id", fileID, "to", newName)
	return nil
}

func (s *S3Store) Download(ctx context.Context, fileID string) ([]byte, error) {
	obj, err := s.api.GetObject(ctx, s.bucket, fileID, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", fileID, err)
	}
	defer obj.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, obj); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, common.NewNotFound("file", fileID)
		}
		return nil, fmt.Errorf("read %s: %w", fileID, err)
	}
	return buf.Bytes(), nil
}

func (s *S3Store) UploadText(ctx context.Context, folderID, filename, text string) (string, error) {
	key := folderPrefix(folderID) + path.Base(filename)
	_, err := s.api.PutObject(ctx, s.bucket, key, strings.NewReader(text), int64(len(text)), minio.PutObjectOptions{
		ContentType:  "text/plain; charset=utf-8",
		UserMetadata: map[string]string{displayNameKey: filename},
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}
