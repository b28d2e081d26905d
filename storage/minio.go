package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"showmerge/config"
	"showmerge/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectInfo 文件信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
	ETag         string
}

// Store is the remote asset store backed by a MinIO bucket.
type Store struct {
	client        *minio.Client
	bucketName    string
	region        string
	publicURL     string
	presignExpiry time.Duration
}

// NewStore 创建 MinIO 客户端并确认存储桶存在
func NewStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	s := &Store{
		client:        client,
		bucketName:    cfg.MinioBucket,
		region:        cfg.MinioRegion,
		publicURL:     strings.TrimRight(cfg.MinioPublicURL, "/"),
		presignExpiry: cfg.PresignedExpiry,
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶失败: %w", err)
	}
	if exists {
		logger.Debug("bucket exists", logger.String("bucket", s.bucketName))
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("创建存储桶失败: %w", err)
	}
	logger.Info("bucket created", logger.String("bucket", s.bucketName))
	return nil
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string {
	return s.bucketName
}

// PublicURL returns the publicly resolvable URL of an object.
func (s *Store) PublicURL(objectName string) string {
	return ObjectURL(s.publicURL, s.bucketName, objectName)
}

// ObjectURL joins a base URL, bucket and object name, escaping each path element.
func ObjectURL(base, bucket, objectName string) string {
	parts := strings.Split(objectName, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), url.PathEscape(bucket), strings.Join(parts, "/"))
}

// PutFile uploads a local file and returns its public URL.
func (s *Store) PutFile(ctx context.Context, objectName, localPath, contentType string) (string, error) {
	info, err := s.client.FPutObject(ctx, s.bucketName, objectName, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("上传文件 %s 失败: %w", objectName, err)
	}
	logger.Info("object uploaded",
		logger.String("object", objectName),
		logger.Int64("size", info.Size))
	return s.PublicURL(objectName), nil
}

// PutBytes uploads an in-memory payload and returns its public URL.
func (s *Store) PutBytes(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucketName, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("上传对象 %s 失败: %w", objectName, err)
	}
	return s.PublicURL(objectName), nil
}

// PresignedURL returns a time-limited GET URL for an object.
func (s *Store) PresignedURL(ctx context.Context, objectName string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, objectName, s.presignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("生成预签名链接失败 %s: %w", objectName, err)
	}
	return u.String(), nil
}

// List returns every object under prefix.
func (s *Store) List(ctx context.Context, prefix string, recursive bool) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	objectCh := s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: recursive,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("列出对象时出错: %w", object.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
			ContentType:  object.ContentType,
			ETag:         object.ETag,
		})
	}
	return objects, nil
}

// ListMedia lists audio and video objects in folder, sorted by key
// ascending and capped at maxResults.
func (s *Store) ListMedia(ctx context.Context, folder string, maxResults int) ([]ObjectInfo, error) {
	objects, err := s.List(ctx, FolderPrefix(folder), true)
	if err != nil {
		return nil, err
	}
	return SelectMedia(objects, maxResults), nil
}

// FolderPrefix normalises a folder name into a listing prefix.
func FolderPrefix(folder string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return ""
	}
	return folder + "/"
}

// SelectMedia keeps audio/video objects, sorts them by key and applies the cap.
func SelectMedia(objects []ObjectInfo, maxResults int) []ObjectInfo {
	var media []ObjectInfo
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		kind := MediaType(obj.ContentType, obj.Key)
		if kind == "audio" || kind == "video" {
			media = append(media, obj)
		}
	}
	sort.Slice(media, func(i, j int) bool { return media[i].Key < media[j].Key })
	if maxResults > 0 && len(media) > maxResults {
		media = media[:maxResults]
	}
	return media
}

// MediaType returns the broad media class of an object, preferring its
// content type and falling back to the file extension.
func MediaType(contentType, key string) string {
	if contentType != "" {
		major := strings.ToLower(strings.SplitN(contentType, "/", 2)[0])
		switch major {
		case "audio", "video", "image":
			return major
		}
	}
	return inferContentType(key)
}

// RemovePrefix deletes every object under prefix and returns how many were removed.
func (s *Store) RemovePrefix(ctx context.Context, prefix string) (int, error) {
	if strings.Trim(prefix, "/") == "" {
		return 0, fmt.Errorf("refusing to delete the bucket root")
	}
	objects, err := s.List(ctx, prefix, true)
	if err != nil {
		return 0, err
	}
	if len(objects) == 0 {
		return 0, nil
	}

	objectsCh := make(chan minio.ObjectInfo, len(objects))
	go func() {
		defer close(objectsCh)
		for _, obj := range objects {
			objectsCh <- minio.ObjectInfo{Key: obj.Key}
		}
	}()

	removed := len(objects)
	var firstErr error
	for rmErr := range s.client.RemoveObjects(ctx, s.bucketName, objectsCh, minio.RemoveObjectsOptions{}) {
		if rmErr.Err != nil {
			removed--
			if firstErr == nil {
				firstErr = fmt.Errorf("删除对象 %s 失败: %w", rmErr.ObjectName, rmErr.Err)
			}
		}
	}
	return removed, firstErr
}

// Remove deletes a single object.
func (s *Store) Remove(ctx context.Context, objectName string) error {
	if err := s.client.RemoveObject(ctx, s.bucketName, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除对象 %s 失败: %w", objectName, err)
	}
	return nil
}
