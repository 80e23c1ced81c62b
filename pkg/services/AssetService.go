package services

import (
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/adampresley/adamgokit/s3"
	"github.com/adampresley/adamgokit/s3/createbucketoptions"
	"github.com/adampresley/adamgokit/s3/listoptions"
	"github.com/adampresley/adamgokit/slices"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

/*
AssetServicer is the binary storage collaborator. Workflow code only asks it
for URLs and deletions; the preview builder also reads and writes objects.
*/
type AssetServicer interface {
	Delete(keys []string) error
	EnsureBucket() error
	Get(key string) (io.ReadCloser, error)
	ListImages(prefix string) ([]Asset, error)
	Put(key string, body io.Reader) error
	Stat(key string) (*Asset, error)
	URL(key string) (string, error)
}

type Asset struct {
	Key          string
	LastModified time.Time
}

type AssetServiceConfig struct {
	Bucket   string
	Region   string
	S3Client s3.S3Client
}

type AssetService struct {
	bucket   string
	region   string
	s3Client s3.S3Client
}

var imageExtensions = []string{".jpg", ".jpeg"}

func NewAssetService(config AssetServiceConfig) AssetService {
	return AssetService{
		bucket:   config.Bucket,
		region:   config.Region,
		s3Client: config.S3Client,
	}
}

func (s AssetService) Delete(keys []string) error {
	nonEmpty := []string{}

	for _, key := range keys {
		if strings.TrimSpace(key) != "" {
			nonEmpty = append(nonEmpty, key)
		}
	}

	if len(nonEmpty) == 0 {
		return nil
	}

	if _, err := s.s3Client.Delete(s.bucket, nonEmpty); err != nil {
		return fmt.Errorf("error deleting %d objects from bucket '%s': %w", len(nonEmpty), s.bucket, err)
	}

	return nil
}

func (s AssetService) EnsureBucket() error {
	var (
		err    error
		exists bool
	)

	if exists, err = s.s3Client.BucketExists(s.bucket); err != nil {
		return fmt.Errorf("error ensuring bucket '%s' exists: %w", s.bucket, err)
	}

	if exists {
		return nil
	}

	slog.Info("creating bucket", "bucketName", s.bucket)

	if err = s.s3Client.CreateBucket(s.bucket, createbucketoptions.WithRegion(s.region)); err != nil {
		return fmt.Errorf("error creating bucket '%s': %w", s.bucket, err)
	}

	return nil
}

func (s AssetService) Get(key string) (io.ReadCloser, error) {
	object, err := s.s3Client.Get(s.bucket, key)

	if err != nil {
		return nil, fmt.Errorf("error retrieving object %s: %w", key, err)
	}

	return object.Body, nil
}

func (s AssetService) ListImages(prefix string) ([]Asset, error) {
	response, err := s.s3Client.List(
		s.bucket,
		prefix,
		listoptions.WithGetAll(),
		listoptions.WithFilter(func(obj types.Object) bool {
			ext := strings.ToLower(filepath.Ext(aws.ToString(obj.Key)))
			return slices.IsInSlice(ext, imageExtensions)
		}),
	)

	if err != nil {
		return nil, fmt.Errorf("error listing images under '%s': %w", prefix, err)
	}

	return slices.Map(response.Objects, func(input s3.Object, index int) Asset {
		return Asset{Key: input.Key, LastModified: input.LastModified}
	}), nil
}

func (s AssetService) Put(key string, body io.Reader) error {
	if _, err := s.s3Client.Put(s.bucket, key, body); err != nil {
		return fmt.Errorf("error uploading object %s: %w", key, err)
	}

	return nil
}

/*
Stat returns nil without an error when the object does not exist.
*/
func (s AssetService) Stat(key string) (*Asset, error) {
	stat, err := s.s3Client.StatObject(s.bucket, key)

	if err != nil {
		return nil, fmt.Errorf("error retrieving metadata for %s: %w", key, err)
	}

	if stat == nil {
		return nil, nil
	}

	return &Asset{Key: key, LastModified: stat.LastModified}, nil
}

func (s AssetService) URL(key string) (string, error) {
	if key == "" {
		return "", nil
	}

	return s.s3Client.GetUrl(s.bucket, key)
}

/*
PreviewKey is where the preview of originalKey lives: a "thumbnails" folder
next to the folder holding the original.
*/
func PreviewKey(originalKey string) string {
	dir := path.Dir(path.Dir(originalKey))
	return path.Join(dir, "thumbnails", path.Base(originalKey))
}
