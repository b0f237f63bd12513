// Package backup snapshots a user's server-side data to S3-compatible
// object storage. A snapshot is taken right before a destructive reset so
// the overwritten data stays recoverable.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	sc "github.com/example/cardbox/internal/server/config"
	"github.com/example/cardbox/internal/models"
)

// Snapshot is the JSON document written to object storage.
type Snapshot struct {
	UserID  string        `json:"userId"`
	TakenAt int64         `json:"takenAt"`
	Cards   []models.Card `json:"cards"`
	Tags    []models.Tag  `json:"tags"`
	Links   []models.Link `json:"links"`
}

// objectPutter is the slice of the S3 client the service uses; tests
// substitute a stub.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Service struct {
	config *sc.Config
	client objectPutter
}

func NewService(config *sc.Config) *Service {
	return &Service{config: config}
}

func (s *Service) getClient() (objectPutter, error) {
	if s.client != nil {
		return s.client, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	s.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})
	return s.client, nil
}

// storageKey builds the object key for a user snapshot.
func storageKey(userID string, takenAt time.Time) string {
	return fmt.Sprintf("backups/%s/%d.json", userID, takenAt.UnixMilli())
}

// Store uploads the snapshot and returns the object key it was written
// under.
func (s *Service) Store(ctx context.Context, snapshot *Snapshot) (string, error) {
	client, err := s.getClient()
	if err != nil {
		return "", fmt.Errorf("s3 client init error: %w", err)
	}

	if snapshot.TakenAt == 0 {
		snapshot.TakenAt = time.Now().UnixMilli()
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	bucket := s.config.S3Bucket
	key := storageKey(snapshot.UserID, time.UnixMilli(snapshot.TakenAt))

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot: %w", err)
	}
	return key, nil
}
