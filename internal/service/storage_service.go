// Package service contains the business logic layer.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/hivehq/hive-api/internal/config"
	"github.com/hivehq/hive-api/internal/models"
)

// StorageService archives completed diagnostic runs to S3-compatible object
// storage (Tigris, MinIO, AWS).
type StorageService struct {
	client  *s3.Client
	bucket  string
	enabled bool
	logger  *slog.Logger
}

// NewStorageService creates a storage service. When no bucket is configured
// the service runs disabled and every write becomes a no-op.
func NewStorageService(cfg *appconfig.Config, logger *slog.Logger) (*StorageService, error) {
	if !cfg.StorageEnabled {
		logger.Info("snapshot storage disabled - no bucket configured")
		return &StorageService{enabled: false, logger: logger}, nil
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.StorageRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.StorageEndpoint)
		o.UsePathStyle = true // required for some S3-compatible services
	})

	logger.Info("snapshot storage initialized",
		"bucket", cfg.StorageBucket,
		"endpoint", cfg.StorageEndpoint,
	)

	return &StorageService{
		client:  client,
		bucket:  cfg.StorageBucket,
		enabled: true,
		logger:  logger,
	}, nil
}

// IsEnabled returns whether storage is configured and available.
func (s *StorageService) IsEnabled() bool {
	return s.enabled
}

// RunSnapshot is the archived form of a completed diagnostic run.
type RunSnapshot struct {
	RunID       string            `json:"run_id"`
	CompanyID   string            `json:"company_id"`
	Score       float64           `json:"score"`
	Findings    []*models.Finding `json:"findings"`
	Details     json.RawMessage   `json:"details,omitempty"`
	CompletedAt time.Time         `json:"completed_at"`
}

func snapshotKey(runID string) string {
	return fmt.Sprintf("snapshots/%s.json", runID)
}

// StoreSnapshot archives one run snapshot as a single JSON object.
func (s *StorageService) StoreSnapshot(ctx context.Context, snapshot *RunSnapshot) error {
	if !s.enabled {
		return nil
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	key := snapshotKey(snapshot.RunID)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}

	s.logger.Info("stored run snapshot",
		"run_id", snapshot.RunID,
		"key", key,
		"size_bytes", len(data),
	)
	return nil
}

// GetSnapshot retrieves an archived run snapshot.
func (s *StorageService) GetSnapshot(ctx context.Context, runID string) (*RunSnapshot, error) {
	if !s.enabled {
		return nil, fmt.Errorf("storage is not enabled")
	}

	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(snapshotKey(runID)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	defer func() { _ = output.Body.Close() }()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snapshot RunSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

// SnapshotPresignedURL returns a time-limited download URL for a snapshot.
func (s *StorageService) SnapshotPresignedURL(ctx context.Context, runID string, expiry time.Duration) (string, error) {
	if !s.enabled {
		return "", fmt.Errorf("storage is not enabled")
	}
	if expiry == 0 {
		expiry = 1 * time.Hour
	}

	presignClient := s3.NewPresignClient(s.client)
	presigned, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(snapshotKey(runID)),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return presigned.URL, nil
}

// DeleteSnapshot removes an archived snapshot.
func (s *StorageService) DeleteSnapshot(ctx context.Context, runID string) error {
	if !s.enabled {
		return nil
	}

	key := snapshotKey(runID)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}

	s.logger.Info("deleted run snapshot", "run_id", runID, "key", key)
	return nil
}

// DeleteOldSnapshots deletes snapshots older than maxAge and returns the
// number removed.
func (s *StorageService) DeleteOldSnapshots(ctx context.Context, maxAge time.Duration) (int, error) {
	if !s.enabled {
		return 0, nil
	}

	cutoff := time.Now().Add(-maxAge)
	deleted := 0

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String("snapshots/"),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("failed to list snapshots: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.LastModified != nil && obj.LastModified.Before(cutoff) {
				_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
					Bucket: aws.String(s.bucket),
					Key:    obj.Key,
				})
				if err != nil {
					s.logger.Warn("failed to delete old snapshot", "key", *obj.Key, "error", err)
					continue
				}
				deleted++
			}
		}
	}

	s.logger.Info("snapshot cleanup completed", "deleted_count", deleted, "max_age", maxAge.String())
	return deleted, nil
}
