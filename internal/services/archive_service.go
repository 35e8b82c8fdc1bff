package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"afyapay/utils"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const callbackBucket = "afyapay-callbacks"

// ArchiveService stores raw gateway callbacks that could not be matched to
// a local request, so operators can replay or inspect them later.
type ArchiveService interface {
	ArchiveCallback(ctx context.Context, checkoutRequestID string, payload []byte) (string, error)
}

type minioArchiveService struct {
	client *minio.Client
	logger *zap.Logger
}

func NewMinioArchiveService(endpoint, accessKey, secretKey string, useSSL bool) (ArchiveService, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	svc := &minioArchiveService{client: client, logger: utils.GetLogger()}
	if err := svc.ensureBucketExists(context.Background()); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *minioArchiveService) ensureBucketExists(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, callbackBucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, callbackBucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		s.logger.Info("created callback archive bucket", zap.String("bucket", callbackBucket))
	}
	return nil
}

func (s *minioArchiveService) ArchiveCallback(ctx context.Context, checkoutRequestID string, payload []byte) (string, error) {
	if checkoutRequestID == "" {
		checkoutRequestID = fmt.Sprintf("unknown-%d", time.Now().UnixNano())
	}
	objectName := fmt.Sprintf("callbacks/%s/%s.json", time.Now().UTC().Format("2006/01/02"), checkoutRequestID)

	_, err := s.client.PutObject(ctx, callbackBucket, objectName, bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("failed to archive callback: %w", err)
	}

	s.logger.Info("archived gateway callback",
		zap.String("checkout_request_id", checkoutRequestID),
		zap.String("object", objectName))
	return objectName, nil
}
