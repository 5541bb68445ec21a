package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/RizleneBERRAG/PIXELCRM-IA/config"
	"github.com/RizleneBERRAG/PIXELCRM-IA/model"
	"github.com/RizleneBERRAG/PIXELCRM-IA/rules"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ExportService stores the uploaded PDFs and publishes the finished audit
// folder (PDFs + report.json) under a status/delegate/client object layout.
type ExportService struct {
	client *minio.Client
	bucket string
	config *config.MinioConfig
}

func NewExportService(cfg *config.MinioConfig) (*ExportService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &ExportService{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *ExportService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// UploadFile uploads a file under the given object name
func (s *ExportService) UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}

	return nil
}

// GetPresignedURL generates a presigned URL for the object with expiration
func (s *ExportService) GetPresignedURL(ctx context.Context, objectName string) (string, error) {
	expiry := time.Duration(s.config.ExpireDays) * 24 * time.Hour
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return u.String(), nil
}

// ExportAudit publishes the audit folder:
//
//	<Conforme|Non Conformes>/<delegataire>/<IEN - CLIENT>/<pdfs…>
//	<Conforme|Non Conformes>/<delegataire>/<IEN - CLIENT>/report.json
//
// and returns a presigned URL to the report.
func (s *ExportService) ExportAudit(ctx context.Context, dossier *model.Dossier, result *model.AuditResult, files map[string][]byte) (string, error) {
	statusFolder := "Non Conformes"
	if result.Status == rules.StatusCompliant {
		statusFolder = "Conforme"
	}

	prefix := fmt.Sprintf("%s/%s/%s", statusFolder, dossier.Delegataire, dossier.Label())

	for _, name := range dossier.Files {
		content, ok := files[name]
		if !ok {
			continue
		}
		objectName := fmt.Sprintf("%s/%s", prefix, name)
		if err := s.UploadFile(ctx, objectName, bytes.NewReader(content), int64(len(content)), "application/pdf"); err != nil {
			return "", fmt.Errorf("failed to export %s: %w", name, err)
		}
	}

	report, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	reportObject := prefix + "/report.json"
	if err := s.UploadFile(ctx, reportObject, bytes.NewReader(report), int64(len(report)), "application/json"); err != nil {
		return "", fmt.Errorf("failed to export report: %w", err)
	}

	return s.GetPresignedURL(ctx, reportObject)
}
