package services

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "clipper_app_echo/internal/config"
)

// ClipURLTTL is how long a playback link stays valid. The Redis cache for
// these links must expire sooner than this.
const ClipURLTTL = time.Hour

// ObjectURLSigner issues time-boxed playback URLs for stored objects.
type ObjectURLSigner interface {
	PresignClipURL(ctx context.Context, s3Key string) (string, error)
}

// StorageService signs S3 GET URLs for clip playback. Clips are never served
// through this process; the client streams straight from object storage.
type StorageService struct {
	presigner *s3.PresignClient
	bucket    string
}

func NewStorageService(ctx context.Context, cfg appconfig.Config) (*StorageService, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg)
	return &StorageService{
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.S3BucketName,
	}, nil
}

// PresignClipURL returns a playable URL for the stored object, valid for
// ClipURLTTL.
func (s *StorageService) PresignClipURL(ctx context.Context, s3Key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s3Key),
	}, s3.WithPresignExpires(ClipURLTTL))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
