// Package recording resolves replay artifacts of finished browser sessions.
// The managed browser service records sessions into S3; this package lists
// the objects a session produced and turns them into presigned links.
package recording

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/kmalloy/sitejudge/internal/config"
)

const defaultPresignExpiry = 15 * time.Minute

// objectLister is the slice of the S3 API used to find session artifacts.
type objectLister interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// objectPresigner generates presigned GET URLs for the found artifacts.
type objectPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Locator finds a session's replay objects under {prefix}/{session name}/
// and presigns them for viewing.
type Locator struct {
	lister    objectLister
	presigner objectPresigner
	bucket    string
	prefix    string
	expiry    time.Duration
	logger    *zap.Logger
}

// NewLocator builds a locator against S3 using the default credential chain.
func NewLocator(ctx context.Context, cfg config.RecordingConfig, logger *zap.Logger) (*Locator, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("recording bucket cannot be empty")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("recording region cannot be empty")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)

	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = defaultPresignExpiry
	}
	return &Locator{
		lister:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		expiry:    expiry,
		logger:    logger.Named("recording"),
	}, nil
}

// Locate lists the replay objects the named session produced and returns a
// presigned URL per object. A session with no recordings yields an empty
// slice, not an error.
func (l *Locator) Locate(ctx context.Context, sessionName string) ([]string, error) {
	if sessionName == "" {
		return nil, fmt.Errorf("session name cannot be empty")
	}
	keyPrefix := path.Join(l.prefix, sessionName) + "/"

	var links []string
	var totalBytes int64
	var continuation *string
	for {
		out, err := l.lister.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(l.bucket),
			Prefix:            aws.String(keyPrefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list session recordings: %w", err)
		}

		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			// Skip the folder marker some recorders write.
			if key == keyPrefix {
				continue
			}
			totalBytes += aws.ToInt64(obj.Size)
			presigned, err := l.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(l.bucket),
				Key:    aws.String(key),
			}, func(opts *s3.PresignOptions) {
				opts.Expires = l.expiry
			})
			if err != nil {
				return nil, fmt.Errorf("failed to presign %s: %w", key, err)
			}
			links = append(links, presigned.URL)
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		continuation = out.NextContinuationToken
	}

	l.logger.Info("located session recordings",
		zap.String("session", sessionName),
		zap.Int("objects", len(links)),
		zap.Int64("total_bytes", totalBytes))
	return links, nil
}
