package profiles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
)

// keyPrefix namespaces picture objects inside the bucket.
const keyPrefix = "profile-pictures/"

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// objectStore is the slice of *s3.Client the repository needs.
type objectStore interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Options holds what is needed to reach an S3-compatible backend (MinIO in dev).
type S3Options struct {
	Region       string
	User         string
	Password     string
	BaseEndpoint string
}

// NewS3Client builds an S3 client with static credentials and path-style
// addressing against opts.BaseEndpoint.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.User,
			opts.Password,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

// S3Repository stores each picture as the object profile-pictures/<user id>.
// PutObject overwrites, which gives Put its upsert semantics.
type S3Repository struct {
	client objectStore
	bucket string
}

func NewS3Repository(client objectStore, bucket string) *S3Repository {
	return &S3Repository{client: client, bucket: bucket}
}

func objectKey(userID string) string {
	return keyPrefix + userID
}

func (r *S3Repository) Put(ctx context.Context, picture *models.ProfilePicture) error {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(objectKey(picture.UserID)),
		Body:          bytes.NewReader(picture.Data),
		ContentLength: aws.Int64(int64(len(picture.Data))),
	}
	if picture.ContentType != "" {
		in.ContentType = aws.String(picture.ContentType)
	}

	if _, err := r.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("s3 error: %w: %w", common.ErrorStoreUnavailable, err)
	}
	return nil
}

func (r *S3Repository) Get(ctx context.Context, userID string) (*models.ProfilePicture, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(objectKey(userID)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("s3 error: %w: %w", common.ErrorStoreUnavailable, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read error: %w: %w", common.ErrorStoreUnavailable, err)
	}

	pic := &models.ProfilePicture{
		UserID:      userID,
		Data:        data,
		ContentType: aws.ToString(out.ContentType),
	}
	if out.LastModified != nil {
		pic.UpdatedAt = *out.LastModified
	}
	return pic, nil
}
