package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"kredilakay/internal/config"
	"kredilakay/internal/domain"
	"kredilakay/internal/infra/awsconf"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Object stores blobs in an S3 bucket with server-side encryption and a
// private ACL. Locators are reserved before every write.
type Object struct {
	client   objectAPI
	bucket   string
	prefix   string
	reserver Reserver
}

func NewObject(client objectAPI, bucket, prefix string, reserver Reserver) (*Object, error) {
	if client == nil {
		return nil, errors.New("s3 client is required")
	}
	if bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if reserver == nil {
		reserver = NewMemoryReserver()
	}
	return &Object{client: client, bucket: bucket, prefix: prefix, reserver: reserver}, nil
}

// NewObjectFromConfig builds the S3 client from the shared AWS config.
// S3_ENDPOINT switches to path-style addressing for S3-compatible stores.
func NewObjectFromConfig(ctx context.Context, cfg config.Config, reserver Reserver) (*Object, error) {
	awsCfg, err := awsconf.Load(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewObject(client, cfg.S3Bucket, cfg.S3Prefix, reserver)
}

func (o *Object) Kind() domain.StorageBackendKind { return domain.StorageBackendObject }

func (o *Object) Put(ctx context.Context, locator string, data []byte) error {
	key, err := o.key(locator)
	if err != nil {
		return err
	}
	ok, err := o.reserver.Reserve(ctx, o.bucket+"/"+key)
	if err != nil {
		return fmt.Errorf("reserve locator: %w", err)
	}
	if !ok {
		return ErrExists
	}
	_, err = o.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(o.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(data),
		ContentLength:        aws.Int64(int64(len(data))),
		ContentType:          aws.String("application/octet-stream"),
		ACL:                  types.ObjectCannedACLPrivate,
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		_ = o.reserver.Release(ctx, o.bucket+"/"+key)
		return err
	}
	return nil
}

func (o *Object) Get(ctx context.Context, locator string) ([]byte, error) {
	key, err := o.key(locator)
	if err != nil {
		return nil, err
	}
	out, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (o *Object) Delete(ctx context.Context, locator string) error {
	key, err := o.key(locator)
	if err != nil {
		return err
	}
	if _, err := o.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return err
	}
	return o.reserver.Release(ctx, o.bucket+"/"+key)
}

func (o *Object) key(locator string) (string, error) {
	if err := ValidateLocator(locator); err != nil {
		return "", err
	}
	if o.prefix == "" {
		return locator, nil
	}
	return path.Join(o.prefix, locator), nil
}
