/*
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package corpus

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/nydus-tracefuzz/tracefuzz/pkg/errdefs"
)

// MirrorConfig configures an optional S3-compatible bucket that crash
// corpus entries are uploaded to, so a crash found by one fuzzing node in a
// fleet is visible to the others without shared disk.
type MirrorConfig struct {
	AccessKeyID     string `toml:"access_key_id"`
	AccessKeySecret string `toml:"access_key_secret"`
	Endpoint        string `toml:"endpoint"`
	Scheme          string `toml:"scheme"`
	BucketName      string `toml:"bucket_name"`
	Region          string `toml:"region"`
	ObjectPrefix    string `toml:"object_prefix"`
	// MaxConcurrentUploads bounds how many crash uploads run at once, so a
	// burst of simultaneous crashes across campaign workers doesn't open an
	// unbounded number of connections to the bucket.
	MaxConcurrentUploads int64 `toml:"max_concurrent_uploads"`
}

// Mirror uploads crash corpus entries to an S3-compatible bucket, keyed by
// content digest the same way the local Store names them on disk.
type Mirror struct {
	cfg MirrorConfig
	sem *semaphore.Weighted
}

// NewMirror validates cfg and returns a Mirror. A zero MaxConcurrentUploads
// defaults to 4.
func NewMirror(cfg MirrorConfig) (*Mirror, error) {
	if cfg.BucketName == "" || cfg.Region == "" {
		return nil, errors.New("corpus mirror: missing bucket_name or region")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "s3.amazonaws.com"
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	if cfg.MaxConcurrentUploads == 0 {
		cfg.MaxConcurrentUploads = 4
	}

	return &Mirror{cfg: cfg, sem: semaphore.NewWeighted(cfg.MaxConcurrentUploads)}, nil
}

func (m *Mirror) endpoint() string {
	return fmt.Sprintf("%s://%s", m.cfg.Scheme, m.cfg.Endpoint)
}

func (m *Mirror) client() (*s3.Client, error) {
	awsCfg, err := awscfg.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, errors.Wrap(err, "load default AWS config")
	}

	endpoint := m.endpoint()
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.EndpointResolver = s3.EndpointResolverFromURL(endpoint)
		o.Region = m.cfg.Region
		o.UsePathStyle = true
		if m.cfg.AccessKeyID != "" && m.cfg.AccessKeySecret != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(m.cfg.AccessKeyID, m.cfg.AccessKeySecret, "")
		}
	})
	return client, nil
}

func (m *Mirror) objectKey(d digest.Digest) string {
	return m.cfg.ObjectPrefix + d.Encoded()
}

func (m *Mirror) exists(ctx context.Context, client *s3.Client, key string) (bool, error) {
	_, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &m.cfg.BucketName,
		Key:    &key,
	})
	if err != nil {
		var respErr *awshttp.ResponseError
		if errors.As(err, &respErr) && respErr.ResponseError.HTTPStatusCode() == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Upload pushes image's content to the bucket under its digest, skipping
// the transfer if an object already exists at that key. It blocks until a
// concurrency slot is free or ctx is canceled.
func (m *Mirror) Upload(ctx context.Context, d digest.Digest, image []byte) error {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return errors.Wrap(err, "acquire upload slot")
	}
	defer m.sem.Release(1)

	client, err := m.client()
	if err != nil {
		return errors.Wrap(err, "create s3 client")
	}

	key := m.objectKey(d)
	exist, err := m.exists(ctx, client, key)
	if err != nil {
		return errors.Wrap(err, "check object existence")
	}
	if exist {
		return nil
	}

	uploader := manager.NewUploader(client)
	if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:            aws.String(m.cfg.BucketName),
		Key:               aws.String(key),
		Body:              bytes.NewReader(image),
		ChecksumAlgorithm: types.ChecksumAlgorithmCrc32,
	}); err != nil {
		return errors.Wrap(err, "upload crash corpus entry")
	}

	return nil
}

// Check reports whether d is already present in the bucket.
func (m *Mirror) Check(ctx context.Context, d digest.Digest) error {
	client, err := m.client()
	if err != nil {
		return errors.Wrap(err, "create s3 client")
	}

	exist, err := m.exists(ctx, client, m.objectKey(d))
	if err != nil {
		return err
	}
	if !exist {
		return errdefs.ErrNotFound
	}
	return nil
}
