package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nbatyrov/boxstore/internal/config"
)

// NewMinIOClient establishes a MinIO client using the provided configuration.
func NewMinIOClient(cfg config.MinIOConfig) (*minio.Client, error) {
	endpoint := cfg.Endpoint
	if !strings.Contains(endpoint, ":") {
		// default to MinIO API port when not supplied explicitly
		endpoint = fmt.Sprintf("%s:9000", endpoint)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return client, nil
}

// MinIOStore adapts minio.Client to the ObjectStore interface.
type MinIOStore struct {
	client        *minio.Client
	region        string
	publicBaseURL string
}

// NewMinIOStore constructs the adapter. publicBaseURL is the externally
// reachable endpoint used to derive stable public download URLs.
func NewMinIOStore(client *minio.Client, region, publicBaseURL string) *MinIOStore {
	return &MinIOStore{
		client:        client,
		region:        region,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// CreateContainer provisions the remote container backing a bucket.
func (s *MinIOStore) CreateContainer(ctx context.Context, containerID string) error {
	if err := s.client.MakeBucket(ctx, containerID, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("create container %q: %w", containerID, err)
	}
	return nil
}

// DeleteContainer removes the remote container. A missing container is not
// an error so deletion stays retryable.
func (s *MinIOStore) DeleteContainer(ctx context.Context, containerID string) error {
	if err := s.client.RemoveBucket(ctx, containerID); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchBucket" {
			return nil
		}
		return fmt.Errorf("delete container %q: %w", containerID, err)
	}
	return nil
}

// PutObject streams r into the remote object. size may be -1 when the final
// length is unknown (compressed uploads).
func (s *MinIOStore) PutObject(ctx context.Context, containerID, objectID string, r io.Reader, size int64, contentType, contentEncoding string) error {
	opts := minio.PutObjectOptions{
		ContentType:     contentType,
		ContentEncoding: contentEncoding,
	}
	if _, err := s.client.PutObject(ctx, containerID, objectID, r, size, opts); err != nil {
		return fmt.Errorf("put object %s/%s: %w", containerID, objectID, err)
	}
	return nil
}

// GetObject opens a read stream for the remote object.
func (s *MinIOStore) GetObject(ctx context.Context, containerID, objectID string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, containerID, objectID, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", containerID, objectID, err)
	}
	return obj, nil
}

// DeleteObject removes the remote object. Removing an absent object succeeds.
func (s *MinIOStore) DeleteObject(ctx context.Context, containerID, objectID string) error {
	if err := s.client.RemoveObject(ctx, containerID, objectID, minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchBucket" {
			return nil
		}
		return fmt.Errorf("delete object %s/%s: %w", containerID, objectID, err)
	}
	return nil
}

// StatObject fetches remote object metadata.
func (s *MinIOStore) StatObject(ctx context.Context, containerID, objectID string) (ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, containerID, objectID, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat object %s/%s: %w", containerID, objectID, err)
	}
	return ObjectInfo{
		Size:            info.Size,
		ContentType:     info.ContentType,
		ContentEncoding: info.Metadata.Get("Content-Encoding"),
		LastModified:    info.LastModified,
	}, nil
}

// SetPublic toggles anonymous read access for a single object. The container
// policy is read-modify-written so grants on sibling objects survive; only
// the statement scoped to this object's ARN is added or removed.
func (s *MinIOStore) SetPublic(ctx context.Context, containerID, objectID string, public bool) error {
	current, err := s.client.GetBucketPolicy(ctx, containerID)
	if err != nil {
		return fmt.Errorf("read container policy %s: %w", containerID, err)
	}

	updated, err := upsertObjectGrant(current, containerID, objectID, public)
	if err != nil {
		return fmt.Errorf("set object visibility %s/%s: %w", containerID, objectID, err)
	}

	if err := s.client.SetBucketPolicy(ctx, containerID, updated); err != nil {
		return fmt.Errorf("set object visibility %s/%s: %w", containerID, objectID, err)
	}
	return nil
}

type policyStatement struct {
	Effect    string `json:"Effect"`
	Principal struct {
		AWS []string `json:"AWS"`
	} `json:"Principal"`
	Action   []string `json:"Action"`
	Resource []string `json:"Resource"`
}

type bucketPolicy struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

// upsertObjectGrant rewrites a bucket policy document so that it grants, or
// no longer grants, anonymous read on exactly one object. Statements for
// other resources pass through untouched. An empty result means no policy.
func upsertObjectGrant(raw, containerID, objectID string, public bool) (string, error) {
	arn := fmt.Sprintf("arn:aws:s3:::%s/%s", containerID, objectID)

	var policy bucketPolicy
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &policy); err != nil {
			return "", fmt.Errorf("parse container policy: %w", err)
		}
	}
	policy.Version = "2012-10-17"

	kept := policy.Statement[:0]
	for _, st := range policy.Statement {
		if len(st.Resource) == 1 && st.Resource[0] == arn {
			continue
		}
		kept = append(kept, st)
	}
	policy.Statement = kept

	if public {
		grant := policyStatement{
			Effect:   "Allow",
			Action:   []string{"s3:GetObject"},
			Resource: []string{arn},
		}
		grant.Principal.AWS = []string{"*"}
		policy.Statement = append(policy.Statement, grant)
	}

	if len(policy.Statement) == 0 {
		return "", nil
	}
	out, err := json.Marshal(policy)
	if err != nil {
		return "", fmt.Errorf("encode container policy: %w", err)
	}
	return string(out), nil
}

// PublicURL derives the stable public URL for an object.
func (s *MinIOStore) PublicURL(containerID, objectID string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, containerID, objectID)
}

// PresignedGetURL mints a time-limited read URL for a private object.
func (s *MinIOStore) PresignedGetURL(ctx context.Context, containerID, objectID string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, containerID, objectID, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object %s/%s: %w", containerID, objectID, err)
	}
	return u.String(), nil
}
