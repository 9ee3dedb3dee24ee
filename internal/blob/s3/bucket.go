package s3blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

const (
	// multipartThreshold is the body size above which Put goes through the
	// upload manager.
	multipartThreshold = 16 << 20
	partSize           = 8 << 20
)

// Bucket implements domain.ObjectStore on a Client.
type Bucket struct {
	c        *Client
	uploader *manager.Uploader
}

// NewBucket creates a Bucket.
func NewBucket(c *Client) *Bucket {
	return &Bucket{
		c: c,
		uploader: manager.NewUploader(c.api, func(u *manager.Uploader) {
			u.PartSize = partSize
		}),
	}
}

// Put stores body under key. Large bodies are uploaded in parts.
func (b *Bucket) Put(ctx context.Context, key string, body []byte, contentType string, meta map[string]string) error {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(b.c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		Metadata:    meta,
	}
	var err error
	if len(body) > multipartThreshold {
		_, err = b.uploader.Upload(ctx, in)
	} else {
		in.ContentLength = aws.Int64(int64(len(body)))
		_, err = b.c.api.PutObject(ctx, in)
	}
	if err != nil {
		return fmt.Errorf("s3blob: put %s: %w", key, err)
	}
	return nil
}

// Open returns the object body; the caller closes it. A missing key yields
// domain.ErrNotFound.
func (b *Bucket) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := b.c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if missing(err) {
			return nil, fmt.Errorf("s3blob: open %s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("s3blob: open %s: %w", key, err)
	}
	return out.Body, nil
}

// List returns the objects under prefix in key order.
func (b *Bucket) List(ctx context.Context, prefix string) ([]domain.ArchiveObject, error) {
	var objs []domain.ArchiveObject
	pages := s3.NewListObjectsV2Paginator(b.c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.c.bucket),
		Prefix: aws.String(prefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3blob: list %s: %w", prefix, err)
		}
		for _, o := range page.Contents {
			objs = append(objs, domain.ArchiveObject{
				Key:        aws.ToString(o.Key),
				Size:       aws.ToInt64(o.Size),
				ModifiedAt: aws.ToTime(o.LastModified),
			})
		}
	}
	return objs, nil
}

func missing(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var status interface{ HTTPStatusCode() int }
	return errors.As(err, &status) && status.HTTPStatusCode() == http.StatusNotFound
}

var _ domain.ObjectStore = (*Bucket)(nil)
