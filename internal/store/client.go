package store

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hashicorp/go-retryablehttp"
)

// Options configures client construction. The zero value uses the default AWS
// credential chain and region resolution.
type Options struct {
	// Region is the bucket region. Empty defers to the environment.
	Region string

	// Endpoint overrides the S3 endpoint, for S3-compatible stores
	// (MinIO, Ceph RGW, ...). Empty uses AWS.
	Endpoint string

	// PathStyle forces path-style addressing, which most S3-compatible
	// stores require.
	PathStyle bool

	// Static credentials. When AccessKeyID is empty the default credential
	// chain (env, shared config, IMDS) applies.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Client wraps the AWS S3 client behind the operation interfaces the transfer
// engines consume. Transport-level retry lives below this layer, in the HTTP
// client: individual UploadPart/GetObject calls that fail here have already
// been retried at the wire level.
//
// Thread-safe: all operations are safe for concurrent use.
type Client struct {
	s3 *s3.Client
}

// NewClient creates a store client.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	// Retrying HTTP transport under the SDK. The SDK's own retryer is left at
	// its default on top of this; both operate below the resume logic in the
	// download path, which only sees whole-call failures.
	rc := retryablehttp.NewClient()
	rc.Logger = nil

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithHTTPClient(rc.StandardClient()),
	}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken)))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	})

	return &Client{s3: client}, nil
}

// NewClientFromS3 wraps an externally constructed S3 client.
func NewClientFromS3(client *s3.Client) *Client {
	return &Client{s3: client}
}

// GetObject opens a streaming read of bucket/key, optionally ranged.
func (c *Client) GetObject(ctx context.Context, bucket, key string, rng *ByteRange) (*Object, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if rng != nil {
		input.Range = aws.String(rng.Header())
	}

	resp, err := c.s3.GetObject(ctx, input)
	if err != nil {
		return nil, wrapStore("GetObject", err)
	}

	length := int64(-1)
	if resp.ContentLength != nil {
		length = *resp.ContentLength
	}
	return &Object{Body: resp.Body, ContentLength: length}, nil
}

// CreateMultipartUpload initiates a multipart upload for bucket/key.
func (c *Client) CreateMultipartUpload(ctx context.Context, bucket, key string) (string, error) {
	resp, err := c.s3.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", wrapStore("CreateMultipartUpload", err)
	}
	if resp.UploadId == nil {
		return "", wrapStore("CreateMultipartUpload", fmt.Errorf("store returned no upload ID"))
	}
	return *resp.UploadId, nil
}

// UploadPart commits one part of a multipart upload.
func (c *Client) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int32, body []byte) (string, error) {
	resp, err := c.s3.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(partNumber),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", wrapStore(fmt.Sprintf("UploadPart %d", partNumber), err)
	}
	if resp.ETag == nil {
		return "", wrapStore(fmt.Sprintf("UploadPart %d", partNumber), fmt.Errorf("store returned no ETag"))
	}
	return *resp.ETag, nil
}

// CompleteMultipartUpload finalizes the object from the ordered tag list.
func (c *Client) CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, etags []string) error {
	parts := make([]types.CompletedPart, len(etags))
	for i, etag := range etags {
		parts[i] = types.CompletedPart{
			ETag:       aws.String(etag),
			PartNumber: aws.Int32(int32(i + 1)),
		}
	}

	_, err := c.s3.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: parts,
		},
	})
	if err != nil {
		return wrapStore("CompleteMultipartUpload", err)
	}
	return nil
}

// AbortMultipartUpload discards an in-progress upload.
func (c *Client) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	_, err := c.s3.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return wrapStore("AbortMultipartUpload", err)
	}
	return nil
}

// MultipartUploadExists probes whether an upload ID is still live via ListParts.
// S3 answers NoSuchUpload once the upload has expired or been aborted; that is
// reported as (false, nil) so callers can start a fresh upload.
func (c *Client) MultipartUploadExists(ctx context.Context, bucket, key, uploadID string) (bool, error) {
	_, err := c.s3.ListParts(ctx, &s3.ListPartsInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		if isNoSuchUpload(err) {
			return false, nil
		}
		return false, wrapStore("ListParts", err)
	}
	return true, nil
}
