package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/OFFIS-RIT/segbench/internal/util"
	"github.com/OFFIS-RIT/segbench/pkg/common"
	"github.com/OFFIS-RIT/segbench/pkg/evaluation"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// LinkExpiry is how long a presigned export link stays valid.
const LinkExpiry = 15 * time.Minute

func NewS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(util.GetEnv("AWS_REGION")),
		config.WithBaseEndpoint(util.GetEnv("AWS_ENDPOINT")),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			util.GetEnv("AWS_ACCESS_KEY"),
			util.GetEnv("AWS_SECRET_KEY"),
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	}), nil
}

// Exports uploads export documents and hands out download links.
type Exports struct {
	client         *s3.Client
	bucket         string
	publicEndpoint string
}

type NewExportsParams struct {
	Client *s3.Client
	Bucket string
	// PublicEndpoint is the externally reachable S3 url used for links.
	// When empty the client endpoint is used.
	PublicEndpoint string
}

func NewExports(params NewExportsParams) *Exports {
	return &Exports{
		client:         params.Client,
		bucket:         params.Bucket,
		publicEndpoint: params.PublicEndpoint,
	}
}

// ExportKey is the object key of the export of run id created at t.
func ExportKey(id string, t time.Time) string {
	return fmt.Sprintf("exports/%s/%s", id, evaluation.ExportFileName(t))
}

// PutExport uploads the export document of a run and returns its key.
func (e *Exports) PutExport(ctx context.Context, id string, data *common.BatchComparisonData, t time.Time) (string, error) {
	body, err := evaluation.Export(data)
	if err != nil {
		return "", err
	}

	key := ExportKey(id, t)
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload export to S3: %w", err)
	}

	return key, nil
}

// DownloadLink presigns a GET for key against the public endpoint.
func (e *Exports) DownloadLink(ctx context.Context, key string) (string, error) {
	presignClient := e.client
	prefix := ""

	if e.publicEndpoint != "" {
		publicURL, err := url.Parse(e.publicEndpoint)
		if err != nil || publicURL.Scheme == "" || publicURL.Host == "" {
			return "", fmt.Errorf("invalid public endpoint: %s", e.publicEndpoint)
		}
		prefix = strings.TrimSuffix(publicURL.Path, "/")

		// the signature must match the Host the downloader sends
		opts := e.client.Options()
		presignClient = s3.NewFromConfig(
			aws.Config{
				Region:      opts.Region,
				Credentials: opts.Credentials,
				HTTPClient:  opts.HTTPClient,
			},
			func(o *s3.Options) {
				o.BaseEndpoint = aws.String(publicURL.Scheme + "://" + publicURL.Host)
				o.UsePathStyle = true
			},
		)
	}

	out, err := s3.NewPresignClient(presignClient).PresignGetObject(
		ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(e.bucket),
			Key:    aws.String(key),
		},
		s3.WithPresignExpires(LinkExpiry),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate download link: %w", err)
	}

	if prefix == "" {
		return out.URL, nil
	}
	signedURL, err := url.Parse(out.URL)
	if err != nil {
		return "", fmt.Errorf("failed to parse presigned url: %w", err)
	}
	signedURL.Path = prefix + signedURL.Path
	return signedURL.String(), nil
}
