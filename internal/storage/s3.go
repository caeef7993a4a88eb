package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/nimasrn/receipt-gateway/internal/model"
	"github.com/nimasrn/receipt-gateway/pkg/logger"
)

const (
	// RecipientURLTTL is the lifetime of links sent to donors.
	RecipientURLTTL = 365 * 24 * time.Hour
	// InternalURLTTL is the lifetime of links used to re-fetch a stored receipt.
	InternalURLTTL = time.Hour

	pdfPrefix  = "receipts"
	htmlPrefix = "receipts-html"
)

var ErrObjectNotFound = errors.New("object not found")

type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Config struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	ArchiveHTML   bool
	// zero means RecipientURLTTL
	RecipientURLTTL time.Duration
}

type UploadResult struct {
	ObjectKey string
	SignedURL string
	PublicURL string
	ExpiresAt time.Time
}

// S3Store keeps generated receipts in an S3 compatible bucket under
// receipts/<YYYY>/<MM>/<receiptNumber>.pdf.
type S3Store struct {
	config    Config
	objects   objectAPI
	presigner presignAPI
	now       func() time.Time
}

func New(ctx context.Context, cfg Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, &model.ConfigurationError{Component: "storage", Missing: []string{"STORAGE_BUCKET"}}
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewWithClients(cfg, client, s3.NewPresignClient(client)), nil
}

func NewWithClients(cfg Config, objects objectAPI, presigner presignAPI) *S3Store {
	if cfg.RecipientURLTTL == 0 {
		cfg.RecipientURLTTL = RecipientURLTTL
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &S3Store{
		config:    cfg,
		objects:   objects,
		presigner: presigner,
		now:       time.Now,
	}
}

// ObjectKey is the canonical PDF path of a receipt stored at the given time.
func ObjectKey(receiptNumber string, at time.Time) string {
	return fmt.Sprintf("%s/%04d/%02d/%s.pdf", pdfPrefix, at.Year(), int(at.Month()), receiptNumber)
}

func archiveKey(receiptNumber string, at time.Time) string {
	return fmt.Sprintf("%s/%04d/%02d/%s.html", htmlPrefix, at.Year(), int(at.Month()), receiptNumber)
}

// Upload stores the PDF, replacing any object already at the same path, and
// returns a recipient link.
func (s *S3Store) Upload(ctx context.Context, pdf []byte, receiptNumber string) (*UploadResult, error) {
	now := s.now().UTC()
	key := ObjectKey(receiptNumber, now)

	_, err := s.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(s.config.Bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(pdf),
		ContentType:        aws.String("application/pdf"),
		ContentDisposition: aws.String(fmt.Sprintf(`inline; filename="%s.pdf"`, receiptNumber)),
		CacheControl:       aws.String("private, max-age=3600"),
	})
	if err != nil {
		return nil, &model.StorageError{Op: "upload", Key: key, Err: err}
	}

	signed, err := s.presign(ctx, key, s.config.RecipientURLTTL)
	if err != nil {
		return nil, err
	}

	res := &UploadResult{
		ObjectKey: key,
		SignedURL: signed,
		ExpiresAt: now.Add(s.config.RecipientURLTTL),
	}
	if s.config.PublicBaseURL != "" {
		res.PublicURL = s.config.PublicBaseURL + "/" + key
	}
	return res, nil
}

// ArchiveHTML keeps a copy of the rendered HTML next to the PDF. It is a
// no-op when archiving is disabled.
func (s *S3Store) ArchiveHTML(ctx context.Context, html string, receiptNumber string) (string, error) {
	if !s.config.ArchiveHTML {
		return "", nil
	}
	key := archiveKey(receiptNumber, s.now().UTC())
	_, err := s.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(html),
		ContentType: aws.String("text/html; charset=utf-8"),
	})
	if err != nil {
		return "", &model.StorageError{Op: "archive", Key: key, Err: err}
	}
	return key, nil
}

// SignedURL issues a link to a stored receipt. objectKey is used as is when
// known; otherwise the receipt is located by number.
func (s *S3Store) SignedURL(ctx context.Context, receiptNumber, objectKey string, ttl time.Duration) (string, error) {
	if objectKey == "" {
		key, err := s.Locate(ctx, receiptNumber)
		if err != nil {
			return "", err
		}
		objectKey = key
	}
	return s.presign(ctx, objectKey, ttl)
}

// Locate finds the object key of a receipt whose upload month is unknown. It
// looks through the months of the current year, newest first, then the previous
// year.
func (s *S3Store) Locate(ctx context.Context, receiptNumber string) (string, error) {
	now := s.now().UTC()
	for _, key := range candidateKeys(receiptNumber, now) {
		exists, err := s.exists(ctx, key)
		if err != nil {
			return "", err
		}
		if exists {
			return key, nil
		}
	}
	return "", &model.StorageError{Op: "locate", Key: receiptNumber, Err: ErrObjectNotFound}
}

func candidateKeys(receiptNumber string, now time.Time) []string {
	keys := make([]string, 0, 24)
	for _, year := range []int{now.Year(), now.Year() - 1} {
		last := 12
		if year == now.Year() {
			last = int(now.Month())
		}
		for month := last; month >= 1; month-- {
			keys = append(keys, ObjectKey(receiptNumber, time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)))
		}
	}
	return keys
}

// Delete removes a stored receipt. Deleting a receipt that is not stored
// succeeds.
func (s *S3Store) Delete(ctx context.Context, receiptNumber, objectKey string) error {
	if objectKey == "" {
		key, err := s.Locate(ctx, receiptNumber)
		if err != nil {
			if errors.Is(err, ErrObjectNotFound) {
				return nil
			}
			return err
		}
		objectKey = key
	}
	_, err := s.objects.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil && !isNotFound(err) {
		return &model.StorageError{Op: "delete", Key: objectKey, Err: err}
	}
	logger.Info("receipt object deleted", "receipt_number", receiptNumber, "key", objectKey)
	return nil
}

// Ping checks the bucket is reachable with the configured credentials.
func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.objects.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.config.Bucket)})
	if err != nil {
		return &model.StorageError{Op: "ping", Key: s.config.Bucket, Err: err}
	}
	return nil
}

func (s *S3Store) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.objects.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, &model.StorageError{Op: "head", Key: key, Err: err}
}

func (s *S3Store) presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", &model.StorageError{Op: "presign", Key: key, Err: err}
	}
	return req.URL, nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "404":
			return true
		}
	}
	return false
}
