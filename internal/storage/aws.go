package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goccy/go-json"

	"github.com/ignite/metrics-hub/internal/config"
	"github.com/ignite/metrics-hub/internal/domain"
)

// ObjectAPI is the subset of the S3 client used for archiving.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ItemAPI is the subset of the DynamoDB client used for the audit trail.
type ItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// AWS archives uploads to S3 and mirrors finished import batches to
// DynamoDB. Either target may be unset, in which case its methods are no-ops.
type AWS struct {
	s3Client  *s3.Client
	objects   ObjectAPI
	items     ItemAPI
	bucket    string
	tableName string
	auditTTL  time.Duration
	now       func() time.Time
}

// AuditItem is the DynamoDB shape of a finished import batch.
type AuditItem struct {
	PK            string `dynamodbav:"PK"`
	SK            string `dynamodbav:"SK"`
	Platform      string `dynamodbav:"Platform"`
	FileName      string `dynamodbav:"FileName"`
	Status        string `dynamodbav:"Status"`
	RowCount      int    `dynamodbav:"RowCount"`
	ImportedCount int    `dynamodbav:"ImportedCount"`
	ErrorCount    int    `dynamodbav:"ErrorCount"`
	Data          string `dynamodbav:"Data"`
	Timestamp     string `dynamodbav:"Timestamp"`
	TTL           int64  `dynamodbav:"TTL,omitempty"`
}

// NewAWS loads AWS credentials and builds the clients named in cfg.
// Static keys win over the profile; an empty profile uses the default chain
// (IAM role on ECS).
func NewAWS(ctx context.Context, cfg config.StorageConfig) (*AWS, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	switch {
	case cfg.AccessKey != "" && cfg.SecretKey != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	case cfg.GetAWSProfile() != "":
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.GetAWSProfile()))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	a := NewAWSWithClients(s3Client, dynamodb.NewFromConfig(awsCfg), cfg)
	a.s3Client = s3Client
	return a, nil
}

// NewAWSWithClients wires pre-built clients, for tests and custom setups.
func NewAWSWithClients(objects ObjectAPI, items ItemAPI, cfg config.StorageConfig) *AWS {
	return &AWS{
		objects:   objects,
		items:     items,
		bucket:    cfg.S3Bucket,
		tableName: cfg.DynamoDBTable,
		auditTTL:  time.Duration(cfg.AuditTTLDays) * 24 * time.Hour,
		now:       time.Now,
	}
}

// S3Client exposes the underlying client for platform feed sources.
// Nil when built with NewAWSWithClients.
func (a *AWS) S3Client() *s3.Client { return a.s3Client }

var uploadContentTypes = map[string]string{
	".csv":  "text/csv",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xls":  "application/vnd.ms-excel",
}

// UploadKey is where the original bytes of a batch are stored.
func UploadKey(batchID, fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	return path.Join("imports", batchID, name)
}

// ArchiveUpload stores the uploaded file and returns its key.
func (a *AWS) ArchiveUpload(ctx context.Context, batchID, fileName string, data []byte) (string, error) {
	if a.bucket == "" || a.objects == nil {
		return "", nil
	}
	key := UploadKey(batchID, fileName)
	contentType, ok := uploadContentTypes[strings.ToLower(path.Ext(key))]
	if !ok {
		contentType = "application/octet-stream"
	}

	_, err := a.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata:    map[string]string{"batch-id": batchID},
	})
	if err != nil {
		return "", fmt.Errorf("putting object to S3: %w", err)
	}
	return key, nil
}

// RecordBatch writes the batch as an audit item keyed BATCH#<id>.
func (a *AWS) RecordBatch(ctx context.Context, b *domain.ImportBatch) error {
	if a.tableName == "" || a.items == nil {
		return nil
	}
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshaling batch: %w", err)
	}

	now := a.now().UTC()
	item := AuditItem{
		PK:            "BATCH#" + b.ID,
		SK:            b.CreatedAt.UTC().Format(time.RFC3339),
		Platform:      string(b.Platform),
		FileName:      b.FileName,
		Status:        string(b.Status),
		RowCount:      b.RowCount,
		ImportedCount: b.ImportedCount,
		ErrorCount:    b.ErrorCount(),
		Data:          string(data),
		Timestamp:     now.Format(time.RFC3339),
	}
	if a.auditTTL > 0 {
		item.TTL = now.Add(a.auditTTL).Unix()
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling item: %w", err)
	}
	_, err = a.items.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(a.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting item to DynamoDB: %w", err)
	}
	return nil
}
