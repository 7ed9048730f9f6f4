package platformsync

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goccy/go-json"

	"github.com/ignite/metrics-hub/internal/domain"
)

// S3API is the subset of the S3 client a feed source needs.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// feedEntry is one metric value in an exported JSON feed.
type feedEntry struct {
	MetricType string  `json:"metric_type"`
	Value      float64 `json:"value"`
	Date       string  `json:"date"`
}

// S3Source reads platform exports dropped into a bucket by an external
// collector, laid out as <prefix>/<platform>/<account>/<name>.json where each
// object holds a JSON array of {metric_type, value, date}. Objects named
// after a YYYY-MM-DD day outside the requested range are not downloaded.
type S3Source struct {
	client   S3API
	bucket   string
	prefix   string
	platform domain.Platform
}

func NewS3Source(client S3API, bucket, prefix string, platform domain.Platform) *S3Source {
	return &S3Source{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/"), platform: platform}
}

func (s *S3Source) Platform() domain.Platform { return s.platform }

// AccountPrefix is where exports for acc are read from. Accounts without an
// external id are keyed by their own id.
func (s *S3Source) AccountPrefix(acc domain.SocialAccount) string {
	id := acc.ExternalID
	if id == "" {
		id = acc.ID
	}
	return path.Join(s.prefix, string(s.platform), id) + "/"
}

func (s *S3Source) FetchMetrics(ctx context.Context, acc domain.SocialAccount, rng domain.DateRange) ([]domain.PlatformMetricEntry, error) {
	prefix := s.AccountPrefix(acc)
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	var out []domain.PlatformMetricEntry
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", s.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".json") || outsideRange(key, rng) {
				continue
			}
			entries, err := s.readObject(ctx, key)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				if !rng.Contains(e.Date) {
					continue
				}
				out = append(out, domain.PlatformMetricEntry{
					AccountID:  acc.ID,
					Platform:   s.platform,
					MetricType: strings.ToLower(strings.TrimSpace(e.MetricType)),
					Value:      e.Value,
					Date:       e.Date,
				})
			}
		}
	}
	return out, nil
}

func (s *S3Source) readObject(ctx context.Context, key string) ([]feedEntry, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("getting object %s: %w", key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("reading object %s: %w", key, err)
	}
	var entries []feedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding object %s: %w", key, err)
	}
	return entries, nil
}

// outsideRange reports whether key is named after a day outside rng.
func outsideRange(key string, rng domain.DateRange) bool {
	day := strings.TrimSuffix(path.Base(key), ".json")
	if len(day) != len("2006-01-02") || day[4] != '-' || day[7] != '-' {
		return false
	}
	return !rng.Contains(day)
}
