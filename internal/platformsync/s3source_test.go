package platformsync

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/metrics-hub/internal/domain"
)

// fakeS3 serves objects from memory, pageSize keys per listing page.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string]string
	pageSize int
	gets     []string
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		start, _ = strconv.Atoi(tok)
	}
	end := start + f.pageSize
	if end > len(keys) {
		end = len(keys)
	}
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	f.gets = append(f.gets, key)
	body, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte(body)))}, nil
}

var march = domain.DateRange{Start: "2024-03-08", End: "2024-03-15"}

func TestS3SourceFetchMetrics(t *testing.T) {
	client := &fakeS3{pageSize: 2, objects: map[string]string{
		"exports/facebook/page-1/2024-03-09.json":  `[{"metric_type":"views","value":10,"date":"2024-03-09"},{"metric_type":"likes","value":2,"date":"2024-03-09"}]`,
		"exports/facebook/page-1/2024-01-01.json":  `[{"metric_type":"views","value":1,"date":"2024-01-01"}]`,
		"exports/facebook/page-1/weekly.json":      `[{"metric_type":" Reach ","value":5,"date":"2024-03-10"},{"metric_type":"reach","value":7,"date":"2024-02-01"}]`,
		"exports/facebook/page-1/notes.txt":        "not a feed",
		"exports/facebook/page-10/2024-03-09.json": `[{"metric_type":"views","value":99,"date":"2024-03-09"}]`,
	}}
	src := NewS3Source(client, "hub-feeds", "/exports/", domain.PlatformFacebook)
	acc := domain.SocialAccount{ID: "fb-1", ExternalID: "page-1", Platform: domain.PlatformFacebook}

	assert.Equal(t, "exports/facebook/page-1/", src.AccountPrefix(acc))

	entries, err := src.FetchMetrics(context.Background(), acc, march)
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.PlatformMetricEntry{
		{AccountID: "fb-1", Platform: domain.PlatformFacebook, MetricType: "views", Value: 10, Date: "2024-03-09"},
		{AccountID: "fb-1", Platform: domain.PlatformFacebook, MetricType: "likes", Value: 2, Date: "2024-03-09"},
		{AccountID: "fb-1", Platform: domain.PlatformFacebook, MetricType: "reach", Value: 5, Date: "2024-03-10"},
	}, entries)

	assert.ElementsMatch(t, []string{
		"exports/facebook/page-1/2024-03-09.json",
		"exports/facebook/page-1/weekly.json",
	}, client.gets, "day files outside the range are not downloaded")
}

func TestS3SourceAccountWithoutExternalID(t *testing.T) {
	src := NewS3Source(&fakeS3{pageSize: 10}, "b", "exports", domain.PlatformTikTok)
	assert.Equal(t, "exports/tiktok/tt-9/", src.AccountPrefix(domain.SocialAccount{ID: "tt-9"}))

	entries, err := src.FetchMetrics(context.Background(), domain.SocialAccount{ID: "tt-9"}, march)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestS3SourceBadObject(t *testing.T) {
	client := &fakeS3{pageSize: 10, objects: map[string]string{
		"exports/youtube/ch/2024-03-10.json": `{"not":"an array"}`,
	}}
	src := NewS3Source(client, "b", "exports", domain.PlatformYouTube)

	_, err := src.FetchMetrics(context.Background(), domain.SocialAccount{ID: "yt", ExternalID: "ch"}, march)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding object exports/youtube/ch/2024-03-10.json")
}

func TestS3SourceFeedsSyncer(t *testing.T) {
	_, locks := redisLocks(t)
	client := &fakeS3{pageSize: 5, objects: map[string]string{
		"exports/instagram/ig-page/2024-03-12.json": `[{"metric_type":"views","value":40,"date":"2024-03-12"}]`,
	}}
	store := &memStore{accounts: []domain.SocialAccount{
		{ID: "ig-1", ExternalID: "ig-page", Platform: domain.PlatformInstagram, IsActive: true},
	}}
	s := NewSyncer(store, locks, Config{LookbackDays: 7}, NewS3Source(client, "b", "exports", domain.PlatformInstagram))
	s.now = fixedNow

	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)
	require.Len(t, store.stored, 1)
	assert.Equal(t, 40.0, store.stored[0].Value)
}
