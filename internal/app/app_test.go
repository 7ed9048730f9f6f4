package app

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/metrics-hub/internal/config"
	"github.com/ignite/metrics-hub/internal/domain"
)

type nopS3 struct{}

func (nopS3) ListObjectsV2(context.Context, *s3.ListObjectsV2Input, ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	return &s3.ListObjectsV2Output{}, nil
}

func (nopS3) GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return &s3.GetObjectOutput{}, nil
}

func TestSyncSources(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.S3Bucket = "exports"
	cfg.Sync.Platforms = []string{"Facebook", "myspace", "youtube"}

	sources := SyncSources(cfg, nopS3{})
	require.Len(t, sources, 2)
	assert.Equal(t, domain.PlatformFacebook, sources[0].Platform())
	assert.Equal(t, domain.PlatformYouTube, sources[1].Platform())
}

func TestSyncSourcesWithoutBucket(t *testing.T) {
	cfg := config.Default()
	cfg.Sync.Platforms = []string{"facebook"}
	assert.Empty(t, SyncSources(cfg, nopS3{}))

	cfg.Storage.S3Bucket = "exports"
	assert.Empty(t, SyncSources(cfg, nil))
}

func TestNewSyncerPlatforms(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.S3Bucket = "exports"
	cfg.Sync.Platforms = []string{"tiktok", "instagram"}

	syncer := NewSyncer(cfg, nil, nil, nopS3{}, nil)
	assert.Equal(t, []domain.Platform{domain.PlatformInstagram, domain.PlatformTikTok}, syncer.Platforms())
}

func TestOpenRedisDisabled(t *testing.T) {
	assert.Nil(t, OpenRedis(context.Background(), config.RedisConfig{}))
	assert.Nil(t, OpenRedis(context.Background(), config.RedisConfig{URL: "::not a url"}))
}

func TestOpenDatabaseRequiresURL(t *testing.T) {
	_, err := OpenDatabase(context.Background(), config.DatabaseConfig{})
	assert.Error(t, err)
}

func TestNewOverviewRejectsUnknownMode(t *testing.T) {
	cfg := config.Default()
	cfg.Overview.EngagementMode = "median"
	_, err := NewOverview(cfg, nil, nil)
	assert.Error(t, err)
}
