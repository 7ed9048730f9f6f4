package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/metrics-hub/internal/pkg/httputil"
)

// Component states reported by the health endpoints.
const (
	statusUp       = "up"
	statusDown     = "down"
	statusDegraded = "degraded"
	statusDisabled = "disabled"
)

const (
	healthVersion  = "1.0.0"
	checkTimeout   = 3 * time.Second
	stuckImportAge = time.Hour
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status  string                    `json:"status"` // healthy, degraded or unhealthy
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck is the state of one dependency.
type ComponentCheck struct {
	Status   string `json:"status"`
	Required bool   `json:"required,omitempty"`
	Latency  string `json:"latency,omitempty"`
	Message  string `json:"message,omitempty"`
}

// BucketAPI is the part of the S3 client the archive check uses.
type BucketAPI interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// errStuckImports marks an import check that ran but found stale batches.
var errStuckImports = errors.New("stuck imports")

// depCheck checks one dependency. A nil run means the dependency is not
// configured for this process.
type depCheck struct {
	name     string
	required bool
	slow     time.Duration
	run      func(ctx context.Context) (string, error)
}

// HealthChecker reports on Postgres, the overview cache, the upload archive
// and the import pipeline.
type HealthChecker struct {
	deps      []depCheck
	startTime time.Time
}

// NewHealthChecker builds the hub's dependency checks. Postgres is the only required
// dependency; Redis and S3 are reported as disabled when nil.
func NewHealthChecker(db *sql.DB, rdb *redis.Client, bucket BucketAPI, bucketName string) *HealthChecker {
	hc := &HealthChecker{startTime: time.Now()}

	database := depCheck{name: "database", required: true, slow: time.Second}
	imports := depCheck{name: "imports"}
	if db != nil {
		database.run = func(ctx context.Context) (string, error) {
			return "connected", db.PingContext(ctx)
		}
		imports.run = func(ctx context.Context) (string, error) {
			return stuckImports(ctx, db)
		}
	}

	cache := depCheck{name: "overview_cache", slow: 500 * time.Millisecond}
	if rdb != nil {
		cache.run = func(ctx context.Context) (string, error) {
			return "connected", rdb.Ping(ctx).Err()
		}
	}

	archive := depCheck{name: "upload_archive", slow: time.Second}
	if bucket != nil && bucketName != "" {
		archive.run = func(ctx context.Context) (string, error) {
			_, err := bucket.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &bucketName})
			return fmt.Sprintf("bucket %q accessible", bucketName), err
		}
	}

	hc.deps = []depCheck{database, imports, cache, archive}
	return hc
}

// HandleHealth always answers 200; the body carries the verdict.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	httputil.JSON(w, http.StatusOK, HealthStatus{
		Status:  determineOverallStatus(checks),
		Version: healthVersion,
		Uptime:  hc.uptime(),
		Checks:  checks,
	})
}

// HandleLiveness answers as long as the process serves requests.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"status": "alive",
		"uptime": hc.uptime(),
	})
}

// HandleReadiness answers 503 while a required dependency is down.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	overall := determineOverallStatus(checks)

	code := http.StatusOK
	if overall == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	httputil.JSON(w, code, map[string]interface{}{
		"ready":  overall != "unhealthy",
		"status": overall,
		"checks": checks,
	})
}

func (hc *HealthChecker) uptime() string {
	return time.Since(hc.startTime).Round(time.Second).String()
}

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	checks := make(map[string]ComponentCheck, len(hc.deps))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, p := range hc.deps {
		wg.Add(1)
		go func(p depCheck) {
			defer wg.Done()
			c := p.check(ctx)
			mu.Lock()
			checks[p.name] = c
			mu.Unlock()
		}(p)
	}
	wg.Wait()
	return checks
}

func (p depCheck) check(ctx context.Context) ComponentCheck {
	if p.run == nil {
		return ComponentCheck{Status: statusDisabled, Required: p.required, Message: "not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	msg, err := p.run(ctx)
	latency := time.Since(start)

	c := ComponentCheck{Status: statusUp, Required: p.required, Latency: latency.String(), Message: msg}
	switch {
	case errors.Is(err, errStuckImports):
		c.Status = statusDegraded
	case err != nil:
		c.Status = statusDown
		c.Message = err.Error()
	case p.slow > 0 && latency > p.slow:
		c.Status = statusDegraded
		c.Message = fmt.Sprintf("slow response (%s)", latency)
	}
	return c
}

// stuckImports counts batches left in processing, which usually means a
// server died mid-import.
func stuckImports(ctx context.Context, db *sql.DB) (string, error) {
	var stuck int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM import_batches WHERE status = 'processing' AND created_at < $1`,
		time.Now().Add(-stuckImportAge),
	).Scan(&stuck)
	if err != nil {
		return "", fmt.Errorf("import check failed: %w", err)
	}
	if stuck > 0 {
		return fmt.Sprintf("%d imports processing for over %s", stuck, stuckImportAge), errStuckImports
	}
	return "no stuck imports", nil
}

// determineOverallStatus is unhealthy when a required dependency is down and
// degraded when anything else is down or degraded. Disabled components do
// not count.
func determineOverallStatus(checks map[string]ComponentCheck) string {
	overall := "healthy"
	for _, c := range checks {
		switch c.Status {
		case statusDown:
			if c.Required {
				return "unhealthy"
			}
			overall = "degraded"
		case statusDegraded:
			overall = "degraded"
		}
	}
	return overall
}
