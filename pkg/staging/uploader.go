package staging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sandboxws/stagesync/pkg/databend"
	"github.com/sandboxws/stagesync/pkg/metrics"
	"github.com/sandboxws/stagesync/pkg/retry"
	"github.com/sandboxws/stagesync/pkg/session"
)

// MaxUploadAttempts is the number of presign+PUT attempts per batch file.
const MaxUploadAttempts = 3

// Uploader puts batch files into a stage through presigned URLs.
type Uploader struct {
	exec     session.Executor
	client   *http.Client
	attempts int
	timeout  time.Duration
	logger   *slog.Logger
}

// NewUploader creates an Uploader. timeout bounds each attempt; zero means
// no per-attempt bound. A nil client uses http.DefaultClient.
func NewUploader(exec session.Executor, client *http.Client, timeout time.Duration) *Uploader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Uploader{
		exec:     exec,
		client:   client,
		attempts: MaxUploadAttempts,
		timeout:  timeout,
		logger:   slog.Default().With("component", "uploader"),
	}
}

// Upload puts file into stage/path, retrying up to MaxUploadAttempts times.
// The returned error wraps the last attempt's error.
func (u *Uploader) Upload(ctx context.Context, stage, path, file string) error {
	_, err := retry.Do(ctx, u.attempts, func(ctx context.Context, attempt int) (struct{}, error) {
		if err := u.put(ctx, stage, path, file); err != nil {
			metrics.UploadAttempts.WithLabelValues(stage, "failure").Inc()
			u.logger.Error("upload attempt failed",
				"file", file, "stage", stage, "attempt", attempt, "max_attempts", u.attempts, "error", err)
			return struct{}{}, err
		}
		metrics.UploadAttempts.WithLabelValues(stage, "success").Inc()
		return struct{}{}, nil
	})
	return err
}

func (u *Uploader) put(ctx context.Context, stage, path, file string) error {
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	base := filepath.Base(file)
	rows, err := u.exec.Execute(ctx, databend.PresignUpload(stage, path, base))
	if err != nil {
		return fmt.Errorf("presign %s: %w", base, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("presign %s: empty result", base)
	}
	presigned, err := databend.ParsePresign(rows[0])
	if err != nil {
		return err
	}

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", file, err)
	}

	req, err := http.NewRequestWithContext(ctx, presigned.Method, presigned.URL, f)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.ContentLength = info.Size()
	for k, v := range presigned.Headers {
		if strings.EqualFold(k, "host") {
			req.Host = v
			continue
		}
		req.Header.Set(k, v)
	}

	u.logger.Info("uploading batch file", "file", file, "size", info.Size(), "stage", stage, "path", path)
	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("put %s: %w", base, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return fmt.Errorf("upload failed with status code %d", resp.StatusCode)
	}
	metrics.BytesUploaded.WithLabelValues(stage).Add(float64(info.Size()))
	return nil
}
