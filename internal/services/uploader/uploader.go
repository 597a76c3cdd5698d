// -----------------------------------------------------------------------
// Uploader - streaming chunked transfer to the remote document store,
// with dedup and retry.
// -----------------------------------------------------------------------

package uploader

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"
)

// retryableStatusCodes mirrors crawler.RetryPolicy's table: transient
// failures that are worth a second attempt.
var retryableStatusCodes = map[int]bool{
	408: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// terminalStatusCodes are per-artifact failures that must not retry (a 401
// only after one re-authenticated attempt): the upload is recorded as
// failed but the owning Job continues.
var terminalStatusCodes = map[int]bool{
	401: true,
	403: true,
	413: true,
	415: true,
}

const maxAttempts = 3

var backoffSchedule = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// Uploader transfers technical PDFs to the configured destination folder,
// deduplicating by ArtifactKey and retrying transient failures. Retry
// honors a 429 Retry-After header and classifies errors as
// terminal-per-artifact rather than fatal to the whole batch.
type Uploader struct {
	client *StoreClient
	logger arbor.ILogger
}

// NewUploader builds an Uploader around a destination store client.
func NewUploader(client *StoreClient, logger arbor.ILogger) *Uploader {
	return &Uploader{client: client, logger: logger}
}

// Upload transfers one Artifact, deduplicating first and retrying
// transient failures up to maxAttempts times.
func (u *Uploader) Upload(ctx context.Context, artifact Artifact) Outcome {
	start := time.Now()

	exists, err := u.client.Exists(ctx, artifact.DestinationFolder, artifact.Filename, int64(len(artifact.Content)))
	if err != nil {
		u.logger.Debug().Str("filename", artifact.Filename).Err(err).Msg("dedup lookup failed, proceeding with upload")
	} else if exists {
		return Outcome{Deduped: true, Duration: time.Since(start)}
	}

	var lastErr error
	reauthed := false
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = u.client.Upload(ctx, artifact.DestinationFolder, artifact.Filename, artifact.Content)
		if lastErr == nil {
			return Outcome{Uploaded: true, Attempts: attempt + 1, Duration: time.Since(start)}
		}

		var se *StoreError
		if !errors.As(lastErr, &se) {
			break // unclassified error (e.g. context cancellation): do not retry
		}
		if se.StatusCode == 401 && !reauthed && attempt < maxAttempts-1 {
			// The client already dropped the cached token, so the next
			// attempt re-authenticates; a second 401 is terminal.
			reauthed = true
			continue
		}
		if terminalStatusCodes[se.StatusCode] {
			return Outcome{Error: se.Error(), Terminal: true, Attempts: attempt + 1, Duration: time.Since(start)}
		}
		if !retryableStatusCodes[se.StatusCode] {
			return Outcome{Error: se.Error(), Terminal: true, Attempts: attempt + 1, Duration: time.Since(start)}
		}
		if attempt == maxAttempts-1 {
			break
		}

		wait := backoffSchedule[attempt]
		if se.RetryAfter > 0 {
			wait = se.RetryAfter
		}
		u.logger.Debug().Str("filename", artifact.Filename).Int("attempt", attempt+1).Dur("wait", wait).Msg("upload failed, retrying")

		select {
		case <-ctx.Done():
			return Outcome{Error: ctx.Err().Error(), Attempts: attempt + 1, Duration: time.Since(start)}
		case <-time.After(wait):
		}
	}

	return Outcome{Error: lastErr.Error(), Attempts: maxAttempts, Duration: time.Since(start)}
}
