package uploader

import (
	"context"
	"sync"
)

// UploadAll runs Upload over every artifact bounded by maxConcurrent
// in-flight transfers.
func (u *Uploader) UploadAll(ctx context.Context, artifacts []Artifact, maxConcurrent int) []Outcome {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	outcomes := make([]Outcome, len(artifacts))
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for i, artifact := range artifacts {
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, artifact Artifact) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = u.Upload(ctx, artifact)
		}(i, artifact)
	}

	wg.Wait()
	return outcomes
}
