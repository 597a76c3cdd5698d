package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
	"github.com/google/uuid"

	"github.com/ternarybob/docharvest/internal/common"
	"github.com/ternarybob/docharvest/internal/interfaces"
	cmodels "github.com/ternarybob/docharvest/internal/models"
	"github.com/ternarybob/docharvest/internal/services/classifier"
	"github.com/ternarybob/docharvest/internal/services/crawler"
	"github.com/ternarybob/docharvest/internal/services/llm"
	"github.com/ternarybob/docharvest/internal/services/pdf"
	"github.com/ternarybob/docharvest/internal/services/uploader"
	"github.com/ternarybob/docharvest/internal/storage/badger"
)

// worker is the per-Job sub-process the Job Supervisor spawns via
// `os/exec`. It owns the crawl -> classify -> upload pipeline end to end
// and exits; the Supervisor's runner only watches its exit code and
// captures its stdout/stderr into the job's log ring buffer, so logging
// here goes to the console writer only (no file, no banner).
func main() {
	jobID := flag.String("job-id", "", "Job ID to process (required)")
	var configFiles configPaths
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
	flag.Parse()

	if *jobID == "" {
		fmt.Fprintln(os.Stderr, "worker: -job-id is required")
		os.Exit(1)
	}

	logger := arbor.NewLogger().WithConsoleWriter(models.WriterConfiguration{
		Type:             models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		TextOutput:       true,
		DisableTimestamp: false,
	})

	if len(configFiles) == 0 {
		if _, err := os.Stat("docharvest.toml"); err == nil {
			configFiles = append(configFiles, "docharvest.toml")
		} else if _, err := os.Stat("deployments/local/docharvest.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/docharvest.toml")
		}
	}
	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker failed to load configuration")
	}
	logger = logger.WithLevelFromString(config.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storageManager, err := badger.NewManager(logger, &config.Store.Badger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker failed to open storage")
	}
	defer storageManager.Close()

	w := &worker{
		jobID:   *jobID,
		cfg:     config,
		storage: storageManager,
		logger:  logger,
	}

	if err := w.run(ctx); err != nil {
		logger.Error().Str("job_id", *jobID).Err(err).Msg("job failed")
		os.Exit(1)
	}
}

type configPaths []string

func (c *configPaths) String() string { return fmt.Sprintf("%v", *c) }
func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

// worker holds the dependencies for one job's run.
type worker struct {
	jobID   string
	cfg     *common.Config
	storage interfaces.StorageManager
	logger  arbor.ILogger

	job *cmodels.Job
}

func (w *worker) run(ctx context.Context) error {
	job, err := w.storage.Jobs().GetJob(ctx, w.jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", w.jobID, err)
	}
	if job == nil {
		return fmt.Errorf("job %s not found", w.jobID)
	}
	w.job = job

	w.logger.Info().Str("job_id", job.ID).Str("kind", string(job.Kind)).Msg("worker starting")

	var pdfs []*cmodels.DiscoveredPdf
	switch job.Kind {
	case cmodels.JobKindCrawl:
		pdfs, err = w.crawlStage(ctx)
	case cmodels.JobKindBulkUpload:
		pdfs, err = w.loadBulkUploadPdfs(ctx)
	default:
		err = fmt.Errorf("unknown job kind %q", job.Kind)
	}
	if err != nil {
		return w.terminate(ctx, cmodels.JobStatusFailed, err.Error())
	}
	if w.cancelled(ctx) {
		return w.terminate(ctx, cmodels.JobStatusCancelled, "cancelled during crawl stage")
	}

	if err := w.transition(ctx, cmodels.JobStatusClassifying); err != nil {
		return err
	}
	technical, content, err := w.classifyStage(ctx, pdfs)
	if err != nil {
		return w.terminate(ctx, cmodels.JobStatusFailed, err.Error())
	}
	if w.cancelled(ctx) {
		return w.terminate(ctx, cmodels.JobStatusCancelled, "cancelled during classify stage")
	}

	if err := w.transition(ctx, cmodels.JobStatusUploading); err != nil {
		return err
	}
	if err := w.uploadStage(ctx, technical, content); err != nil {
		return w.terminate(ctx, cmodels.JobStatusFailed, err.Error())
	}

	if job.Kind == cmodels.JobKindCrawl && job.WeeklyRecrawl {
		w.registerSchedule(ctx)
	}

	return w.terminate(ctx, cmodels.JobStatusCompleted, "")
}

// registerSchedule creates the weekly recrawl Schedule for a crawl Job that
// requested WeeklyRecrawl, once the job has completed successfully. Doing
// this on completion rather than at job creation means a first crawl that
// fails or is cancelled never leaves a recurring schedule behind.
func (w *worker) registerSchedule(ctx context.Context) {
	sched := &cmodels.Schedule{
		ID:               uuid.NewString(),
		ManufacturerName: w.job.ManufacturerName,
		Domain:           w.job.Source,
		ProductLines:     w.job.ProductLines,
		SharePointFolder: w.job.SharePointFolder,
		Cron:             "0 0 * * 0",
		Enabled:          true,
	}
	if err := w.storage.Schedules().SaveSchedule(ctx, sched); err != nil {
		w.logger.Warn().Str("job_id", w.job.ID).Err(err).Msg("failed to register weekly schedule")
		return
	}
	w.job.ScheduleID = sched.ID
}

// crawlStage runs the Crawler Engine over the job's seed URL, persisting
// one DiscoveredPdf per discovered link.
func (w *worker) crawlStage(ctx context.Context) ([]*cmodels.DiscoveredPdf, error) {
	job := w.job
	cc := w.cfg.Crawler

	var pool *crawler.ChromeDPPool
	if cc.BrowserPoolSize > 0 {
		pool = crawler.NewChromeDPPool(crawler.ChromeDPPoolConfig{
			MaxInstances:       cc.BrowserPoolSize,
			UserAgent:          cc.UserAgent,
			Headless:           true,
			DisableGPU:         true,
			NoSandbox:          true,
			JavaScriptWaitTime: 2 * time.Second,
			RequestTimeout:     cc.RequestTimeout,
		}, w.logger)
		if err := pool.InitBrowserPool(crawler.ChromeDPPoolConfig{
			MaxInstances:       cc.BrowserPoolSize,
			UserAgent:          cc.UserAgent,
			Headless:           true,
			DisableGPU:         true,
			NoSandbox:          true,
			JavaScriptWaitTime: 2 * time.Second,
			RequestTimeout:     cc.RequestTimeout,
		}); err != nil {
			w.logger.Warn().Err(err).Msg("browser pool unavailable, anti-bot escalation disabled")
			pool = nil
		} else {
			defer pool.ShutdownBrowserPool()
		}
	}

	fetcher := crawler.NewFetcher(cc.UserAgent, cc.RequestTimeout, cc.MaxRedirects, cc.MaxBodySize, pool, w.logger)
	hostLimiter := crawler.NewHostLimiter(float64(cc.MaxConcurrencyPerHost), cc.MaxConcurrencyPerHost)
	engine := crawler.NewEngine(fetcher, hostLimiter, w.logger)

	result := engine.Run(ctx, crawler.CrawlConfig{
		SeedURL:               job.Source,
		ProductLines:          job.ProductLines,
		MaxPages:              cc.MaxPages,
		MaxDepth:              cc.MaxDepth,
		MaxConcurrencyPerHost: cc.MaxConcurrencyPerHost,
		UserAgent:             cc.UserAgent,
		RequestTimeout:        cc.RequestTimeout,
		MaxBodySize:           cc.MaxBodySize,
		MaxRedirects:          cc.MaxRedirects,
		BrowserPoolSize:       cc.BrowserPoolSize,
	}, func() bool { return w.cancelled(ctx) })

	if result.FatalErr != nil {
		return nil, result.FatalErr
	}

	w.logger.Info().
		Int("pages_visited", result.PagesVisited).
		Int("pdfs_found", len(result.PdfURLs)).
		Int("non_fatal_errors", result.NonFatalCount).
		Msg("crawl complete")

	now := time.Now()
	pdfs := make([]*cmodels.DiscoveredPdf, 0, len(result.PdfURLs))
	for _, u := range result.PdfURLs {
		existing, err := w.storage.Pdfs().FindByJobAndURL(ctx, job.ID, u)
		if err != nil {
			w.logger.Warn().Str("url", u).Err(err).Msg("dedup lookup failed, persisting anyway")
		}
		if existing != nil {
			pdfs = append(pdfs, existing)
			continue
		}
		p := &cmodels.DiscoveredPdf{
			ID:        uuid.NewString(),
			JobID:     job.ID,
			SourceURL: u,
			Filename:  filenameFromURL(u),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := w.storage.Pdfs().SavePdf(ctx, p); err != nil {
			w.logger.Warn().Str("url", u).Err(err).Msg("failed to persist discovered pdf")
			continue
		}
		pdfs = append(pdfs, p)
	}

	job.PdfsFound = len(pdfs)
	if err := w.storage.Jobs().UpdateJob(ctx, job); err != nil {
		w.logger.Warn().Err(err).Msg("failed to persist pdfs_found count")
	}

	return pdfs, nil
}

// loadBulkUploadPdfs reads the DiscoveredPdf rows the HTTP API adapter
// pre-created from the uploaded parts list; no crawl stage runs.
func (w *worker) loadBulkUploadPdfs(ctx context.Context) ([]*cmodels.DiscoveredPdf, error) {
	pdfs, err := w.storage.Pdfs().ListByJob(ctx, w.job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load parts-list rows: %w", err)
	}
	w.job.PdfsFound = len(pdfs)
	if err := w.storage.Jobs().UpdateJob(ctx, w.job); err != nil {
		w.logger.Warn().Err(err).Msg("failed to persist pdfs_found count")
	}
	return pdfs, nil
}

// classifyStage downloads and classifies every discovered PDF, returning
// only the ones whose document_type is upload-eligible.
func (w *worker) classifyStage(ctx context.Context, pdfs []*cmodels.DiscoveredPdf) ([]*cmodels.DiscoveredPdf, map[string][]byte, error) {
	var classify func(ctx context.Context, filename string, pdfBytes []byte) (cmodels.DocumentType, bool)
	llmService, err := llm.NewClaudeService(w.cfg.Classifier, w.logger)
	if err != nil {
		w.logger.Warn().Err(err).Msg("LLM classification unavailable, falling back to filename heuristic for all PDFs")
		classify = func(_ context.Context, filename string, _ []byte) (cmodels.DocumentType, bool) {
			docType := classifier.ClassifyByFilename(filename)
			return docType, docType.IsAllowListed()
		}
	} else {
		defer llmService.Close()
		extractor := pdf.NewExtractor(w.logger)
		c := classifier.NewClassifier(llmService, extractor, w.cfg.Classifier.ConfidenceThreshold, w.logger)
		classify = c.Classify
	}

	httpClient := &http.Client{Timeout: w.cfg.Crawler.RequestTimeout}
	retry := crawler.NewRetryPolicy()
	technical := make([]*cmodels.DiscoveredPdf, 0, len(pdfs))
	content := make(map[string][]byte, len(pdfs))

	for _, p := range pdfs {
		if w.cancelled(ctx) {
			break
		}

		body, err := downloadPDF(ctx, httpClient, p.SourceURL, w.cfg.Crawler.MaxBodySize, retry, w.logger)
		if err != nil {
			p.Error = err.Error()
			p.UpdatedAt = time.Now()
			w.storage.Pdfs().UpdatePdf(ctx, p)
			w.job.PdfsFailed++
			continue
		}
		p.FileSize = int64(len(body))

		docType, eligible := classify(ctx, p.Filename, body)
		p.DocumentType = docType
		p.IsTechnical = eligible
		p.UpdatedAt = time.Now()
		if err := w.storage.Pdfs().UpdatePdf(ctx, p); err != nil {
			w.logger.Warn().Str("pdf_id", p.ID).Err(err).Msg("failed to persist classification")
		}
		w.job.PdfsClassified++

		if eligible {
			content[p.ID] = body
			technical = append(technical, p)
		}
	}

	if err := w.storage.Jobs().UpdateJob(ctx, w.job); err != nil {
		w.logger.Warn().Err(err).Msg("failed to persist classify-stage counters")
	}

	return technical, content, nil
}

// uploadStage transfers every technical PDF to the destination store,
// bounded by the configured concurrent-upload limit.
func (w *worker) uploadStage(ctx context.Context, technical []*cmodels.DiscoveredPdf, content map[string][]byte) error {
	if len(technical) == 0 {
		return nil
	}

	uc := w.cfg.Uploader
	tokens := uploader.NewTokenCache(uc.IdentityClientID, uc.IdentityClientSecret, uc.TokenURL, uc.Scope)
	store := uploader.NewStoreClient(uc.BaseURL, tokens, uc.ChunkSizeBytes, uc.ChunkTimeout)
	up := uploader.NewUploader(store, w.logger)

	artifacts := make([]uploader.Artifact, len(technical))
	for i, p := range technical {
		artifacts[i] = uploader.Artifact{
			JobID:             w.job.ID,
			SourceURL:         p.SourceURL,
			Filename:          p.Filename,
			Content:           content[p.ID],
			DestinationFolder: w.job.SharePointFolder,
		}
	}

	outcomes := up.UploadAll(ctx, artifacts, uc.MaxConcurrentUploads)
	for i, outcome := range outcomes {
		p := technical[i]
		p.SharePointUploaded = outcome.Uploaded || outcome.Deduped
		if outcome.Error != "" {
			p.Error = outcome.Error
		}
		p.UpdatedAt = time.Now()
		if err := w.storage.Pdfs().UpdatePdf(ctx, p); err != nil {
			w.logger.Warn().Str("pdf_id", p.ID).Err(err).Msg("failed to persist upload outcome")
		}
		if p.SharePointUploaded {
			w.job.PdfsUploaded++
		} else {
			w.job.PdfsFailed++
		}
	}

	return w.storage.Jobs().UpdateJob(ctx, w.job)
}

// transition persists a Job status change, refusing anything the state
// machine disallows.
func (w *worker) transition(ctx context.Context, next cmodels.JobStatus) error {
	if !w.job.CanTransitionTo(next) {
		return fmt.Errorf("invalid transition %s -> %s", w.job.Status, next)
	}
	w.job.Status = next
	w.job.UpdatedAt = time.Now()
	return w.storage.Jobs().UpdateJob(ctx, w.job)
}

// terminate persists the job's final status and reason, overriding a
// requested "completed" with "cancelled" if cancellation was seen along
// the way.
func (w *worker) terminate(ctx context.Context, status cmodels.JobStatus, reason string) error {
	if w.job.Status.IsTerminal() {
		return nil
	}
	if status == cmodels.JobStatusCompleted && w.cancelled(ctx) {
		status = cmodels.JobStatusCancelled
		reason = "cancelled"
	}
	if !w.job.CanTransitionTo(status) {
		if reason == "" {
			reason = fmt.Sprintf("worker could not reach %s from %s", status, w.job.Status)
		}
		status = cmodels.JobStatusFailed
	}
	now := time.Now()
	w.job.Status = status
	w.job.FailureReason = reason
	w.job.WorkerPID = 0
	w.job.UpdatedAt = now
	w.job.FinishedAt = &now
	if err := w.storage.Jobs().UpdateJob(ctx, w.job); err != nil {
		return err
	}
	if status == cmodels.JobStatusFailed {
		return errors.New(reason)
	}
	return nil
}

// filenameFromURL mirrors the HTTP API adapter's parts-list filename
// derivation so crawl-discovered and bulk-uploaded PDFs are named
// consistently at the destination store.
func filenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	decoded, err := url.PathUnescape(path.Base(u.Path))
	if err != nil {
		return path.Base(u.Path)
	}
	return decoded
}

// cancelled re-reads the job's cancel_requested flag from storage so a
// SIGTERM-driven API cancellation is observed mid-stage.
func (w *worker) cancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	current, err := w.storage.Jobs().GetJob(ctx, w.job.ID)
	if err != nil || current == nil {
		return false
	}
	return current.CancelRequested
}

// downloadPDF fetches rawURL's body, retrying transient failures (timeouts,
// 429/5xx) with backoff via retry before giving up.
func downloadPDF(ctx context.Context, client *http.Client, rawURL string, maxBytes int64, retry *crawler.RetryPolicy, logger arbor.ILogger) ([]byte, error) {
	var body []byte
	_, err := retry.ExecuteWithRetry(ctx, logger, func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return 0, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return resp.StatusCode, fmt.Errorf("status %d fetching %s", resp.StatusCode, rawURL)
		}
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
		if err != nil {
			return resp.StatusCode, err
		}
		body = b
		return resp.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}
