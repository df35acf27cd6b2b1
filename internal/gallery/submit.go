package gallery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"photowall/internal/logging"
	"photowall/internal/metrics"
)

const tracerName = "photowall/internal/gallery"

// SubmitterConfig tunes the orchestrator.
type SubmitterConfig struct {
	// UploadTimeout bounds the whole upload batch. Zero means no bound
	// beyond the caller's context.
	UploadTimeout time.Duration
	// CleanupOnFailure removes already-stored objects of a failed batch
	// when the uploader implements Remover.
	CleanupOnFailure bool
}

// Submitter turns a batch of raw files plus metadata into one persisted
// submission and one live broadcast.
type Submitter struct {
	store   SubmissionStore
	media   Uploader
	live    Broadcaster
	metrics *metrics.Metrics
	log     *logging.Logger
	cfg     SubmitterConfig
	now     func() time.Time
}

// NewSubmitter wires the orchestrator. m and log may be nil.
func NewSubmitter(store SubmissionStore, media Uploader, live Broadcaster, m *metrics.Metrics, log *logging.Logger, cfg SubmitterConfig) *Submitter {
	if log == nil {
		log = logging.Default()
	}
	return &Submitter{
		store:   store,
		media:   media,
		live:    live,
		metrics: m,
		log:     log,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Submit uploads every file concurrently, waits for all of them to settle,
// then persists one submission and broadcasts it. Any upload failure fails
// the whole call and nothing is persisted or broadcast.
func (s *Submitter) Submit(ctx context.Context, meta Metadata, files []File) (*Submission, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "gallery.Submit")
	defer span.End()
	span.SetAttributes(attribute.Int("gallery.files", len(files)))

	start := s.now()

	if err := validateSubmission(meta, files); err != nil {
		s.fail(span, err)
		return nil, err
	}

	urls, err := s.uploadAll(ctx, files)
	if err != nil {
		s.fail(span, err)
		return nil, err
	}

	images := make([]Image, len(urls))
	for i, u := range urls {
		images[i] = Image{URL: u}
	}

	sub := &Submission{
		Name:              strings.TrimSpace(meta.Name),
		SocialMediaHandle: strings.TrimSpace(meta.SocialMediaHandle),
		Images:            images,
	}
	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		perr := persistenceError("failed to save submission", err)
		s.log.Error("submission_persist_failed", logging.Fields{"images": len(images)}, err)
		s.fail(span, perr)
		return nil, perr
	}

	s.live.Broadcast(sub)
	s.metrics.RecordBroadcast()

	var total int64
	for _, f := range files {
		total += int64(len(f.Data))
	}
	s.metrics.RecordSubmission(len(images), total, s.now().Sub(start))
	span.SetAttributes(attribute.String("gallery.submission_id", sub.ID))

	s.log.Info("submission_created", logging.Fields{
		"id":     sub.ID,
		"images": len(images),
		"bytes":  total,
	})
	return sub, nil
}

func validateSubmission(meta Metadata, files []File) error {
	if len(files) == 0 {
		return validationError("No files were uploaded.")
	}
	if strings.TrimSpace(meta.Name) == "" {
		return validationError("name is required")
	}
	if strings.TrimSpace(meta.SocialMediaHandle) == "" {
		return validationError("socialMediaHandle is required")
	}
	for i, f := range files {
		if len(f.Data) == 0 {
			return validationError(fmt.Sprintf("file %d is empty", i+1))
		}
	}
	return nil
}

// uploadAll launches one upload per file and joins them. URLs are returned
// in the order the uploads completed. The first failure observed is
// returned only after every upload has settled.
func (s *Submitter) uploadAll(ctx context.Context, files []File) ([]string, error) {
	if s.cfg.UploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.UploadTimeout)
		defer cancel()
	}

	var (
		mu   sync.Mutex
		urls = make([]string, 0, len(files))
		g    errgroup.Group
	)
	tracer := otel.Tracer(tracerName)

	for i, f := range files {
		g.Go(func() error {
			uctx, span := tracer.Start(ctx, "gallery.Upload")
			defer span.End()
			span.SetAttributes(
				attribute.Int("gallery.file_index", i),
				attribute.Int("gallery.file_bytes", len(f.Data)),
			)

			url, err := s.media.Upload(uctx, f)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "upload failed")
				s.metrics.RecordUploadError()
				s.log.Error("media_upload_failed", logging.Fields{
					"file":  f.Filename,
					"index": i,
					"bytes": len(f.Data),
					"rid":   logging.RequestID(ctx),
				}, err)
				return err
			}

			mu.Lock()
			urls = append(urls, url)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if s.cfg.CleanupOnFailure {
			s.cleanup(context.WithoutCancel(ctx), urls)
		}
		return nil, uploadError(err)
	}
	return urls, nil
}

// cleanup best-effort deletes objects that were stored before the batch
// failed.
func (s *Submitter) cleanup(ctx context.Context, urls []string) {
	rm, ok := s.media.(Remover)
	if !ok || len(urls) == 0 {
		return
	}

	var deleted, failed int
	for _, u := range urls {
		if err := rm.Remove(ctx, u); err != nil {
			failed++
			s.log.Warn("media_cleanup_failed", logging.Fields{"url": u, "error": err.Error()})
			continue
		}
		deleted++
	}
	s.metrics.RecordCleanup(deleted, failed)
	s.log.Info("media_cleanup_done", logging.Fields{"deleted": deleted, "failed": failed})
}

func (s *Submitter) fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(KindOf(err)))
	s.metrics.RecordSubmissionFailure(string(KindOf(err)))
}

// List returns every persisted submission, oldest first. The result is
// never nil.
func (s *Submitter) List(ctx context.Context) ([]Submission, error) {
	subs, err := s.store.ListSubmissions(ctx)
	if err != nil {
		return nil, persistenceError("failed to list submissions", err)
	}
	if subs == nil {
		subs = []Submission{}
	}
	return subs, nil
}
