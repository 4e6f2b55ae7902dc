// Package jobs runs the post-assembly pipeline: transform, dual upload,
// metadata update, notification, cleanup. A bounded worker pool consumes
// jobs FIFO; transcoding is further limited because the ffmpeg subprocess
// will starve the host if run in parallel.
package jobs

import (
	"bytes"
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/cenkalti/backoff/v4"
	"github.com/snapify/snapify/pkg/model"
	"github.com/snapify/snapify/pkg/notify"
	"github.com/snapify/snapify/pkg/objstore"
	"github.com/snapify/snapify/pkg/sniff"
	"github.com/snapify/snapify/pkg/stor"
	"github.com/snapify/snapify/pkg/transform"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkerCount = 3
	DefaultMaxRetries  = 3

	jobBufferSize = 256
)

type QueueOpts struct {
	Workers              int
	MaxRetries           int
	TranscodeConcurrency int
	BackoffBase          time.Duration
}

type Queue struct {
	workers      int
	maxRetries   int
	backoffBase  time.Duration
	jobs         chan *model.Job
	transcodeSem chan struct{}

	store      objstore.Store
	assets     stor.MediaAssetStor
	transcoder transform.Transcoder
	notifier   notify.Notifier

	wg      sync.WaitGroup
	pending sync.WaitGroup
}

func NewQueue(store objstore.Store, assets stor.MediaAssetStor, transcoder transform.Transcoder, notifier notify.Notifier, opts QueueOpts) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkerCount
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.TranscodeConcurrency <= 0 {
		opts.TranscodeConcurrency = 1
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 500 * time.Millisecond
	}
	if notifier == nil {
		notifier = notify.NullNotifier{}
	}

	return &Queue{
		workers:      opts.Workers,
		maxRetries:   opts.MaxRetries,
		backoffBase:  opts.BackoffBase,
		jobs:         make(chan *model.Job, jobBufferSize),
		transcodeSem: make(chan struct{}, opts.TranscodeConcurrency),
		store:        store,
		assets:       assets,
		transcoder:   transcoder,
		notifier:     notifier,
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

// Wait blocks until every submitted job has reached a terminal state. Used
// by tests and by shutdown.
func (q *Queue) Wait() {
	q.pending.Wait()
}

// Submit creates the media asset record for an assembled upload and
// enqueues the processing job. Past this point the session cannot be
// cancelled; the job runs to completion or exhausts its retries.
func (q *Queue) Submit(session *model.UploadSession, file *model.AssembledFile) (*model.MediaAsset, error) {
	asset := &model.MediaAsset{
		CollectionID: session.CollectionID,
		Kind:         sniff.KindOf(file.MimeType),
		Processing:   true,
		UploaderID:   session.UploaderID,
		UploaderName: session.UploaderName,
		Caption:      session.Caption,
	}

	asset, err := q.assets.CreateMediaAsset(asset)
	if err != nil {
		return nil, err
	}

	q.notifier.Publish(session.CollectionID, notify.Event{
		ID:              asset.ID,
		Status:          notify.StatusProcessing,
		ProgressPercent: 100,
	})

	job := &model.Job{
		AssetID: asset.ID,
		File:    file,
		Session: session,
	}

	q.pending.Add(1)
	q.jobs <- job

	return asset, nil
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case job := <-q.jobs:
			q.runJob(ctx, job)
		}
	}
}

func (q *Queue) runJob(ctx context.Context, job *model.Job) {
	err := q.processAttempt(ctx, job)
	if err == nil {
		q.cleanup(job)
		q.pending.Done()
		return
	}

	job.Attempts++
	log.Errorf("job %s attempt %d failed: %s", job.AssetID, job.Attempts, err)

	if job.Attempts > q.maxRetries {
		q.terminalFail(job, err)
		q.cleanup(job)
		q.pending.Done()
		return
	}

	delay := q.retryDelay(job.Attempts)
	job.NotBefore = time.Now().Add(delay)

	// Requeue off the worker so the pool keeps draining while this job
	// waits out its backoff.
	time.AfterFunc(delay, func() {
		select {
		case q.jobs <- job:
		case <-ctx.Done():
			q.cleanup(job)
			q.pending.Done()
		}
	})
}

// retryDelay walks an exponential backoff to the given attempt number.
func (q *Queue) retryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = q.backoffBase
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = 30 * time.Second

	var d time.Duration
	for i := 0; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

func (q *Queue) processAttempt(ctx context.Context, job *model.Job) error {
	switch sniff.KindOf(job.File.MimeType) {
	case model.MediaKindImage:
		return q.processImage(ctx, job)
	case model.MediaKindVideo:
		return q.processVideo(ctx, job)
	default:
		return q.processOther(ctx, job)
	}
}

func (q *Queue) processImage(ctx context.Context, job *model.Job) error {
	data, err := os.ReadFile(job.File.Path)
	if err != nil {
		return err
	}

	result, err := transform.ProcessImage(data)
	if err != nil {
		return err
	}

	collectionID := job.Session.CollectionID
	primaryKey := model.PrimaryKeyFor(collectionID, job.AssetID, result.Primary.Ext)
	previewKey := model.PreviewKeyFor(collectionID, job.AssetID, result.Thumb.Ext)

	if err := q.uploadPair(ctx,
		uploadSpec{key: primaryKey, data: result.Primary.Data, contentType: result.Primary.ContentType},
		uploadSpec{key: previewKey, data: result.Thumb.Data, contentType: result.Thumb.ContentType},
	); err != nil {
		return err
	}

	return q.finish(job, primaryKey, previewKey, "")
}

func (q *Queue) processVideo(ctx context.Context, job *model.Job) error {
	// The original is never re-encoded; it is the primary asset as-is.
	collectionID := job.Session.CollectionID
	primaryKey := model.PrimaryKeyFor(collectionID, job.AssetID, model.ExtOf(job.File.FileName))
	previewKey := model.PreviewKeyFor(collectionID, job.AssetID, "mp4")

	previewPath := job.File.Path + ".preview.mp4"
	framePath := job.File.Path + ".frame.jpg"
	defer func() {
		_ = os.Remove(previewPath)
		_ = os.Remove(framePath)
	}()

	// The semaphore bounds concurrent ffmpeg subprocesses, so it stays held
	// across both the transcode and the frame grab.
	q.transcodeSem <- struct{}{}
	err := q.transcoder.Transcode(ctx, job.File.Path, previewPath, transform.TranscodeOpts{})
	var frameErr error
	if err == nil {
		frameErr = q.transcoder.ExtractFrame(ctx, job.File.Path, framePath)
	}
	<-q.transcodeSem

	if err != nil {
		return err
	}

	// Frame extraction failure is a known gap, not a job failure: the
	// asset degrades to a missing thumbnail.
	thumbKey := ""
	if frameErr != nil {
		log.Warnf("frame extraction for %s failed: %s", job.AssetID, frameErr)
	} else {
		thumbKey = model.PreviewKeyFor(collectionID, job.AssetID, "jpg")
	}

	specs := []uploadSpec{
		{key: primaryKey, path: job.File.Path, contentType: job.File.MimeType},
		{key: previewKey, path: previewPath, contentType: "video/mp4"},
	}
	if thumbKey != "" {
		specs = append(specs, uploadSpec{key: thumbKey, path: framePath, contentType: "image/jpeg"})
	}

	if err := q.uploadPair(ctx, specs...); err != nil {
		return err
	}

	return q.finish(job, primaryKey, previewKey, thumbKey)
}

func (q *Queue) processOther(ctx context.Context, job *model.Job) error {
	collectionID := job.Session.CollectionID
	primaryKey := model.PrimaryKeyFor(collectionID, job.AssetID, model.ExtOf(job.File.FileName))

	if err := q.uploadPair(ctx, uploadSpec{
		key:         primaryKey,
		path:        job.File.Path,
		contentType: job.File.MimeType,
	}); err != nil {
		return err
	}

	return q.finish(job, primaryKey, "", "")
}

func (q *Queue) finish(job *model.Job, primaryKey, previewKey, thumbKey string) error {
	if err := q.assets.MarkMediaAssetProcessed(job.AssetID, primaryKey, previewKey, thumbKey); err != nil {
		return err
	}

	q.notifier.Publish(job.Session.CollectionID, notify.Event{
		ID:              job.AssetID,
		Status:          notify.StatusProcessed,
		ProgressPercent: 100,
		StorageKey:      primaryKey,
		PreviewKey:      previewKey,
		ThumbKey:        thumbKey,
	})

	return nil
}

func (q *Queue) terminalFail(job *model.Job, cause error) {
	reason := humanReason(cause)

	if err := q.assets.MarkMediaAssetFailed(job.AssetID, reason); err != nil {
		log.Errorf("marking asset %s failed: %s", job.AssetID, err)
	}

	q.notifier.Publish(job.Session.CollectionID, notify.Event{
		ID:     job.AssetID,
		Status: notify.StatusFailed,
		Error:  reason,
	})
}

// humanReason keeps the user-visible status to one readable line; the full
// error already went to the log.
func humanReason(err error) string {
	s := err.Error()
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// cleanup removes the assembled file and any straggler intermediates. It
// runs on every terminal outcome, success or failure.
func (q *Queue) cleanup(job *model.Job) {
	_ = os.Remove(job.File.Path)
	_ = os.Remove(job.File.Path + ".preview.mp4")
	_ = os.Remove(job.File.Path + ".frame.jpg")
}

type uploadSpec struct {
	key         string
	data        []byte
	path        string
	contentType string
}

// uploadPair pushes the given objects concurrently; any failure fails the
// attempt so the retry covers all of them (puts are idempotent overwrites).
func (q *Queue) uploadPair(ctx context.Context, specs ...uploadSpec) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, spec := range specs {
		spec := spec
		g.Go(func() error {
			return q.uploadOne(gctx, spec)
		})
	}

	return g.Wait()
}

func (q *Queue) uploadOne(ctx context.Context, spec uploadSpec) error {
	if spec.path != "" {
		f, err := os.Open(spec.path)
		if err != nil {
			return err
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return err
		}

		return q.store.Put(ctx, spec.key, f, info.Size(), spec.contentType)
	}

	return q.store.Put(ctx, spec.key, bytes.NewReader(spec.data), int64(len(spec.data)), spec.contentType)
}
