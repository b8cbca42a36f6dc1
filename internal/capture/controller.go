package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/doc-capture/internal/extraction"
)

// Extractor performs one extraction round-trip
type Extractor interface {
	Extract(ctx context.Context, doc extraction.Document) (*extraction.Result, error)
}

// IDGenerator generates unique IDs for submissions
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Controller owns the capture workflow state. All mutations go through
// SelectFile and Submit; everyone else reads Snapshot copies.
type Controller struct {
	extractor   Extractor
	previews    PreviewEncoder
	recorder    Recorder
	idGenerator IDGenerator
	timeSource  TimeSource

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu             sync.Mutex
	closed         bool
	doc            *extraction.Document
	selection      uint64
	preview        string
	previewPending bool
	result         *extraction.Result
	resultFilename string
	errMsg         string
	state          SubmissionState
}

// NewController creates a Controller. recorder may be nil.
func NewController(extractor Extractor, previews PreviewEncoder, recorder Recorder) *Controller {
	return NewControllerWithDeps(extractor, previews, recorder, &uuidGenerator{}, &defaultTimeSource{})
}

// NewControllerWithDeps creates a Controller with custom dependencies for testing
func NewControllerWithDeps(extractor Extractor, previews PreviewEncoder, recorder Recorder, idGen IDGenerator, timeSrc TimeSource) *Controller {
	if previews == nil {
		previews = DataURLEncoder{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		extractor:   extractor,
		previews:    previews,
		recorder:    recorder,
		idGenerator: idGen,
		timeSource:  timeSrc,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SelectFile replaces the selected document and starts encoding its
// preview in the background. Any previous result or error is cleared. It
// is legal in every state and leaves the submission state alone.
func (c *Controller) SelectFile(doc extraction.Document) {
	doc.Data = append([]byte(nil), doc.Data...)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.doc = &doc
	c.selection++
	generation := c.selection
	c.preview = ""
	c.previewPending = true
	c.result = nil
	c.resultFilename = ""
	c.errMsg = ""
	c.wg.Add(1)
	c.mu.Unlock()

	slog.Debug("Document selected", "filename", doc.Filename, "content_type", doc.ContentType, "size", len(doc.Data))

	go c.encodePreview(generation, doc)
}

// encodePreview applies the preview only if no newer selection happened
func (c *Controller) encodePreview(generation uint64, doc extraction.Document) {
	defer c.wg.Done()

	preview, err := c.previews.Encode(c.ctx, doc)

	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.selection {
		slog.Debug("Discarding preview for superseded selection", "filename", doc.Filename)
		return
	}
	c.previewPending = false
	if err != nil {
		slog.Debug("Preview unavailable", "filename", doc.Filename, "error", err)
		return
	}
	c.preview = preview
}

// Submit starts an extraction of the selected document. It returns false
// without contacting the service when a request is already in flight or
// when no document is selected; the latter sets NoDocumentMessage.
func (c *Controller) Submit() bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	if c.state == Submitting {
		c.mu.Unlock()
		slog.Debug("Ignoring submit while a request is in flight")
		return false
	}
	if c.doc == nil {
		c.errMsg = NoDocumentMessage
		c.result = nil
		c.resultFilename = ""
		c.mu.Unlock()
		return false
	}

	c.state = Submitting
	c.errMsg = ""
	c.result = nil
	c.resultFilename = ""
	doc := *c.doc
	outcome := &Outcome{
		ID:          c.idGenerator.Generate(),
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		Size:        len(doc.Data),
		StartedAt:   c.timeSource.Now(),
	}
	c.wg.Add(1)
	c.mu.Unlock()

	slog.Info("Submitting document", "id", outcome.ID, "filename", doc.Filename, "size", outcome.Size)

	go c.extract(doc, outcome)
	return true
}

// extract runs the round-trip and settles the state. A response for a
// superseded selection still lands, and ResultFilename names its source.
func (c *Controller) extract(doc extraction.Document, outcome *Outcome) {
	defer c.wg.Done()

	result, err := c.extractor.Extract(c.ctx, doc)
	outcome.CompletedAt = c.timeSource.Now()

	c.mu.Lock()
	c.state = Idle
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = extraction.FallbackMessage
		}
		c.errMsg = msg
		c.result = nil
		c.resultFilename = ""
		outcome.Error = msg
	} else {
		if result == nil {
			result = &extraction.Result{}
		}
		c.result = result
		c.resultFilename = doc.Filename
		c.errMsg = ""
		outcome.Result = result
	}
	c.mu.Unlock()

	if err != nil {
		slog.Warn("Extraction failed", "id", outcome.ID, "filename", doc.Filename, "error", err)
	} else {
		slog.Info("Extraction completed", "id", outcome.ID, "filename", doc.Filename)
	}

	// Failures caused by Close are not outcomes of the document
	if err != nil && c.ctx.Err() != nil {
		slog.Debug("Not recording cancelled request", "id", outcome.ID)
		return
	}

	if c.recorder != nil {
		if err := c.recorder.Record(outcome); err != nil {
			slog.Warn("Failed to record outcome", "id", outcome.ID, "error", err)
		}
	}
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		HasDocument:    c.doc != nil,
		Preview:        c.preview,
		PreviewPending: c.previewPending,
		ResultFilename: c.resultFilename,
		Error:          c.errMsg,
		Submission:     c.state,
	}
	if c.doc != nil {
		s.Filename = c.doc.Filename
	}
	if c.result != nil {
		r := *c.result
		s.Result = &r
	}
	return s
}

// Wait blocks until background preview encodes and requests settle
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels outstanding work, waits for it and discards the document
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()

	c.mu.Lock()
	c.doc = nil
	c.preview = ""
	c.previewPending = false
	c.mu.Unlock()
}
