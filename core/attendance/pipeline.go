package attendance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/AlriyanKhan/Ai-attendance/core"
	"github.com/AlriyanKhan/Ai-attendance/core/capture"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrSubmissionInProgress = errors.New("a submission is already in progress")
	ErrNoPayload            = errors.New("no image captured")

	// user facing messages
	MsgNoFace   = "No face detected. Please ensure your face is clearly visible"
	MsgRecorded = "Your attendance has been successfully recorded"
	MsgFailed   = "Failed to process attendance. Please try again."
)

// State of a submission pipeline.
type State string

const (
	StateIdle        State = "idle"
	StateUploading   State = "uploading"
	StateDetecting   State = "detecting"
	StateRecording   State = "recording"
	StateSummarizing State = "summarizing"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Ready reports whether a new submission may start from this state.
func (s State) Ready() bool {
	return s == StateIdle || s == StateDone || s == StateFailed
}

// Path is the capture variant a submission comes from.
type Path string

const (
	PathLive   Path = "live"
	PathUpload Path = "upload"
)

// Identity is the signed in user behind a submission, zero when anonymous.
type Identity struct {
	UserID      string
	DisplayName string
	Email       string
}

type Submission struct {
	Path     Path
	Payload  capture.Payload
	Identity Identity
	Name     string // label typed by the user (upload path)
}

// resolve returns the user id and display name to record.
// user id: session subject, else the id derived from the typed name, else anonymous.
// display name: provider display name, else the typed name, else the user id.
func (sub Submission) resolve() (string, string) {
	uid := sub.Identity.UserID
	if uid == "" {
		if derived := DeriveUserID(sub.Name); derived != "" {
			uid = derived
		} else {
			uid = AnonymousUserID
		}
	}
	name := sub.Identity.DisplayName
	if name == "" {
		name = core.CleanString(sub.Name)
	}
	if name == "" {
		name = uid
	}
	return uid, name
}

func (sub Submission) blobName(at time.Time) string {
	if sub.Path == PathUpload {
		return UploadBlobName(sub.Name, at, sub.Payload.Ext())
	}
	return LiveBlobName(at, sub.Payload.Ext())
}

// Outcome is what a submission ended with.
type Outcome struct {
	State        State   `json:"state"`
	FaceDetected bool    `json:"face_detected"`
	Message      string  `json:"message"`
	ImageURL     string  `json:"image_url,omitempty"`
	Record       *Record `json:"record,omitempty"`
	Insight      string  `json:"insight,omitempty"`
}

type PipelineConfig struct {
	DetectTimeout  time.Duration
	InsightTimeout time.Duration
	// OnTransition, if set, is called on every state change.
	OnTransition func(State)
}

func NewPipelineConfig(conf *core.Config) PipelineConfig {
	return PipelineConfig{
		DetectTimeout:  conf.Vision.Timeout,
		InsightTimeout: conf.Insight.Timeout,
	}
}

// Pipeline runs submissions strictly sequentially:
// Idle -> Uploading -> Detecting -> Recording -> Summarizing -> Done.
// Failed is reachable from Uploading, Detecting and Recording. A pipeline refuses a new
// submission until the current one is over.
type Pipeline struct {
	blobs    BlobSink
	detector FaceDetector
	insights InsightGenerator
	repo     Repository
	logger   core.Logger
	conf     PipelineConfig

	mu    sync.Mutex
	state State
}

func NewPipeline(
	blobs BlobSink,
	detector FaceDetector,
	insights InsightGenerator,
	repo Repository,
	logger core.Logger,
	conf PipelineConfig,
) *Pipeline {
	if conf.DetectTimeout <= 0 {
		conf.DetectTimeout = 10 * time.Second
	}
	if conf.InsightTimeout <= 0 {
		conf.InsightTimeout = 15 * time.Second
	}
	return &Pipeline{
		blobs:    blobs,
		detector: detector,
		insights: insights,
		repo:     repo,
		logger:   logger,
		conf:     conf,
		state:    StateIdle,
	}
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) set(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
	if p.conf.OnTransition != nil {
		p.conf.OnTransition(s)
	}
}

// begin moves a ready pipeline to Uploading.
func (p *Pipeline) begin() bool {
	p.mu.Lock()
	if !p.state.Ready() {
		p.mu.Unlock()
		return false
	}
	p.state = StateUploading
	p.mu.Unlock()
	if p.conf.OnTransition != nil {
		p.conf.OnTransition(StateUploading)
	}
	return true
}

// Submit runs one submission to its end.
// A missing payload is rejected before any transition. Detection and insight failures never fail the
// submission: they collapse to "no face" and to InsightFallback.
func (p *Pipeline) Submit(ctx context.Context, sub Submission) (Outcome, error) {
	if sub.Payload.IsEmpty() {
		return Outcome{State: p.State()}, core.NewValidationError(ErrNoPayload)
	}
	if !p.begin() {
		return Outcome{State: p.State()}, ErrSubmissionInProgress
	}

	now := NowFunc()
	url, err := p.blobs.Store(ctx, sub.blobName(now), sub.Payload)
	if err != nil {
		p.set(StateFailed)
		return Outcome{State: StateFailed, Message: MsgFailed},
			core.NewKindError(core.KindStorage, "attendance.Submit", errors.Wrap(err, "storing image"))
	}

	p.set(StateDetecting)
	faces := p.detectOrEmpty(ctx, sub.Payload)
	if len(faces) == 0 {
		p.set(StateIdle)
		return Outcome{State: StateIdle, Message: MsgNoFace, ImageURL: url}, nil
	}

	p.set(StateRecording)
	uid, name := sub.resolve()
	recordedAt := NowFunc().UTC()
	rec, err := p.repo.Add(ctx, Record{
		Timestamp:    recordedAt,
		ImageURL:     url,
		FaceDetected: true,
		Confidence:   faces[0].Confidence,
		UserID:       uid,
		DisplayName:  name,
		UserEmail:    sub.Identity.Email,
		RecordedAt:   recordedAt,
	})
	if err != nil {
		// the stored image stays orphaned
		p.set(StateFailed)
		return Outcome{State: StateFailed, Message: MsgFailed, ImageURL: url},
			core.NewKindError(core.KindRecord, "attendance.Submit", errors.Wrap(err, "adding record"))
	}

	p.set(StateSummarizing)
	insight := p.insightOrFallback(ctx, []InsightInput{{
		Date:       recordedAt.Format(time.RFC3339Nano),
		Status:     "present",
		Confidence: rec.Confidence,
		UserID:     rec.UserID,
	}})

	p.set(StateDone)
	return Outcome{
		State:        StateDone,
		FaceDetected: true,
		Message:      MsgRecorded,
		ImageURL:     url,
		Record:       &rec,
		Insight:      insight,
	}, nil
}

func (p *Pipeline) detectOrEmpty(ctx context.Context, payload capture.Payload) []Face {
	ctx, cancel := context.WithTimeout(ctx, p.conf.DetectTimeout)
	defer cancel()

	faces, err := p.detector.DetectFaces(ctx, payload)
	if err != nil {
		p.logger.Warn(fmt.Sprintf("detecting faces: %v", err), err)
		return nil
	}
	return faces
}

func (p *Pipeline) insightOrFallback(ctx context.Context, data []InsightInput) string {
	ctx, cancel := context.WithTimeout(ctx, p.conf.InsightTimeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := p.insights.Analyze(ctx, data)
		done <- result{text, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			p.logger.Warn(fmt.Sprintf("generating insight: %v", res.err), res.err)
			return InsightFallback
		}
		return res.text
	case <-ctx.Done():
		p.logger.Warn(fmt.Sprintf("generating insight: %v", ctx.Err()), ctx.Err())
		return InsightFallback
	}
}

// Pipelines runs one pipeline per submitter so that a submitter can not overlap submissions
// while different submitters run concurrently. A submitter's pipeline only lives while its
// submission runs.
type Pipelines struct {
	newPipeline func() *Pipeline

	mu      sync.Mutex
	running map[string]*Pipeline
}

func NewPipelines(
	blobs BlobSink,
	detector FaceDetector,
	insights InsightGenerator,
	repo Repository,
	logger core.Logger,
	conf PipelineConfig,
) *Pipelines {
	return &Pipelines{
		newPipeline: func() *Pipeline { return NewPipeline(blobs, detector, insights, repo, logger, conf) },
		running:     make(map[string]*Pipeline),
	}
}

// Submit runs the submission on a fresh pipeline for the submitter.
// ErrSubmissionInProgress is returned while a previous submission of the same submitter is running.
func (ps *Pipelines) Submit(ctx context.Context, key string, sub Submission) (Outcome, error) {
	ps.mu.Lock()
	if p, ok := ps.running[key]; ok {
		ps.mu.Unlock()
		return Outcome{State: p.State()}, ErrSubmissionInProgress
	}
	p := ps.newPipeline()
	ps.running[key] = p
	ps.mu.Unlock()

	defer func() {
		ps.mu.Lock()
		delete(ps.running, key)
		ps.mu.Unlock()
	}()

	return p.Submit(ctx, sub)
}

// State returns the state of the submitter's running pipeline, Idle when none is running.
func (ps *Pipelines) State(key string) State {
	ps.mu.Lock()
	p, ok := ps.running[key]
	ps.mu.Unlock()
	if !ok {
		return StateIdle
	}
	return p.State()
}

// Running returns the number of submissions in flight.
func (ps *Pipelines) Running() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.running)
}
