package attendance_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlriyanKhan/Ai-attendance/core"
	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
	"github.com/AlriyanKhan/Ai-attendance/core/capture"
	"github.com/AlriyanKhan/Ai-attendance/storage/database/inmem"
)

type fakeBlobs struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (b *fakeBlobs) Store(_ context.Context, name string, _ capture.Payload) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return "", b.err
	}
	b.names = append(b.names, name)
	return "https://blobs.test/" + name, nil
}

type fakeDetector struct {
	faces   []attendance.Face
	err     error
	release chan struct{} // blocks DetectFaces until closed when set
}

func (d *fakeDetector) DetectFaces(ctx context.Context, _ capture.Payload) ([]attendance.Face, error) {
	if d.release != nil {
		select {
		case <-d.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return d.faces, d.err
}

type fakeInsights struct {
	text  string
	err   error
	delay time.Duration

	mu    sync.Mutex
	input []attendance.InsightInput
}

func (g *fakeInsights) inputs() []attendance.InsightInput {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.input
}

func (g *fakeInsights) Analyze(ctx context.Context, data []attendance.InsightInput) (string, error) {
	g.mu.Lock()
	g.input = data
	g.mu.Unlock()
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	return g.text, g.err
}

type failingRepo struct {
	attendance.Repository
}

func (failingRepo) Add(context.Context, attendance.Record) (attendance.Record, error) {
	return attendance.Record{}, errors.New("permission denied")
}

var (
	jpeg    = capture.NewPayload([]byte("\xff\xd8\xff\xe0jpeg"), "image/jpeg")
	oneFace = []attendance.Face{{Confidence: 0.92}, {Confidence: 0.31}}
)

func setupPipeline(t *testing.T, blobs *fakeBlobs, det *fakeDetector, ins *fakeInsights, repo attendance.Repository) (*attendance.Pipeline, *[]attendance.State) {
	if repo == nil {
		db, err := inmemdb.Open()
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		repo = inmemdb.NewAttendanceRepository(db)
	}
	var (
		mu          sync.Mutex
		transitions []attendance.State
	)
	p := attendance.NewPipeline(blobs, det, ins, repo, core.NewNopLogger(), attendance.PipelineConfig{
		DetectTimeout:  time.Second,
		InsightTimeout: 100 * time.Millisecond,
		OnTransition: func(s attendance.State) {
			mu.Lock()
			transitions = append(transitions, s)
			mu.Unlock()
		},
	})
	return p, &transitions
}

func TestPipeline_Submit(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	attendance.NowFunc = func() time.Time { return now }
	defer func() { attendance.NowFunc = time.Now }()

	tests := []struct {
		name            string
		sub             attendance.Submission
		blobs           *fakeBlobs
		det             *fakeDetector
		ins             *fakeInsights
		repo            attendance.Repository
		wantState       attendance.State
		wantMsg         string
		wantInsight     string
		wantUID         string
		wantName        string
		wantBlob        string
		wantKind        core.Kind
		wantTransitions []attendance.State
	}{
		{
			name:        "live, signed in",
			sub:         attendance.Submission{Path: attendance.PathLive, Payload: jpeg, Identity: attendance.Identity{UserID: "uid-1", DisplayName: "Jane Doe", Email: "jane@example.com"}},
			blobs:       &fakeBlobs{},
			det:         &fakeDetector{faces: oneFace},
			ins:         &fakeInsights{text: "Steady attendance."},
			wantState:   attendance.StateDone,
			wantMsg:     attendance.MsgRecorded,
			wantInsight: "Steady attendance.",
			wantUID:     "uid-1",
			wantName:    "Jane Doe",
			wantBlob:    "attendance/1709283600000.jpg",
			wantTransitions: []attendance.State{
				attendance.StateUploading, attendance.StateDetecting, attendance.StateRecording,
				attendance.StateSummarizing, attendance.StateDone,
			},
		},
		{
			name:        "upload, anonymous with a typed name",
			sub:         attendance.Submission{Path: attendance.PathUpload, Payload: jpeg, Name: "John Smith"},
			blobs:       &fakeBlobs{},
			det:         &fakeDetector{faces: oneFace},
			ins:         &fakeInsights{err: errors.New("quota")},
			wantState:   attendance.StateDone,
			wantMsg:     attendance.MsgRecorded,
			wantInsight: attendance.InsightFallback,
			wantUID:     "john_smith",
			wantName:    "John Smith",
			wantBlob:    "attendance/John_Smith_1709283600000.jpg",
		},
		{
			name:        "live, anonymous",
			sub:         attendance.Submission{Path: attendance.PathLive, Payload: jpeg},
			blobs:       &fakeBlobs{},
			det:         &fakeDetector{faces: oneFace},
			ins:         &fakeInsights{text: "late", delay: time.Second},
			wantState:   attendance.StateDone,
			wantMsg:     attendance.MsgRecorded,
			wantInsight: attendance.InsightFallback,
			wantUID:     attendance.AnonymousUserID,
			wantName:    attendance.AnonymousUserID,
		},
		{
			name:            "no face",
			sub:             attendance.Submission{Path: attendance.PathLive, Payload: jpeg},
			blobs:           &fakeBlobs{},
			det:             &fakeDetector{},
			ins:             &fakeInsights{},
			wantState:       attendance.StateIdle,
			wantMsg:         attendance.MsgNoFace,
			wantTransitions: []attendance.State{attendance.StateUploading, attendance.StateDetecting, attendance.StateIdle},
		},
		{
			name:      "detector failure reads as no face",
			sub:       attendance.Submission{Path: attendance.PathLive, Payload: jpeg},
			blobs:     &fakeBlobs{},
			det:       &fakeDetector{err: core.NewKindError(core.KindTransport, "vision", errors.New("503"))},
			ins:       &fakeInsights{},
			wantState: attendance.StateIdle,
			wantMsg:   attendance.MsgNoFace,
		},
		{
			name:            "storage failure",
			sub:             attendance.Submission{Path: attendance.PathLive, Payload: jpeg},
			blobs:           &fakeBlobs{err: errors.New("bucket not found")},
			det:             &fakeDetector{faces: oneFace},
			ins:             &fakeInsights{},
			wantState:       attendance.StateFailed,
			wantMsg:         attendance.MsgFailed,
			wantKind:        core.KindStorage,
			wantTransitions: []attendance.State{attendance.StateUploading, attendance.StateFailed},
		},
		{
			name:      "record failure",
			sub:       attendance.Submission{Path: attendance.PathLive, Payload: jpeg},
			blobs:     &fakeBlobs{},
			det:       &fakeDetector{faces: oneFace},
			ins:       &fakeInsights{},
			repo:      failingRepo{},
			wantState: attendance.StateFailed,
			wantMsg:   attendance.MsgFailed,
			wantKind:  core.KindRecord,
			wantTransitions: []attendance.State{
				attendance.StateUploading, attendance.StateDetecting, attendance.StateRecording, attendance.StateFailed,
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, transitions := setupPipeline(t, tc.blobs, tc.det, tc.ins, tc.repo)

			got, err := p.Submit(context.Background(), tc.sub)
			if tc.wantKind != core.KindUnknown {
				require.Error(t, err)
				assert.True(t, core.IsKind(err, tc.wantKind))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.wantState, got.State)
			assert.Equal(t, tc.wantState, p.State())
			assert.Equal(t, tc.wantMsg, got.Message)
			if tc.wantTransitions != nil {
				assert.Equal(t, tc.wantTransitions, *transitions)
			}
			if tc.wantBlob != "" {
				assert.Equal(t, []string{tc.wantBlob}, tc.blobs.names)
			}

			if tc.wantState != attendance.StateDone {
				assert.Nil(t, got.Record)
				return
			}
			assert.True(t, got.FaceDetected)
			assert.Equal(t, tc.wantInsight, got.Insight)
			require.NotNil(t, got.Record)
			assert.Equal(t, tc.wantUID, got.Record.UserID)
			assert.Equal(t, tc.wantName, got.Record.DisplayName)
			assert.Equal(t, 0.92, got.Record.Confidence) // first face
			assert.Equal(t, got.ImageURL, got.Record.ImageURL)
			assert.True(t, got.Record.Timestamp.Equal(now))
			if input := tc.ins.inputs(); input != nil {
				assert.Equal(t, []attendance.InsightInput{{
					Date: "2024-03-01T09:00:00Z", Status: "present", Confidence: 0.92, UserID: tc.wantUID,
				}}, input)
			}
		})
	}
}

func TestPipeline_Submit_noPayload(t *testing.T) {
	p, transitions := setupPipeline(t, &fakeBlobs{}, &fakeDetector{}, &fakeInsights{}, nil)

	got, err := p.Submit(context.Background(), attendance.Submission{Path: attendance.PathLive})
	require.Error(t, err)
	_, ok := errors.Cause(err).(*core.ValidationError)
	assert.True(t, ok)
	assert.Equal(t, attendance.StateIdle, got.State)
	assert.Empty(t, *transitions)
}

func TestPipelines_Submit_inProgress(t *testing.T) {
	db, err := inmemdb.Open()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	det := &fakeDetector{faces: oneFace, release: make(chan struct{})}
	ps := attendance.NewPipelines(&fakeBlobs{}, det, &fakeInsights{text: "ok"}, inmemdb.NewAttendanceRepository(db), core.NewNopLogger(), attendance.PipelineConfig{})
	sub := attendance.Submission{Path: attendance.PathLive, Payload: jpeg}

	first := make(chan error, 1)
	go func() {
		_, err := ps.Submit(context.Background(), "uid-1", sub)
		first <- err
	}()

	require.Eventually(t, func() bool {
		return ps.State("uid-1") == attendance.StateDetecting
	}, time.Second, 5*time.Millisecond)

	// same submitter is refused, another one is not blocked
	_, err = ps.Submit(context.Background(), "uid-1", sub)
	assert.Equal(t, attendance.ErrSubmissionInProgress, err)
	assert.Equal(t, attendance.StateIdle, ps.State("uid-2"))

	close(det.release)
	require.NoError(t, <-first)
	assert.Equal(t, attendance.StateIdle, ps.State("uid-1"))
	assert.Zero(t, ps.Running())

	out, err := ps.Submit(context.Background(), "uid-2", sub)
	require.NoError(t, err)
	assert.Equal(t, attendance.StateDone, out.State)

	// Done accepts a new submission
	out, err = ps.Submit(context.Background(), "uid-1", sub)
	require.NoError(t, err)
	assert.Equal(t, attendance.StateDone, out.State)
}

func TestPipelines_Submit_releasesSubmitters(t *testing.T) {
	db, err := inmemdb.Open()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	tests := []struct {
		name    string
		blobs   *fakeBlobs
		payload capture.Payload
		wantErr bool
	}{
		{name: "done", blobs: &fakeBlobs{}, payload: jpeg},
		{name: "failed", blobs: &fakeBlobs{err: errors.New("bucket not found")}, payload: jpeg, wantErr: true},
		{name: "no payload", blobs: &fakeBlobs{}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ps := attendance.NewPipelines(tc.blobs, &fakeDetector{faces: oneFace}, &fakeInsights{text: "ok"}, inmemdb.NewAttendanceRepository(db), core.NewNopLogger(), attendance.PipelineConfig{})

			var wg sync.WaitGroup
			for i := 0; i < 200; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := ps.Submit(context.Background(), fmt.Sprintf("ip:10.0.%d.%d", i/250, i%250), attendance.Submission{Path: attendance.PathLive, Payload: tc.payload})
					if tc.wantErr {
						assert.Error(t, err)
					} else {
						assert.NoError(t, err)
					}
				}(i)
			}
			wg.Wait()

			assert.Zero(t, ps.Running())
			assert.Equal(t, attendance.StateIdle, ps.State("ip:10.0.0.1"))
		})
	}
}
