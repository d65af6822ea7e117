// Package visionsvc detects faces through the Cloud Vision REST API.
package visionsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/valyala/fastjson"

	"github.com/AlriyanKhan/Ai-attendance/core"
	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
	"github.com/AlriyanKhan/Ai-attendance/core/capture"
)

const (
	featureFaceDetection = "FACE_DETECTION"
	defaultMaxResults    = 10
	defaultTimeout       = 10 * time.Second
)

type (
	annotateRequest struct {
		Requests []imageRequest `json:"requests"`
	}

	imageRequest struct {
		Image    image     `json:"image"`
		Features []feature `json:"features"`
	}

	image struct {
		Content string `json:"content"`
	}

	feature struct {
		Type       string `json:"type"`
		MaxResults int    `json:"maxResults"`
	}
)

type detector struct {
	client     *rest.Client
	endpoint   string
	apiKey     string
	maxResults int
	timeout    time.Duration
	parser     fastjson.ParserPool
}

var _ attendance.FaceDetector = (*detector)(nil)

func NewDetector(conf *core.Config) attendance.FaceDetector {
	timeout := conf.Vision.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxResults := conf.Vision.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &detector{
		client:     &rest.Client{HTTPClient: &http.Client{Timeout: timeout}},
		endpoint:   conf.Vision.Endpoint,
		apiKey:     conf.Vision.APIKey,
		maxResults: maxResults,
		timeout:    timeout,
	}
}

func transportErr(err error) error {
	return core.NewKindError(core.KindTransport, "vision.DetectFaces", err)
}

// DetectFaces returns every face found in the image, in the service's order.
func (d *detector) DetectFaces(ctx context.Context, p capture.Payload) ([]attendance.Face, error) {
	body, err := json.Marshal(annotateRequest{
		Requests: []imageRequest{{
			Image:    image{Content: p.Base64()},
			Features: []feature{{Type: featureFaceDetection, MaxResults: d.maxResults}},
		}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "encoding annotate request")
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	res, err := d.client.SendWithContext(ctx, rest.Request{
		Method:      rest.Post,
		BaseURL:     d.endpoint,
		Headers:     map[string]string{"Content-Type": "application/json"},
		QueryParams: map[string]string{"key": d.apiKey},
		Body:        body,
	})
	if err != nil {
		return nil, transportErr(errors.Wrap(err, "calling vision API"))
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return nil, transportErr(fmt.Errorf("vision API responded %d: %s", res.StatusCode, res.Body))
	}
	return d.parse(res.Body)
}

func (d *detector) parse(body string) ([]attendance.Face, error) {
	parser := d.parser.Get()
	defer d.parser.Put(parser)

	v, err := parser.Parse(body)
	if err != nil {
		return nil, transportErr(errors.Wrap(err, "parsing vision response"))
	}
	if msg := v.GetStringBytes("responses", "0", "error", "message"); msg != nil {
		return nil, transportErr(fmt.Errorf("vision API: %s", msg))
	}

	annotations := v.GetArray("responses", "0", "faceAnnotations")
	faces := make([]attendance.Face, 0, len(annotations))
	for _, a := range annotations {
		faces = append(faces, parseFace(a))
	}
	return faces, nil
}

// parseFace reads one annotation. Missing numbers read as 0.
func parseFace(a *fastjson.Value) attendance.Face {
	vertices := a.GetArray("boundingPoly", "vertices")
	vertex := func(i int) (float64, float64) {
		if i >= len(vertices) {
			return 0, 0
		}
		return vertices[i].GetFloat64("x"), vertices[i].GetFloat64("y")
	}
	left, top := vertex(0)
	right, bottom := vertex(2)

	return attendance.Face{
		Confidence: clamp(a.GetFloat64("detectionConfidence")),
		Bounds:     attendance.Bounds{Left: left, Top: top, Right: right, Bottom: bottom},
		Joy:        string(a.GetStringBytes("joyLikelihood")),
		Sorrow:     string(a.GetStringBytes("sorrowLikelihood")),
		Anger:      string(a.GetStringBytes("angerLikelihood")),
		Surprise:   string(a.GetStringBytes("surpriseLikelihood")),
	}
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
