// Package client is the Go SDK of the attendance API. It holds the session through an auth.Gate.
package client

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/valyala/fastjson"

	"github.com/AlriyanKhan/Ai-attendance/core"
	"github.com/AlriyanKhan/Ai-attendance/core/auth"
)

const requestTimeout = 30 * time.Second

var ErrSignedOut = errors.New("not signed in")

// APIError is a non 2xx answer of the API.
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string]string // validation errors, by field
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		msgs := make([]string, 0, len(keys))
		for _, k := range keys {
			msgs = append(msgs, k+": "+e.Fields[k])
		}
		return strings.Join(msgs, "; ")
	}
	return http.StatusText(e.StatusCode)
}

// Client talks to the API at baseURL.
type Client struct {
	baseURL     string
	sessionFile string
	rest        *rest.Client
	stream      *http.Client // no timeout, for server-sent events
	gate        *auth.Gate
	validate    *validator.Validate
	parser      fastjson.ParserPool
}

var _ auth.Revoker = (*Client)(nil)

// New returns a client whose gate stays pending until Restore is called.
func New(conf *core.Config) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(conf.Client.APIURL, "/"),
		sessionFile: conf.Client.SessionFile,
		rest:        &rest.Client{HTTPClient: &http.Client{Timeout: requestTimeout}},
		stream:      &http.Client{},
		validate:    core.NewValidator(core.NewTranslator()),
	}
	c.gate = auth.NewGate(c)
	return c
}

func (c *Client) Gate() *auth.Gate {
	return c.gate
}

func (c *Client) Close() {
	c.gate.Close()
}

func (c *Client) headers(token string) map[string]string {
	h := map[string]string{"Accept": "application/json"}
	if token != "" {
		h["Authorization"] = "Bearer " + token
	}
	return h
}

// token returns the bearer of the current session, ErrSignedOut when there is none.
func (c *Client) token(op string) (string, error) {
	s, ok := c.gate.Current()
	if !ok {
		return "", core.NewKindError(core.KindAuth, op, ErrSignedOut)
	}
	return s.Token, nil
}

// send performs the request and decodes a 2xx JSON answer into `out` when not nil.
func (c *Client) send(ctx context.Context, op string, req rest.Request, out interface{}) (int, error) {
	req.BaseURL = c.baseURL + req.BaseURL
	if req.Headers == nil {
		req.Headers = c.headers("")
	}
	res, err := c.rest.SendWithContext(ctx, req)
	if err != nil {
		return 0, core.NewKindError(core.KindTransport, op, err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return res.StatusCode, c.apiError(op, res)
	}
	if out != nil && res.Body != "" {
		if err := json.Unmarshal([]byte(res.Body), out); err != nil {
			return res.StatusCode, core.NewKindError(core.KindTransport, op, errors.Wrap(err, "decoding response"))
		}
	}
	return res.StatusCode, nil
}

// apiError reads both {"error": "..."} answers and validation maps.
func (c *Client) apiError(op string, res *rest.Response) error {
	apiErr := &APIError{StatusCode: res.StatusCode}

	parser := c.parser.Get()
	defer c.parser.Put(parser)
	if v, err := parser.Parse(res.Body); err == nil {
		if msg := v.GetStringBytes("error"); msg != nil {
			apiErr.Message = string(msg)
		} else if obj, err := v.Object(); err == nil {
			apiErr.Fields = make(map[string]string)
			obj.Visit(func(key []byte, fv *fastjson.Value) {
				if sb, err := fv.StringBytes(); err == nil {
					apiErr.Fields[string(key)] = string(sb)
				}
			})
		}
	}

	switch {
	case res.StatusCode == http.StatusUnauthorized:
		return core.NewKindError(core.KindAuth, op, apiErr)
	case res.StatusCode >= http.StatusInternalServerError:
		return core.NewKindError(core.KindTransport, op, apiErr)
	default:
		return apiErr
	}
}

// AsAPIError returns the API answer behind err, if any.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
