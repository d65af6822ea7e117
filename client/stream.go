package client

import (
	"bufio"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/AlriyanKhan/Ai-attendance/core"
	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
)

// StreamDashboard calls fn with every view pushed by the API until ctx is done, fn fails or the API
// closes the stream. Views carrying an error banner are delivered too.
func (c *Client) StreamDashboard(ctx context.Context, fn func(attendance.View) error) error {
	const op = "client.StreamDashboard"
	token, err := c.token(op)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/dashboard/stream", nil)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	for k, v := range c.headers(token) {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept", "text/event-stream")

	res, err := c.stream.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return core.NewKindError(core.KindTransport, op, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		body, _ := ioutil.ReadAll(res.Body)
		return c.apiError(op, &rest.Response{StatusCode: res.StatusCode, Body: string(body)})
	}

	var event string
	var data strings.Builder
	scanner := bufio.NewScanner(res.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 && (event == "view" || event == "error") {
				var v attendance.View
				if err := json.Unmarshal([]byte(data.String()), &v); err != nil {
					return core.NewKindError(core.KindTransport, op, errors.Wrap(err, "decoding view"))
				}
				if err := fn(v); err != nil {
					return err
				}
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return core.NewKindError(core.KindTransport, op, err)
	}
	return nil
}
