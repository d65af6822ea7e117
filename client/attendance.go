package client

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/textproto"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
	"github.com/AlriyanKhan/Ai-attendance/core/capture"
)

// SubmitLive sends a camera snapshot. A session is required.
func (c *Client) SubmitLive(ctx context.Context, p capture.Payload) (attendance.Outcome, error) {
	token, err := c.token("client.SubmitLive")
	if err != nil {
		return attendance.Outcome{}, err
	}
	body, err := json.Marshal(map[string]string{"image": p.DataURL()})
	if err != nil {
		return attendance.Outcome{}, errors.Wrap(err, "encoding request")
	}
	headers := c.headers(token)
	headers["Content-Type"] = "application/json"

	var out attendance.Outcome
	_, err = c.send(ctx, "client.SubmitLive", rest.Request{
		Method:  rest.Post,
		BaseURL: "/api/attendance",
		Headers: headers,
		Body:    body,
	}, &out)
	return out, err
}

// Upload sends a chosen image file. It is validated before any network call; the session is optional.
func (c *Client) Upload(ctx context.Context, u capture.Upload) (attendance.Outcome, error) {
	if err := u.Validate(c.validate); err != nil {
		return attendance.Outcome{}, err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("name", u.Name); err != nil {
		return attendance.Outcome{}, errors.Wrap(err, "writing name field")
	}
	filename := u.Filename
	if filename == "" {
		filename = "image." + u.Payload().Ext()
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="`+filename+`"`)
	h.Set("Content-Type", u.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return attendance.Outcome{}, errors.Wrap(err, "writing image part")
	}
	if _, err := part.Write(u.Data); err != nil {
		return attendance.Outcome{}, errors.Wrap(err, "writing image part")
	}
	if err := w.Close(); err != nil {
		return attendance.Outcome{}, errors.Wrap(err, "closing form")
	}

	token := ""
	if s, ok := c.gate.Current(); ok {
		token = s.Token
	}
	headers := c.headers(token)
	headers["Content-Type"] = w.FormDataContentType()

	var out attendance.Outcome
	_, err = c.send(ctx, "client.Upload", rest.Request{
		Method:  rest.Post,
		BaseURL: "/api/attendance/upload",
		Headers: headers,
		Body:    buf.Bytes(),
	}, &out)
	return out, err
}

// Records lists the most recent records, newest first. A limit <= 0 uses the API default.
func (c *Client) Records(ctx context.Context, limit int) ([]attendance.Record, error) {
	token, err := c.token("client.Records")
	if err != nil {
		return nil, err
	}
	req := rest.Request{
		Method:  rest.Get,
		BaseURL: "/api/attendance",
		Headers: c.headers(token),
	}
	if limit > 0 {
		req.QueryParams = map[string]string{"limit": strconv.Itoa(limit)}
	}
	var records []attendance.Record
	if _, err := c.send(ctx, "client.Records", req, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Dashboard returns a one-shot view.
func (c *Client) Dashboard(ctx context.Context) (attendance.View, error) {
	token, err := c.token("client.Dashboard")
	if err != nil {
		return attendance.View{}, err
	}
	var v attendance.View
	_, err = c.send(ctx, "client.Dashboard", rest.Request{
		Method:  rest.Get,
		BaseURL: "/api/dashboard",
		Headers: c.headers(token),
	}, &v)
	return v, err
}

// Bootstrap initializes the attendance collection. Admin only.
func (c *Client) Bootstrap(ctx context.Context) (bool, error) {
	token, err := c.token("client.Bootstrap")
	if err != nil {
		return false, err
	}
	var res struct {
		Created bool `json:"created"`
	}
	if _, err := c.send(ctx, "client.Bootstrap", rest.Request{
		Method:  rest.Post,
		BaseURL: "/api/attendance/bootstrap",
		Headers: c.headers(token),
	}, &res); err != nil {
		return false, err
	}
	return res.Created, nil
}
