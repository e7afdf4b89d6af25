package camera

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"time"
)

const maxFrameBytes = 8 << 20

// MJPEGGrabber streams motion-JPEG over HTTP, the stills endpoint the
// gate cameras expose alongside their RTSP feed.
type MJPEGGrabber struct {
	URL    string
	Client *http.Client
}

func NewMJPEGGrabber(url string) *MJPEGGrabber {
	return &MJPEGGrabber{
		URL: url,
		Client: &http.Client{
			// no overall timeout, the stream is long-lived; dial
			// problems surface through the request context
			Transport: &http.Transport{
				ResponseHeaderTimeout: 10 * time.Second,
			},
		},
	}
}

func (g *MJPEGGrabber) Connect(ctx context.Context) (FrameReader, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("bad camera url %s: %w", g.URL, err)
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("camera connect: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("camera returned %s", resp.Status)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/x-mixed-replace" || params["boundary"] == "" {
		resp.Body.Close()
		return nil, fmt.Errorf("not an mjpeg stream: content-type %q", resp.Header.Get("Content-Type"))
	}

	return &mjpegReader{
		body:  resp.Body,
		parts: multipart.NewReader(resp.Body, params["boundary"]),
	}, nil
}

type mjpegReader struct {
	body  io.ReadCloser
	parts *multipart.Reader
}

func (r *mjpegReader) ReadFrame() (Frame, error) {
	part, err := r.parts.NextPart()
	if err != nil {
		return Frame{}, fmt.Errorf("mjpeg stream read: %w", err)
	}

	data, err := io.ReadAll(io.LimitReader(part, maxFrameBytes))
	part.Close()
	if err != nil {
		return Frame{}, fmt.Errorf("mjpeg part read: %w", err)
	}

	// a truncated or corrupt part is a skippable decode failure, not a
	// connection failure
	if _, err := jpeg.DecodeConfig(bytes.NewReader(data)); err != nil {
		return Frame{}, ErrBadFrame
	}

	return Frame{Data: data, At: time.Now()}, nil
}

func (r *mjpegReader) Close() error {
	return r.body.Close()
}
