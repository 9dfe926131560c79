package api

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/MrEthical07/goStage/stage"
)

const pathUpload = "/api/documents/upload/"

// UploadReport sends a report file for stageID as multipart field "file" and
// returns the updated stage.
func (c *Client) UploadReport(ctx context.Context, stageID int64, filename string, r io.Reader) (*stage.Stage, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.endpoint(pathUpload+strconv.FormatInt(stageID, 10), nil), &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var out stage.Stage
	if err := c.send(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
