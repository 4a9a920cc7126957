package api

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
)

// Default identification thresholds sent with uploads.
const (
	DefaultMatchThreshold      = 0.40
	DefaultAutoUpdateThreshold = 0.50
)

// UploadRequest describes one audio upload.
type UploadRequest struct {
	FileName            string
	File                io.Reader
	Size                int64
	DisplayName         string
	MatchThreshold      float64
	AutoUpdateThreshold float64
	// OnSent is called once the request body has been fully written. It runs
	// on a transport goroutine.
	OnSent func()
}

// UploadConversation uploads a recording for transcription and speaker
// identification and waits for processing to finish. Cancellation follows
// ctx; the client's upload timeout applies on top of it.
func (c *Client) UploadConversation(ctx context.Context, req UploadRequest) (UploadResult, error) {
	const op = "upload conversation"
	if req.File == nil {
		return UploadResult{}, validation(op, "no file selected")
	}
	name := filepath.Base(strings.TrimSpace(req.FileName))
	if name == "" || name == "." || name == "/" {
		return UploadResult{}, validation(op, "file name is required")
	}
	match := req.MatchThreshold
	if match <= 0 {
		match = DefaultMatchThreshold
	}
	auto := req.AutoUpdateThreshold
	if auto <= 0 {
		auto = DefaultAutoUpdateThreshold
	}
	fields := []formField{
		{"match_threshold", strconv.FormatFloat(match, 'f', -1, 64)},
		{"auto_update_threshold", strconv.FormatFloat(auto, 'f', -1, 64)},
	}
	if dn := strings.TrimSpace(req.DisplayName); dn != "" {
		fields = append(fields, formField{"display_name", dn})
	}
	body, contentType := multipartBody(fields, "file", name, req.File, req.OnSent)
	defer body.Close()

	c.logger.Info().Str("file", name).Int64("size", req.Size).Float64("match_threshold", match).Msg("uploading conversation")

	var reply uploadReplyWire
	err := c.send(ctx, request{
		op:          op,
		method:      http.MethodPost,
		url:         c.endpoint("conversations", "upload"),
		body:        body,
		contentType: contentType,
		timeout:     c.uploadTimeout,
	}, &reply)
	if err != nil {
		return UploadResult{}, err
	}
	if err := checkStatus(op, reply.statusWire); err != nil {
		return UploadResult{}, err
	}
	return UploadResult{
		ConversationID: reply.ConversationID,
		Message:        reply.Message,
		Logs:           reply.Logs,
	}, nil
}
