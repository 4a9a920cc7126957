package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// AudioSource records how an audio clip was retrieved.
type AudioSource int

const (
	// AudioStreamed means the ranged streaming request served the clip.
	AudioStreamed AudioSource = iota + 1
	// AudioBlob means the clip came from the whole-body fallback fetch.
	AudioBlob
)

func (s AudioSource) String() string {
	switch s {
	case AudioStreamed:
		return "stream"
	case AudioBlob:
		return "blob"
	default:
		return "unknown"
	}
}

// AudioClip is an opaque audio payload.
type AudioClip struct {
	Data        []byte
	ContentType string
	Source      AudioSource
}

// AudioURL returns the absolute URL of an utterance's audio.
func (c *Client) AudioURL(conversationID, utteranceID ID) string {
	return c.endpoint("audio", string(conversationID), string(utteranceID))
}

// Audio fetches the clip at audioURL (absolute or server-relative). It first
// issues a ranged request; if that fails or comes back truncated it re-fetches
// the whole body in one piece.
func (c *Client) Audio(ctx context.Context, audioURL string) (AudioClip, error) {
	target := c.resolve(audioURL)
	clip, err := c.fetchAudio(ctx, "stream audio", target, true)
	if err == nil {
		return clip, nil
	}
	c.logger.Warn().Err(err).Str("url", target).Msg("ranged audio fetch failed, retrying as blob")
	return c.fetchAudio(ctx, "fetch audio", target, false)
}

func (c *Client) fetchAudio(ctx context.Context, op, target string, ranged bool) (AudioClip, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return AudioClip{}, &Error{Kind: KindNetworkFailure, Op: op, Message: fmt.Sprintf("build request: %v", err), Err: err}
	}
	if ranged {
		req.Header.Set("Range", "bytes=0-")
	}
	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return AudioClip{}, c.transportError(ctx, op, c.timeout, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return AudioClip{}, statusError(op, resp.StatusCode, body)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return AudioClip{}, c.transportError(ctx, op, c.timeout, err)
	}
	if resp.StatusCode == http.StatusPartialContent {
		if total := contentRangeTotal(resp.Header.Get("Content-Range")); total > 0 && int64(len(data)) < total {
			return AudioClip{}, &Error{Kind: KindNetworkFailure, Op: op, Status: resp.StatusCode,
				Message: fmt.Sprintf("partial content: got %d of %d bytes", len(data), total)}
		}
	}
	if len(data) == 0 {
		return AudioClip{}, &Error{Kind: KindServerError, Op: op, Status: resp.StatusCode, Message: "empty audio body"}
	}
	source := AudioBlob
	if ranged {
		source = AudioStreamed
	}
	c.logger.Debug().Str("op", op).Int("bytes", len(data)).Dur("elapsed", time.Since(started)).Msg("audio fetched")
	return AudioClip{Data: data, ContentType: resp.Header.Get("Content-Type"), Source: source}, nil
}

// contentRangeTotal extracts the complete length from "bytes 0-99/1234".
func contentRangeTotal(header string) int64 {
	idx := strings.LastIndex(header, "/")
	if idx < 0 || idx == len(header)-1 {
		return 0
	}
	total, err := strconv.ParseInt(strings.TrimSpace(header[idx+1:]), 10, 64)
	if err != nil {
		return 0
	}
	return total
}
