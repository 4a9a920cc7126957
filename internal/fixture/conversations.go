package fixture

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwulff/speakerdash/internal/db"
	"github.com/jwulff/speakerdash/internal/format"
)

var audioExtensions = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".mp4":  "video/mp4",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".webm": "audio/webm",
}

func (s *Server) listConversations(c *gin.Context) {
	convs, err := s.store.Conversations(c.Request.Context())
	if err != nil {
		s.serverError(c, "list conversations", err)
		return
	}
	out := make([]conversationJSON, 0, len(convs))
	for _, conv := range convs {
		out = append(out, conversationOut(conv))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getConversation(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := parseID(c.Param("id"))
	if !ok {
		detail(c, http.StatusNotFound, "Conversation not found")
		return
	}
	conv, err := s.store.Conversation(ctx, id)
	if err != nil {
		s.serverError(c, "get conversation", err)
		return
	}
	if conv == nil {
		detail(c, http.StatusNotFound, "Conversation not found")
		return
	}
	utts, err := s.store.UtterancesForConversation(ctx, id)
	if err != nil {
		s.serverError(c, "get conversation", err)
		return
	}
	out := conversationOut(*conv)
	out.Utterances = make([]utteranceJSON, 0, len(utts))
	for _, u := range utts {
		out.Utterances = append(out.Utterances, utteranceOut(u))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) updateConversation(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		detail(c, http.StatusNotFound, "Conversation not found")
		return
	}
	name := strings.TrimSpace(c.PostForm("display_name"))
	if name == "" {
		detail(c, http.StatusBadRequest, "display_name is required")
		return
	}
	if err := s.store.RenameConversation(c.Request.Context(), id, name); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			detail(c, http.StatusNotFound, "Conversation not found")
			return
		}
		s.serverError(c, "update conversation", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": strconv.FormatInt(id, 10), "display_name": name})
}

func (s *Server) deleteConversation(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		detail(c, http.StatusNotFound, "Conversation not found")
		return
	}
	if err := s.store.DeleteConversation(c.Request.Context(), id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			detail(c, http.StatusNotFound, "Conversation not found")
			return
		}
		s.serverError(c, "delete conversation", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": strconv.FormatInt(id, 10)})
}

func (s *Server) uploadConversation(c *gin.Context) {
	ctx := c.Request.Context()
	fh, err := c.FormFile("file")
	if err != nil {
		detail(c, http.StatusBadRequest, "file is required")
		return
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	contentType, ok := audioExtensions[ext]
	if !ok {
		detail(c, http.StatusBadRequest, fmt.Sprintf("Unsupported file type: %s", ext))
		return
	}
	match, err := threshold(c, "match_threshold", 0.40)
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	auto, err := threshold(c, "auto_update_threshold", 0.50)
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	f, err := fh.Open()
	if err != nil {
		s.serverError(c, "upload conversation", err)
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		s.serverError(c, "upload conversation", err)
		return
	}

	if s.uploadDelay > 0 {
		select {
		case <-time.After(s.uploadDelay):
		case <-ctx.Done():
			return
		}
	}

	conversationID := uuid.NewString()
	_, err = s.store.CreateConversation(ctx, db.NewConversation{
		ConversationID:  conversationID,
		DisplayName:     c.PostForm("display_name"),
		ProcessedAt:     time.Now(),
		DurationSeconds: wavDurationSeconds(data),
		Audio:           data,
		AudioType:       contentType,
	})
	if err != nil {
		s.serverError(c, "upload conversation", err)
		return
	}
	s.logger.Info().Str("conversation_id", conversationID).Str("file", fh.Filename).Int("bytes", len(data)).Msg("conversation stored")

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"conversation_id": conversationID,
		"message":         "Conversation processed successfully",
		"logs": []string{
			fmt.Sprintf("Received %s (%s)", fh.Filename, format.Bytes(int64(len(data)))),
			"Transcribing audio...",
			fmt.Sprintf("Identifying speakers (match threshold %.2f, auto-update threshold %.2f)...", match, auto),
			"Saving conversation to database...",
		},
	})
}

func threshold(c *gin.Context, field string, def float64) (float64, error) {
	raw := strings.TrimSpace(c.PostForm(field))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 1 {
		return 0, fmt.Errorf("%s must be a number between 0 and 1", field)
	}
	return v, nil
}
