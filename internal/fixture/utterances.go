package fixture

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwulff/speakerdash/internal/db"
)

type utteranceUpdate struct {
	SpeakerID json.RawMessage `json:"speaker_id"`
	Text      *string         `json:"text"`
}

// speakerRef decodes a speaker id sent as a JSON string or number.
func speakerRef(raw json.RawMessage) (int64, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, true, err
	}
	return id, true, nil
}

func (s *Server) updateUtterance(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := parseID(c.Param("id"))
	if !ok {
		detail(c, http.StatusNotFound, "Utterance not found")
		return
	}
	var req utteranceUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}
	speakerID, hasSpeaker, err := speakerRef(req.SpeakerID)
	if err != nil {
		detail(c, http.StatusBadRequest, "speaker_id must be a speaker id")
		return
	}
	if !hasSpeaker && req.Text == nil {
		detail(c, http.StatusBadRequest, "Either speaker_id or text must be provided")
		return
	}
	var speakerArg *int64
	if hasSpeaker {
		sp, err := s.store.Speaker(ctx, speakerID)
		if err != nil {
			s.serverError(c, "update utterance", err)
			return
		}
		if sp == nil {
			detail(c, http.StatusNotFound, "Speaker not found")
			return
		}
		speakerArg = &speakerID
	}
	if err := s.store.UpdateUtterance(ctx, id, speakerArg, req.Text); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			detail(c, http.StatusNotFound, "Utterance not found")
			return
		}
		s.serverError(c, "update utterance", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": strconv.FormatInt(id, 10)})
}

func (s *Server) audio(c *gin.Context) {
	ctx := c.Request.Context()
	convID, ok1 := parseID(c.Param("conversation"))
	uttID, ok2 := parseID(c.Param("utterance"))
	if !ok1 || !ok2 {
		detail(c, http.StatusNotFound, "Audio not found")
		return
	}
	u, err := s.store.Utterance(ctx, uttID)
	if err != nil {
		s.serverError(c, "audio", err)
		return
	}
	if u == nil || u.ConversationID != convID {
		detail(c, http.StatusNotFound, "Audio not found")
		return
	}
	data, contentType, err := s.store.ConversationAudio(ctx, convID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		s.serverError(c, "audio", err)
		return
	}
	name := "utterance_" + c.Param("utterance") + ".wav"
	if len(data) == 0 {
		data = silentWAV(u.DurationMs())
		contentType = "audio/wav"
	}
	c.Header("Content-Type", contentType)
	http.ServeContent(c.Writer, c.Request, name, time.Time{}, bytes.NewReader(data))
}
