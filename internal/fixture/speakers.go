package fixture

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwulff/speakerdash/internal/db"
)

func (s *Server) listSpeakers(c *gin.Context) {
	speakers, err := s.store.Speakers(c.Request.Context())
	if err != nil {
		s.serverError(c, "list speakers", err)
		return
	}
	out := make([]speakerJSON, 0, len(speakers))
	for _, sp := range speakers {
		out = append(out, speakerOut(sp))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) createSpeaker(c *gin.Context) {
	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		detail(c, http.StatusBadRequest, "Speaker name is required")
		return
	}
	sp, created, err := s.store.CreateSpeaker(c.Request.Context(), name)
	if err != nil {
		s.serverError(c, "create speaker", err)
		return
	}
	msg := "Speaker created"
	if !created {
		msg = "Speaker already exists"
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": sp.ID, "name": sp.Name, "message": msg})
}

func (s *Server) updateSpeaker(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := parseID(c.Param("id"))
	if !ok {
		detail(c, http.StatusNotFound, "Speaker not found")
		return
	}
	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		detail(c, http.StatusBadRequest, "Speaker name is required")
		return
	}
	if other, err := s.store.SpeakerByName(ctx, name); err != nil {
		s.serverError(c, "update speaker", err)
		return
	} else if other != nil && other.ID != id {
		detail(c, http.StatusBadRequest, fmt.Sprintf("A speaker named %q already exists", name))
		return
	}
	if err := s.store.RenameSpeaker(ctx, id, name); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			detail(c, http.StatusNotFound, "Speaker not found")
			return
		}
		s.serverError(c, "update speaker", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": id, "name": name})
}

func (s *Server) deleteSpeaker(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		detail(c, http.StatusNotFound, "Speaker not found")
		return
	}
	sp, err := s.store.DeleteSpeaker(c.Request.Context(), id)
	switch {
	case errors.Is(err, db.ErrNotFound):
		detail(c, http.StatusNotFound, "Speaker not found")
		return
	case errors.Is(err, db.ErrSpeakerInUse):
		detail(c, http.StatusBadRequest, fmt.Sprintf("Cannot delete speaker %s: %d utterances still assigned. Reassign them first.", sp.Name, sp.UtteranceCount))
		return
	case err != nil:
		s.serverError(c, "delete speaker", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": sp.ID, "name": sp.Name, "utterances_reassigned": 0})
}

func (s *Server) reassignUtterances(c *gin.Context) {
	ctx := c.Request.Context()
	fromID, ok := parseID(c.Param("id"))
	if !ok {
		detail(c, http.StatusNotFound, "Source speaker not found")
		return
	}
	toID, ok := parseID(strings.TrimSpace(c.PostForm("to_speaker_id")))
	if !ok {
		detail(c, http.StatusBadRequest, "to_speaker_id is required")
		return
	}
	if fromID == toID {
		detail(c, http.StatusBadRequest, "Source and target speaker are the same")
		return
	}
	for _, id := range []int64{fromID, toID} {
		sp, err := s.store.Speaker(ctx, id)
		if err != nil {
			s.serverError(c, "reassign utterances", err)
			return
		}
		if sp == nil {
			detail(c, http.StatusNotFound, fmt.Sprintf("Speaker %d not found", id))
			return
		}
	}

	var scope *int64
	if raw := strings.TrimSpace(c.PostForm("conversation_id")); raw != "" {
		convID, ok := parseID(raw)
		if !ok {
			detail(c, http.StatusNotFound, "Conversation not found")
			return
		}
		scope = &convID
	}
	n, err := s.store.ReassignUtterances(ctx, fromID, toID, scope)
	if err != nil {
		s.serverError(c, "reassign utterances", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"from_speaker_id": fromID,
		"to_speaker_id":   toID,
		"updated_count":   n,
	})
}
