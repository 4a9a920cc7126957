package fixture

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwulff/speakerdash/internal/db"
)

func (s *Server) listEmbeddings(c *gin.Context) {
	all, err := s.store.Embeddings(c.Request.Context())
	if err != nil {
		s.serverError(c, "list embeddings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"speakers": groupEmbeddings(all)})
}

func (s *Server) addEmbeddingSpeaker(c *gin.Context) {
	s.storeEmbedding(c, true)
}

func (s *Server) addEmbedding(c *gin.Context) {
	s.storeEmbedding(c, false)
}

// storeEmbedding records a voice sample. newSpeaker requires the name to be
// unused; otherwise the name must already have embeddings.
func (s *Server) storeEmbedding(c *gin.Context, newSpeaker bool) {
	ctx := c.Request.Context()
	name := strings.TrimSpace(c.PostForm("speaker_name"))
	if name == "" {
		detail(c, http.StatusBadRequest, "speaker_name is required")
		return
	}
	fh, err := c.FormFile("audio_file")
	if err != nil {
		detail(c, http.StatusBadRequest, "audio_file is required")
		return
	}
	n, err := s.store.CountEmbeddings(ctx, name)
	if err != nil {
		s.serverError(c, "store embedding", err)
		return
	}
	if newSpeaker && n > 0 {
		detail(c, http.StatusBadRequest, fmt.Sprintf("Speaker %s already exists", name))
		return
	}
	if !newSpeaker && n == 0 {
		detail(c, http.StatusNotFound, fmt.Sprintf("Speaker %s has no embeddings", name))
		return
	}
	id := embeddingID(name, time.Now())
	if err := s.store.AddEmbedding(ctx, db.Embedding{ID: id, SpeakerName: name, SourceFile: fh.Filename}); err != nil {
		s.serverError(c, "store embedding", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "speaker_name": name, "embedding_id": id})
}

func (s *Server) deleteEmbeddingSpeaker(c *gin.Context) {
	name := c.Param("name")
	n, err := s.store.DeleteEmbeddingsForSpeaker(c.Request.Context(), name)
	if err != nil {
		s.serverError(c, "delete embedding speaker", err)
		return
	}
	if n == 0 {
		detail(c, http.StatusNotFound, fmt.Sprintf("Speaker %s not found", name))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "speaker_name": name, "embeddings_deleted": n})
}

func (s *Server) deleteEmbedding(c *gin.Context) {
	e, err := s.store.DeleteEmbedding(c.Request.Context(), c.Param("id"))
	if errors.Is(err, db.ErrNotFound) {
		detail(c, http.StatusNotFound, "Embedding not found")
		return
	}
	if err != nil {
		s.serverError(c, "delete embedding", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "embedding_id": e.ID, "speaker_name": e.SpeakerName})
}
