package view

import (
	"github.com/jwulff/speakerdash/internal/api"
	"github.com/jwulff/speakerdash/internal/format"
)

// Provenance says where a recovered record came from.
type Provenance int

const (
	// ProvenanceServer marks data taken from the last server reply.
	ProvenanceServer Provenance = iota
	// ProvenanceRendered marks data rebuilt from rendered rows. Timing is
	// only accurate to the second and the speaker name may be a label.
	ProvenanceRendered
)

func (p Provenance) String() string {
	if p == ProvenanceRendered {
		return "rendered"
	}
	return "server"
}

// Recovered is an utterance together with where it came from.
type Recovered struct {
	Utterance  api.Utterance
	Provenance Provenance
}

// RecoverUtterance rebuilds utterance id from rendered rows.
func RecoverUtterance(rows []UtteranceRow, id api.ID) (Recovered, bool) {
	for _, r := range rows {
		if r.ID != id {
			continue
		}
		u := api.Utterance{
			ID:        r.ID,
			SpeakerID: r.SpeakerID,
			AudioURL:  r.AudioURL,
		}
		if r.SpeakerID != "" {
			u.SpeakerName = r.Speaker
		}
		if !r.NoText {
			u.Text = r.Text
		}
		if ms, ok := format.ParseClock(r.Start); ok {
			u.StartMs = ms
		}
		if ms, ok := format.ParseClock(r.End); ok {
			u.EndMs = ms
		}
		return Recovered{Utterance: u, Provenance: ProvenanceRendered}, true
	}
	return Recovered{}, false
}
