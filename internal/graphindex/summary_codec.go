package graphindex

import "encoding/json"

// summaryPayload is the durable encoding of a Summary, carrying the
// "type = community_summary" marker the spec's L2 metadata contract calls
// for inline in the payload (the fabric's Value has no separate metadata
// channel).
type summaryPayload struct {
	Type          string   `json:"type"`
	CommunityID   string   `json:"community_id"`
	Level         int      `json:"level"`
	Title         string   `json:"title"`
	SummaryText   string   `json:"summary_text"`
	KeyConcepts   []string `json:"key_concepts,omitempty"`
	Relationships []string `json:"relationships,omitempty"`
	GeneratedAt   string   `json:"generated_at"`
}

func encodeSummary(s Summary) []byte {
	p := summaryPayload{
		Type:          "community_summary",
		CommunityID:   s.CommunityID,
		Level:         s.Level,
		Title:         s.Title,
		SummaryText:   s.SummaryText,
		KeyConcepts:   s.KeyConcepts,
		Relationships: s.Relationships,
		GeneratedAt:   s.GeneratedAt.Format("2006-01-02T15:04:05.999999999Z07:00"),
	}
	data, _ := json.Marshal(p)
	return data
}
