package models

import (
	"strings"
	"time"
)

// EventRecord is the unit of ingestion. The caller supplies every field
// except vector_embedding, which the pipeline populates (or leaves null when
// embedding was skipped or failed).
type EventRecord struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	StartTime       time.Time      `json:"start_time"`
	EndTime         *time.Time     `json:"end_time,omitempty"`
	Location        *Location      `json:"location"`
	OrganizerInfo   *OrganizerInfo `json:"organizer_info"`
	ActionLink      *ActionLink    `json:"action_link,omitempty"`
	Media           *Media         `json:"media,omitempty"`
	RelatedLinks    []RelatedLink  `json:"related_links,omitempty"`
	Signature       string         `json:"signature,omitempty"`
	VectorEmbedding []float32      `json:"vector_embedding"`
}

type Location struct {
	Name    string    `json:"name"`
	Address string    `json:"address,omitempty"`
	Geo     *GeoPoint `json:"geo,omitempty"`
}

// GeoPoint carries a lat/lon pair. Both coordinates must be set together;
// pointers distinguish an absent coordinate from 0.0.
type GeoPoint struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

type OrganizerInfo struct {
	Name         string `json:"name"`
	ContactEmail string `json:"contact_email,omitempty"`
	Website      string `json:"website,omitempty"`
}

type ActionLink struct {
	URL  string `json:"url"`
	Text string `json:"text,omitempty"`
	Type string `json:"type,omitempty"`
}

type Media struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type RelatedLink struct {
	URL  string `json:"url"`
	Text string `json:"text,omitempty"`
	Type string `json:"type,omitempty"`
}

// EmbeddingText derives the text the encoder sees. Only title and
// description participate; an event with both empty yields "".
func (e *EventRecord) EmbeddingText() string {
	return strings.TrimSpace(e.Title + " " + e.Description)
}

// Document shapes the record for indexing. Unset optional fields are omitted
// rather than written as explicit nulls so index-level defaults stay intact;
// in particular a missing embedding omits the vector field entirely.
func (e *EventRecord) Document() interface{} {
	return struct {
		EventRecord
		VectorEmbedding []float32 `json:"vector_embedding,omitempty"`
	}{
		EventRecord:     *e,
		VectorEmbedding: e.VectorEmbedding,
	}
}
