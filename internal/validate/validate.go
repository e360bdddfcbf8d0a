package validate

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"github.com/citypulse-systems/event-ingest/internal/models"
)

// FieldError describes a single structural violation in an incoming record.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Errors aggregates every violation found in one pass over the record.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Error()
	}
	return strings.Join(msgs, "; ")
}

// Record checks an incoming EventRecord against the ingestion shape. It
// returns nil when the record is acceptable, or Errors listing every
// violation. All checks run; the caller gets the full list in one response.
func Record(e *models.EventRecord) error {
	var errs Errors

	add := func(field, message string) {
		errs = append(errs, FieldError{Field: field, Message: message})
	}

	if e.ID == "" {
		add("id", "required")
	}
	if strings.TrimSpace(e.Title) == "" {
		add("title", "required and must be non-empty")
	}
	if e.StartTime.IsZero() {
		add("start_time", "required")
	}
	if e.EndTime != nil && !e.StartTime.IsZero() && e.EndTime.Before(e.StartTime) {
		add("end_time", "must not precede start_time")
	}

	if e.Location == nil {
		add("location", "required")
	} else {
		if strings.TrimSpace(e.Location.Name) == "" {
			add("location.name", "required")
		}
		if geo := e.Location.Geo; geo != nil {
			if geo.Lat == nil || geo.Lon == nil {
				add("location.geo", "lat and lon must be set together")
			} else {
				if *geo.Lat < -90 || *geo.Lat > 90 {
					add("location.geo.lat", "must be between -90 and 90")
				}
				if *geo.Lon < -180 || *geo.Lon > 180 {
					add("location.geo.lon", "must be between -180 and 180")
				}
			}
		}
	}

	if e.OrganizerInfo == nil {
		add("organizer_info", "required")
	} else {
		if strings.TrimSpace(e.OrganizerInfo.Name) == "" {
			add("organizer_info.name", "required")
		}
		if email := e.OrganizerInfo.ContactEmail; email != "" {
			if _, err := mail.ParseAddress(email); err != nil {
				add("organizer_info.contact_email", "invalid email address")
			}
		}
		if site := e.OrganizerInfo.Website; site != "" {
			if u, err := url.Parse(site); err != nil || u.Scheme == "" || u.Host == "" {
				add("organizer_info.website", "invalid URL")
			}
		}
	}

	if e.ActionLink != nil && e.ActionLink.URL == "" {
		add("action_link.url", "required when action_link is present")
	}
	for i, link := range e.RelatedLinks {
		if link.URL == "" {
			add(fmt.Sprintf("related_links[%d].url", i), "required")
		}
	}

	// The embedding is server-populated; callers must not supply one.
	if e.VectorEmbedding != nil {
		add("vector_embedding", "must not be supplied")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
