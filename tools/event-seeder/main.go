// event-seeder generates random event records and posts them to a running
// event-ingest instance. Intended for local development and load testing.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/citypulse-systems/event-ingest/internal/models"
)

var (
	ingestURL = flag.String("url", "http://localhost:8000", "event-ingest base URL")
	count     = flag.Int("count", 100, "number of events to generate")
	interval  = flag.Duration("interval", 100*time.Millisecond, "interval between events")
	seed      = flag.Int64("seed", 0, "random seed (0 for time-based)")
)

func main() {
	flag.Parse()

	if *seed != 0 {
		gofakeit.Seed(*seed)
	}

	client := &http.Client{Timeout: 30 * time.Second}

	sent, failed := 0, 0
	for i := 0; i < *count; i++ {
		event := generateEvent()
		if err := postEvent(client, *ingestURL, event); err != nil {
			failed++
			log.Printf("failed to post event %s: %v", event.ID, err)
		} else {
			sent++
		}
		if i < *count-1 {
			time.Sleep(*interval)
		}
	}

	log.Printf("done: %d sent, %d failed", sent, failed)
}

var eventKinds = []string{"Concert", "Market", "Workshop", "Festival", "Meetup", "Exhibition"}

func generateEvent() *models.EventRecord {
	start := gofakeit.DateRange(time.Now(), time.Now().AddDate(0, 3, 0)).UTC().Truncate(time.Second)
	end := start.Add(time.Duration(gofakeit.Number(1, 5)) * time.Hour)

	lat := gofakeit.Latitude()
	lon := gofakeit.Longitude()

	event := &models.EventRecord{
		ID:          gofakeit.UUID(),
		Title:       fmt.Sprintf("%s %s", gofakeit.City(), gofakeit.RandomString(eventKinds)),
		Description: gofakeit.Paragraph(1, 3, 12, " "),
		StartTime:   start,
		EndTime:     &end,
		Location: &models.Location{
			Name:    gofakeit.Company(),
			Address: gofakeit.Address().Address,
			Geo:     &models.GeoPoint{Lat: &lat, Lon: &lon},
		},
		OrganizerInfo: &models.OrganizerInfo{
			Name:         gofakeit.Company(),
			ContactEmail: gofakeit.Email(),
			Website:      gofakeit.URL(),
		},
		Signature: gofakeit.UUID(),
	}

	// Roughly a third of events carry an action link and media.
	if gofakeit.Number(0, 2) == 0 {
		event.ActionLink = &models.ActionLink{
			URL:  gofakeit.URL(),
			Text: "Get tickets",
			Type: "tickets",
		}
		event.Media = &models.Media{
			Type:  "image",
			Value: gofakeit.URL(),
		}
	}

	return event
}

func postEvent(client *http.Client, baseURL string, event *models.EventRecord) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/events", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
