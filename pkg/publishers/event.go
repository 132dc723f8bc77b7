package publishers

import (
	"encoding/json"
	"time"

	"github.com/samvad-hq/samvad-rawfetch/internal/domain"
)

// Event is one fetched page on its way to the sinks.
type Event struct {
	TargetID    string      `json:"target_id"`
	TargetName  string      `json:"target_name"`
	Page        domain.Page `json:"page"`
	CollectedAt time.Time   `json:"collected_at"`
}

// NewEvent stamps page with the target it was fetched for.
func NewEvent(targetID, targetName string, page domain.Page) Event {
	return Event{
		TargetID:    targetID,
		TargetName:  targetName,
		Page:        page,
		CollectedAt: time.Now().UTC(),
	}
}

// PagePayload is the flat JSON document every sink receives.
type PagePayload struct {
	TargetID    string    `json:"target_id"`
	TargetName  string    `json:"target_name,omitempty"`
	URL         string    `json:"url"`
	Host        string    `json:"host"`
	StatusLine  string    `json:"status_line"`
	Charset     string    `json:"charset"`
	Title       string    `json:"title,omitempty"`
	Text        string    `json:"text"`
	Digest      string    `json:"digest"`
	FetchedAt   time.Time `json:"fetched_at"`
	CollectedAt time.Time `json:"collected_at"`
}

// Payload flattens the event for the wire.
func (e Event) Payload() PagePayload {
	return PagePayload{
		TargetID:    e.TargetID,
		TargetName:  e.TargetName,
		URL:         e.Page.URL,
		Host:        e.Page.Host,
		StatusLine:  e.Page.StatusLine,
		Charset:     e.Page.Charset,
		Title:       e.Page.Title,
		Text:        e.Page.Text,
		Digest:      e.Page.Digest,
		FetchedAt:   e.Page.FetchedAt,
		CollectedAt: e.CollectedAt,
	}
}

func encodePayload(e Event) ([]byte, error) {
	return json.Marshal(e.Payload())
}

// Attribute keys attached to queue and topic messages so subscribers can
// filter without decoding the body.
const (
	AttrTargetID = "target_id"
	AttrHost     = "host"
	AttrDigest   = "digest"
)

// attributes returns the non-empty routing attributes of e.
func (e Event) attributes() map[string]string {
	out := make(map[string]string, 3)
	for k, v := range map[string]string{
		AttrTargetID: e.TargetID,
		AttrHost:     e.Page.Host,
		AttrDigest:   e.Page.Digest,
	} {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// maxDedupIDLen is the AWS limit for FIFO deduplication ids.
const maxDedupIDLen = 128

// fifoKeys groups messages per host and deduplicates identical page text
// for the same target.
func (e Event) fifoKeys() (group, dedup string) {
	group = e.Page.Host
	if group == "" {
		group = e.TargetID
	}
	dedup = e.TargetID + ":" + e.Page.Digest
	if len(dedup) > maxDedupIDLen {
		dedup = dedup[len(dedup)-maxDedupIDLen:]
	}
	return group, dedup
}
