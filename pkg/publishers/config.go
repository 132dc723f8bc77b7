package publishers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Publisher types understood by DefaultRegistry.
const (
	TypeStdout    = "stdout"
	TypeHTTP      = "http"
	TypeSQS       = "sqs"
	TypeSNS       = "sns"
	TypeGCPPubSub = "gcp_pubsub"
)

const (
	stdoutFormatText = "text"
	stdoutFormatJSON = "json"

	httpDefaultMethod  = "POST"
	httpDefaultTimeout = 5
)

// PublisherConfig is one entry of the publishers file. Exactly the block
// matching Type is read.
type PublisherConfig struct {
	ID      string `json:"id" yaml:"id"`
	Type    string `json:"type" yaml:"type"`
	Enabled *bool  `json:"enabled" yaml:"enabled"`

	// Targets restricts the publisher to pages of these target ids.
	// Empty means every target.
	Targets []string `json:"targets" yaml:"targets"`

	Stdout    *StdoutPublisherConfig    `json:"stdout" yaml:"stdout"`
	HTTP      *HTTPPublisherConfig      `json:"http" yaml:"http"`
	SQS       *SQSPublisherConfig       `json:"sqs" yaml:"sqs"`
	SNS       *SNSPublisherConfig       `json:"sns" yaml:"sns"`
	GCPPubSub *GCPPubSubPublisherConfig `json:"gcp_pubsub" yaml:"gcp_pubsub"`
}

type StdoutPublisherConfig struct {
	// Format is "text" (page text only) or "json" (one payload per line).
	Format string `json:"format" yaml:"format"`
}

type HTTPPublisherConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
	RetryCount     int               `json:"retry_count" yaml:"retry_count"`
}

// AWSCredentials pins static keys instead of the default provider chain.
type AWSCredentials struct {
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	SessionToken    string `json:"session_token" yaml:"session_token"`
}

type SQSPublisherConfig struct {
	QueueURL    string          `json:"uri" yaml:"uri"`
	Region      string          `json:"region" yaml:"region"`
	Credentials *AWSCredentials `json:"credentials" yaml:"credentials"`
}

type SNSPublisherConfig struct {
	TopicARN    string          `json:"topic_arn" yaml:"topic_arn"`
	Region      string          `json:"region" yaml:"region"`
	Credentials *AWSCredentials `json:"credentials" yaml:"credentials"`
}

type GCPPubSubPublisherConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
}

// EnabledValue treats a missing enabled flag as true.
func (c PublisherConfig) EnabledValue() bool {
	return c.Enabled == nil || *c.Enabled
}

func (c *PublisherConfig) normalize() {
	c.ID = strings.TrimSpace(c.ID)
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	c.Targets = cleanIDs(c.Targets)

	if c.Type == TypeStdout && c.Stdout == nil {
		c.Stdout = &StdoutPublisherConfig{}
	}
	if c.Stdout != nil {
		c.Stdout.Format = strings.ToLower(strings.TrimSpace(c.Stdout.Format))
		if c.Stdout.Format == "" {
			c.Stdout.Format = stdoutFormatText
		}
	}
	if h := c.HTTP; h != nil {
		h.URL = strings.TrimSpace(h.URL)
		h.Method = strings.ToUpper(strings.TrimSpace(h.Method))
		if h.Method == "" {
			h.Method = httpDefaultMethod
		}
		if h.TimeoutSeconds <= 0 {
			h.TimeoutSeconds = httpDefaultTimeout
		}
		h.RetryCount = max(h.RetryCount, 0)
		h.Headers = cleanHeaders(h.Headers)
	}
	if q := c.SQS; q != nil {
		q.QueueURL = strings.TrimSpace(q.QueueURL)
		q.Region = strings.TrimSpace(q.Region)
	}
	if s := c.SNS; s != nil {
		s.TopicARN = strings.TrimSpace(s.TopicARN)
		s.Region = strings.TrimSpace(s.Region)
	}
	if g := c.GCPPubSub; g != nil {
		g.ProjectID = strings.TrimSpace(g.ProjectID)
		g.Topic = strings.TrimSpace(g.Topic)
		g.CredentialsFile = strings.TrimSpace(g.CredentialsFile)
	}
}

func (c PublisherConfig) validate() error {
	if c.ID == "" {
		return errors.New("id is required")
	}
	var err error
	switch c.Type {
	case "":
		err = errors.New("type is required")
	case TypeStdout:
		err = c.Stdout.validate()
	case TypeHTTP:
		err = c.HTTP.validate()
	case TypeSQS:
		err = c.SQS.validate()
	case TypeSNS:
		err = c.SNS.validate()
	case TypeGCPPubSub:
		err = c.GCPPubSub.validate()
	default:
		err = fmt.Errorf("unknown type %q", c.Type)
	}
	if err != nil {
		return fmt.Errorf("publisher %q: %w", c.ID, err)
	}
	return nil
}

func (s *StdoutPublisherConfig) validate() error {
	if s == nil {
		return errors.New("stdout block is required")
	}
	if s.Format != stdoutFormatText && s.Format != stdoutFormatJSON {
		return fmt.Errorf("stdout.format %q is not %q or %q", s.Format, stdoutFormatText, stdoutFormatJSON)
	}
	return nil
}

func (h *HTTPPublisherConfig) validate() error {
	switch {
	case h == nil:
		return errors.New("http block is required")
	case h.URL == "":
		return errors.New("http.url is required")
	}
	return nil
}

func (q *SQSPublisherConfig) validate() error {
	switch {
	case q == nil:
		return errors.New("sqs block is required")
	case q.QueueURL == "":
		return errors.New("sqs.uri is required")
	case q.Region == "":
		return errors.New("sqs.region is required")
	}
	return nil
}

func (s *SNSPublisherConfig) validate() error {
	switch {
	case s == nil:
		return errors.New("sns block is required")
	case s.TopicARN == "":
		return errors.New("sns.topic_arn is required")
	case s.Region == "":
		return errors.New("sns.region is required")
	}
	return nil
}

func (g *GCPPubSubPublisherConfig) validate() error {
	switch {
	case g == nil:
		return errors.New("gcp_pubsub block is required")
	case g.ProjectID == "" || g.Topic == "":
		return errors.New("gcp_pubsub.project_id and gcp_pubsub.topic are required")
	}
	return nil
}

func cleanIDs(ids []string) []string {
	var out []string
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func cleanHeaders(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ConfigSet is the validated content of a publishers file, in file order.
type ConfigSet struct {
	entries []PublisherConfig
}

// LoadConfigs reads and validates a publishers file. Files ending in .json
// are decoded as JSON, everything else as YAML. Unknown keys are rejected.
func LoadConfigs(path string) (*ConfigSet, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("publishers file path is empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read publishers file: %w", err)
	}
	set, err := ParseConfigs(raw, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// ParseConfigs decodes and validates publisher entries.
func ParseConfigs(raw []byte, isJSON bool) (*ConfigSet, error) {
	var doc struct {
		Publishers []PublisherConfig `json:"publishers" yaml:"publishers"`
	}
	if isJSON {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	}
	if len(doc.Publishers) == 0 {
		return nil, errors.New("no publishers declared")
	}

	seen := make(map[string]bool, len(doc.Publishers))
	for i := range doc.Publishers {
		c := &doc.Publishers[i]
		c.normalize()
		if err := c.validate(); err != nil {
			return nil, fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("publishers[%d]: duplicate id %q", i, c.ID)
		}
		seen[c.ID] = true
	}
	return &ConfigSet{entries: doc.Publishers}, nil
}

// All returns every entry.
func (s *ConfigSet) All() []PublisherConfig {
	if s == nil {
		return nil
	}
	return append([]PublisherConfig(nil), s.entries...)
}

// Enabled returns the entries not switched off.
func (s *ConfigSet) Enabled() []PublisherConfig {
	var out []PublisherConfig
	for _, c := range s.All() {
		if c.EnabledValue() {
			out = append(out, c)
		}
	}
	return out
}

func (s *ConfigSet) ByID(id string) (PublisherConfig, bool) {
	for _, c := range s.All() {
		if c.ID == id {
			return c, true
		}
	}
	return PublisherConfig{}, false
}
