package publishers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSQS struct {
	in  *sqs.SendMessageInput
	err error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

type fakeSNS struct {
	in  *sns.PublishInput
	err error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("m-2")}, nil
}

func TestSQSPublisherQueuesPage(t *testing.T) {
	api := &fakeSQS{}
	pub := &sqsPublisher{id: "q", queueURL: "https://sqs.local/pages", api: api, log: nopLogger{}}

	if err := pub.Publish(context.Background(), wikiEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	var body PagePayload
	if err := json.Unmarshal([]byte(aws.ToString(api.in.MessageBody)), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Text != wikiPage().Text {
		t.Fatalf("body text = %q", body.Text)
	}
	for key, want := range map[string]string{AttrTargetID: "wiki-http", AttrHost: "en.wikipedia.org", AttrDigest: "9f2c"} {
		if got := aws.ToString(api.in.MessageAttributes[key].StringValue); got != want {
			t.Fatalf("attribute %s = %q, want %q", key, got, want)
		}
	}
	if api.in.MessageGroupId != nil {
		t.Fatalf("standard queue must not get a message group")
	}
}

func TestSQSPublisherFIFOKeys(t *testing.T) {
	api := &fakeSQS{}
	pub := &sqsPublisher{id: "q", queueURL: "https://sqs.local/pages.fifo", fifo: isFIFO("https://sqs.local/pages.fifo"), api: api, log: nopLogger{}}

	if err := pub.Publish(context.Background(), wikiEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if aws.ToString(api.in.MessageGroupId) != "en.wikipedia.org" {
		t.Fatalf("group = %q", aws.ToString(api.in.MessageGroupId))
	}
	if aws.ToString(api.in.MessageDeduplicationId) != "wiki-http:9f2c" {
		t.Fatalf("dedup = %q", aws.ToString(api.in.MessageDeduplicationId))
	}
}

func TestSQSPublisherWrapsError(t *testing.T) {
	boom := errors.New("queue gone")
	pub := &sqsPublisher{id: "q", api: &fakeSQS{err: boom}, log: nopLogger{}}
	if err := pub.Publish(context.Background(), wikiEvent()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestSNSPublisherUsesTitleAsSubject(t *testing.T) {
	api := &fakeSNS{}
	pub := &snsPublisher{id: "t", topicARN: "arn:aws:sns:eu-west-1:1:pages", api: api, log: nopLogger{}}

	if err := pub.Publish(context.Background(), wikiEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := aws.ToString(api.in.Subject); got != "HTTP - Wikipedia" {
		t.Fatalf("subject = %q", got)
	}
	if got := aws.ToString(api.in.MessageAttributes[AttrDigest].StringValue); got != "9f2c" {
		t.Fatalf("digest attribute = %q", got)
	}
	if !strings.Contains(aws.ToString(api.in.Message), `"host":"en.wikipedia.org"`) {
		t.Fatalf("message missing host: %s", aws.ToString(api.in.Message))
	}
}

func TestSubjectForCleansTitle(t *testing.T) {
	evt := wikiEvent()
	evt.Page.Title = "line one\nline two " + strings.Repeat("é", 200)
	got := subjectFor(evt)
	if strings.ContainsAny(got, "\r\n") {
		t.Fatalf("subject kept a line break: %q", got)
	}
	if n := len([]rune(got)); n != maxSubjectLen {
		t.Fatalf("subject length = %d", n)
	}

	evt.Page.Title = ""
	if got := subjectFor(evt); got != "Wikipedia HTTP" {
		t.Fatalf("fallback subject = %q", got)
	}
}

func TestSNSPublisherWrapsError(t *testing.T) {
	boom := errors.New("throttled")
	pub := &snsPublisher{id: "t", api: &fakeSNS{err: boom}, log: nopLogger{}}
	if err := pub.Publish(context.Background(), wikiEvent()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestLoadAWSConfigStaticCredentials(t *testing.T) {
	cfg, err := loadAWSConfig(context.Background(), "eu-west-1", &AWSCredentials{AccessKeyID: "AKID", SecretAccessKey: "SECRET"})
	if err != nil {
		t.Fatalf("loadAWSConfig: %v", err)
	}
	creds, err := cfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if cfg.Region != "eu-west-1" || creds.AccessKeyID != "AKID" {
		t.Fatalf("region=%s key=%s", cfg.Region, creds.AccessKeyID)
	}
}
