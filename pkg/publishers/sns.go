package publishers

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type snsAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// snsPublisher announces each page on a topic. The page title becomes the
// subject so email subscribers get something readable.
type snsPublisher struct {
	id       string
	topicARN string
	fifo     bool
	api      snsAPI
	log      Logger
}

// maxSubjectLen is the SNS subject limit.
const maxSubjectLen = 100

func newSNSPublisher(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if err := cfg.SNS.validate(); err != nil {
		return nil, err
	}
	awsCfg, err := loadAWSConfig(ctx, cfg.SNS.Region, cfg.SNS.Credentials)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	return &snsPublisher{
		id:       cfg.ID,
		topicARN: cfg.SNS.TopicARN,
		fifo:     isFIFO(cfg.SNS.TopicARN),
		api:      sns.NewFromConfig(awsCfg),
		log:      orNop(log),
	}, nil
}

func (s *snsPublisher) ID() string   { return s.id }
func (s *snsPublisher) Type() string { return TypeSNS }

func (s *snsPublisher) Publish(ctx context.Context, evt Event) error {
	body, err := encodePayload(evt)
	if err != nil {
		return fmt.Errorf("encode page %s: %w", evt.TargetID, err)
	}
	in := &sns.PublishInput{
		TopicArn:          aws.String(s.topicARN),
		Message:           aws.String(string(body)),
		MessageAttributes: snsAttributes(evt),
	}
	if subject := subjectFor(evt); subject != "" {
		in.Subject = aws.String(subject)
	}
	if s.fifo {
		group, dedup := evt.fifoKeys()
		in.MessageGroupId = aws.String(group)
		in.MessageDeduplicationId = aws.String(dedup)
	}

	out, err := s.api.Publish(ctx, in)
	if err != nil {
		s.log.ErrorObj("sns publish failed", "publisher_sns_error", map[string]any{
			"publisher_id": s.id,
			"target_id":    evt.TargetID,
			"error":        err.Error(),
		})
		return fmt.Errorf("sns publish page %s: %w", evt.TargetID, err)
	}
	s.log.DebugObj("page announced", "publisher_sns_delivery", map[string]any{
		"publisher_id": s.id,
		"target_id":    evt.TargetID,
		"message_id":   aws.ToString(out.MessageId),
	})
	return nil
}

// subjectFor picks the page title, falling back to the target name. SNS
// rejects subjects with line breaks or over the length limit.
func subjectFor(evt Event) string {
	subject := evt.Page.Title
	if subject == "" {
		subject = evt.TargetName
	}
	runes := []rune(subject)
	for i, r := range runes {
		if r == '\n' || r == '\r' {
			runes[i] = ' '
		}
	}
	if len(runes) > maxSubjectLen {
		runes = runes[:maxSubjectLen]
	}
	return string(runes)
}
