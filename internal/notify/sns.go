package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/rs/zerolog/log"
)

// SNS subjects are limited to 100 printable ASCII characters.
const snsSubjectLimit = 100

// SNSAPI is the subset of the SNS client used for publishing.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNS fans an alert out to every subscriber of an SNS topic.
type SNS struct {
	api      SNSAPI
	topicArn string
}

// NewSNS loads the default AWS credential chain for region.
func NewSNS(ctx context.Context, region, topicArn string) (*SNS, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return NewSNSWithClient(sns.NewFromConfig(cfg), topicArn), nil
}

func NewSNSWithClient(api SNSAPI, topicArn string) *SNS {
	return &SNS{api: api, topicArn: topicArn}
}

func (*SNS) Name() string { return "sns" }

func (s *SNS) Send(ctx context.Context, msg Message) Outcome {
	if s.api == nil || s.topicArn == "" {
		return failed(s.Name(), ErrNotConfigured)
	}

	subject := snsSubject(msg.Subject)
	out, err := s.api.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(msg.Body),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"severity": {DataType: aws.String("String"), StringValue: aws.String(string(msg.Severity))},
		},
	})
	if err != nil {
		return failed(s.Name(), fmt.Errorf("failed to publish to SNS: %w", err))
	}

	log.Debug().Str("message_id", aws.ToString(out.MessageId)).Msg("sns alert published")
	return sent(s.Name())
}

// snsSubject drops anything SNS rejects in a subject and truncates the rest.
func snsSubject(s string) string {
	var b strings.Builder
	for _, r := range s {
		if b.Len() == snsSubjectLimit {
			break
		}
		switch {
		case r == '\r' || r == '\n' || r == '\t':
			b.WriteByte(' ')
		case r >= 0x20 && r < 0x7f:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
