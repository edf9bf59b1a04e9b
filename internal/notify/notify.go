// Package notify publishes run summaries.
package notify

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"duesync/internal/reconcile"
	"duesync/internal/report"
)

// Publisher is the subset of the SNS client used here.
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNS publishes run summaries to a topic.
type SNS struct {
	client   Publisher
	topicARN string
}

// NewSNS builds a notifier from the default AWS credential chain.
func NewSNS(ctx context.Context, topicARN string) (*SNS, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSNSWithClient(sns.NewFromConfig(cfg), topicARN), nil
}

// NewSNSWithClient wraps an existing client.
func NewSNSWithClient(client Publisher, topicARN string) *SNS {
	return &SNS{client: client, topicARN: topicARN}
}

// Notify publishes the outcome of one run.
func (n *SNS) Notify(ctx context.Context, rep reconcile.Report, runErr error) error {
	subject := "duesync: " + report.Summary(rep.Outcome)
	if runErr != nil {
		subject = "duesync: run failed"
	}
	msg := report.Plain(rep, runErr)

	_, err := n.client.Publish(ctx, &sns.PublishInput{
		Message:  &msg,
		Subject:  &subject,
		TopicArn: &n.topicARN,
	})
	if err != nil {
		return fmt.Errorf("error publishing to AWS SNS topic %s: %w", n.topicARN, err)
	}
	return nil
}
