package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duesync/internal/model"
	"duesync/internal/reconcile"
)

type mockPublisher struct {
	inputs []*sns.PublishInput
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.inputs = append(m.inputs, in)
	if m.err != nil {
		return nil, m.err
	}
	return &sns.PublishOutput{}, nil
}

func TestNotify(t *testing.T) {
	tests := []struct {
		name        string
		runErr      error
		wantSubject string
	}{
		{name: "completed run", wantSubject: "duesync: 2 added, 0 updated, 1 skipped, 0 failed"},
		{name: "aborted run", runErr: model.ErrAuthentication, wantSubject: "duesync: run failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{}
			n := NewSNSWithClient(pub, "arn:aws:sns:us-east-1:123456789012:duesync")

			rep := reconcile.Report{Outcome: model.RunOutcome{Added: 2, Skipped: 1}}
			require.NoError(t, n.Notify(context.Background(), rep, tt.runErr))

			require.Len(t, pub.inputs, 1)
			in := pub.inputs[0]
			assert.Equal(t, "arn:aws:sns:us-east-1:123456789012:duesync", *in.TopicArn)
			assert.Equal(t, tt.wantSubject, *in.Subject)
			assert.Contains(t, *in.Message, "SUMMARY")
		})
	}
}

func TestNotifyPublishError(t *testing.T) {
	pub := &mockPublisher{err: errors.New("throttled")}
	n := NewSNSWithClient(pub, "arn:topic")

	err := n.Notify(context.Background(), reconcile.Report{}, nil)
	assert.ErrorContains(t, err, "throttled")
}
