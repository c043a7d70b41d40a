package sms

import (
	"context"
	"errors"
	"testing"

	"crm_workflow_backend/internal/messages/domain"
	"crm_workflow_backend/platform/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type fakePublisher struct {
	input *sns.PublishInput
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("sns-42")}, nil
}

func TestSendPublishesTransactionalSMS(t *testing.T) {
	pub := &fakePublisher{}
	c := New(pub, "SHOP", "IT", logger.Nop())

	id, err := c.Send(context.Background(), domain.OutboundMessage{To: "393331234567", Text: "order ready"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "sns-42" {
		t.Fatalf("expected sns id, got %q", id)
	}
	if aws.ToString(pub.input.PhoneNumber) != "+393331234567" || aws.ToString(pub.input.Message) != "order ready" {
		t.Fatalf("unexpected publish input %+v", pub.input)
	}
	if aws.ToString(pub.input.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue) != "Transactional" {
		t.Fatalf("expected transactional sms type")
	}
	if aws.ToString(pub.input.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue) != "SHOP" {
		t.Fatalf("expected sender id attribute")
	}
}

func TestSendRejectsReactions(t *testing.T) {
	pub := &fakePublisher{}
	c := New(pub, "", "IT", logger.Nop())
	if _, err := c.Send(context.Background(), domain.OutboundMessage{To: "393331234567", Text: "👍", Reaction: true}); err == nil {
		t.Fatalf("expected reactions to be rejected")
	}
	if pub.input != nil {
		t.Fatalf("expected nothing published")
	}
}

func TestSendWrapsPublishError(t *testing.T) {
	c := New(&fakePublisher{err: errors.New("throttled")}, "", "IT", logger.Nop())
	if _, err := c.Send(context.Background(), domain.OutboundMessage{To: "393331234567", Text: "x"}); err == nil {
		t.Fatalf("expected error")
	}
}
