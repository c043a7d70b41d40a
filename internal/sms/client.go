// Package sms delivers text messages through AWS SNS. It backs the chat
// channel when the WhatsApp gateway is missing or down.
package sms

import (
	"context"
	"fmt"

	"crm_workflow_backend/internal/messages/domain"
	"crm_workflow_backend/platform/config"
	"crm_workflow_backend/platform/logger"
	"crm_workflow_backend/platform/phone"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// Publisher is the part of the SNS client the sender uses.
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Client struct {
	sns      Publisher
	senderID string
	region   string
	log      *logger.Logger
}

// NewClient loads AWS credentials from the environment. It returns nil
// when no SMS region is configured.
func NewClient(ctx context.Context, cfg config.SMSConfig, log *logger.Logger) (*Client, error) {
	if cfg.GetSMSRegion() == "" {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.GetSMSRegion()))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return New(sns.NewFromConfig(awsCfg), cfg.GetSMSSenderID(), cfg.GetPhoneDefaultRegion(), log), nil
}

// New wraps an SNS publisher.
func New(publisher Publisher, senderID, region string, log *logger.Logger) *Client {
	return &Client{sns: publisher, senderID: senderID, region: region, log: log}
}

// Send publishes msg as a transactional SMS. Reactions cannot be sent.
func (c *Client) Send(ctx context.Context, msg domain.OutboundMessage) (string, error) {
	if msg.Reaction {
		return "", fmt.Errorf("sms: reactions are not supported")
	}
	number := phone.NormalizeE164(msg.To, c.region)
	if number == "" || number == "+" {
		return "", fmt.Errorf("sms: empty recipient")
	}

	attributes := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    aws.String("String"),
			StringValue: aws.String("Transactional"),
		},
	}
	if c.senderID != "" {
		attributes["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(c.senderID),
		}
	}

	out, err := c.sns.Publish(ctx, &sns.PublishInput{
		Message:           aws.String(msg.Text),
		PhoneNumber:       aws.String(number),
		MessageAttributes: attributes,
	})
	if err != nil {
		return "", fmt.Errorf("sns publish: %w", err)
	}

	id := aws.ToString(out.MessageId)
	c.log.Info("sms sent via sns", "phone", number, "messageId", id)
	return id, nil
}
