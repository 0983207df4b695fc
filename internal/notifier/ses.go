package notifier

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/pkg/logger"
)

// sesAPI is the slice of *sesv2.Client the notifier uses.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESOptions configures the AWS client. Empty keys fall back to the
// default AWS credential chain.
type SESOptions struct {
	AccessKey string
	SecretKey string
	Region    string
}

// SESNotifier sends through AWS SES v2.
type SESNotifier struct {
	client sesAPI
	sender domain.SubscriberEmail
	log    *logger.Logger
}

// NewSESNotifier loads AWS configuration and creates the SES client.
func NewSESNotifier(ctx context.Context, opts SESOptions, sender string, log *logger.Logger) (*SESNotifier, error) {
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return newSESNotifier(sesv2.NewFromConfig(cfg), sender, log)
}

func newSESNotifier(client sesAPI, sender string, log *logger.Logger) (*SESNotifier, error) {
	from, err := domain.ParseSubscriberEmail(sender)
	if err != nil {
		return nil, fmt.Errorf("email sender: %w", err)
	}
	if log == nil {
		log = logger.Default()
	}
	return &SESNotifier{client: client, sender: from, log: log}, nil
}

// Send implements subscription.Notifier.
func (n *SESNotifier) Send(ctx context.Context, msg domain.EmailMessage) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.sender.String()),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String("UTF-8")},
					Text: &types.Content{Data: aws.String(msg.TextBody), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	out, err := n.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}

	n.log.Debug("email accepted", "recipient", msg.To, "provider", "ses", "message_id", aws.ToString(out.MessageId))
	return nil
}
