package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type dynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// AWSArchive stores the full record in S3 and an index item in DynamoDB.
// The index item is written last, so Get never sees a dangling pointer.
type AWSArchive struct {
	s3        s3API
	dynamoDB  dynamoAPI
	bucket    string
	tableName string
}

// IssueItem is the DynamoDB index entry for an archived issue.
type IssueItem struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	Title       string `dynamodbav:"Title"`
	S3Key       string `dynamodbav:"S3Key"`
	Delivered   int    `dynamodbav:"Delivered"`
	Skipped     int    `dynamodbav:"Skipped"`
	PublishedAt string `dynamodbav:"PublishedAt"`
}

// NewAWSArchive loads AWS configuration from the default chain.
func NewAWSArchive(ctx context.Context, bucket, tableName, region string) (*AWSArchive, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &AWSArchive{
		s3:        s3.NewFromConfig(cfg),
		dynamoDB:  dynamodb.NewFromConfig(cfg),
		bucket:    bucket,
		tableName: tableName,
	}, nil
}

func issuePK(key string) string    { return "ISSUE#" + key }
func issueS3Key(key string) string { return "issues/" + key + ".json" }

func (a *AWSArchive) Save(ctx context.Context, rec IssueRecord) error {
	if !ValidKey(rec.Key) {
		return fmt.Errorf("invalid archive key %q", rec.Key)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling issue: %w", err)
	}

	objectKey := issueS3Key(rec.Key)
	if _, err := a.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return fmt.Errorf("putting object to S3: %w", err)
	}

	av, err := attributevalue.MarshalMap(IssueItem{
		PK:          issuePK(rec.Key),
		SK:          "META",
		Title:       rec.Title,
		S3Key:       objectKey,
		Delivered:   rec.Delivered,
		Skipped:     rec.Skipped,
		PublishedAt: rec.PublishedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshaling item: %w", err)
	}
	if _, err := a.dynamoDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(a.tableName),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("putting item to DynamoDB: %w", err)
	}
	return nil
}

func (a *AWSArchive) Get(ctx context.Context, key string) (*IssueRecord, error) {
	if !ValidKey(key) {
		return nil, fmt.Errorf("invalid archive key %q", key)
	}

	out, err := a.dynamoDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(a.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: issuePK(key)},
			"SK": &types.AttributeValueMemberS{Value: "META"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getting item from DynamoDB: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var item IssueItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshaling item: %w", err)
	}

	obj, err := a.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(item.S3Key),
	})
	if err != nil {
		return nil, fmt.Errorf("getting object from S3: %w", err)
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("reading S3 object body: %w", err)
	}
	var rec IssueRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling S3 data: %w", err)
	}
	return &rec, nil
}
