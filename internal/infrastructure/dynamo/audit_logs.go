package dynamo

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/edusphere-api/internal/domain"
)

// AuditRepo is append-only apart from the admin cascade delete.
// PK: log_id (ULID, so lexical order is time order), GSI actor_id-index.
type AuditRepo struct {
	client    API
	tableName string
}

func NewAuditRepo(client API, tableName string) *AuditRepo {
	return &AuditRepo{client: client, tableName: tableName}
}

func (r *AuditRepo) Put(ctx context.Context, l *domain.AuditLog) error {
	item, err := attributevalue.MarshalMap(l)
	if err != nil {
		return fmt.Errorf("marshal audit log: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": fieldLogID},
	})
	return err
}

// List returns the newest limit records.
func (r *AuditRepo) List(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	logs, err := scanAll[domain.AuditLog](ctx, r.client, &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].LogID > logs[j].LogID })
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

// DeleteByActor removes every record the user authored.
func (r *AuditRepo) DeleteByActor(ctx context.Context, actorID string) error {
	logs, err := queryAll[domain.AuditLog](ctx, r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String("actor_id-index"),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": fieldActorID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: actorID}},
	})
	if err != nil {
		return err
	}
	for _, l := range logs {
		if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(r.tableName),
			Key:       strKey(fieldLogID, l.LogID),
		}); err != nil {
			return err
		}
	}
	return nil
}
