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

// MaterialRepo stores study material metadata; attachment bytes live in S3.
type MaterialRepo struct {
	client    API
	tableName string
}

func NewMaterialRepo(client API, tableName string) *MaterialRepo {
	return &MaterialRepo{client: client, tableName: tableName}
}

func (r *MaterialRepo) Put(ctx context.Context, m *domain.Material) error {
	item, err := attributevalue.MarshalMap(m)
	if err != nil {
		return fmt.Errorf("marshal material: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *MaterialRepo) Get(ctx context.Context, materialID string) (*domain.Material, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldMaterialID, materialID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("material not found: %w", domain.ErrNotFound)
	}
	var m domain.Material
	if err := attributevalue.UnmarshalMap(out.Item, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// List returns all materials, newest first.
func (r *MaterialRepo) List(ctx context.Context) ([]domain.Material, error) {
	ms, err := scanAll[domain.Material](ctx, r.client, &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i].CreatedAt.After(ms[j].CreatedAt) })
	return ms, nil
}

func (r *MaterialRepo) ListByAuthor(ctx context.Context, authorID string) ([]domain.Material, error) {
	return queryAll[domain.Material](ctx, r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String("author_id-index"),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": fieldAuthorID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: authorID}},
	})
}

func (r *MaterialRepo) Delete(ctx context.Context, materialID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldMaterialID, materialID),
	})
	return err
}
