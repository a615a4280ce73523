package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/edusphere-api/internal/domain"
)

// ExamRepo stores exam definitions. PK: exam_id, GSI author_id-index.
type ExamRepo struct {
	client    API
	tableName string
}

func NewExamRepo(client API, tableName string) *ExamRepo {
	return &ExamRepo{client: client, tableName: tableName}
}

func (r *ExamRepo) Put(ctx context.Context, e *domain.Exam) error {
	item, err := attributevalue.MarshalMap(e)
	if err != nil {
		return fmt.Errorf("marshal exam: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *ExamRepo) Get(ctx context.Context, examID string) (*domain.Exam, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldExamID, examID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("exam not found: %w", domain.ErrNotFound)
	}
	var e domain.Exam
	if err := attributevalue.UnmarshalMap(out.Item, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Update overwrites the editable fields of an existing exam.
func (r *ExamRepo) Update(ctx context.Context, examID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	ue.Names["#pk"] = fieldExamID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldExamID, examID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("exam not found: %w", domain.ErrNotFound)
	}
	return err
}

func (r *ExamRepo) Delete(ctx context.Context, examID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldExamID, examID),
	})
	return err
}

func (r *ExamRepo) List(ctx context.Context) ([]domain.Exam, error) {
	return scanAll[domain.Exam](ctx, r.client, &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
	})
}

func (r *ExamRepo) ListByAuthor(ctx context.Context, authorID string) ([]domain.Exam, error) {
	return queryAll[domain.Exam](ctx, r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String("author_id-index"),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": fieldAuthorID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: authorID}},
	})
}
