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

// AttemptRepo stores exam attempts.
// PK: exam_id, SK: student_id, so (exam, student) can hold only one row.
// GSIs: submission_id-index for lookups by id, student_id-index for a student's results.
type AttemptRepo struct {
	client    API
	tableName string
}

func NewAttemptRepo(client API, tableName string) *AttemptRepo {
	return &AttemptRepo{client: client, tableName: tableName}
}

// Create inserts a. ErrDuplicateSubmission if the student already has an attempt for the exam,
// no matter how many callers race.
func (r *AttemptRepo) Create(ctx context.Context, a *domain.Attempt) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": fieldExamID},
	})
	if isConditionFailed(err) {
		return domain.ErrDuplicateSubmission
	}
	return err
}

func (r *AttemptRepo) GetBySubmissionID(ctx context.Context, submissionID string) (*domain.Attempt, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String("submission_id-index"),
		KeyConditionExpression:    aws.String("#s = :v"),
		ExpressionAttributeNames:  map[string]string{"#s": fieldSubmissionID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: submissionID}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("submission not found: %w", domain.ErrNotFound)
	}
	var a domain.Attempt
	if err := attributevalue.UnmarshalMap(out.Items[0], &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// SetGrade records a grade and optional feedback. Answers and submitted_at are untouched.
func (r *AttemptRepo) SetGrade(ctx context.Context, examID, studentID string, grade float64, feedback *string, gradedAt time.Time) error {
	updates := map[string]interface{}{
		fieldGrade:    grade,
		fieldGradedAt: gradedAt.UTC(),
	}
	if feedback != nil {
		updates[fieldFeedback] = *feedback
	}
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	ue.Names["#pk"] = fieldExamID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       compositeKey(fieldExamID, examID, fieldStudentID, studentID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("submission not found: %w", domain.ErrNotFound)
	}
	return err
}

func (r *AttemptRepo) ListByExam(ctx context.Context, examID string) ([]domain.Attempt, error) {
	return queryAll[domain.Attempt](ctx, r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    aws.String("#pk = :v"),
		ExpressionAttributeNames:  map[string]string{"#pk": fieldExamID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: examID}},
	})
}

func (r *AttemptRepo) ListByStudent(ctx context.Context, studentID string) ([]domain.Attempt, error) {
	return queryAll[domain.Attempt](ctx, r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String("student_id-index"),
		KeyConditionExpression:    aws.String("#s = :v"),
		ExpressionAttributeNames:  map[string]string{"#s": fieldStudentID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: studentID}},
	})
}

// CountByExam returns how many attempts exist for the exam.
func (r *AttemptRepo) CountByExam(ctx context.Context, examID string) (int, error) {
	in := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    aws.String("#pk = :v"),
		ExpressionAttributeNames:  map[string]string{"#pk": fieldExamID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: examID}},
		Select:                    types.SelectCount,
	}
	total := 0
	for {
		out, err := r.client.Query(ctx, in)
		if err != nil {
			return 0, err
		}
		total += int(out.Count)
		if len(out.LastEvaluatedKey) == 0 {
			return total, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (r *AttemptRepo) Delete(ctx context.Context, examID, studentID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey(fieldExamID, examID, fieldStudentID, studentID),
	})
	return err
}
