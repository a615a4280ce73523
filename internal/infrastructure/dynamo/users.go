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

// emailGuard is the row in the user_emails table that reserves an address.
type emailGuard struct {
	Email  string `dynamodbav:"email"`
	UserID string `dynamodbav:"user_id"`
}

// UserRepo provides typed DynamoDB operations for the users table.
// Email uniqueness is held by a companion table keyed on email and written in
// the same transaction as the user row.
type UserRepo struct {
	client     API
	tableName  string
	emailTable string
}

func NewUserRepo(client API, tableName, emailTable string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName, emailTable: emailTable}
}

// Create inserts the user and reserves the email. ErrConflict if the email is taken.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	guard, err := attributevalue.MarshalMap(emailGuard{Email: u.Email, UserID: u.UserID})
	if err != nil {
		return fmt.Errorf("marshal email guard: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:                aws.String(r.emailTable),
				Item:                     guard,
				ConditionExpression:      aws.String("attribute_not_exists(#e)"),
				ExpressionAttributeNames: map[string]string{"#e": fieldEmail},
			}},
			{Put: &types.Put{
				TableName:                aws.String(r.tableName),
				Item:                     item,
				ConditionExpression:      aws.String("attribute_not_exists(#id)"),
				ExpressionAttributeNames: map[string]string{"#id": fieldUserID},
			}},
		},
	})
	if isTxConditionFailed(err) {
		return fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}
	return err
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail resolves the address through the guard table so the read is
// strongly consistent, unlike a GSI query.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.emailTable),
		Key:            strKey(fieldEmail, email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var g emailGuard
	if err := attributevalue.UnmarshalMap(out.Item, &g); err != nil {
		return nil, err
	}
	return r.Get(ctx, g.UserID)
}

// GetMany returns the users that exist among ids, keyed by id.
func (r *UserRepo) GetMany(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	users := make(map[string]*domain.User, len(ids))
	for _, id := range ids {
		if _, ok := users[id]; ok {
			continue
		}
		u, err := r.Get(ctx, id)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		users[id] = u
	}
	return users, nil
}

func (r *UserRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	ue.Names["#pk"] = fieldUserID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldUserID, userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return err
}

// List returns every user. The table is small enough for a full scan.
func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	return scanAll[domain.User](ctx, r.client, &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
	})
}

// Delete removes the user row and releases the email in one transaction.
func (r *UserRepo) Delete(ctx context.Context, u *domain.User) error {
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName: aws.String(r.tableName),
				Key:       strKey(fieldUserID, u.UserID),
			}},
			{Delete: &types.Delete{
				TableName: aws.String(r.emailTable),
				Key:       strKey(fieldEmail, u.Email),
			}},
		},
	})
	return err
}
