package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/edusphere-api/internal/domain"
)

// consumeCondition accepts a row only if the code matches, it is unused and unexpired.
const consumeCondition = "#code = :code AND #used = :false AND #exp > :now"

// OTPRepo manages one-time codes.
// PK: email, SK: purpose. A put replaces the previous code for the pair in one write.
// Redeem operations touch the users table too, so the repo knows both names.
type OTPRepo struct {
	client     API
	tableName  string
	usersTable string
}

func NewOTPRepo(client API, tableName, usersTable string) *OTPRepo {
	return &OTPRepo{client: client, tableName: tableName, usersTable: usersTable}
}

// Put stores c, replacing any earlier code for the same (email, purpose).
func (r *OTPRepo) Put(ctx context.Context, c *domain.OneTimeCode) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// Consume marks the code used if it matches and is still valid at now.
func (r *OTPRepo) Consume(ctx context.Context, email, purpose, code string, now time.Time) error {
	_, err := r.client.UpdateItem(ctx, r.consumeUpdate(email, purpose, code, now))
	if isConditionFailed(err) {
		return fmt.Errorf("consume otp: %w", domain.ErrInvalidOrExpiredCode)
	}
	return err
}

// ConsumeAndVerifyUser marks the code used and the user verified atomically.
func (r *OTPRepo) ConsumeAndVerifyUser(ctx context.Context, email, code, userID string, now time.Time) error {
	return r.consumeWith(ctx, email, domain.PurposeVerification, code, now, userID, map[string]interface{}{
		fieldVerified: true,
	})
}

// ConsumeAndSetPassword marks the code used and stores the new hash atomically.
func (r *OTPRepo) ConsumeAndSetPassword(ctx context.Context, email, code, userID, passwordHash string, now time.Time) error {
	return r.consumeWith(ctx, email, domain.PurposePasswordReset, code, now, userID, map[string]interface{}{
		fieldPasswordHash: passwordHash,
	})
}

func (r *OTPRepo) consumeWith(ctx context.Context, email, purpose, code string, now time.Time, userID string, userUpdates map[string]interface{}) error {
	userUpdates[fieldUpdatedAt] = now.UTC()
	ue, err := buildUpdateExpr(userUpdates)
	if err != nil {
		return err
	}
	ue.Names["#pk"] = fieldUserID
	consume := r.consumeUpdate(email, purpose, code, now)

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: &types.Update{
				TableName:                 consume.TableName,
				Key:                       consume.Key,
				UpdateExpression:          consume.UpdateExpression,
				ConditionExpression:       consume.ConditionExpression,
				ExpressionAttributeNames:  consume.ExpressionAttributeNames,
				ExpressionAttributeValues: consume.ExpressionAttributeValues,
			}},
			{Update: &types.Update{
				TableName:                 aws.String(r.usersTable),
				Key:                       strKey(fieldUserID, userID),
				UpdateExpression:          aws.String(ue.Expr),
				ConditionExpression:       aws.String("attribute_exists(#pk)"),
				ExpressionAttributeNames:  ue.Names,
				ExpressionAttributeValues: ue.Values,
			}},
		},
	})
	if isTxConditionFailed(err) {
		return fmt.Errorf("redeem otp: %w", domain.ErrInvalidOrExpiredCode)
	}
	return err
}

func (r *OTPRepo) consumeUpdate(email, purpose, code string, now time.Time) *dynamodb.UpdateItemInput {
	return &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey(fieldEmail, email, fieldPurpose, purpose),
		UpdateExpression:    aws.String("SET #used = :true"),
		ConditionExpression: aws.String(consumeCondition),
		ExpressionAttributeNames: map[string]string{
			"#code": fieldCode,
			"#used": fieldUsed,
			"#exp":  fieldValidUntil,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":code":  &types.AttributeValueMemberS{Value: code},
			":false": &types.AttributeValueMemberBOOL{Value: false},
			":true":  &types.AttributeValueMemberBOOL{Value: true},
			":now":   &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
		},
	}
}
