package search

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
)

// DynamoAPI is the subset of the DynamoDB client the index uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoIndex stores documents in one table keyed by (collection, id).
// A GSI named by indexName on (collection, indexed_at) serves List.
type DynamoIndex struct {
	client    DynamoAPI
	tableName string
	indexName string
}

type dynamoDocument struct {
	Collection string `dynamodbav:"collection"`
	ID         string `dynamodbav:"id"`
	Version    int    `dynamodbav:"version"`
	Body       string `dynamodbav:"body"`
	IndexedAt  string `dynamodbav:"indexed_at"`
}

func NewDynamoIndex(client DynamoAPI, tableName string) *DynamoIndex {
	return &DynamoIndex{client: client, tableName: tableName, indexName: "collection-indexed_at-index"}
}

// IndexDocument uses a conditional put so an older version never
// overwrites a newer one.
func (ix *DynamoIndex) IndexDocument(ctx context.Context, doc Document) (bool, error) {
	if err := doc.validate(); err != nil {
		return false, err
	}
	body, err := json.Marshal(doc.Body)
	if err != nil {
		return false, errors.Wrapf(err, "marshal %s/%s", doc.Collection, doc.ID)
	}

	item, err := attributevalue.MarshalMap(dynamoDocument{
		Collection: doc.Collection,
		ID:         doc.ID,
		Version:    doc.Version,
		Body:       string(body),
		IndexedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return false, errors.Wrap(err, "marshal item")
	}

	_, err = ix.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(ix.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id) OR #v <= :v"),
		ExpressionAttributeNames: map[string]string{
			"#v": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: strconv.Itoa(doc.Version)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, errors.Wrapf(err, "put %s/%s", doc.Collection, doc.ID)
	}
	return true, nil
}

func (ix *DynamoIndex) Get(ctx context.Context, collection, id string, dest any) (bool, int, error) {
	out, err := ix.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(ix.tableName),
		Key: map[string]types.AttributeValue{
			"collection": &types.AttributeValueMemberS{Value: collection},
			"id":         &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, 0, errors.Wrapf(err, "get %s/%s", collection, id)
	}
	if len(out.Item) == 0 {
		return false, 0, nil
	}

	var doc dynamoDocument
	if err := attributevalue.UnmarshalMap(out.Item, &doc); err != nil {
		return false, 0, errors.Wrap(err, "unmarshal item")
	}
	if err := json.Unmarshal([]byte(doc.Body), dest); err != nil {
		return false, 0, errors.Wrapf(err, "unmarshal %s/%s", collection, id)
	}
	return true, doc.Version, nil
}

func (ix *DynamoIndex) List(ctx context.Context, collection string, limit int) ([]json.RawMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	out, err := ix.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(ix.tableName),
		IndexName:              aws.String(ix.indexName),
		KeyConditionExpression: aws.String("#c = :c"),
		ExpressionAttributeNames: map[string]string{
			"#c": "collection",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberS{Value: collection},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", collection)
	}

	var docs []dynamoDocument
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &docs); err != nil {
		return nil, errors.Wrap(err, "unmarshal items")
	}
	bodies := make([]json.RawMessage, len(docs))
	for i, d := range docs {
		bodies[i] = json.RawMessage(d.Body)
	}
	return bodies, nil
}
