package dynamo

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type item = map[string]types.AttributeValue

// fakeDynamo understands exactly the expressions the repositories issue.
type fakeDynamo struct {
	mu     sync.Mutex
	tables map[string]map[string]item

	QueryError error
	// PageCap, when positive, stops every Query response after that many
	// items the way the 1 MB response cap does.
	PageCap int
	Queries int
}

var _ API = (*fakeDynamo)(nil)

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{tables: make(map[string]map[string]item)}
}

func keyOf(av item) string {
	switch v := av["id"].(type) {
	case *types.AttributeValueMemberN:
		return "N" + v.Value
	case *types.AttributeValueMemberS:
		return "S" + v.Value
	}
	return ""
}

func (f *fakeDynamo) table(name string) map[string]item {
	t, ok := f.tables[name]
	if !ok {
		t = make(map[string]item)
		f.tables[name] = t
	}
	return t
}

func str(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	}
	return ""
}

func num(av types.AttributeValue) int64 {
	n, _ := strconv.ParseInt(str(av), 10, 64)
	return n
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: maps.Clone(f.table(aws.ToString(in.TableName))[keyOf(in.Key)])}, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.putLocked(aws.ToString(in.TableName), in.Item, aws.ToString(in.ConditionExpression)); err != nil {
		return nil, err
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) putLocked(table string, av item, condition string) error {
	t := f.table(table)
	if strings.HasPrefix(condition, "attribute_not_exists") {
		if _, exists := t[keyOf(av)]; exists {
			return &types.ConditionalCheckFailedException{Message: aws.String("exists")}
		}
	}
	t[keyOf(av)] = maps.Clone(av)
	return nil
}

func (f *fakeDynamo) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := f.table(aws.ToString(in.TableName))
	key := keyOf(in.Key)

	if strings.HasPrefix(aws.ToString(in.UpdateExpression), "ADD") {
		current := t[key]
		if current == nil {
			current = maps.Clone(in.Key)
		}
		next := num(current["next_id"]) + num(in.ExpressionAttributeValues[":one"])
		current["next_id"] = numberValue(next)
		t[key] = current
		return &dynamodb.UpdateItemOutput{Attributes: item{"next_id": numberValue(next)}}, nil
	}

	updated, err := f.setStatusLocked(t, key, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	return &dynamodb.UpdateItemOutput{Attributes: updated}, nil
}

func (f *fakeDynamo) setStatusLocked(t map[string]item, key string, values item) (item, error) {
	current := t[key]
	var allowed []string
	for name, v := range values {
		if strings.HasPrefix(name, ":expected") {
			allowed = append(allowed, str(v))
		}
	}
	if current == nil || !slices.Contains(allowed, str(current["status"])) {
		return nil, &types.ConditionalCheckFailedException{
			Message: aws.String("The conditional request failed"),
			Item:    maps.Clone(current),
		}
	}
	current["status"] = values[":next"]
	return maps.Clone(current), nil
}

func (f *fakeDynamo) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.QueryError != nil {
		return nil, f.QueryError
	}

	var matched []item
	t := f.table(aws.ToString(in.TableName))
	values := in.ExpressionAttributeValues

	switch aws.ToString(in.IndexName) {
	case statusIDIndex:
		status, after := str(values[":status"]), num(values[":after"])
		for _, it := range t {
			if str(it["status"]) == status && num(it["id"]) > after {
				matched = append(matched, maps.Clone(it))
			}
		}
		slices.SortFunc(matched, func(a, b item) int { return int(num(a["id"]) - num(b["id"])) })
	case invoiceIDIndex:
		invoiceID := num(values[":iid"])
		for _, it := range t {
			if num(it["invoice_id"]) == invoiceID {
				matched = append(matched, maps.Clone(it))
			}
		}
		slices.SortFunc(matched, func(a, b item) int { return strings.Compare(str(a["occurred_at"]), str(b["occurred_at"])) })
	default:
		return nil, fmt.Errorf("fake: unknown index %q", aws.ToString(in.IndexName))
	}

	f.Queries++
	if in.ExclusiveStartKey != nil {
		start := keyOf(in.ExclusiveStartKey)
		for i, it := range matched {
			if keyOf(it) == start {
				matched = matched[i+1:]
				break
			}
		}
	}

	size := len(matched)
	if in.Limit != nil && int(*in.Limit) < size {
		size = int(*in.Limit)
	}
	if f.PageCap > 0 && f.PageCap < size {
		size = f.PageCap
	}
	out := &dynamodb.QueryOutput{Items: matched[:size], Count: int32(size)}
	if size < len(matched) {
		out.LastEvaluatedKey = item{"id": matched[size-1]["id"]}
	}
	return out, nil
}

func (f *fakeDynamo) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Check every condition before writing anything.
	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, ti := range in.TransactItems {
		reasons[i] = types.CancellationReason{Code: aws.String("None")}
		switch {
		case ti.Update != nil:
			current := f.table(aws.ToString(ti.Update.TableName))[keyOf(ti.Update.Key)]
			var allowed []string
			for name, v := range ti.Update.ExpressionAttributeValues {
				if strings.HasPrefix(name, ":expected") {
					allowed = append(allowed, str(v))
				}
			}
			if current == nil || !slices.Contains(allowed, str(current["status"])) {
				reasons[i] = types.CancellationReason{Code: aws.String("ConditionalCheckFailed"), Item: maps.Clone(current)}
				failed = true
			}
		case ti.Put != nil:
			if _, exists := f.table(aws.ToString(ti.Put.TableName))[keyOf(ti.Put.Item)]; exists {
				reasons[i] = types.CancellationReason{Code: aws.String("ConditionalCheckFailed")}
				failed = true
			}
		default:
			return nil, errors.New("fake: unsupported transact item")
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}

	for _, ti := range in.TransactItems {
		if ti.Update != nil {
			t := f.table(aws.ToString(ti.Update.TableName))
			if _, err := f.setStatusLocked(t, keyOf(ti.Update.Key), ti.Update.ExpressionAttributeValues); err != nil {
				return nil, err
			}
		}
		if ti.Put != nil {
			if err := f.putLocked(aws.ToString(ti.Put.TableName), ti.Put.Item, ""); err != nil {
				return nil, err
			}
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}
