package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"billing/internal/domain"
	"billing/internal/repository"
)

// InvoiceRepository persists invoices in DynamoDB. Status changes are
// UpdateItem calls guarded by a ConditionExpression on the current status.
type InvoiceRepository struct {
	ddb    API
	tables Tables
}

var _ repository.InvoiceRepository = (*InvoiceRepository)(nil)

// NewInvoiceRepository creates a new DynamoDB invoice repository.
func NewInvoiceRepository(ddb API, tables Tables) *InvoiceRepository {
	return &InvoiceRepository{ddb: ddb, tables: tables}
}

// Create persists a new invoice. A zero ID is drawn from the table's sequence item.
func (r *InvoiceRepository) Create(ctx context.Context, invoice *domain.Invoice) error {
	if invoice.ID == 0 {
		id, err := r.nextID(ctx)
		if err != nil {
			return fmt.Errorf("allocate invoice id: %w", err)
		}
		invoice.ID = id
	}

	av, err := attributevalue.MarshalMap(toInvoiceItem(invoice))
	if err != nil {
		return err
	}

	_, err = r.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tables.Invoices),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{
			"#id": "id",
		},
	})
	return err
}

func (r *InvoiceRepository) nextID(ctx context.Context) (int64, error) {
	out, err := r.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tables.Invoices),
		Key:              numberKey(sequenceID),
		UpdateExpression: aws.String("ADD #seq :one"),
		ExpressionAttributeNames: map[string]string{
			"#seq": "next_id",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": numberValue(1),
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, err
	}

	seq, ok := out.Attributes["next_id"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, errors.New("sequence item has no next_id")
	}
	return strconv.ParseInt(seq.Value, 10, 64)
}

// GetByID retrieves an invoice by ID.
func (r *InvoiceRepository) GetByID(ctx context.Context, id int64) (*domain.Invoice, error) {
	if id <= sequenceID {
		return nil, repository.ErrNotFound
	}

	out, err := r.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tables.Invoices),
		Key:            numberKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, repository.ErrNotFound
	}
	return unmarshalInvoice(out.Item)
}

// FetchPendingPage queries the status index for PENDING invoices after afterID.
// Index reads are eventually consistent; the conditional transition makes a
// stale entry harmless.
func (r *InvoiceRepository) FetchPendingPage(ctx context.Context, afterID int64, limit int) ([]*domain.Invoice, error) {
	if limit <= 0 || limit > MaxPageSize {
		return nil, fmt.Errorf("dynamodb: page size %d outside 1..%d", limit, MaxPageSize)
	}

	// A response may stop short of Limit at the 1 MB cap; keep following
	// LastEvaluatedKey so a short page only ever means the index is exhausted.
	paginator := dynamodb.NewQueryPaginator(r.ddb, &dynamodb.QueryInput{
		TableName:              aws.String(r.tables.Invoices),
		IndexName:              aws.String(statusIDIndex),
		KeyConditionExpression: aws.String("#status = :status AND #id > :after"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
			"#id":     "id",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": stringValue(string(domain.InvoiceStatusPending)),
			":after":  numberValue(afterID),
		},
		ScanIndexForward: aws.Bool(true),
		Limit:            aws.Int32(int32(limit)),
	})

	page := []*domain.Invoice{}
	for len(page) < limit && paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range out.Items {
			if len(page) == limit {
				break
			}
			inv, err := unmarshalInvoice(raw)
			if err != nil {
				return nil, err
			}
			page = append(page, inv)
		}
	}
	return page, nil
}

// Transition moves the invoice from expected to next if it is still in expected.
func (r *InvoiceRepository) Transition(ctx context.Context, id int64, expected, next domain.InvoiceStatus) (*domain.Invoice, error) {
	if err := repository.ValidateTransition(expected, next); err != nil {
		return nil, err
	}
	return r.compareAndSet(ctx, id, []domain.InvoiceStatus{expected}, next)
}

// ForceRequeue moves a FAILED_PAYMENT or STARTED_PAYMENT invoice back to PENDING.
func (r *InvoiceRepository) ForceRequeue(ctx context.Context, id int64) (*domain.Invoice, error) {
	return r.compareAndSet(ctx, id, domain.RequeueableStatuses, domain.InvoiceStatusPending)
}

// FailPayment moves STARTED_PAYMENT to FAILED_PAYMENT and writes the failure
// record in one TransactWriteItems call.
func (r *InvoiceRepository) FailPayment(ctx context.Context, id int64, record *domain.FailedBilling) (*domain.Invoice, error) {
	expected := []domain.InvoiceStatus{domain.InvoiceStatusStartedPayment}
	record.InvoiceID = id
	failure, err := attributevalue.MarshalMap(toFailedBillingItem(record))
	if err != nil {
		return nil, err
	}

	update := r.statusUpdate(id, expected, domain.InvoiceStatusFailedPayment)
	_, err = r.ddb.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName:                           update.TableName,
					Key:                                 update.Key,
					UpdateExpression:                    update.UpdateExpression,
					ConditionExpression:                 update.ConditionExpression,
					ExpressionAttributeNames:            update.ExpressionAttributeNames,
					ExpressionAttributeValues:           update.ExpressionAttributeValues,
					ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(r.tables.FailedBillings),
					Item:                failure,
					ConditionExpression: aws.String("attribute_not_exists(#id)"),
					ExpressionAttributeNames: map[string]string{
						"#id": "id",
					},
				},
			},
		},
	})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) && len(canceled.CancellationReasons) > 0 {
			reason := canceled.CancellationReasons[0]
			if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return nil, conflictFromOld(id, expected, domain.InvoiceStatusFailedPayment, reason.Item)
			}
		}
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *InvoiceRepository) compareAndSet(ctx context.Context, id int64, expected []domain.InvoiceStatus, next domain.InvoiceStatus) (*domain.Invoice, error) {
	if id <= sequenceID {
		return nil, repository.ErrNotFound
	}

	input := r.statusUpdate(id, expected, next)
	input.ReturnValues = types.ReturnValueAllNew
	input.ReturnValuesOnConditionCheckFailure = types.ReturnValuesOnConditionCheckFailureAllOld

	out, err := r.ddb.UpdateItem(ctx, input)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, conflictFromOld(id, expected, next, ccf.Item)
		}
		return nil, err
	}
	return unmarshalInvoice(out.Attributes)
}

func (r *InvoiceRepository) statusUpdate(id int64, expected []domain.InvoiceStatus, next domain.InvoiceStatus) *dynamodb.UpdateItemInput {
	values := map[string]types.AttributeValue{
		":next": stringValue(string(next)),
	}
	placeholders := make([]string, 0, len(expected))
	for i, status := range expected {
		name := ":expected" + strconv.Itoa(i)
		values[name] = stringValue(string(status))
		placeholders = append(placeholders, name)
	}

	condition := "#status = " + placeholders[0]
	if len(placeholders) > 1 {
		condition = "#status IN (" + strings.Join(placeholders, ", ") + ")"
	}

	return &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tables.Invoices),
		Key:              numberKey(id),
		UpdateExpression: aws.String("SET #status = :next"),
		// A missing item fails the condition too; the old image tells the cases apart.
		ConditionExpression: aws.String(condition),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: values,
	}
}

func conflictFromOld(id int64, expected []domain.InvoiceStatus, next domain.InvoiceStatus, old map[string]types.AttributeValue) error {
	if len(old) == 0 {
		return repository.ErrNotFound
	}
	var it invoiceItem
	if err := attributevalue.UnmarshalMap(old, &it); err != nil {
		return err
	}
	return &repository.StateConflictError{
		InvoiceID: id,
		Expected:  expected,
		Actual:    domain.InvoiceStatus(it.Status),
		Target:    next,
	}
}
