package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"billing/internal/domain"
	"billing/internal/repository"
)

// FailedBillingRepository reads failure records written by InvoiceRepository.FailPayment.
type FailedBillingRepository struct {
	ddb    API
	tables Tables
}

var _ repository.FailedBillingRepository = (*FailedBillingRepository)(nil)

// NewFailedBillingRepository creates a new DynamoDB failed billing repository.
func NewFailedBillingRepository(ddb API, tables Tables) *FailedBillingRepository {
	return &FailedBillingRepository{ddb: ddb, tables: tables}
}

// ListByInvoice returns the failures of an invoice ordered by timestamp.
func (r *FailedBillingRepository) ListByInvoice(ctx context.Context, invoiceID int64) ([]*domain.FailedBilling, error) {
	paginator := dynamodb.NewQueryPaginator(r.ddb, &dynamodb.QueryInput{
		TableName:              aws.String(r.tables.FailedBillings),
		IndexName:              aws.String(invoiceIDIndex),
		KeyConditionExpression: aws.String("invoice_id = :iid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":iid": numberValue(invoiceID),
		},
		ScanIndexForward: aws.Bool(true),
	})

	failures := []*domain.FailedBilling{}
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range out.Items {
			var it failedBillingItem
			if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
				return nil, err
			}
			fb, err := fromFailedBillingItem(it)
			if err != nil {
				return nil, err
			}
			failures = append(failures, fb)
		}
	}
	return failures, nil
}
