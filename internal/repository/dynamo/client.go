// Package dynamo stores invoices, customers and failed billings in DynamoDB.
//
// Table layout:
//   - invoices: PK id (N); GSI status-id-index (PK status, SK id). The item with
//     id 0 holds the invoice ID sequence.
//   - failed_billings: PK id (S); GSI invoice_id-index (PK invoice_id, SK occurred_at).
//   - customers: PK id (N).
package dynamo

import (
	"context"
	"math"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

const (
	statusIDIndex  = "status-id-index"
	invoiceIDIndex = "invoice_id-index"

	sequenceID = 0

	// MaxPageSize is the largest page FetchPendingPage accepts; Query takes an int32 Limit.
	MaxPageSize = math.MaxInt32
)

// API is the subset of the DynamoDB client the repositories use.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// Tables names the DynamoDB tables.
type Tables struct {
	Invoices       string
	FailedBillings string
	Customers      string
}

// DefaultTables returns the default table names.
func DefaultTables() Tables {
	return Tables{
		Invoices:       "invoices",
		FailedBillings: "failed_billings",
		Customers:      "customers",
	}
}
