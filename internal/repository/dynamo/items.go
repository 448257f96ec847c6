package dynamo

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"billing/internal/domain"
)

type invoiceItem struct {
	ID          int64  `dynamodbav:"id"`
	CustomerID  int64  `dynamodbav:"customer_id"`
	AmountValue string `dynamodbav:"amount_value"`
	Currency    string `dynamodbav:"currency"`
	Status      string `dynamodbav:"status"`
}

type failedBillingItem struct {
	ID         string `dynamodbav:"id"`
	InvoiceID  int64  `dynamodbav:"invoice_id"`
	Reason     string `dynamodbav:"reason"`
	Message    string `dynamodbav:"message"`
	OccurredAt string `dynamodbav:"occurred_at"`
}

type customerItem struct {
	ID       int64  `dynamodbav:"id"`
	Currency string `dynamodbav:"currency"`
}

func toInvoiceItem(inv *domain.Invoice) invoiceItem {
	return invoiceItem{
		ID:          inv.ID,
		CustomerID:  inv.CustomerID,
		AmountValue: inv.Amount.Value.String(),
		Currency:    string(inv.Amount.Currency),
		Status:      string(inv.Status),
	}
}

func fromInvoiceItem(it invoiceItem) (*domain.Invoice, error) {
	value, err := decimal.NewFromString(it.AmountValue)
	if err != nil {
		return nil, fmt.Errorf("invoice %d amount: %w", it.ID, err)
	}
	return &domain.Invoice{
		ID:         it.ID,
		CustomerID: it.CustomerID,
		Amount:     domain.Money{Value: value, Currency: domain.Currency(it.Currency)},
		Status:     domain.InvoiceStatus(it.Status),
	}, nil
}

func unmarshalInvoice(av map[string]types.AttributeValue) (*domain.Invoice, error) {
	var it invoiceItem
	if err := attributevalue.UnmarshalMap(av, &it); err != nil {
		return nil, err
	}
	return fromInvoiceItem(it)
}

// occurredAtLayout is fixed width so the invoice_id-index sort key orders by time.
const occurredAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

func toFailedBillingItem(fb *domain.FailedBilling) failedBillingItem {
	return failedBillingItem{
		ID:         fb.ID,
		InvoiceID:  fb.InvoiceID,
		Reason:     string(fb.Reason),
		Message:    fb.Message,
		OccurredAt: fb.Timestamp.UTC().Format(occurredAtLayout),
	}
}

func fromFailedBillingItem(it failedBillingItem) (*domain.FailedBilling, error) {
	at, err := time.Parse(time.RFC3339Nano, it.OccurredAt)
	if err != nil {
		return nil, fmt.Errorf("failed billing %s: occurred_at: %w", it.ID, err)
	}
	return &domain.FailedBilling{
		ID:        it.ID,
		InvoiceID: it.InvoiceID,
		Reason:    domain.FailureReason(it.Reason),
		Message:   it.Message,
		Timestamp: at,
	}, nil
}

func numberKey(id int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberN{Value: strconv.FormatInt(id, 10)},
	}
}

func stringValue(s string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: s}
}

func numberValue(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}
