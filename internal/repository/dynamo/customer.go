package dynamo

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"billing/internal/domain"
	"billing/internal/repository"
)

// CustomerRepository persists customers in DynamoDB.
type CustomerRepository struct {
	ddb    API
	tables Tables
}

var _ repository.CustomerRepository = (*CustomerRepository)(nil)

// NewCustomerRepository creates a new DynamoDB customer repository.
func NewCustomerRepository(ddb API, tables Tables) *CustomerRepository {
	return &CustomerRepository{ddb: ddb, tables: tables}
}

// Create persists a customer. Customer IDs come from the invoicing system, so
// a zero ID is rejected.
func (r *CustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	if customer.ID <= 0 {
		return errors.New("customer id is required")
	}
	av, err := attributevalue.MarshalMap(customerItem{ID: customer.ID, Currency: string(customer.Currency)})
	if err != nil {
		return err
	}
	_, err = r.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tables.Customers),
		Item:      av,
	})
	return err
}

// GetByID retrieves a customer by ID.
func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	out, err := r.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tables.Customers),
		Key:       numberKey(id),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, repository.ErrNotFound
	}

	var it customerItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, err
	}
	return &domain.Customer{ID: it.ID, Currency: domain.Currency(it.Currency)}, nil
}
