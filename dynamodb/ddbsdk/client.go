package ddbsdk

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/antipr000/NobaServer-sub003/dynamodb/table"
	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

type Option func(*Client)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(awsddb AWSDynamoClientV2, opts ...Option) *Client {
	c := &Client{
		awsddb: awsddb,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Client executes prepared requests. It never retries; rejected
// conditional writes surface as ErrOptimisticLock.
type Client struct {
	awsddb AWSDynamoClientV2
	logger *slog.Logger
}

// NewTx creates a new transaction. Add actions and commit the transaction.
func (c *Client) NewTx(opts ...TxOption) Txer {
	return NewTxer(c.awsddb, append([]TxOption{WithTxLogger(c.logger)}, opts...)...)
}

// ExecuteAll writes all requests in one transaction.
func (c *Client) ExecuteAll(ctx context.Context, reqs ...WriteRequest) error {
	tx := c.NewTx()
	for _, r := range reqs {
		_ = tx.AddAction(r)
	}
	return tx.Commit(ctx)
}

func (c *Client) PutItem(ctx context.Context, p *Put) error {
	_, err := c.awsddb.PutItem(ctx, p.ToPutItem())
	return c.result(ctx, "put", p.table, err)
}

func (c *Client) UpdateItem(ctx context.Context, u *Update) error {
	_, err := c.awsddb.UpdateItem(ctx, u.ToUpdateItem())
	return c.result(ctx, "update", u.table, err)
}

func (c *Client) DeleteItem(ctx context.Context, d *Delete) error {
	_, err := c.awsddb.DeleteItem(ctx, d.ToDeleteItem())
	return c.result(ctx, "delete", d.table, err)
}

// Write executes a single request of any kind.
func (c *Client) Write(ctx context.Context, r WriteRequest) error {
	switch r := r.(type) {
	case *Put:
		return c.PutItem(ctx, r)
	case *Update:
		return c.UpdateItem(ctx, r)
	case *Delete:
		return c.DeleteItem(ctx, r)
	}
	return fmt.Errorf("unknown write request %T", r)
}

func (c *Client) result(ctx context.Context, op, tableName string, err error) error {
	log := c.logger.With("op", op, "table", tableName)
	if err != nil {
		err = classify(tableName, err)
		log.WarnContext(ctx, "write rejected", "error", err)
		return fmt.Errorf("failed to %s item: %w", op, err)
	}
	log.DebugContext(ctx, "write applied")
	return nil
}

// NewQuery creates a querier over the table or, with WithGSI, one of its indexes.
func (c *Client) NewQuery(t table.TableDefinition, kc KeyCondition) *Querier {
	return NewQuerier(c.awsddb, t, kc)
}

// GetItem reads an item by key with a consistent read. It returns nil
// when the item does not exist.
func (c *Client) GetItem(ctx context.Context, t table.TableDefinition, key table.PrimaryKey) (Item, error) {
	k, err := key.DDB()
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	res, err := c.awsddb.GetItem(ctx, &dynamodbv2.GetItemInput{
		TableName:      &t.Name,
		Key:            k,
		ConsistentRead: ptr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item failed: %w", err)
	}
	return res.Item, nil
}
