package ddbsdk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/antipr000/NobaServer-sub003/dynamodb/table"
	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// MaxTransactionActions is the TransactWriteItems limit.
const MaxTransactionActions = 100

func NewTxer(ddb AWSDynamoClientV2, opts ...TxOption) Txer {
	tx := &txer{
		awsddb: ddb,
		keys:   make(map[string]bool),
		opts:   txOpts{logger: slog.Default()},
	}
	for _, opt := range opts {
		opt(&tx.opts)
	}
	return tx
}

type txer struct {
	awsddb AWSDynamoClientV2

	opts txOpts

	// errors from AddAction are returned again by Commit, so callers may
	// skip checking each AddAction call.
	errs    []error
	actions []WriteRequest
	// one action per table and item key
	keys map[string]bool
}

// AddAction stages the request for the commit.
func (tx *txer) AddAction(r WriteRequest) error {
	if r == nil {
		return tx.addError(errors.New("nil write request"))
	}
	id, err := keyID(r.TableName(), r.Key())
	if err != nil {
		return tx.addError(err)
	}
	if tx.keys[id] {
		return tx.addError(fmt.Errorf("an action already exists in table %q for key %s", r.TableName(), id))
	}
	if len(tx.actions) == MaxTransactionActions {
		return tx.addError(fmt.Errorf("transaction limited to %d actions", MaxTransactionActions))
	}
	tx.keys[id] = true
	tx.actions = append(tx.actions, r)
	return nil
}

func (tx *txer) addError(err error) error {
	tx.errs = append(tx.errs, err)
	return err
}

// Commit submits every staged action in one TransactWriteItems call.
// Either all actions apply or none do. Failures are not retried.
func (tx *txer) Commit(ctx context.Context) error {
	if len(tx.errs) > 0 {
		return fmt.Errorf("invalid transaction: %w", errors.Join(tx.errs...))
	}
	if len(tx.actions) == 0 {
		return nil
	}
	items := make([]types.TransactWriteItem, len(tx.actions))
	for i, a := range tx.actions {
		items[i] = a.ToTransactWriteItem()
	}
	params := &dynamodbv2.TransactWriteItemsInput{TransactItems: items}
	if tx.opts.idempotencyToken != "" {
		params.ClientRequestToken = ptr(tx.opts.idempotencyToken)
	}
	log := tx.opts.logger.With("actions", len(items))
	if _, err := tx.awsddb.TransactWriteItems(ctx, params); err != nil {
		err = classify("", err)
		log.WarnContext(ctx, "transaction rejected", "error", err)
		return fmt.Errorf("failed to transact write items: %w", err)
	}
	log.DebugContext(ctx, "transaction committed")
	return nil
}

type TxOption func(*txOpts)

type txOpts struct {
	idempotencyToken string
	logger           *slog.Logger
}

// IdempotencyTokens last for 10 minutes according to AWS documentation.
// If used after that, the request will be treated as new.
// Therefore, use with care.
// https://docs.aws.amazon.com/amazondynamodb/latest/APIReference/API_TransactWriteItems.html
func WithIdempotencyToken(token string) TxOption {
	return func(opts *txOpts) {
		opts.idempotencyToken = token
	}
}

func WithTxLogger(l *slog.Logger) TxOption {
	return func(opts *txOpts) {
		if l != nil {
			opts.logger = l
		}
	}
}

// ExecuteAll writes all requests atomically.
func ExecuteAll(ctx context.Context, ddb AWSDynamoClientV2, reqs ...WriteRequest) error {
	tx := NewTxer(ddb)
	for _, r := range reqs {
		_ = tx.AddAction(r)
	}
	return tx.Commit(ctx)
}

// keyID renders a key map as a stable string.
func keyID(tableName string, key map[string]types.AttributeValue) (string, error) {
	if tableName == "" {
		return "", errors.New("missing table name")
	}
	if len(key) == 0 {
		return "", fmt.Errorf("missing key for table %q", tableName)
	}
	names := make([]string, 0, len(key))
	for name := range key {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString(tableName)
	for _, name := range names {
		kind, err := table.KindOf(key[name])
		if err != nil {
			return "", fmt.Errorf("key %q: %w", name, err)
		}
		var v string
		switch av := key[name].(type) {
		case *types.AttributeValueMemberS:
			v = av.Value
		case *types.AttributeValueMemberN:
			v = av.Value
		case *types.AttributeValueMemberB:
			v = fmt.Sprintf("%x", av.Value)
		}
		fmt.Fprintf(&b, "|%s:%s=%q", name, kind, v)
	}
	return b.String(), nil
}
