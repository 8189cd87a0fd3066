package ddbstore

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/antipr000/NobaServer-sub003/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// Store is a DynamoDB-compatible store backed by BadgerDB. Each operation
// runs in a single badger transaction, so conditional writes are atomic.
type Store struct {
	db *badger.DB

	mu     sync.RWMutex
	tables map[string]*tableSchema
}

type tableSchema struct {
	definition table.TableDefinition
	enc        keyEncoder
	gsis       []keyEncoder
}

// StoreOptions configures the BadgerDB store.
type StoreOptions struct {
	// Path to the database directory. If empty, uses in-memory mode.
	Path string
	// InMemory forces in-memory mode even if Path is set.
	InMemory bool
	// Logger receives badger's internal logs. If nil, they are dropped.
	Logger *slog.Logger
}

// New opens a store with the given tables.
func New(opts StoreOptions, defs ...table.TableDefinition) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path)
	if opts.Path == "" || opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	if opts.Logger != nil {
		badgerOpts = badgerOpts.WithLogger(badgerLogger{opts.Logger})
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	s := &Store{db: db, tables: make(map[string]*tableSchema)}
	for _, def := range defs {
		if err := s.AddTable(def); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// AddTable registers a table. Adding a table twice is an error.
func (s *Store) AddTable(def table.TableDefinition) error {
	if def.Name == "" || def.KeyDefinitions.PartitionKey.Name == "" {
		return fmt.Errorf("table needs a name and a partition key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[def.Name]; ok {
		return fmt.Errorf("table %q already exists", def.Name)
	}
	t := &tableSchema{
		definition: def,
		enc:        keyEncoder{tableName: def.Name, keyDef: def.KeyDefinitions},
	}
	for _, g := range def.GSIs {
		t.gsis = append(t.gsis, keyEncoder{tableName: def.Name, indexName: g.Name, keyDef: g.KeyDefinitions})
	}
	s.tables[def.Name] = t
	return nil
}

// Close closes the BadgerDB database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) getTable(name *string) (*tableSchema, error) {
	if name == nil || *name == "" {
		return nil, validationError("table name is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[*name]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: ptrStr("Requested resource not found: Table: " + *name + " not found")}
	}
	return t, nil
}

// update runs fn in a read-write transaction, retrying when badger reports
// a conflict with a concurrent writer.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	for {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
}

// itemKey validates that key holds exactly the table's key attributes and
// returns its badger key.
func (t *tableSchema) itemKey(key map[string]types.AttributeValue) ([]byte, error) {
	names := t.definition.KeyDefinitions.Names()
	if len(key) != len(names) {
		return nil, validationError("The provided key element does not match the schema")
	}
	pk, err := t.definition.ExtractPrimaryKey(key)
	if err != nil {
		return nil, validationError("The provided key element does not match the schema")
	}
	return t.enc.encode(pk)
}

// keyOf returns the badger key of a full item.
func (t *tableSchema) keyOf(item map[string]types.AttributeValue) ([]byte, error) {
	pk, err := t.definition.ExtractPrimaryKey(item)
	if err != nil {
		return nil, validationError("One or more parameter values were invalid: " + err.Error())
	}
	return t.enc.encode(pk)
}

func (t *tableSchema) index(name string) (keyEncoder, bool) {
	for _, g := range t.gsis {
		if g.indexName == name {
			return g, true
		}
	}
	return keyEncoder{}, false
}

func getItem(txn *badger.Txn, key []byte) (map[string]types.AttributeValue, error) {
	entry, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var item map[string]types.AttributeValue
	err = entry.Value(func(val []byte) error {
		item, err = deserializeItem(val)
		return err
	})
	return item, err
}

// writeItem replaces old with item under key, keeping index entries in
// step. A nil item deletes.
func (t *tableSchema) writeItem(txn *badger.Txn, key []byte, old, item map[string]types.AttributeValue) error {
	for _, g := range t.gsis {
		if old != nil {
			oldKey, err := g.encodeIndexEntry(key, old)
			if err != nil {
				return err
			}
			if oldKey != nil {
				if err := txn.Delete(oldKey); err != nil {
					return err
				}
			}
		}
		if item == nil {
			continue
		}
		newKey, err := g.encodeIndexEntry(key, item)
		if err != nil {
			return err
		}
		if newKey != nil {
			if err := txn.Set(newKey, key); err != nil {
				return err
			}
		}
	}
	if item == nil {
		return txn.Delete(key)
	}
	data, err := serializeItem(item)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(format string, args ...any) {
	b.l.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.l.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.l.Info(fmt.Sprintf(format, args...), "component", "badger")
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.l.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func ptrStr(s string) *string {
	return &s
}
