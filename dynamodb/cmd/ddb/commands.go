package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/antipr000/NobaServer-sub003/dynamodb/ddbsdk"
	"github.com/antipr000/NobaServer-sub003/dynamodb/ddbstore"
	"github.com/antipr000/NobaServer-sub003/dynamodb/item"
	"github.com/google/uuid"
)

// cli carries what every command needs.
type cli struct {
	dir    string
	cfg    Config
	stdout io.Writer
	logger *slog.Logger
}

func runValidate(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(c.stdout)
	schemaPath := fs.String("schema", c.cfg.Schema, "schema document (default: discover "+schemaFilename+")")
	fs.Usage = func() {
		fmt.Fprintln(c.stdout, `ddb validate - Check a schema document

Usage:
  ddb validate [flags]

Flags:`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	m, err := c.mapper(*schemaPath)
	if err != nil {
		return err
	}
	for _, e := range m.Entities() {
		fmt.Fprintf(c.stdout, "%s\t%s\t%d index(es)\n", e.Name, e.Table.Name, len(e.Consumers))
	}
	fmt.Fprintln(c.stdout, "schema ok")
	return nil
}

// writeFlags are shared by plan and apply.
type writeFlags struct {
	schema    string
	entity    string
	op        string
	item      string
	skipCheck bool
	expiresIn time.Duration
	set       map[string]bool
}

func (w *writeFlags) register(fs *flag.FlagSet, cfg Config) {
	fs.StringVar(&w.schema, "schema", cfg.Schema, "schema document (default: discover "+schemaFilename+")")
	fs.StringVar(&w.entity, "entity", "", "entity name")
	fs.StringVar(&w.op, "op", "put", "operation: put, update or delete")
	fs.StringVar(&w.item, "item", "", "item as JSON, or @file.json")
	fs.BoolVar(&w.skipCheck, "skip-version-check", false, "do not condition the write on the stored version")
	fs.DurationVar(&w.expiresIn, "expires-in", 0, "set the table's time to live attribute this far in the future (put only)")
}

func (w *writeFlags) parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	w.set = map[string]bool{}
	fs.Visit(func(f *flag.Flag) { w.set[f.Name] = true })
	if w.entity == "" {
		return fmt.Errorf("-entity is required")
	}
	return nil
}

// request builds the write described by the flags.
func (c *cli) request(w *writeFlags) (ddbsdk.WriteRequest, error) {
	m, err := c.mapper(w.schema)
	if err != nil {
		return nil, err
	}
	it, err := readItem(w.item)
	if err != nil {
		return nil, err
	}
	var opts ddbsdk.Options
	if w.set["skip-version-check"] {
		opts.SkipVersionCheck = ddbsdk.SkipVersionCheck(w.skipCheck)
	}
	if w.expiresIn > 0 {
		exp := time.Now().Add(w.expiresIn)
		opts.Expiry = &exp
	}

	src := item.FromMap(it)
	switch w.op {
	case "put":
		return m.Put(w.entity, src, opts)
	case "update":
		return m.Update(w.entity, src, opts)
	case "delete":
		return m.Delete(w.entity, src, opts)
	}
	return nil, fmt.Errorf("unknown op %q", w.op)
}

func (c *cli) mapper(schemaPath string) (*ddbsdk.Mapper, error) {
	doc, err := loadSchemas(schemaPath, c.dir)
	if err != nil {
		return nil, err
	}
	reg, policy, err := doc.Build()
	if err != nil {
		return nil, err
	}
	return ddbsdk.NewMapper(reg, policy, ddbsdk.WithDefaultSkipVersionCheck(c.cfg.SkipVersionCheck))
}

func runPlan(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	fs.SetOutput(c.stdout)
	var w writeFlags
	w.register(fs, c.cfg)
	fs.Usage = func() {
		fmt.Fprintln(c.stdout, `ddb plan - Print the DynamoDB request for a write

Usage:
  ddb plan -entity NAME [-op put|update|delete] -item JSON [flags]

Flags:`)
		fs.PrintDefaults()
		fmt.Fprintln(c.stdout, `
Examples:
  ddb plan -entity User -item '{"id":"42","email":"ada@example.com"}'
  ddb plan -entity User -op update -item '{"id":"42","name":"Ada","version":3}'
  ddb plan -entity User -op delete -item @user.json -skip-version-check`)
	}
	if err := w.parse(fs, args); err != nil {
		return err
	}

	req, err := c.request(&w)
	if err != nil {
		return err
	}
	wire, err := toWire(req.ToTransactWriteItem())
	if err != nil {
		return err
	}
	return writeJSON(c.stdout, wire)
}

func runApply(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("apply", flag.ContinueOnError)
	fs.SetOutput(c.stdout)
	var w writeFlags
	w.register(fs, c.cfg)
	var (
		memory   = fs.Bool("memory", false, "apply to an empty in-memory store")
		dbPath   = fs.String("db", "", "apply to a local badger store at this path")
		region   = fs.String("region", c.cfg.Region, "AWS region")
		endpoint = fs.String("endpoint", c.cfg.Endpoint, "DynamoDB endpoint override")
		token    = fs.String("token", "", "idempotency token (default: random)")
	)
	fs.Usage = func() {
		fmt.Fprintln(c.stdout, `ddb apply - Execute a write

Usage:
  ddb apply -entity NAME [-op put|update|delete] -item JSON [flags]

Without -memory or -db the write goes to DynamoDB using the default AWS
credential chain.

Flags:`)
		fs.PrintDefaults()
	}
	if err := w.parse(fs, args); err != nil {
		return err
	}

	req, err := c.request(&w)
	if err != nil {
		return err
	}

	var awsddb ddbsdk.AWSDynamoClientV2
	if *memory || *dbPath != "" {
		doc, err := loadSchemas(w.schema, c.dir)
		if err != nil {
			return err
		}
		defs, err := doc.TableDefinitions()
		if err != nil {
			return err
		}
		store, err := ddbstore.New(ddbstore.StoreOptions{Path: *dbPath, InMemory: *memory, Logger: c.logger}, defs...)
		if err != nil {
			return err
		}
		defer store.Close()
		awsddb = store
	} else {
		cfg := c.cfg
		cfg.Region, cfg.Endpoint = *region, *endpoint
		client, err := newAWSClient(ctx, cfg, c.logger)
		if err != nil {
			return err
		}
		awsddb = client
	}

	if *token == "" {
		*token = uuid.NewString()
	}
	client := ddbsdk.New(awsddb, ddbsdk.WithLogger(c.logger))
	tx := client.NewTx(ddbsdk.WithIdempotencyToken(*token))
	if err := tx.AddAction(req); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "applied %s on %s (token %s)\n", w.op, req.TableName(), *token)
	return nil
}
