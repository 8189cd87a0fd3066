// ddb is a command line tool for entity schemas and the writes they produce.
//
// # Commands
//
//	ddb validate   Check a schema document
//	ddb plan       Print the DynamoDB request for a write
//	ddb apply      Execute a write against DynamoDB or a local store
//
// # Quick Start
//
// Describe tables and entities in schema_dynamodb.yaml, then:
//
//	ddb validate
//	ddb plan -entity User -item '{"id":"42","email":"ada@example.com"}'
//	ddb apply -memory -entity User -item '{"id":"42","email":"ada@example.com"}'
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const version = "0.2.0"

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir, err := os.Getwd()
	if err == nil {
		err = run(ctx, dir, os.Args[1:], os.Stdout, os.Stderr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ddb %s: %v\n", os.Args[1], err)
		stop()
		os.Exit(1)
	}
}

// run executes one command. Logs go to stderr, results to stdout.
func run(ctx context.Context, dir string, args []string, stdout, stderr io.Writer) error {
	cmd, args := args[0], args[1:]

	var runCmd func(context.Context, *cli, []string) error
	switch cmd {
	case "validate", "check":
		runCmd = runValidate
	case "plan":
		runCmd = runPlan
	case "apply":
		runCmd = runApply
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	case "version", "-v", "--version":
		fmt.Fprintf(stdout, "ddb version %s\n", version)
		return nil
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", cmd)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	err = runCmd(ctx, &cli{dir: dir, cfg: cfg, stdout: stdout, logger: logger}, args)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `ddb - DynamoDB entity schema tools

Usage:
  ddb <command> [flags]

Commands:
  validate  Check a schema document
  plan      Print the DynamoDB request for a write
  apply     Execute a write against DynamoDB or a local store

Examples:
  ddb validate -schema ./schema_dynamodb.yaml
  ddb plan -entity User -op update -item '{"id":"42","name":"Ada","version":3}'
  ddb apply -memory -entity User -item @user.json

Configuration (optional):
  Create ddb.yaml for defaults:

    schema: ./schema_dynamodb.yaml
    region: eu-west-1
    endpoint: http://localhost:8000   # skips the credentials check
    skipVersionCheck: false
    logLevel: info
    logFile: ./ddb.log                # JSON logs

Run 'ddb <command> -h' for more information on a command.`)
}
