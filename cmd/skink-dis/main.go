// Command skink-dis disassembles serialized code blocks. It reads a
// blob from a file or from a configured code store, rebuilds the block
// graph, and prints each block's instruction stream with its debug
// tables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/skink-lang/skink/bytecode"
	"github.com/skink-lang/skink/codecache"
	"github.com/skink-lang/skink/dis"
)

var (
	filePath     = flag.String("file", "", "read the code blob from this file")
	configPath   = flag.String("config", "", "store config file (TOML)")
	keyHex       = flag.String("key", "", "hex key of the blob in the configured store")
	list         = flag.Bool("list", false, "list the keys in the configured store")
	withExpr     = flag.Bool("expr", false, "dump the expression info table")
	withHandlers = flag.Bool("handlers", false, "dump the exception handler table")
	verbose      = flag.Bool("v", false, "verbose logging")
)

func main() {
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()
	if !*verbose {
		logger = logger.Level(zerolog.WarnLevel)
	}

	if err := run(context.Background(), logger); err != nil {
		fmt.Fprintf(os.Stderr, "skink-dis: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger zerolog.Logger) error {
	switch {
	case *list:
		return listKeys(ctx, logger)
	case *filePath != "":
		data, err := os.ReadFile(*filePath)
		if err != nil {
			return err
		}
		return dump(data, logger)
	case *keyHex != "":
		data, err := readFromStore(ctx, logger)
		if err != nil {
			return err
		}
		return dump(data, logger)
	default:
		return errors.New("nothing to do: pass -file, -key or -list")
	}
}

func openStore(ctx context.Context, logger zerolog.Logger) (codecache.Store, error) {
	if *configPath == "" {
		return nil, errors.New("store access requires -config")
	}
	cfg, err := codecache.LoadConfig(*configPath)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("backend", cfg.Backend).Msg("opening code store")
	store, err := codecache.OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("config %s names no store backend", *configPath)
	}
	return store, nil
}

func listKeys(ctx context.Context, logger zerolog.Logger) error {
	store, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	keys, err := store.Keys(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		fmt.Println(key)
	}
	return nil
}

func readFromStore(ctx context.Context, logger zerolog.Logger) ([]byte, error) {
	store, err := openStore(ctx, logger)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	key, err := codecache.ParseKey(*keyHex)
	if err != nil {
		return nil, err
	}
	return store.Get(ctx, key)
}

func dump(data []byte, logger zerolog.Logger) error {
	logger.Debug().Int("bytes", len(data)).Msg("decoding code blob")
	code, err := codecache.Unmarshal(data)
	if err != nil {
		return err
	}
	for i, block := range code.Flatten() {
		if i > 0 {
			fmt.Println()
		}
		if err := dumpBlock(block); err != nil {
			return err
		}
	}
	return nil
}

func dumpBlock(block *bytecode.Code) error {
	name := block.Name()
	if name == "" {
		name = "<anonymous>"
	}
	fmt.Printf("%s %s (%d instructions)\n", block.Kind(), name, block.InstructionCount())
	instructions, err := dis.Disassemble(block)
	if err != nil {
		return err
	}
	dis.Print(instructions, os.Stdout)
	if *withExpr {
		dis.DumpExpressionInfo(block, os.Stdout)
	}
	if *withHandlers {
		dis.DumpExceptionHandlers(block, os.Stdout)
	}
	return nil
}
