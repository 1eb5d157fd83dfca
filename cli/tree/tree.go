/*
Package tree implements the CLI commands operating on Merkle trees.
*/
package tree

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nspcc-dev/notetree/cli/options"
	"github.com/nspcc-dev/notetree/pkg/config"
	"github.com/nspcc-dev/notetree/pkg/core/merkle"
	"github.com/nspcc-dev/notetree/pkg/core/storage"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

var (
	nameFlag = cli.StringFlag{
		Name:  "name, n",
		Usage: "tree name",
	}
	indexFlag = cli.Uint64Flag{
		Name:  "index, i",
		Usage: "leaf index",
	}
	valueFlag = cli.StringFlag{
		Name:  "value, v",
		Usage: "leaf value, 0x-prefixed 32-byte big-endian hex or decimal",
	}
	errNoName  = errors.New("tree name is required, use --name flag")
	errNoValue = errors.New("leaf value is required, use --value flag")
)

// NewCommands returns 'tree' command.
func NewCommands() []cli.Command {
	common := []cli.Flag{options.ConfigFile, options.Debug, nameFlag}
	return []cli.Command{{
		Name:  "tree",
		Usage: "Create, update and query Merkle trees",
		Subcommands: []cli.Command{
			{
				Name:      "init",
				Usage:     "Create a new empty tree",
				UsageText: "notetree tree init --name <name> [--depth <depth>] [--config-file <file>]",
				Action:    initTree,
				Flags: append(common, cli.UintFlag{
					Name:  "depth",
					Usage: "tree depth, taken from TreeConfiguration if not set",
				}),
			},
			{
				Name:      "info",
				Usage:     "Print tree root, depth and size",
				UsageText: "notetree tree info --name <name> [--config-file <file>]",
				Action:    info,
				Flags:     common,
			},
			{
				Name:      "update",
				Usage:     "Set a single leaf",
				UsageText: "notetree tree update --name <name> --index <index> --value <value> [--config-file <file>]",
				Action:    update,
				Flags:     append(common, indexFlag, valueFlag),
			},
			{
				Name:      "insert",
				Usage:     "Set consecutive leaves starting from the given index",
				UsageText: "notetree tree insert --name <name> --index <index> <value> [<value> ...]",
				Action:    insert,
				Flags:     append(common, indexFlag),
			},
			{
				Name:      "path",
				Usage:     "Print leaf authentication path",
				UsageText: "notetree tree path --name <name> --index <index> [--binary]",
				Action:    getPath,
				Flags: append(common, indexFlag, cli.BoolFlag{
					Name:  "binary, b",
					Usage: "print hex-encoded binary path instead of JSON",
				}),
			},
			{
				Name:      "verify",
				Usage:     "Check leaf value against the tree root",
				UsageText: "notetree tree verify --name <name> --index <index> --value <value>",
				Action:    verify,
				Flags:     append(common, indexFlag, valueFlag),
			},
			{
				Name:      "ingest",
				Usage:     "Append leaves read from stdin line by line",
				UsageText: "notetree tree ingest --name <name> [--batch <size>] < values.txt",
				Action:    ingest,
				Flags: append(common, cli.IntFlag{
					Name:  "batch",
					Value: defaultIngestBatch,
					Usage: "number of leaves inserted at once",
				}),
			},
		},
	}}
}

// env holds resources shared by tree commands.
type env struct {
	cfg   config.Config
	log   *zap.Logger
	store storage.Store
	tree  merkle.Config
}

func newEnv(ctx *cli.Context) (*env, error) {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	log, _, err := options.HandleLoggingParams(options.IsDebug(ctx), cfg.ApplicationConfiguration)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	hasher, err := cfg.TreeConfiguration.NewHasher()
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	leaf, err := cfg.TreeConfiguration.GetInitialLeaf()
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	store, err := storage.NewStore(cfg.ApplicationConfiguration.DBConfiguration)
	if err != nil {
		return nil, cli.NewExitError(fmt.Errorf("could not initialize storage: %w", err), 1)
	}
	return &env{
		cfg:   cfg,
		log:   log,
		store: store,
		tree: merkle.Config{
			Store:       store,
			Hasher:      hasher,
			Log:         log,
			Retention:   merkle.RetentionPolicy(cfg.TreeConfiguration.Retention),
			InitialLeaf: leaf,
		},
	}, nil
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		e.log.Error("failed to close the DB", zap.Error(err))
	}
	_ = e.log.Sync()
}

// openTree loads the named tree, trees listed in the configuration are
// created if missing.
func (e *env) openTree(name string) (*merkle.Tree, error) {
	if len(name) == 0 {
		return nil, errNoName
	}
	if depth, ok := e.cfg.TreeConfiguration.GetDepth(name); ok {
		return merkle.Open(name, depth, e.tree)
	}
	return merkle.Load(name, e.tree)
}

// withTree runs f for the tree specified in the command context.
func withTree(ctx *cli.Context, f func(*env, *merkle.Tree) error) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	t, err := e.openTree(ctx.String("name"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if err := f(e, t); err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}

func initTree(ctx *cli.Context) error {
	name := ctx.String("name")
	if len(name) == 0 {
		return cli.NewExitError(errNoName, 1)
	}
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	depth := int(ctx.Uint("depth"))
	if depth == 0 {
		var ok bool
		depth, ok = e.cfg.TreeConfiguration.GetDepth(name)
		if !ok {
			return cli.NewExitError(fmt.Errorf("no depth configured for tree %s, use --depth flag", name), 1)
		}
	}
	_, err = merkle.Load(name, e.tree)
	if err == nil {
		return cli.NewExitError(fmt.Errorf("tree %s already exists", name), 1)
	}
	if !errors.Is(err, merkle.ErrTreeNotFound) {
		return cli.NewExitError(err, 1)
	}
	t, err := merkle.New(name, depth, e.tree)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	printInfo(ctx, t)
	return nil
}

func printInfo(ctx *cli.Context, t *merkle.Tree) {
	fmt.Fprintf(ctx.App.Writer, "Name:\t%s\nRoot:\t0x%s\nDepth:\t%d\nSize:\t%d\n",
		t.Name(), t.Root().StringBE(), t.Depth(), t.Size())
}

func info(ctx *cli.Context) error {
	return withTree(ctx, func(_ *env, t *merkle.Tree) error {
		printInfo(ctx, t)
		return nil
	})
}

func update(ctx *cli.Context) error {
	if !ctx.IsSet("value") {
		return cli.NewExitError(errNoValue, 1)
	}
	value, err := parseValue(ctx.String("value"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	return withTree(ctx, func(_ *env, t *merkle.Tree) error {
		if err := t.UpdateElement(ctx.Uint64("index"), value); err != nil {
			return err
		}
		printInfo(ctx, t)
		return nil
	})
}

func insert(ctx *cli.Context) error {
	if !ctx.Args().Present() {
		return cli.NewExitError(errors.New("no values given"), 1)
	}
	values, err := parseValues(ctx.Args())
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	return withTree(ctx, func(_ *env, t *merkle.Tree) error {
		if err := t.UpdateElements(context.Background(), ctx.Uint64("index"), values); err != nil {
			return err
		}
		printInfo(ctx, t)
		return nil
	})
}

func getPath(ctx *cli.Context) error {
	return withTree(ctx, func(_ *env, t *merkle.Tree) error {
		path, err := t.GetHashPath(ctx.Uint64("index"))
		if err != nil {
			return err
		}
		if ctx.Bool("binary") {
			fmt.Fprintln(ctx.App.Writer, hex.EncodeToString(path.Bytes()))
			return nil
		}
		data, err := json.MarshalIndent(path, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(ctx.App.Writer, string(data))
		return nil
	})
}

func verify(ctx *cli.Context) error {
	if !ctx.IsSet("value") {
		return cli.NewExitError(errNoValue, 1)
	}
	value, err := parseValue(ctx.String("value"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	return withTree(ctx, func(_ *env, t *merkle.Tree) error {
		index := ctx.Uint64("index")
		path, err := t.GetHashPath(index)
		if err != nil {
			return err
		}
		leaf := value
		if leaf.IsZero() {
			leaf = t.ZeroHash(0)
		}
		if !path.Verify(t.Root(), index, leaf, t.Hasher()) {
			return fmt.Errorf("leaf %d doesn't match root 0x%s", index, t.Root().StringBE())
		}
		fmt.Fprintln(ctx.App.Writer, "OK")
		return nil
	})
}
