package tree

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nspcc-dev/notetree/pkg/core/merkle"
	"github.com/nspcc-dev/notetree/pkg/services/metrics"
	"github.com/nspcc-dev/notetree/pkg/util"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const defaultIngestBatch = 1024

// inputReader is the source of leaf values for ingest, tests can swap it.
var inputReader io.Reader = os.Stdin

func ingest(ctx *cli.Context) error {
	batch := ctx.Int("batch")
	if batch <= 0 {
		return cli.NewExitError(fmt.Errorf("invalid batch size %d", batch), 1)
	}
	return withTree(ctx, func(e *env, t *merkle.Tree) error {
		grace, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		var services []*metrics.Service
		if e.cfg.ApplicationConfiguration.Prometheus.Enabled {
			services = append(services, metrics.NewPrometheusService(e.cfg.ApplicationConfiguration.Prometheus, e.log))
		}
		if e.cfg.ApplicationConfiguration.Pprof.Enabled {
			services = append(services, metrics.NewPprofService(e.cfg.ApplicationConfiguration.Pprof, e.log))
		}
		for _, s := range services {
			if err := s.Start(); err != nil {
				return err
			}
			defer s.ShutDown()
		}

		if f, ok := inputReader.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			fmt.Fprintln(ctx.App.ErrWriter, "Enter leaf values one per line, Ctrl-D to finish.")
		}
		n, err := ingestValues(grace, t, bufio.NewScanner(inputReader), batch)
		e.log.Info("ingestion finished",
			zap.String("name", t.Name()),
			zap.Int("leaves", n),
			zap.Uint64("size", t.Size()))
		if err != nil {
			return err
		}
		printInfo(ctx, t)
		return nil
	})
}

// ingestValues appends values read line by line to the tree in batches of
// the given size. It returns the number of leaves written, batches committed
// before an error or cancellation stay in the tree.
func ingestValues(ctx context.Context, t *merkle.Tree, sc *bufio.Scanner, batch int) (int, error) {
	var (
		total  int
		line   int
		values = make([]util.Uint256, 0, batch)
	)
	flush := func() error {
		if len(values) == 0 {
			return nil
		}
		if err := t.UpdateElements(ctx, t.Size(), values); err != nil {
			return err
		}
		total += len(values)
		values = values[:0]
		return nil
	}
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if len(s) == 0 {
			continue
		}
		v, err := parseValue(s)
		if err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		values = append(values, v)
		if len(values) == batch {
			if err := flush(); err != nil {
				return total, err
			}
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
	if err := sc.Err(); err != nil {
		return total, err
	}
	return total, flush()
}
