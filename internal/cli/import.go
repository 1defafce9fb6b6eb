package cli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/product-catalog/internal/domain/product"
)

const (
	maxLineBytes  = 1 << 20
	progressEvery = 100_000
)

// ImportStats counts the outcome of an import.
type ImportStats struct {
	Read       int64
	Inserted   int64
	Duplicates int64
	Invalid    int64
}

type importLine struct {
	file string
	num  int
	data []byte
}

type importer struct {
	products  BulkInserter
	batchSize int
	capacity  uint
	fpr       float64
}

func newImportCmd(root *rootOptions) *cobra.Command {
	im := &importer{}

	cmd := &cobra.Command{
		Use:   "import FILE.jsonl.gz...",
		Short: "Bulk load products from gzip JSON-lines dumps",
		Long: "Each line is a JSON object with name, description and price. " +
			"Lines that fail validation are skipped, as are names already seen " +
			"in this run (case-insensitive). Batches already written stay " +
			"written when the import fails.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, paths []string) error {
			for _, p := range paths {
				if _, err := os.Stat(p); err != nil {
					return errors.Wrapf(err, "check file %s", p)
				}
			}
			if im.batchSize <= 0 {
				return errors.Errorf("batch size must be positive, got %d", im.batchSize)
			}

			stores, err := root.open(cmd.Context())
			if err != nil {
				return err
			}
			defer stores.close()
			im.products = stores.Products

			stats, err := im.run(cmd.Context(), paths)
			slog.Info("import finished",
				slog.Int64("read", stats.Read),
				slog.Int64("inserted", stats.Inserted),
				slog.Int64("duplicates", stats.Duplicates),
				slog.Int64("invalid", stats.Invalid),
			)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "read=%d inserted=%d duplicates=%d invalid=%d\n",
				stats.Read, stats.Inserted, stats.Duplicates, stats.Invalid)
			return nil
		},
	}

	cmd.Flags().IntVar(&im.batchSize, "batch-size", 5000, "Rows per COPY batch")
	cmd.Flags().UintVar(&im.capacity, "expected-rows", 10_000_000, "Expected number of rows, sizes the duplicate filter")
	cmd.Flags().Float64Var(&im.fpr, "false-positive-rate", 0.001, "False positive rate of the duplicate filter")

	return cmd
}

// run streams every file concurrently into a single writer that validates,
// deduplicates and batches rows.
func (im *importer) run(ctx context.Context, paths []string) (ImportStats, error) {
	var stats ImportStats
	lines := make(chan importLine, 1024)

	g, gctx := errgroup.WithContext(ctx)
	readers, rctx := errgroup.WithContext(gctx)
	for _, p := range paths {
		readers.Go(func() error { return readLines(rctx, p, lines) })
	}
	g.Go(func() error {
		defer close(lines)
		return readers.Wait()
	})
	g.Go(func() error { return im.write(gctx, lines, &stats) })

	err := g.Wait()
	return stats, err
}

func (im *importer) write(ctx context.Context, lines <-chan importLine, stats *ImportStats) error {
	seen := bloom.NewWithEstimates(im.capacity, im.fpr)
	batch := make([]product.Fields, 0, im.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := im.products.BulkInsert(ctx, batch)
		if err != nil {
			return errors.Wrap(err, "insert batch")
		}
		stats.Inserted += n
		batch = batch[:0]
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				return flush()
			}
			stats.Read++
			if stats.Read%progressEvery == 0 {
				slog.Info("import progress", slog.Int64("read", stats.Read), slog.Int64("inserted", stats.Inserted))
			}

			f, err := parseLine(l.data)
			if err != nil {
				stats.Invalid++
				slog.Warn("skipping invalid line",
					slog.String("file", l.file),
					slog.Int("line", l.num),
					slog.String("error", err.Error()),
				)
				continue
			}
			if seen.TestOrAddString(strings.ToLower(f.Name)) {
				stats.Duplicates++
				continue
			}

			batch = append(batch, f)
			if len(batch) == im.batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
}

func parseLine(data []byte) (product.Fields, error) {
	in, err := product.DecodeInput(data)
	if err != nil {
		return product.Fields{}, errors.Wrap(err, "decode")
	}
	return in.Validate()
}

// readLines sends every non-blank line of a gzip file to out.
func readLines(ctx context.Context, path string, out chan<- importLine) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)

	num := 0
	for scanner.Scan() {
		num++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		l := importLine{file: path, num: num, data: bytes.Clone(data)}
		select {
		case out <- l:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	slog.Info("file read", slog.String("path", path), slog.Int("lines", num))
	return nil
}
