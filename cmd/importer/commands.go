package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/FACorreiaa/statement-import/internal/domain/import/parser"
	importservice "github.com/FACorreiaa/statement-import/internal/domain/import/service"
	"github.com/FACorreiaa/statement-import/pkg/config"
	"github.com/FACorreiaa/statement-import/pkg/money"
)

// depsFactory builds dependencies for one command run. Tests swap it out.
type depsFactory func(ctx context.Context, localeTag string, withStore bool) (*Dependencies, error)

type cli struct {
	in      io.Reader
	out     io.Writer
	envFile string
	newDeps depsFactory
}

func newRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	c := &cli{in: in, out: out}
	c.newDeps = c.defaultDeps
	return c.rootCommand()
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "importer",
		Short:        "Preview and import bank statements",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	root.AddCommand(
		c.newPreviewCommand(),
		c.newImportCommand(),
		c.newPasteCommand(),
		c.newListCommand(),
		c.newPurgeCommand(),
	)
	return root
}

func (c *cli) defaultDeps(ctx context.Context, localeTag string, withStore bool) (*Dependencies, error) {
	cfg, err := config.Load(c.envFile)
	if err != nil {
		return nil, err
	}
	return InitDependencies(ctx, cfg, newLogger(cfg.Log), localeTag, withStore)
}

type previewOptions struct {
	locale  string
	columns string
	csvPath string
	search  string
}

func (o *previewOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.locale, "locale", "", `locale tag ("pt-BR", "en-US" or "auto"); defaults to IMPORT_LOCALE`)
	cmd.Flags().StringVar(&o.columns, "columns", "", "manual column mapping, e.g. date=0,desc=1,amount=2,header=0")
}

func (c *cli) newPreviewCommand() *cobra.Command {
	var opts previewOptions

	cmd := &cobra.Command{
		Use:   "preview <file>",
		Short: "Parse and categorize a statement without saving it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.newDeps(cmd.Context(), opts.locale, false)
			if err != nil {
				return err
			}
			defer deps.Close()

			p, err := c.previewFile(cmd.Context(), deps.ImportService, args[0], opts.columns)
			if err != nil {
				return err
			}
			defer p.Close()

			rows, err := p.Search(opts.search)
			if err != nil {
				return err
			}
			if err := c.printPreview(p, rows); err != nil {
				return err
			}
			if opts.csvPath != "" {
				return writeCSVFile(p, opts.csvPath)
			}
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "write the categorized preview to this CSV file")
	cmd.Flags().StringVar(&opts.search, "search", "", "only show rows whose description or category matches")
	return cmd
}

func (c *cli) newImportCommand() *cobra.Command {
	var (
		opts      previewOptions
		owner     string
		exclude   []int
		overrides []string
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Parse, categorize and save a statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerID, err := uuid.Parse(owner)
			if err != nil {
				return fmt.Errorf("invalid owner id: %w", err)
			}

			deps, err := c.newDeps(cmd.Context(), opts.locale, true)
			if err != nil {
				return err
			}
			defer deps.Close()

			p, err := c.previewFile(cmd.Context(), deps.ImportService, args[0], opts.columns)
			if err != nil {
				return err
			}
			defer p.Close()

			if err := applyEdits(p, overrides, exclude); err != nil {
				return err
			}
			return c.commit(cmd.Context(), deps.ImportService, ownerID, p)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&owner, "owner", "", "owner id the transactions belong to")
	cmd.Flags().IntSliceVar(&exclude, "exclude", nil, "row numbers to leave out")
	cmd.Flags().StringArrayVar(&overrides, "category", nil, "category override as <row>=<label>, repeatable")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func (c *cli) newPasteCommand() *cobra.Command {
	var (
		localeTag string
		owner     string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "paste",
		Short: "Import transactions pasted on standard input",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var ownerID uuid.UUID
			if !dryRun {
				id, err := uuid.Parse(owner)
				if err != nil {
					return fmt.Errorf("invalid owner id: %w", err)
				}
				ownerID = id
			}

			text, err := io.ReadAll(c.in)
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			deps, err := c.newDeps(cmd.Context(), localeTag, !dryRun)
			if err != nil {
				return err
			}
			defer deps.Close()

			p, err := deps.ImportService.Preview(cmd.Context(), parser.NewPastedDocument(string(text)))
			if err != nil {
				return c.explain(err)
			}
			defer p.Close()

			if err := c.printPreview(p, allRows(p)); err != nil {
				return err
			}
			if dryRun {
				return nil
			}
			return c.commit(cmd.Context(), deps.ImportService, ownerID, p)
		},
	}

	cmd.Flags().StringVar(&localeTag, "locale", "", `locale tag ("pt-BR" or "en-US"); defaults to IMPORT_LOCALE`)
	cmd.Flags().StringVar(&owner, "owner", "", "owner id the transactions belong to")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only show what would be imported")
	return cmd
}

func (c *cli) newListCommand() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ownerID, err := uuid.Parse(owner)
			if err != nil {
				return fmt.Errorf("invalid owner id: %w", err)
			}

			deps, err := c.newDeps(cmd.Context(), "", true)
			if err != nil {
				return err
			}
			defer deps.Close()

			txs, err := deps.Repo.ListByOwner(cmd.Context(), ownerID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tDESCRIPTION\tCATEGORY\tAMOUNT")
			for _, tx := range txs {
				m := money.New(tx.AmountMinor, tx.CurrencyCode)
				if tx.Direction == string(parser.Expense) {
					m = m.Negate()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", tx.PostedOn.Format("2006-01-02"), tx.Description, tx.Category, m.Display())
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

// newPurgeCommand removes an owner's stored transactions so a statement can be
// imported again from scratch.
func (c *cli) newPurgeCommand() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every stored transaction of an owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ownerID, err := uuid.Parse(owner)
			if err != nil {
				return fmt.Errorf("invalid owner id: %w", err)
			}

			deps, err := c.newDeps(cmd.Context(), "", true)
			if err != nil {
				return err
			}
			defer deps.Close()

			n, err := deps.Repo.DeleteByOwner(cmd.Context(), ownerID)
			if err != nil {
				return err
			}
			deps.Logger.Info("transactions purged", "owner", ownerID, "count", n)
			fmt.Fprintf(c.out, "Deleted %d transactions\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func (c *cli) previewFile(ctx context.Context, svc *importservice.ImportService, path, columns string) (*importservice.Preview, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc := parser.NewFileDocument(filepath.Base(path), data)

	var p *importservice.Preview
	if columns != "" {
		m, err := parseColumns(columns)
		if err != nil {
			return nil, err
		}
		p, err = svc.PreviewWithMapping(ctx, doc, m)
		if err != nil {
			return nil, c.explain(err)
		}
	} else {
		p, err = svc.Preview(ctx, doc)
		if err != nil {
			return nil, c.explain(err)
		}
	}
	return p, nil
}

// explain prints the document excerpt for empty results so the user can see
// what the parser was looking at.
func (c *cli) explain(err error) error {
	var empty *parser.EmptyResultError
	if errors.As(err, &empty) && empty.Excerpt != "" {
		fmt.Fprintf(c.out, "No transactions found. The document starts with:\n\n%s\n\n", empty.Excerpt)
	}
	return err
}

func (c *cli) printPreview(p *importservice.Preview, rows []int) error {
	fmt.Fprintf(c.out, "Format: %s  Locale: %s\n", p.Format, p.Locale.Tag)
	if p.Mapping != nil {
		m := p.Mapping
		fmt.Fprintf(c.out, "Columns (%s): date=%d desc=%d amount=%d credit=%d debit=%d header=%d\n",
			m.Source, m.DateCol, m.DescCol, m.AmountCol, m.CreditCol, m.DebitCol, m.HeaderRow)
	}

	txs := p.Transactions()
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tDATE\tDESCRIPTION\tCATEGORY\tAMOUNT")
	for _, i := range rows {
		tx := txs[i]
		amount := money.Signed(tx.Amount, tx.Direction == parser.Expense, p.Locale.CurrencyCode)
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i, tx.DateString(), tx.Description, tx.Category, amount.Display())
	}
	if err := w.Flush(); err != nil {
		return err
	}

	income, expense, err := p.Totals()
	if err != nil {
		return err
	}
	span := p.Span()
	fmt.Fprintf(c.out, "%d transactions from %s to %s, income %s, expenses %s\n",
		p.Len(), span.From.Format("2006-01-02"), span.To.Format("2006-01-02"), income.Display(), expense.Display())
	return nil
}

func (c *cli) commit(ctx context.Context, svc *importservice.ImportService, ownerID uuid.UUID, p *importservice.Preview) error {
	report, err := svc.Commit(ctx, ownerID, p)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Imported %d of %d transactions", report.Committed, report.Total)
	if !report.Span.IsZero() {
		fmt.Fprintf(c.out, " (%s to %s)", report.Span.From.Format("2006-01-02"), report.Span.To.Format("2006-01-02"))
	}
	fmt.Fprintln(c.out)

	for _, f := range report.Failures {
		fmt.Fprintf(c.out, "  row %d %q: %v\n", f.Index, f.Description, f.Err)
	}
	if report.Abandoned {
		return context.Cause(ctx)
	}
	return nil
}

func allRows(p *importservice.Preview) []int {
	rows := make([]int, p.Len())
	for i := range rows {
		rows[i] = i
	}
	return rows
}

// applyEdits applies category overrides first, then exclusions from the
// highest row down so earlier row numbers stay valid.
func applyEdits(p *importservice.Preview, overrides []string, exclude []int) error {
	for _, o := range overrides {
		row, label, ok := strings.Cut(o, "=")
		if !ok {
			return fmt.Errorf("invalid category override %q, want <row>=<label>", o)
		}
		i, err := strconv.Atoi(strings.TrimSpace(row))
		if err != nil {
			return fmt.Errorf("invalid row in %q: %w", o, err)
		}
		if _, err := p.SetCategory(i, strings.TrimSpace(label)); err != nil {
			return err
		}
	}

	sorted := append([]int(nil), exclude...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	for i, row := range sorted {
		if i > 0 && sorted[i-1] == row {
			continue
		}
		if err := p.Exclude(row); err != nil {
			return err
		}
	}
	return nil
}

// parseColumns reads "date=0,desc=1,amount=2" style mappings. Roles that are
// not named stay unresolved.
func parseColumns(s string) (parser.ColumnMapping, error) {
	m := parser.NewColumnMapping()
	for _, part := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return m, fmt.Errorf("invalid column %q, want <role>=<index>", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return m, fmt.Errorf("invalid index in %q: %w", part, err)
		}

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "date":
			m.DateCol = n
		case "desc", "description":
			m.DescCol = n
		case "amount":
			m.AmountCol = n
		case "credit":
			m.CreditCol = n
		case "debit":
			m.DebitCol = n
		case "header":
			m.HeaderRow = n
		default:
			return m, fmt.Errorf("unknown column role %q", key)
		}
	}

	if !m.Complete() {
		return m, errors.New("column mapping needs date, desc and either amount or credit and debit")
	}
	return m, nil
}

func writeCSVFile(p *importservice.Preview, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := p.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
