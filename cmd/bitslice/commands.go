package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/JonMunkholm/BitSlicer/internal/bits"
	"github.com/JonMunkholm/BitSlicer/internal/core"
	"github.com/JonMunkholm/BitSlicer/internal/logging"
	"github.com/JonMunkholm/BitSlicer/internal/table"
	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	logLevel string
	layouts  string
	noHeader bool
	sheet    string
}

func (o *rootOptions) readOptions() table.ReadOptions {
	return table.ReadOptions{NoHeader: o.noHeader, Sheet: o.sheet}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "bitslice",
		Short:         "Slice packed hex/binary words in CSV and XLSX columns into bit fields",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(cmd.ErrOrStderr(), opts.logLevel, "text")
		},
	}

	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&opts.layouts, "layouts", os.Getenv("LAYOUTS_PATH"), "YAML file of named layouts")
	root.PersistentFlags().BoolVar(&opts.noHeader, "no-header", false, "treat the first row as data")
	root.PersistentFlags().StringVar(&opts.sheet, "sheet", "", "XLSX worksheet (default: first sheet)")

	root.AddCommand(
		newClassifyCmd(),
		newNamesCmd(),
		newInspectCmd(opts),
		newSliceCmd(opts),
		newLayoutsCmd(opts),
	)
	return root
}

// =============================================================================
// classify
// =============================================================================

func newClassifyCmd() *cobra.Command {
	var knownWidth int

	cmd := &cobra.Command{
		Use:   "classify TOKEN...",
		Short: "Show how tokens are classified and decoded",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TOKEN\tCLASS\tBITS\tWORD\tNOTE")
			for _, r := range core.ClassifyTokens(args, knownWidth) {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", r.Token, r.Class, r.BitLength, r.Word, tokenNote(r))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&knownWidth, "known-width", 0, "treat tokens as binary words of this many bits")
	return cmd
}

func tokenNote(r core.TokenReport) string {
	var notes []string
	if r.Fallback {
		notes = append(notes, "unparsable, zero-filled")
	}
	if r.Overflow {
		notes = append(notes, "wider than column, high bits kept")
	}
	return strings.Join(notes, "; ")
}

// =============================================================================
// names
// =============================================================================

func newNamesCmd() *cobra.Command {
	var (
		widths  string
		uniform int
		total   int
	)

	cmd := &cobra.Command{
		Use:   "names BASE",
		Short: "Print the generated field names for a width plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				ws  []int
				err error
			)
			switch {
			case widths != "":
				ws, err = bits.ParseWidths(widths)
			case uniform != 0:
				ws, err = bits.UniformWidths(total, uniform)
			default:
				return errors.New("one of --widths or --uniform is required")
			}
			if err != nil {
				return err
			}

			for _, name := range bits.DefaultNames(args[0], ws) {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&widths, "widths", "", "explicit widths, e.g. 8,8,16")
	cmd.Flags().IntVar(&uniform, "uniform", 0, "uniform chunk size in bits")
	cmd.Flags().IntVar(&total, "bits", bits.HexBitLength, "word length for --uniform")
	cmd.MarkFlagsMutuallyExclusive("widths", "uniform")
	return cmd
}

// =============================================================================
// inspect
// =============================================================================

func newInspectCmd(opts *rootOptions) *cobra.Command {
	var known []string

	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Report the resolved encoding of every column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			knownCols, err := core.ParseKnown(known)
			if err != nil {
				return err
			}
			tbl, err := table.ReadFile(args[0], opts.readOptions())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "COLUMN\tCLASS\tBITS\tKNOWN\tPRESENT\tSAMPLE")
			for _, c := range core.Inspect(tbl, knownCols) {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%d/%d\t%s\n",
					c.Name, c.Class, c.BitLength, c.Known, c.Present, len(tbl.Rows), c.Sample)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringArrayVar(&known, "known", nil, "column=bits of a column known to hold binary words (repeatable)")
	return cmd
}

// =============================================================================
// slice
// =============================================================================

type sliceOptions struct {
	column  string
	widths  string
	uniform int
	layout  string
	names   string
	known   []string
	output  string
	workers int
}

func newSliceCmd(opts *rootOptions) *cobra.Command {
	so := &sliceOptions{}

	cmd := &cobra.Command{
		Use:   "slice FILE",
		Short: "Slice a column into bit fields and write the result",
		Long: `Slice decodes every cell of --column and appends one output column per
field. Exactly one of --widths, --uniform or --layout picks the fields; their
widths must add up to the column's bit length.

Writing .xlsx also writes a .csv next to it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSlice(cmd, opts, so, args[0])
		},
	}

	f := cmd.Flags()
	f.StringVarP(&so.column, "column", "c", "", "column to slice (required)")
	f.StringVar(&so.widths, "widths", "", "explicit widths, e.g. 12,12,8")
	f.IntVar(&so.uniform, "uniform", 0, "uniform chunk size in bits")
	f.StringVar(&so.layout, "layout", "", "named layout from --layouts")
	f.StringVar(&so.names, "names", "", "comma-separated field names")
	f.StringArrayVar(&so.known, "known", nil, "column=bits of a column known to hold binary words (repeatable)")
	f.StringVarP(&so.output, "output", "o", "", "output file, .csv or .xlsx (default: <input>_sliced.<ext>)")
	f.IntVar(&so.workers, "workers", 0, "goroutines slicing rows (default: 8)")
	cmd.MarkFlagRequired("column")
	cmd.MarkFlagsMutuallyExclusive("widths", "uniform", "layout")
	cmd.MarkFlagsOneRequired("widths", "uniform", "layout")
	return cmd
}

func runSlice(cmd *cobra.Command, opts *rootOptions, so *sliceOptions, input string) error {
	known, err := core.ParseKnown(so.known)
	if err != nil {
		return err
	}
	layouts, err := core.LoadLayoutsFile(opts.layouts)
	if err != nil {
		return err
	}

	out := so.output
	if out == "" {
		out = defaultOutput(input)
	}
	paths, err := outputPaths(out)
	if err != nil {
		return err
	}
	if err := checkOverwrite(input, paths); err != nil {
		return err
	}

	tbl, err := table.ReadFile(input, opts.readOptions())
	if err != nil {
		return err
	}

	svc := core.NewService(core.Options{Workers: so.workers, Layouts: layouts})
	plan, err := svc.Plan(tbl, core.PlanRequest{
		Column:    so.column,
		ChunkSize: so.uniform,
		Widths:    so.widths,
		Layout:    so.layout,
		Names:     core.SplitNames(so.names),
		Known:     known,
	})
	if err != nil {
		return err
	}

	result, err := svc.Slice(cmd.Context(), tbl, plan)
	if err != nil {
		return err
	}

	written, err := writeResult(paths, &table.Table{Name: tbl.Name, Header: result.Header, Rows: result.Rows})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "column %q: %s, %d bits\n", plan.Column, plan.Info.Class, plan.BitLength())
	fmt.Fprintf(w, "fields: %s\n", strings.Join(plan.Names, ", "))
	st := result.Stats
	fmt.Fprintf(w, "rows: %d (hex %d, binary %d, invalid %d, absent %d, overflow %d)\n",
		st.Rows, st.Hex, st.Binary, st.Invalid, st.Absent, st.Overflow)
	for _, path := range written {
		fmt.Fprintf(w, "wrote %s\n", path)
	}
	return nil
}

// outputPaths returns path plus, for an .xlsx output, the .csv written
// next to it.
func outputPaths(path string) ([]string, error) {
	format, err := table.FormatFromName(path)
	if err != nil {
		return nil, err
	}
	paths := []string{path}
	if format == table.XLSX {
		paths = append(paths, strings.TrimSuffix(path, filepath.Ext(path))+".csv")
	}
	return paths, nil
}

// checkOverwrite fails when any output path names the input file.
func checkOverwrite(input string, outputs []string) error {
	in, err := filepath.Abs(input)
	if err != nil {
		return err
	}
	inInfo, inErr := os.Stat(input)

	for _, out := range outputs {
		abs, err := filepath.Abs(out)
		if err != nil {
			return err
		}
		same := abs == in
		if !same && inErr == nil {
			if outInfo, err := os.Stat(out); err == nil {
				same = os.SameFile(inInfo, outInfo)
			}
		}
		if same {
			return fmt.Errorf("output %s would overwrite the input file %s", out, input)
		}
	}
	return nil
}

// writeResult writes t to every path in order.
func writeResult(paths []string, t *table.Table) ([]string, error) {
	written := make([]string, 0, len(paths))
	for _, path := range paths {
		if err := table.WriteFile(path, t); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// defaultOutput turns "dir/regs.xlsx" into "dir/regs_sliced.xlsx".
func defaultOutput(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_sliced" + ext
}

// =============================================================================
// layouts
// =============================================================================

func newLayoutsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "layouts",
		Short: "List the layouts in the --layouts file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			layouts, err := core.LoadLayoutsFile(opts.layouts)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tBITS\tFIELDS\tDESCRIPTION")
			for _, l := range layouts.All() {
				fields := make([]string, len(l.Fields))
				for i, f := range l.Fields {
					fields[i] = fmt.Sprintf("%s:%d", f.Name, f.Bits)
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", l.Name, l.TotalBits(), strings.Join(fields, " "), l.Description)
			}
			return tw.Flush()
		},
	}
}
