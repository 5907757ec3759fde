// Command bitslice slices packed hex or binary words in CSV/XLSX columns
// into named bit fields from the command line.
//
// Usage:
//
//	bitslice classify 0xDEADBEEF 101100111
//	bitslice names reg --widths 8,8,16
//	bitslice inspect registers.csv
//	bitslice slice registers.csv --column reg --widths 16,16 -o out.xlsx
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/BitSlicer/internal/core"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// reportError prints err and, for known failures, the user message with its
// support code.
func reportError(w io.Writer, err error) {
	fmt.Fprintln(w, "Error:", err)
	if core.IsUserFacing(err) {
		fmt.Fprintln(w, core.FormatUserError(err))
	}
}
