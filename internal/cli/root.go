// Package cli implements the htmlimage command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	htmlimage "github.com/porticus-lab/go-html-image"
	"github.com/porticus-lab/go-html-image/internal/logging"
)

// renderer is the part of [htmlimage.Renderer] the command uses.
type renderer interface {
	RenderTo(ctx context.Context, source string, sink htmlimage.Sink, format htmlimage.Format) error
	Close() error
}

// newRenderer is the renderer factory. It's a variable so tests can
// substitute a fake and observe whether a renderer was built at all.
var newRenderer = func(opts ...htmlimage.Option) (renderer, error) {
	r, err := htmlimage.NewRenderer(opts...)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// newLogger builds the command's logger.
var newLogger = logging.New

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "htmlimage <url> <output_file> <format>",
		Short: "Render a web page to a PNG or SVG image.",
		Long: `htmlimage loads a document in headless Chrome and captures it as a
PNG bitmap or an SVG drawing. Format is "png" or "svg" (case-insensitive).

Every flag can also be set in a config file or through an HTMLIMAGE_*
environment variable, e.g. HTMLIMAGE_WIDTH=800.`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 3 {
				return usageErrorf("expected 3 arguments (url, output file, format), got %d", len(args))
			}
			return nil
		},
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          runRender,
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})
	registerFlags(cmd.Flags())
	return cmd
}

func runRender(cmd *cobra.Command, args []string) error {
	source, output := args[0], args[1]

	format, err := htmlimage.ParseFormat(args[2])
	if err != nil {
		return err
	}

	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	cfg, err := Load(path, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	opts := append(cfg.Options(), htmlimage.WithLogger(logger))
	if cfg.UserStylesheet != "" {
		css, err := os.ReadFile(cfg.UserStylesheet)
		if err != nil {
			return fmt.Errorf("reading user stylesheet: %w", err)
		}
		opts = append(opts, htmlimage.WithUserStyleSheet(string(css)))
	}

	r, err := newRenderer(opts...)
	if err != nil {
		return fmt.Errorf("starting renderer: %w", err)
	}
	defer r.Close()

	logger.Debug("rendering",
		zap.String("source", source),
		zap.String("output", output),
		zap.Stringer("format", format),
	)
	if err := r.RenderTo(cmd.Context(), source, htmlimage.FileSink(output), format); err != nil {
		return err
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Done.")
	return nil
}

// Run executes the command line args and returns the process exit code.
// Diagnostics go to stderr; stdout carries only help output.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		fmt.Fprint(stderr, cmd.UsageString())
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return ExitCode(err)
}

// Execute runs the command with the process arguments, cancelling the
// render on SIGINT or SIGTERM.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}
