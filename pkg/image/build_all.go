package image

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/sync/errgroup"

	"github.com/cat21/botbox/pkg/docker/command"
	"github.com/cat21/botbox/pkg/util"
	"github.com/cat21/botbox/pkg/util/console"
)

// failedLogTail bounds how much of a concurrent build's log is kept for reporting.
const failedLogTail = 256 * 1024

type BuildAllOptions struct {
	BuildOptions
	// Parallel caps concurrent builds. Zero or one builds sequentially with live output.
	Parallel int
	// ShowProgress renders a spinner per target instead of the build log.
	ShowProgress bool
}

// BuildAll builds independent targets, concurrently when Parallel allows. Each target's
// own build stays sequential. The first failure cancels the remaining builds, and the
// failed build's buffered log is written to stderr.
func BuildAll(ctx context.Context, dockerCommand command.Command, targets []string, opts BuildAllOptions) ([]*BuildResult, error) {
	if opts.Tag != "" && len(targets) > 1 {
		return nil, fmt.Errorf("--tag can only be used when building a single target, got %d", len(targets))
	}

	results := make([]*BuildResult, len(targets))
	if opts.Parallel <= 1 || len(targets) == 1 {
		for i, name := range targets {
			result, err := Build(ctx, dockerCommand, name, opts.BuildOptions)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			results[i] = result
		}
		return results, nil
	}

	var progress *mpb.Progress
	if opts.ShowProgress {
		progress = mpb.NewWithContext(ctx, mpb.WithOutput(console.ErrWriter()), mpb.WithWidth(40))
	}

	var failedOutput sync.Once
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallel)
	for i, name := range targets {
		bar := addSpinner(progress, name)
		g.Go(func() error {
			buf := util.NewTailBuffer(failedLogTail)
			buildOpts := opts.BuildOptions
			buildOpts.Output = buf
			// The daemon log is buffered, so plain output keeps it free of cursor movement.
			if buildOpts.ProgressOutput == "auto" {
				buildOpts.ProgressOutput = "plain"
			}

			result, err := Build(ctx, dockerCommand, name, buildOpts)
			if err != nil {
				if bar != nil {
					bar.Abort(false)
				}
				if ctx.Err() == nil {
					failedOutput.Do(func() { writeFailedOutput(progress, name, buf) })
				}
				return fmt.Errorf("%s: %w", name, err)
			}
			if bar != nil {
				bar.Increment()
			}
			results[i] = result
			return nil
		})
	}

	err := g.Wait()
	if progress != nil {
		progress.Wait()
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

func addSpinner(progress *mpb.Progress, name string) *mpb.Bar {
	if progress == nil {
		return nil
	}
	return progress.New(1,
		mpb.SpinnerStyle(),
		mpb.PrependDecorators(decor.Name(name, decor.WCSyncSpaceR)),
		mpb.AppendDecorators(
			decor.OnAbort(
				decor.OnComplete(decor.Elapsed(decor.ET_STYLE_GO), "done"),
				"failed",
			),
		),
		mpb.BarFillerClearOnComplete(),
	)
}

// writeFailedOutput prints a failed build's log above the spinners, if there are any.
func writeFailedOutput(progress *mpb.Progress, name string, buf *util.TailBuffer) {
	if buf.Len() == 0 {
		return
	}
	var out io.Writer = console.ErrWriter()
	if progress != nil {
		out = progress
	}
	_, _ = fmt.Fprintf(out, "Build log for %s:\n", name)
	if dropped := buf.Dropped(); dropped > 0 {
		_, _ = fmt.Fprintf(out, "... (%d earlier bytes omitted)\n", dropped)
	}
	_, _ = out.Write(buf.Bytes())
}
