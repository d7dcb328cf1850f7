// Package pipeline loads an existing document, obtains a freshly generated
// one, reconciles the two and writes the result, recording every run.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/yourorg/specsync/internal/config"
	"github.com/yourorg/specsync/internal/openapi"
	"github.com/yourorg/specsync/internal/store"
	"github.com/yourorg/specsync/pkg/types"
)

// Source produces the freshly generated document.
type Source interface {
	Document(ctx context.Context) (openapi.Document, error)
}

// FileSource reads a pre-generated document from a file.
type FileSource struct {
	Fs   afero.Fs
	Path string
}

func (s FileSource) Document(ctx context.Context) (openapi.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return openapi.Load(s.Fs, s.Path)
}

// Result is the outcome of one target.
type Result struct {
	Run    *types.Run
	Report *openapi.Report
}

// Runner executes reconciliations. Store, Logger and Metrics are optional.
type Runner struct {
	Fs      afero.Fs
	Store   store.Store
	Source  Source
	Logger  *slog.Logger
	Metrics *Metrics
	// Service names the generated API in log lines.
	Service string
	// Force disables the up-to-date check.
	Force bool
	// Concurrency bounds ReconcileAll; values below 1 mean 1.
	Concurrency int
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (r *Runner) fs() afero.Fs {
	if r.Fs != nil {
		return r.Fs
	}
	return afero.NewOsFs()
}

// Reconcile reconciles the document at existingPath with the live source and
// writes the result to outputPath.
func (r *Runner) Reconcile(ctx context.Context, existingPath, outputPath string) (*Result, error) {
	return r.Run(ctx, config.Target{Name: "default", Existing: existingPath, Output: outputPath})
}

// Run reconciles one target. The returned Result is never nil; on failure its
// run carries the failed status and message.
func (r *Runner) Run(ctx context.Context, t config.Target) (*Result, error) {
	start := time.Now()
	// Run history is keyed by output path.
	t.Existing = cleanPath(t.Existing)
	t.Output = cleanPath(t.Output)
	t.New = cleanPath(t.New)
	run := &types.Run{
		Target:       t.Name,
		ExistingPath: t.Existing,
		OutputPath:   t.Output,
	}
	report, err := r.run(ctx, t, run)
	run.Duration = time.Since(start)
	if err != nil {
		run.Status = types.RunFailed
		run.ErrorMsg = err.Error()
	}

	if r.Store != nil {
		if rerr := r.Store.CreateRun(run); rerr != nil {
			r.logger().Warn("record run failed", "target", t.Name, "error", rerr)
			if err == nil {
				err = fmt.Errorf("record run: %w", rerr)
			}
		}
	}
	r.Metrics.observe(run)

	log := r.logger().With("target", t.Name, "existing", t.Existing, "output", t.Output)
	switch run.Status {
	case types.RunFailed:
		log.Error("reconcile failed", "error", run.ErrorMsg)
	case types.RunUnchanged:
		log.Info("output up to date", "run", run.ID)
	default:
		log.Info("reconciled",
			"service", r.Service,
			"run", run.ID,
			"paths_added", run.PathsAdded,
			"paths_removed", run.PathsRemoved,
			"extensions_preserved", run.ExtensionsPreserved,
			"bytes", run.BytesWritten,
		)
	}
	return &Result{Run: run, Report: report}, err
}

func (r *Runner) run(ctx context.Context, t config.Target, run *types.Run) (*openapi.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fs := r.fs()

	raw, err := afero.ReadFile(fs, t.Existing)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &openapi.MissingInputError{Path: t.Existing, Cause: err}
		}
		return nil, fmt.Errorf("read %s: %w", t.Existing, err)
	}
	existing, err := openapi.Decode(raw, t.Existing)
	if err != nil {
		return nil, err
	}

	src, err := r.sourceFor(t)
	if err != nil {
		return nil, err
	}
	generated, err := src.Document(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate document: %w", err)
	}
	if err := openapi.CheckShape(generated); err != nil {
		var mde *openapi.MalformedDocumentError
		if errors.As(err, &mde) && mde.Source == "" {
			mde.Source = "generated document"
		}
		return nil, err
	}
	canonical, err := openapi.Encode(generated, openapi.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("encode generated document: %w", err)
	}
	run.InputHash = inputHash(raw, canonical)

	if !r.Force {
		if last, ok := r.upToDate(fs, t.Output, run.InputHash); ok {
			run.Status = types.RunUnchanged
			run.OutputHash = last.OutputHash
			return &openapi.Report{}, nil
		}
	}

	merged, report := openapi.Reconcile(existing, generated)
	data, err := openapi.Encode(merged, openapi.FormatFor(t.Output))
	if err != nil {
		return nil, &openapi.WriteFailureError{Path: t.Output, Cause: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := openapi.WriteFile(fs, t.Output, data); err != nil {
		return nil, err
	}

	run.Status = types.RunOK
	run.OutputHash = hashBytes(data)
	run.BytesWritten = int64(len(data))
	run.PathsAdded = len(report.PathsAdded)
	run.PathsRemoved = len(report.PathsRemoved)
	run.ExtensionsPreserved = report.ExtensionsPreserved
	return report, nil
}

func (r *Runner) sourceFor(t config.Target) (Source, error) {
	if t.New != "" {
		return FileSource{Fs: r.fs(), Path: t.New}, nil
	}
	if r.Source == nil {
		return nil, errors.New("no document source configured")
	}
	return r.Source, nil
}

// upToDate reports whether the last successful run for output saw the same
// inputs and the file on disk is still the one it wrote.
func (r *Runner) upToDate(fs afero.Fs, output, inHash string) (*types.Run, bool) {
	if r.Store == nil {
		return nil, false
	}
	last, err := r.Store.LastSuccessfulRun(output)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.logger().Warn("lookup last run", "output", output, "error", err)
		}
		return nil, false
	}
	if last.InputHash != inHash || last.OutputHash == "" {
		return nil, false
	}
	current, err := afero.ReadFile(fs, output)
	if err != nil {
		return nil, false
	}
	return last, hashBytes(current) == last.OutputHash
}

func cleanPath(p string) string {
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}

func inputHash(existing, generated []byte) string {
	h := sha256.New()
	h.Write(existing)
	h.Write([]byte{0})
	h.Write(generated)
	return hex.EncodeToString(h.Sum(nil))
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
