// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package convertapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/tableconv/internal/bundler"
	"github.com/cardinalhq/tableconv/internal/convert"
	"github.com/cardinalhq/tableconv/internal/formats"
	"github.com/cardinalhq/tableconv/internal/scratch"
	"github.com/cardinalhq/tableconv/internal/sourceresolver"
)

// handleConvert serves POST /v1/convert/{pair}. A single item streams
// directly as the target format; multiple items stream as a zip with one
// entry per successful item plus a trailing manifest.
func (s *Service) handleConvert(w http.ResponseWriter, r *http.Request) {
	kind, err := convert.ParseKind(r.PathValue("pair"))
	if err != nil {
		writeRequestError(w, err)
		return
	}

	staged, err := s.parseConvertBody(r, kind.Source())
	if err != nil {
		writeRequestError(w, err)
		return
	}
	defer func() {
		for _, item := range staged {
			_ = item.Release()
		}
	}()

	if len(staged) == 1 {
		s.streamSingle(w, r, kind, staged[0])
		return
	}
	s.streamBundle(w, r, kind, staged)
}

// streamSingle primes the conversion first so every error still has a
// clean JSON response, then streams the output directly.
func (s *Service) streamSingle(w http.ResponseWriter, r *http.Request, kind convert.Kind, item *sourceresolver.Resolved) {
	if err := formats.Detect(item.Resource.Path(), kind.Source()); err != nil {
		status, code := statusAndCodeForError(err)
		writeAPIError(w, status, code, fmt.Sprintf("%s: %v", item.Filename, err))
		return
	}

	conv, err := convert.New(kind, item.Resource.Path(), s.scratch, s.convertOptions())
	if err != nil {
		writeRequestError(w, err)
		return
	}
	defer func() { _ = conv.Close() }()

	if err := conv.Prime(r.Context()); err != nil {
		status, code := conversionStatusAndCode(err)
		writeAPIError(w, status, code, fmt.Sprintf("%s: %v", item.Filename, err))
		return
	}

	name := outputName(item.Filename, kind.Target())
	w.Header().Set("Content-Type", kind.Target().MediaType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))

	if err := conv.Run(r.Context(), w); err != nil {
		// Headers are gone; all we can do is log and drop the connection.
		slog.Warn("conversion stream aborted",
			slog.String("kind", kind.String()),
			slog.String("input", item.Filename),
			slog.Any("error", err))
	}
}

// bundleJob is one finished item in a multi-item request.
type bundleJob struct {
	name   string
	output *scratch.Resource
	err    error
}

// streamBundle converts every item concurrently into staged outputs and
// streams the zip entries in request order as each job lands. The
// archive is always HTTP 200; per-item failures appear only in the
// manifest.
func (s *Service) streamBundle(w http.ResponseWriter, r *http.Request, kind convert.Kind, staged []*sourceresolver.Resolved) {
	results := make([]chan bundleJob, len(staged))
	for i := range results {
		results[i] = make(chan bundleJob, 1)
	}

	g, gctx := errgroup.WithContext(r.Context())
	g.SetLimit(s.cfg.Limits.MaxItems)
	for i, item := range staged {
		g.Go(func() error {
			results[i] <- s.runBundleJob(gctx, kind, item)
			return nil
		})
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", bundler.ArchiveName))
	w.WriteHeader(http.StatusOK)

	b := bundler.New(w)
	manifest := make([]bundler.ManifestEntry, 0, len(staged))
	streamBroken := false

	for i, item := range staged {
		job := <-results[i]
		if job.err != nil {
			_, code := conversionStatusAndCode(job.err)
			manifest = append(manifest, bundler.ManifestEntry{
				Source:  item.Filename,
				Status:  "failed",
				Error:   string(code),
				Message: job.err.Error(),
			})
			continue
		}

		entryName := job.name
		if !streamBroken {
			finalName, err := s.copyBundleEntry(b, job)
			if err != nil {
				slog.Warn("bundle stream aborted",
					slog.String("kind", kind.String()),
					slog.Any("error", err))
				streamBroken = true
			} else {
				entryName = finalName
			}
		}
		_ = job.output.Release()
		manifest = append(manifest, bundler.ManifestEntry{
			Source: item.Filename,
			Output: entryName,
			Status: "ok",
		})
	}

	_ = g.Wait()

	if streamBroken {
		_ = b.Close()
		return
	}
	if err := b.WriteManifest(manifest); err != nil {
		slog.Warn("failed to finalize archive", slog.Any("error", err))
	}
}

// copyBundleEntry streams one staged output into the archive and returns
// the (possibly deduplicated) entry name.
func (s *Service) copyBundleEntry(b *bundler.Bundler, job bundleJob) (string, error) {
	entry, name, err := b.AddEntry(job.name)
	if err != nil {
		return "", err
	}

	f, err := job.output.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, s.cfg.Convert.ChunkBytes)
	if _, err := io.CopyBuffer(entry, f, buf); err != nil {
		return "", err
	}
	return name, nil
}

// runBundleJob converts one item into a staged output resource.
func (s *Service) runBundleJob(ctx context.Context, kind convert.Kind, item *sourceresolver.Resolved) bundleJob {
	if err := formats.Detect(item.Resource.Path(), kind.Source()); err != nil {
		return bundleJob{err: err}
	}

	conv, err := convert.New(kind, item.Resource.Path(), s.scratch, s.convertOptions())
	if err != nil {
		return bundleJob{err: err}
	}
	defer func() { _ = conv.Close() }()

	if err := conv.Prime(ctx); err != nil {
		return bundleJob{err: err}
	}

	output, err := s.scratch.Acquire(kind.Target().OutputSuffix())
	if err != nil {
		return bundleJob{err: err}
	}

	f, err := output.Create()
	if err != nil {
		_ = output.Release()
		return bundleJob{err: err}
	}

	runErr := conv.Run(ctx, f)
	if cerr := f.Close(); runErr == nil {
		runErr = cerr
	}
	if runErr != nil {
		_ = output.Release()
		return bundleJob{err: runErr}
	}

	return bundleJob{name: outputName(item.Filename, kind.Target()), output: output}
}

func (s *Service) convertOptions() convert.Options {
	return convert.Options{
		BatchRows:  s.cfg.Convert.BatchRows,
		SampleRows: s.cfg.Convert.SampleRows,
	}
}

// outputName swaps the source extension for the target suffix.
func outputName(filename string, target formats.Format) string {
	base := path.Base(filename)
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "" {
		stem = "converted"
	}
	return stem + target.OutputSuffix()
}
