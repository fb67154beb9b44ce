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

// Package sourceresolver stages request inputs onto local disk. An input
// is either an uploaded stream or a remote URL; both land as scratch
// files with the per-item size limit enforced during the copy, never
// after it.
package sourceresolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/tableconv/internal/scratch"
)

var (
	// ErrSourceTooLarge indicates an input exceeding the per-item byte limit.
	ErrSourceTooLarge = errors.New("source exceeds size limit")

	// ErrInvalidURL indicates a URL that is not fetchable http(s).
	ErrInvalidURL = errors.New("invalid source URL")

	// ErrSourceRejected indicates the remote server answered with a
	// non-success status.
	ErrSourceRejected = errors.New("source URL rejected")

	// ErrSourceUnreachable indicates a transport-level fetch failure.
	ErrSourceUnreachable = errors.New("source URL unreachable")
)

// Item is one requested input: an upload stream or a URL, never both.
type Item struct {
	Filename string
	Upload   io.Reader
	URL      string
}

// Resolved is a staged input ready for conversion.
type Resolved struct {
	Resource *scratch.Resource
	Filename string
	Size     int64
}

// Release drops the staged file.
func (r *Resolved) Release() error {
	if r == nil || r.Resource == nil {
		return nil
	}
	return r.Resource.Release()
}

// Resolver stages inputs into a scratch manager.
type Resolver struct {
	Scratch      *scratch.Manager
	MaxItemBytes int64
	Timeout      time.Duration
	MaxRedirects int

	// Client overrides the fetch client, mainly for tests.
	Client *http.Client
}

func (r *Resolver) httpClient() *http.Client {
	if r.Client != nil {
		return r.Client
	}
	maxRedirects := r.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 5
	}
	return &http.Client{
		Timeout: r.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

// Resolve stages one item.
func (r *Resolver) Resolve(ctx context.Context, item Item) (*Resolved, error) {
	if item.Upload != nil {
		return r.ResolveUpload(ctx, item.Filename, item.Upload)
	}
	return r.ResolveURL(ctx, item.URL)
}

// ResolveUpload copies an uploaded stream to a scratch file, failing
// mid-copy as soon as the size limit is crossed.
func (r *Resolver) ResolveUpload(ctx context.Context, filename string, src io.Reader) (*Resolved, error) {
	res, err := r.Scratch.Acquire(path.Ext(filename))
	if err != nil {
		return nil, err
	}

	size, err := r.stageCopy(ctx, res, src)
	if err != nil {
		_ = res.Release()
		return nil, fmt.Errorf("upload %q: %w", filename, err)
	}

	return &Resolved{Resource: res, Filename: filename, Size: size}, nil
}

// ResolveURL fetches a remote file to a scratch file. Only http and
// https URLs are accepted; the response body is subject to the same
// size limit as uploads, with a Content-Length precheck so oversized
// declared bodies never start downloading.
func (r *Resolver) ResolveURL(ctx context.Context, rawURL string) (*Resolved, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	resp, err := r.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnreachable, rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrSourceRejected, rawURL, resp.StatusCode)
	}

	if r.MaxItemBytes > 0 && resp.ContentLength > r.MaxItemBytes {
		return nil, fmt.Errorf("%w: %s declares %d bytes", ErrSourceTooLarge, rawURL, resp.ContentLength)
	}

	filename := path.Base(u.Path)
	if filename == "" || filename == "." || filename == "/" {
		filename = "download"
	}

	res, err := r.Scratch.Acquire(path.Ext(filename))
	if err != nil {
		return nil, err
	}

	size, err := r.stageCopy(ctx, res, resp.Body)
	if err != nil {
		_ = res.Release()
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	return &Resolved{Resource: res, Filename: filename, Size: size}, nil
}

// stageCopy writes src to the resource, stopping with ErrSourceTooLarge
// the moment the limit is exceeded.
func (r *Resolver) stageCopy(ctx context.Context, res *scratch.Resource, src io.Reader) (int64, error) {
	f, err := res.Create()
	if err != nil {
		return 0, err
	}

	reader := src
	if r.MaxItemBytes > 0 {
		reader = io.LimitReader(src, r.MaxItemBytes+1)
	}

	size, err := io.Copy(f, contextReader{ctx: ctx, r: reader})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}
	if r.MaxItemBytes > 0 && size > r.MaxItemBytes {
		return 0, ErrSourceTooLarge
	}
	return size, nil
}

// contextReader aborts a long copy when the request context ends.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// ResolveAll stages every item concurrently, at most parallelism at a
// time. On any failure the already-staged files are released and the
// first error returns; on success the caller owns every staged file.
func (r *Resolver) ResolveAll(ctx context.Context, items []Item, parallelism int) ([]*Resolved, error) {
	if parallelism <= 0 {
		parallelism = len(items)
	}

	resolved := make([]*Resolved, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, item := range items {
		g.Go(func() error {
			staged, err := r.Resolve(gctx, item)
			if err != nil {
				return err
			}
			resolved[i] = staged
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, staged := range resolved {
			_ = staged.Release()
		}
		return nil, err
	}
	return resolved, nil
}
