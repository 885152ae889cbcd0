package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/davbundle/internal/client/bundle"
	"github.com/dmitrijs2005/davbundle/internal/client/client"
	"github.com/dmitrijs2005/davbundle/internal/client/config"
)

// Exit codes returned by Run.
const (
	ExitOK      = 0
	ExitPartial = 1 // the bundle was accepted but some files failed
	ExitFailure = 2
)

type Uploader interface {
	Upload(ctx context.Context, files []bundle.File) ([]client.Result, error)
}

type App struct {
	config      *config.Config
	out         io.Writer
	newUploader func(token string) Uploader
}

func NewApp(c *config.Config) (*App, error) {
	if c.User == "" {
		return nil, errors.New("user is required (-u)")
	}
	return &App{
		config: c,
		out:    os.Stdout,
		newUploader: func(token string) Uploader {
			return client.New(c.ServerURL, c.User, token, c.RequestTimeout)
		},
	}, nil
}

// Run uploads the files named by targets ("local" or "local=remote") as a
// single bundle and reports each outcome.
func (a *App) Run(ctx context.Context, targets []string) int {
	if len(targets) == 0 {
		fmt.Fprintln(a.out, "nothing to upload")
		return ExitFailure
	}

	files := make([]bundle.File, 0, len(targets))
	for _, t := range targets {
		local, remote := ParseTarget(t)
		f, fh, err := bundle.OpenLocal(local, remote)
		if err != nil {
			fmt.Fprintf(a.out, "cannot open %s: %v\n", local, err)
			return ExitFailure
		}
		defer fh.Close()
		files = append(files, f)
	}

	token := a.config.AccessToken
	if token == "" {
		var err error
		if token, err = GetToken(a.out); err != nil {
			fmt.Fprintf(a.out, "cannot read token: %v\n", err)
			return ExitFailure
		}
	}

	results, err := a.newUploader(token).Upload(ctx, files)
	if err != nil {
		switch {
		case errors.Is(err, client.ErrUnauthorized):
			fmt.Fprintln(a.out, "access token rejected")
		case errors.Is(err, client.ErrUnavailable):
			fmt.Fprintf(a.out, "server unavailable: %v\n", err)
		default:
			fmt.Fprintf(a.out, "upload failed: %v\n", err)
		}
		return ExitFailure
	}

	failed := 0
	for _, r := range results {
		if r.OK {
			fmt.Fprintf(a.out, "OK    %s  %d bytes  etag %s\n", r.Path, r.Size, r.ETag)
			continue
		}
		failed++
		fmt.Fprintf(a.out, "FAIL  %s  %s\n", r.Path, r.Message)
	}
	fmt.Fprintf(a.out, "%d of %d files stored\n", len(results)-failed, len(results))

	if failed > 0 {
		return ExitPartial
	}
	return ExitOK
}
