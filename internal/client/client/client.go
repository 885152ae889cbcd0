package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/davbundle/internal/client/bundle"
	"github.com/dmitrijs2005/davbundle/internal/common"
)

// Client uploads bundles into one user's files home.
type Client struct {
	baseURL string
	user    string
	token   string
	http    *http.Client
}

func New(baseURL, user, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		user:    user,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// HomeURL is the endpoint bundles are posted to.
func (c *Client) HomeURL() string {
	return c.baseURL + "/remote.php/dav/files/" + url.PathEscape(c.user)
}

// Ping checks that the server answers.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// Upload sends files as one bundle and returns a result per file, in the
// order the server processed them. A rejected bundle is a *ServerError.
func (c *Client) Upload(ctx context.Context, files []bundle.File) ([]Result, error) {
	pr, pw := io.Pipe()
	defer pr.Close()

	bw := bundle.NewWriter(pw)
	writeDone := make(chan error, 1)
	go func() {
		err := writeAll(bw, files)
		pw.CloseWithError(err)
		writeDone <- err
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.HomeURL(), pr)
	if err != nil {
		_ = pr.Close()
		<-writeDone
		return nil, err
	}
	req.Header.Set("Content-Type", bw.ContentType())
	req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		_ = pr.Close()
		if werr := <-writeDone; werr != nil && !errors.Is(werr, io.ErrClosedPipe) {
			return nil, fmt.Errorf("write bundle: %w", werr)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMultiStatus {
		_ = pr.Close()
		<-writeDone
		return nil, decodeError(resp.StatusCode, resp.Body)
	}

	if werr := <-writeDone; werr != nil {
		return nil, fmt.Errorf("write bundle: %w", werr)
	}
	return decodeMultistatus(resp.Body)
}

func writeAll(bw *bundle.Writer, files []bundle.File) error {
	for _, f := range files {
		if err := bw.WriteFile(f); err != nil {
			return err
		}
	}
	return bw.Close()
}
