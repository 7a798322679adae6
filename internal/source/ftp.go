// Package source adapts the Bureau of Meteorology anonymous FTP server to the
// imagery.Source interface.
//
// Frame basenames on the server embed a fixed-width, zero-padded
// YYYYMMDDHHmm timestamp. Listings are returned in server order; callers
// validate names against the frame patterns before sorting them.
package source

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-imagery/internal/imagery"
	"github.com/i474232898/weather-imagery/internal/logging"
)

// DefaultAddr is the public BOM FTP endpoint.
const DefaultAddr = "ftp.bom.gov.au:21"

const anonymous = "anonymous"

// conn is the subset of an FTP control connection a session uses.
type conn interface {
	NameList(path string) ([]string, error)
	Retrieve(path string) (io.ReadCloser, error)
	Quit() error
}

type dialFunc func(ctx context.Context) (conn, error)

// FTP opens anonymous sessions against one FTP host.
type FTP struct {
	addr string
	dial dialFunc
	log  zerolog.Logger
}

// NewFTP creates an FTP source for addr. dialTimeout bounds connection
// establishment only.
func NewFTP(addr string, dialTimeout time.Duration) *FTP {
	if addr == "" {
		addr = DefaultAddr
	}
	f := &FTP{
		addr: addr,
		log:  logging.Component("source").With().Str("addr", addr).Logger(),
	}
	f.dial = func(ctx context.Context) (conn, error) {
		opts := []ftp.DialOption{ftp.DialWithContext(ctx)}
		if dialTimeout > 0 {
			opts = append(opts, ftp.DialWithTimeout(dialTimeout))
		}
		c, err := ftp.Dial(addr, opts...)
		if err != nil {
			return nil, err
		}
		if err := c.Login(anonymous, anonymous); err != nil {
			_ = c.Quit()
			return nil, err
		}
		return serverConn{c}, nil
	}
	return f
}

// OpenSession connects and logs in anonymously. Sessions are not pooled.
func (f *FTP) OpenSession(ctx context.Context) (imagery.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := f.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", imagery.ErrSourceUnavailable, f.addr, err)
	}
	f.log.Debug().Msg("session opened")
	return &session{conn: c}, nil
}

type session struct {
	conn conn
}

func (s *session) ListFrames(ctx context.Context, dir, idPrefix, ext string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := s.conn.NameList(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", imagery.ErrTransfer, dir, err)
	}
	return FilterFrames(dir, entries, idPrefix, ext), nil
}

func (s *session) FetchBytes(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := s.conn.Retrieve(p)
	if err != nil {
		return nil, fmt.Errorf("%w: retr %s: %w", imagery.ErrTransfer, p, err)
	}

	data, readErr := io.ReadAll(r)
	// Close reads the transfer-complete reply, so a truncated download shows
	// up here even when the read itself succeeded.
	closeErr := r.Close()
	if readErr != nil {
		return nil, fmt.Errorf("%w: read %s: %w", imagery.ErrTransfer, p, readErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("%w: finish %s: %w", imagery.ErrTransfer, p, closeErr)
	}
	return data, nil
}

func (s *session) Close() error {
	return s.conn.Quit()
}

// FilterFrames keeps listing entries whose basename starts with idPrefix and
// ends with ext. Bare names are joined onto dir.
func FilterFrames(dir string, entries []string, idPrefix, ext string) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		base := path.Base(e)
		if !strings.HasPrefix(base, idPrefix) || !strings.HasSuffix(base, ext) {
			continue
		}
		if !strings.Contains(e, "/") {
			e = path.Join(dir, e)
		}
		out = append(out, e)
	}
	return out
}

type serverConn struct {
	*ftp.ServerConn
}

func (c serverConn) Retrieve(p string) (io.ReadCloser, error) {
	return c.Retr(p)
}
