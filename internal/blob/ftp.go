package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/textproto"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures the FTP-backed store.
type FTPOptions struct {
	Host     string // host or host:port; port defaults to 21
	User     string
	Password string
	Root     string // remote directory all keys live under
	Timeout  time.Duration
}

// FTPStore implements Store against the constructor's FTP server, where the
// scanned vale images are uploaded from the field. One connection per
// operation: the batch is sequential and FTP control sessions are cheap
// compared to the oracle calls they bracket.
type FTPStore struct {
	opts FTPOptions
}

// NewFTP creates an FTP store. Anonymous login is used when User is empty.
func NewFTP(opts FTPOptions) *FTPStore {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.User == "" {
		opts.User = "anonymous"
		opts.Password = "anonymous@"
	}
	if _, _, err := net.SplitHostPort(opts.Host); err != nil {
		opts.Host = net.JoinHostPort(opts.Host, "21")
	}
	return &FTPStore{opts: opts}
}

func (s *FTPStore) remotePath(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return path.Join("/", s.opts.Root, key), nil
}

func (s *FTPStore) connect(ctx context.Context) (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(s.opts.Host,
		ftp.DialWithTimeout(s.opts.Timeout),
		ftp.DialWithContext(ctx),
	)
	if err != nil {
		return nil, eris.Wrap(err, "ftp store: dial")
	}
	if err := conn.Login(s.opts.User, s.opts.Password); err != nil {
		conn.Quit()
		return nil, eris.Wrap(err, "ftp store: login")
	}
	return conn, nil
}

// withConn runs fn on a fresh logged-in connection and always quits it.
func (s *FTPStore) withConn(ctx context.Context, fn func(conn *ftp.ServerConn) error) error {
	conn, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Quit()
	return fn(conn)
}

func (s *FTPStore) Exists(ctx context.Context, key string) (bool, error) {
	remote, err := s.remotePath(key)
	if err != nil {
		return false, err
	}
	var exists bool
	err = s.withConn(ctx, func(conn *ftp.ServerConn) error {
		if _, sizeErr := conn.FileSize(remote); sizeErr == nil {
			exists = true
		}
		return nil
	})
	return exists, err
}

func (s *FTPStore) retrieve(ctx context.Context, key string) ([]byte, error) {
	remote, err := s.remotePath(key)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = s.withConn(ctx, func(conn *ftp.ServerConn) error {
		resp, retrErr := conn.Retr(remote)
		if retrErr != nil {
			if isFTPNotFound(retrErr) {
				return eris.Wrapf(ErrNotFound, "ftp store: %s", key)
			}
			return eris.Wrapf(retrErr, "ftp store: retrieve %s", key)
		}
		defer resp.Close()
		data, retrErr = io.ReadAll(resp)
		if retrErr != nil {
			return eris.Wrapf(retrErr, "ftp store: read %s", key)
		}
		return nil
	})
	return data, err
}

func (s *FTPStore) store(ctx context.Context, key string, r io.Reader) error {
	remote, err := s.remotePath(key)
	if err != nil {
		return err
	}
	return s.withConn(ctx, func(conn *ftp.ServerConn) error {
		mkdirAll(conn, path.Dir(remote))
		if err := conn.Stor(remote, r); err != nil {
			return eris.Wrapf(err, "ftp store: store %s", key)
		}
		return nil
	})
}

// mkdirAll creates each directory segment, ignoring "already exists" replies.
func mkdirAll(conn *ftp.ServerConn, dir string) {
	segments := strings.Split(strings.Trim(dir, "/"), "/")
	cur := ""
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		cur = cur + "/" + seg
		if err := conn.MakeDir(cur); err != nil {
			zap.L().Debug("ftp store: mkdir", zap.String("dir", cur), zap.Error(err))
		}
	}
}

func (s *FTPStore) ReadJSON(ctx context.Context, key string, v any) error {
	data, err := s.retrieve(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "ftp store: decode %s", key)
	}
	return nil
}

func (s *FTPStore) WriteJSON(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "ftp store: encode %s", key)
	}
	return s.store(ctx, key, bytes.NewReader(data))
}

func (s *FTPStore) Download(ctx context.Context, key, localDest string) error {
	data, err := s.retrieve(ctx, key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(localDest, data, 0o644); err != nil {
		return eris.Wrapf(err, "ftp store: write local %s", localDest)
	}
	return nil
}

func (s *FTPStore) Upload(ctx context.Context, localSrc, key string) error {
	f, err := os.Open(localSrc)
	if err != nil {
		return eris.Wrapf(err, "ftp store: open local %s", localSrc)
	}
	defer f.Close()
	return s.store(ctx, key, f)
}

func (s *FTPStore) List(ctx context.Context, prefix string) ([]string, error) {
	key, err := cleanKey(strings.TrimSuffix(prefix, "/"))
	if err != nil {
		return nil, err
	}
	remote := path.Join("/", s.opts.Root, key)

	var keys []string
	err = s.withConn(ctx, func(conn *ftp.ServerConn) error {
		entries, listErr := conn.List(remote)
		if listErr != nil {
			if isFTPNotFound(listErr) {
				return nil
			}
			return eris.Wrapf(listErr, "ftp store: list %s", prefix)
		}
		for _, e := range entries {
			if e.Type != ftp.EntryTypeFile {
				continue
			}
			keys = append(keys, key+"/"+e.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FTPStore) Close() error { return nil }

// isFTPNotFound matches the 550 reply servers send for missing files.
func isFTPNotFound(err error) bool {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return tpErr.Code == ftp.StatusFileUnavailable
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such file")
}
