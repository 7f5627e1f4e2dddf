package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"placekit/internal/blob"
	"placekit/internal/config"
	"placekit/internal/core"
	"placekit/internal/local"
	"placekit/internal/logging"
	"placekit/internal/remote"
)

const defaultConfigPath = "placekit.yaml"

var errRemoteDisabled = errors.New("remote sync is not configured (set remote.driver)")

type app struct {
	configPath string
	verbose    bool
	tracePath  string

	cfg       *config.Config
	logger    *zap.Logger
	ownLogger bool
	tracer    *core.JSONTraceTracer
	traceFile *os.File

	out    io.Writer
	errOut io.Writer
}

func newApp(out, errOut io.Writer) *app {
	return &app{out: out, errOut: errOut}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "placekit",
		Short:         "Placed-object store with local persistence and remote sync",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.teardown()
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", defaultConfigPath, "Config file (missing file uses defaults)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&a.tracePath, "trace", "", "Append JSON trace spans of store operations to this file")

	root.AddCommand(
		a.listCmd(),
		a.placeCmd(),
		a.moveCmd(),
		a.scaleCmd(),
		a.renameCmd(),
		a.removeCmd(),
		a.clearCmd(),
		a.pullCmd(),
		a.pushCmd(),
		a.syncCmd(),
		a.serveCmd(),
		a.configCmd(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	if a.logger == nil {
		logger, err := logging.New(cfg.Logging, a.verbose)
		if err != nil {
			return err
		}
		a.logger = logger
		a.ownLogger = true
	}
	if a.tracePath != "" {
		f, err := os.OpenFile(a.tracePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open trace file: %w", err)
		}
		a.traceFile = f
		a.tracer = core.NewJSONTracer(f)
	}
	return nil
}

func (a *app) teardown() {
	if a.traceFile != nil {
		_ = a.traceFile.Close()
		a.traceFile = nil
	}
	if a.ownLogger && a.logger != nil {
		_ = a.logger.Sync()
	}
}

// session is one opened collection, optionally mirrored to the remote.
type session struct {
	store   *core.PlacedObjectStore
	loadErr error
	closers []io.Closer
	app     *app
}

// open holds the local lock for the session's lifetime so the sync daemon
// never merges over a command's in-flight changes.
func (a *app) open(ctx context.Context, withRemote bool, extra ...core.Option) (*session, error) {
	lock, err := a.localLock()
	if err != nil {
		return nil, err
	}
	if lock != nil {
		if err := lock.Lock(ctx); err != nil {
			return nil, fmt.Errorf("wait for local collection: %w", err)
		}
	}
	s, err := a.openStore(ctx, withRemote, extra...)
	if err != nil {
		if lock != nil {
			_ = lock.Unlock()
		}
		return nil, err
	}
	if lock != nil {
		s.closers = append(s.closers, lock)
	}
	return s, nil
}

func (a *app) openStore(ctx context.Context, withRemote bool, extra ...core.Option) (*session, error) {
	blobs, err := blob.Open(ctx, a.cfg.LocalBlob())
	if err != nil {
		return nil, fmt.Errorf("open local blob store: %w", err)
	}
	timeout, err := a.cfg.SyncTimeout()
	if err != nil {
		return nil, err
	}
	opts := []core.Option{
		core.WithLogger(logging.NewAdapter(a.logger).Named("store")),
		core.WithCompression(a.cfg.Local.Compress),
		core.WithSyncTimeout(timeout),
		core.WithRecordType(a.cfg.Remote.RecordType),
	}
	if a.tracer != nil {
		opts = append(opts, core.WithTracer(a.tracer))
	}
	opts = append(opts, extra...)

	s := &session{
		store: core.NewPlacedObjectStore(local.New(blobs, a.cfg.Local.Key), opts...),
		app:   a,
	}
	s.loadErr = s.store.LoadLocal(ctx)

	if withRemote && a.cfg.RemoteEnabled() {
		rc := a.cfg.RemoteStore()
		rc.Logger = logging.NewAdapter(a.logger).Named("remote")
		records, closer, err := remote.Open(ctx, rc)
		if err != nil {
			_ = s.store.Close()
			return nil, fmt.Errorf("open remote store: %w", err)
		}
		s.closers = append(s.closers, closer)
		if err := s.store.EnableRemote(ctx, records); err != nil {
			s.close()
			return nil, err
		}
		if err := s.store.Flush(ctx); err != nil {
			s.close()
			return nil, err
		}
	}
	return s, nil
}

// localBlobPath returns the file backing the local collection when the
// filesystem blob backend is configured.
func (a *app) localBlobPath() (string, bool) {
	bc := a.cfg.LocalBlob()
	if bc.Driver != blob.DriverFilesystem && bc.Driver != "" {
		return "", false
	}
	key := a.cfg.Local.Key
	if key == "" {
		key = local.DefaultKey
	}
	root := bc.FSRoot
	if root == "" {
		root = "./placekit-data"
	}
	return filepath.Join(root, filepath.FromSlash(key)), true
}

// localLock returns the lock guarding the filesystem-backed local blob, or
// nil for other backends.
func (a *app) localLock() (*local.FileLock, error) {
	path, ok := a.localBlobPath()
	if !ok {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return local.NewFileLock(local.LockPath(path)), nil
}

// openWritable refuses to mutate a collection whose local blob could not be
// read, since the next save would replace it.
func (a *app) openWritable(ctx context.Context, extra ...core.Option) (*session, error) {
	return writable(a.open(ctx, true, extra...))
}

func writable(s *session, err error) (*session, error) {
	if err != nil {
		return nil, err
	}
	if s.loadErr != nil {
		s.close()
		return nil, fmt.Errorf("local collection unreadable (run 'placekit clear' to reset): %w", s.loadErr)
	}
	return s, nil
}

// finish waits for queued remote work and reports a failed sync on stderr.
// Local changes are already saved, so sync failures are warnings.
func (s *session) finish(ctx context.Context) core.SyncStatus {
	if err := s.store.Flush(ctx); err != nil {
		s.app.logger.Warn("flush interrupted", zap.Error(err))
	}
	st := s.store.Status()
	if st.State == core.SyncFailed {
		_, _ = fmt.Fprintf(s.app.errOut, "warning: remote sync %s\n", st)
	}
	return st
}

func (s *session) close() {
	if err := s.store.Close(); err != nil {
		s.app.logger.Warn("close store", zap.Error(err))
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.app.logger.Warn("close session resource", zap.Error(err))
		}
	}
}
