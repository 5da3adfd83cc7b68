package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"jch-go/internal/archive"
	"jch-go/internal/config"
	"jch-go/internal/database"
	"jch-go/internal/encryption"
	"jch-go/internal/fs"
	"jch-go/internal/history"
	"jch-go/internal/host"
	"jch-go/internal/linediff"
	"jch-go/internal/metrics"
	"jch-go/internal/store"
)

// App is the application layer between the CLI or HTTP API and
// history.Service. It constructs all dependencies from config, records
// mutating commands in the operation log, and releases resources on Close.
type App struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	store     *store.FileSystemStore
	host      *host.FileSystemHost
	vault     history.Vault // nil when archiving is disabled
	encryptor history.Encryptor
	metrics   *metrics.Metrics
	service   *history.Service
	op        *MaintenanceOperation
	logger    history.Logger
	logFile   io.Closer
}

// New creates a fully wired App from the given config. operation names
// the command being run (e.g. "Purge", "Restore"). The caller must call
// Close when done.
func New(ctx context.Context, cfg *config.Config, operation string) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	runID := uuid.New().String()
	logger, logFile, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	hlog := &slogAdapter{l: logger}

	a := &App{cfg: cfg, logger: hlog, logFile: logFile, op: NewMaintenanceOperation(operation, "")}
	if err := a.wire(ctx, hlog); err != nil {
		a.closeResources()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, hlog history.Logger) error {
	cfg := a.cfg

	exclude, err := fs.NewExcludeMatcher(cfg.ExcludePatterns)
	if err != nil {
		return fmt.Errorf("loading exclude patterns: %w", err)
	}

	authorizer, err := NewUserTable(cfg.Users)
	if err != nil {
		return fmt.Errorf("loading users: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	a.db = db

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	switch {
	case err == nil:
		a.encryptor = enc
	case cfg.Archive.Enabled && cfg.Archive.Encrypt:
		return fmt.Errorf("creating encryptor: %w", err)
	default:
		hlog.Debug("archive encryption unavailable", "error", err)
	}

	var archiver history.Archiver
	if cfg.Archive.Enabled {
		v, err := archive.NewVaultFromConfig(ctx, cfg.Archive)
		if err != nil {
			return fmt.Errorf("creating archive vault: %w", err)
		}
		a.vault = v

		var archiveEnc history.Encryptor
		if cfg.Archive.Encrypt {
			if !enc.IsConfigured() {
				return fmt.Errorf("archive encryption is enabled but no keys exist: run 'jch archive init'")
			}
			archiveEnc = enc
		}
		archiver = archive.NewArchiver(v, archiveEnc)
	}

	a.metrics = metrics.New()
	clock := history.RealClock{}

	a.store = store.NewFileSystemStore(cfg.HistoryRoot, cfg.JobHistoryRoot, hlog)
	recorder := history.NewRecorder(a.store, clock, exclude, a.metrics, hlog)
	a.host = host.NewFileSystemHost(cfg.ObjectsDir, recorder, history.UUIDGenerator{}, hlog)

	a.service = history.NewService(history.ServiceDeps{
		Store:      a.store,
		Host:       a.host,
		Authorizer: authorizer,
		Archiver:   archiver,
		Recorder:   recorder,
		Metrics:    a.metrics,
		Logger:     hlog,
		Clock:      clock,
	})
	return nil
}

// Service returns the history service.
func (a *App) Service() *history.Service { return a.service }

// Metrics returns the metrics registry wrapper.
func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// Config returns the loaded configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Logger returns the application logger.
func (a *App) Logger() history.Logger { return a.logger }

// MaxAgeDays is the configured retention, 0 when purging is disabled.
func (a *App) MaxAgeDays() int {
	return history.ParseMaxAge(a.cfg.MaxDaysToKeepEntries)
}

// persistOperation saves the operation to the database, giving it an
// auto-increment ID. Only mutating commands call it.
func (a *App) persistOperation(parameters string) error {
	if a.op.Persisted() {
		return nil
	}
	a.op.Parameters = parameters
	dbOp, err := a.db.CreateOperation(a.op.Operation, parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// List returns the entries selected by filter, as seen by subject.
func (a *App) List(subject, filter string) ([]*history.ConfigInfo, error) {
	return a.service.Query().Configs(a.service.Authorize(subject), filter)
}

// Show returns every record of a system setting or deleted job. The
// subject must be able to read name.
func (a *App) Show(subject, name string) ([]*history.ConfigInfo, error) {
	if !a.service.Authorize(subject).CanReadObject(name) {
		return nil, fmt.Errorf("%w: %s", history.ErrPermissionDenied, history.NoPermissionMessage)
	}
	return a.service.Query().SingleConfigs(name)
}

// Cat returns the snapshot of name at timestamp. job selects the job
// root for live jobs.
func (a *App) Cat(subject, name, timestamp string, job bool) (string, error) {
	auth := a.service.Authorize(subject)
	if job {
		if !auth.ConfigureJobs {
			return "", fmt.Errorf("%w: %s", history.ErrPermissionDenied, history.NoPermissionMessage)
		}
		return a.service.Query().JobRawContent(auth, name, timestamp)
	}
	if !auth.CanReadObject(name) {
		return "", fmt.Errorf("%w: %s", history.ErrPermissionDenied, history.NoPermissionMessage)
	}
	return a.service.Query().RawContent(auth, name, timestamp)
}

// Diff returns the line diff between two snapshots of name.
func (a *App) Diff(subject, name, timestamp1, timestamp2 string, job bool) ([]linediff.Line, error) {
	auth := a.service.Authorize(subject)
	if job {
		return a.service.Diff().JobLines(auth, name, timestamp1, timestamp2)
	}
	return a.service.Diff().Lines(auth, name, timestamp1, timestamp2)
}

// UnifiedDiff renders the same comparison as Diff as a unified diff.
func (a *App) UnifiedDiff(subject, name, timestamp1, timestamp2 string, job bool) ([]byte, error) {
	root := history.RootSystem
	if job || history.IsDeletedName(name) {
		root = history.RootJobs
	}
	return a.service.Diff().Unified(a.service.Authorize(subject), root, name, timestamp1, timestamp2)
}

// Purge deletes records older than maxAgeDays.
func (a *App) Purge(maxAgeDays int) (*history.PurgeResult, error) {
	if err := a.persistOperation(fmt.Sprintf("max_age_days=%d", maxAgeDays)); err != nil {
		return nil, err
	}
	result, err := a.service.Purge(maxAgeDays)
	a.op.Fail(err)
	return result, err
}

// Restore brings back the deleted job deletedName.
func (a *App) Restore(subject, deletedName string) (*history.RestoreResult, error) {
	if err := a.persistOperation(deletedName); err != nil {
		return nil, err
	}
	result, err := a.service.Restore(a.service.Authorize(subject), deletedName)
	a.op.Fail(err)
	return result, err
}

// SaveJob creates or updates a live job and records the change.
func (a *App) SaveJob(subject, name string, content []byte) (*history.Record, error) {
	if err := a.requireJobs(subject); err != nil {
		return nil, err
	}
	if err := a.persistOperation(name); err != nil {
		return nil, err
	}
	rec, err := a.host.SaveObject(name, content, history.Actor{Name: subject, ID: subject})
	a.op.Fail(err)
	return rec, err
}

// DeleteJob deletes a live job. It returns the name its history now
// lives under.
func (a *App) DeleteJob(subject, name string) (string, error) {
	if err := a.requireJobs(subject); err != nil {
		return "", err
	}
	if err := a.persistOperation(name); err != nil {
		return "", err
	}
	deleted, err := a.host.DeleteObject(name, history.Actor{Name: subject, ID: subject})
	a.op.Fail(err)
	return deleted, err
}

// RenameJob renames a live job together with its history.
func (a *App) RenameJob(subject, oldName, newName string) error {
	if err := a.requireJobs(subject); err != nil {
		return err
	}
	if err := a.persistOperation(oldName + " -> " + newName); err != nil {
		return err
	}
	err := a.host.RenameObject(oldName, newName, history.Actor{Name: subject, ID: subject})
	a.op.Fail(err)
	return err
}

// Jobs lists the live jobs.
func (a *App) Jobs() ([]string, error) {
	return a.host.ListObjects()
}

// SaveSystem records a new snapshot of a system setting. Excluded
// settings yield a nil record.
func (a *App) SaveSystem(subject, name string, content []byte) (*history.Record, error) {
	if !a.service.Authorize(subject).ConfigureSystem {
		return nil, fmt.Errorf("%w: %s may not configure the system", history.ErrPermissionDenied, subject)
	}
	if err := a.persistOperation(name); err != nil {
		return nil, err
	}
	rec, err := a.service.Recorder().Record(history.RootSystem, name, history.OpChanged, history.Actor{Name: subject, ID: subject}, content)
	a.op.Fail(err)
	return rec, err
}

func (a *App) requireJobs(subject string) error {
	if !a.service.Authorize(subject).ConfigureJobs {
		return fmt.Errorf("%w: %s may not configure jobs", history.ErrPermissionDenied, subject)
	}
	return nil
}

// Operations returns the most recent maintenance operations.
func (a *App) Operations(limit int) ([]*database.Operation, error) {
	return a.db.ListOperations(limit)
}

// ArchiveInit generates the archive key pair and checks the vault.
func (a *App) ArchiveInit(passphrase string) error {
	if a.encryptor == nil {
		return fmt.Errorf("archive encryption is not configured")
	}
	if err := a.encryptor.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up encryption: %w", err)
	}
	if a.vault != nil {
		if err := a.vault.ValidateSetup(); err != nil {
			return fmt.Errorf("validating archive vault: %w", err)
		}
	}
	return nil
}

// ArchiveGet writes one archived file of a purged record to w. file is
// "config.xml" or "history.xml". passphrase is only used for encrypted
// archives.
func (a *App) ArchiveGet(root history.RootKind, name, timestamp, file, passphrase string, w io.Writer) error {
	if a.vault == nil {
		return fmt.Errorf("archiving is not enabled")
	}
	if ok, err := history.CheckParameters(name, timestamp); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: name and timestamp are required", history.ErrInvalidInput)
	}
	if file != store.ConfigFile && file != store.HistoryFile {
		return fmt.Errorf("%w: unknown archive file %q", history.ErrInvalidInput, file)
	}

	var dec history.DecryptionContext
	if a.cfg.Archive.Encrypt {
		var err error
		dec, err = a.encryptor.Unlock(passphrase)
		if err != nil {
			return fmt.Errorf("unlocking archive key: %w", err)
		}
	}
	return archive.Retrieve(a.vault, archive.Key(root, name, timestamp, file), dec, w)
}

// ArchiveEncrypted reports whether archived objects need a passphrase.
func (a *App) ArchiveEncrypted() bool {
	return a.cfg.Archive.Enabled && a.cfg.Archive.Encrypt
}

// ParseRoot maps "system" or "jobs" to a RootKind.
func ParseRoot(s string) (history.RootKind, error) {
	switch strings.ToLower(s) {
	case "system":
		return history.RootSystem, nil
	case "jobs", "job":
		return history.RootJobs, nil
	default:
		return 0, fmt.Errorf("%w: unknown root %q", history.ErrInvalidInput, s)
	}
}

// Close finalizes the operation, exports metrics and closes all
// resources.
func (a *App) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.db.FinishOperation(a.op.ID, a.op.Status); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if a.cfg.Metrics.Enabled && a.cfg.Metrics.TextfilePath != "" && a.metrics != nil {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.TextfilePath); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("writing metrics textfile: %w", err)
		}
	}

	if err := a.closeResources(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (a *App) closeResources() error {
	var firstErr error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// DescribeLines renders a line diff as text, one prefixed line each.
func DescribeLines(lines []linediff.Line) string {
	var b bytes.Buffer
	for _, l := range lines {
		b.WriteString(l.Kind.String())
		b.WriteString(l.Text)
		b.WriteByte('\n')
	}
	return b.String()
}
