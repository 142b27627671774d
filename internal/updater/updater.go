// Package updater replaces the running camrelay binary with the latest
// GitHub release, keeping one backup for rollback.
package updater

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/smazurov/camrelay/internal/logging"
	"github.com/smazurov/camrelay/internal/version"
)

// DefaultRepository is the GitHub slug releases are fetched from.
const DefaultRepository = "smazurov/camrelay"

// UpdateInfo describes the newest release relative to the running binary.
type UpdateInfo struct {
	CurrentVersion  string    `json:"current_version"`
	LatestVersion   string    `json:"latest_version"`
	ReleaseNotes    string    `json:"release_notes,omitempty"`
	ReleaseURL      string    `json:"release_url,omitempty"`
	PublishedAt     time.Time `json:"published_at,omitempty"`
	AssetSize       int       `json:"asset_size,omitempty"`
	UpdateAvailable bool      `json:"update_available"`
}

// Options configures an Updater. Zero values pick the defaults.
type Options struct {
	Repository string
	Prerelease bool
	BackupDir  string
	ExecPath   string
}

type releaseSource interface {
	DetectLatest(ctx context.Context, repository selfupdate.Repository) (*selfupdate.Release, bool, error)
	UpdateTo(ctx context.Context, rel *selfupdate.Release, cmdPath string) error
}

// Updater checks for, applies and rolls back binary updates.
type Updater struct {
	repo    selfupdate.Repository
	source  releaseSource
	backups *backupManager
	exe     string
	logger  *slog.Logger
}

// New builds an Updater backed by GitHub releases.
func New(opts Options) (*Updater, error) {
	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub source: %w", err)
	}
	upd, err := selfupdate.NewUpdater(selfupdate.Config{
		Source:     source,
		Prerelease: opts.Prerelease,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create updater: %w", err)
	}
	return newUpdater(opts, upd, logging.GetLogger("updater"))
}

func newUpdater(opts Options, source releaseSource, logger *slog.Logger) (*Updater, error) {
	if opts.Repository == "" {
		opts.Repository = DefaultRepository
	}

	exe := opts.ExecPath
	if exe == "" {
		var err error
		if exe, err = selfupdate.ExecutablePath(); err != nil {
			return nil, newError(ErrCodeDisabled, "failed to get executable path", err)
		}
	}
	if err := checkWritePermission(filepath.Dir(exe)); err != nil {
		return nil, newError(ErrCodeDisabled, "executable directory is not writable", err)
	}

	dir := opts.BackupDir
	if dir == "" {
		var err error
		if dir, err = DefaultBackupDir(); err != nil {
			return nil, err
		}
	}
	backups, err := newBackupManager(dir, logger)
	if err != nil {
		return nil, err
	}

	return &Updater{
		repo:    selfupdate.ParseSlug(opts.Repository),
		source:  source,
		backups: backups,
		exe:     exe,
		logger:  logger,
	}, nil
}

func checkWritePermission(dir string) error {
	f, err := os.CreateTemp(dir, ".camrelay.update.*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// Check looks up the latest release without downloading it.
// A "dev" build is always considered outdated.
func (u *Updater) Check(ctx context.Context) (*UpdateInfo, error) {
	info, _, err := u.check(ctx)
	return info, err
}

func (u *Updater) check(ctx context.Context) (*UpdateInfo, *selfupdate.Release, error) {
	release, found, err := u.source.DetectLatest(ctx, u.repo)
	if err != nil {
		return nil, nil, newError(ErrCodeCheckFailed, "failed to check for updates", err)
	}
	if !found || release == nil {
		return nil, nil, newError(ErrCodeNotFound, "repository not found or has no releases", nil)
	}

	current := version.Version
	info := &UpdateInfo{
		CurrentVersion:  current,
		LatestVersion:   release.Version(),
		UpdateAvailable: current == "dev" || release.GreaterThan(current),
	}
	if info.UpdateAvailable {
		info.ReleaseNotes = release.ReleaseNotes
		info.ReleaseURL = release.URL
		info.PublishedAt = release.PublishedAt
		info.AssetSize = release.AssetByteSize
	}
	return info, release, nil
}

// Apply downloads the latest release over the executable. The current
// binary is backed up first and restored if the replacement fails. The
// caller is responsible for restarting the service afterwards.
func (u *Updater) Apply(ctx context.Context) (*UpdateInfo, error) {
	info, release, err := u.check(ctx)
	if err != nil {
		return nil, err
	}
	if !info.UpdateAvailable {
		return info, newError(ErrCodeNoUpdate, "already running "+info.CurrentVersion, nil)
	}

	if err := u.backups.createBackup(u.exe); err != nil {
		return nil, newError(ErrCodeBackupFailed, "failed to create backup", err)
	}

	u.logger.Info("Applying update", "from", info.CurrentVersion, "to", info.LatestVersion)
	if err := u.source.UpdateTo(ctx, release, u.exe); err != nil {
		if restoreErr := u.backups.restore(); restoreErr != nil {
			u.logger.Error("Automatic rollback failed", "error", restoreErr)
		} else {
			u.logger.Info("Automatic rollback completed")
		}
		return nil, newError(ErrCodeApplyFailed, "failed to apply update", err)
	}

	u.logger.Info("Update applied", "version", info.LatestVersion)
	return info, nil
}

// Rollback restores the binary saved by the last Apply and returns its version.
func (u *Updater) Rollback() (string, error) {
	ver, ok := u.backups.backupVersion()
	if !ok {
		return "", newError(ErrCodeNoBackup, "no backup available for rollback", nil)
	}
	if err := u.backups.restore(); err != nil {
		return "", newError(ErrCodeRollbackFailed, "failed to restore backup", err)
	}
	return ver, nil
}

// BackupVersion reports the version held in the backup slot, if any.
func (u *Updater) BackupVersion() (string, bool) {
	return u.backups.backupVersion()
}
