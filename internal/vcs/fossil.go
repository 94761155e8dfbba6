package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"partita/internal/branch"
	"partita/internal/config"
	"partita/internal/logging"
	"partita/internal/services"
)

// Manager drives fossil against per-source repositories under the
// configured repository root.
type Manager struct {
	binary   string
	user     string
	repoRoot string
	workDir  string
	exec     Executor
	log      *slog.Logger
}

// NewManager builds a fossil manager from configuration.
func NewManager(cfg *config.Config, exec Executor, logger *slog.Logger) *Manager {
	return &Manager{
		binary:   cfg.Tools.Fossil,
		user:     cfg.Tools.FossilUser,
		repoRoot: cfg.Paths.RepoRoot,
		workDir:  cfg.Paths.WorkDir,
		exec:     exec,
		log:      logging.WithComponent(logger, "vcs"),
	}
}

// RepositoryPath returns where a source's repository file lives.
func (m *Manager) RepositoryPath(workID, sourceID string) string {
	return filepath.Join(m.repoRoot, workID, sourceID+".fossil")
}

// CommitInput describes one revision commit. Files maps checkout-relative
// paths to contents; text files get their line endings normalized before
// the commit so diffs stay stable across uploader platforms.
type CommitInput struct {
	WorkID   string
	SourceID string
	Branch   string
	Message  string
	Files    map[string][]byte
}

// CommitResult reports the check-in that was created.
type CommitResult struct {
	ArtifactID    string
	ParentID      string
	Branch        string
	BranchCreated bool
}

// Commit writes the revision files into an ephemeral checkout and commits
// them, creating the repository and the target branch on first use. The
// checkout directory is removed on every path, including failures.
func (m *Manager) Commit(ctx context.Context, in CommitInput) (CommitResult, error) {
	var result CommitResult

	name := branch.Normalize(in.Branch)
	repoPath := m.RepositoryPath(in.WorkID, in.SourceID)
	repoExisted, err := m.ensureRepository(ctx, repoPath)
	if err != nil {
		return result, err
	}

	checkout, err := os.MkdirTemp(m.workDir, "fossil-*")
	if err != nil {
		return result, services.Wrap(services.ErrCommit, "vcs", "commit", "create checkout directory", err)
	}
	defer os.RemoveAll(checkout)

	if _, err := m.run(ctx, checkout, "open", repoPath, "--workdir", checkout); err != nil {
		return result, services.Wrap(services.ErrCommit, "vcs", "commit", "open repository", err)
	}

	branchExists := false
	if repoExisted {
		branches, err := m.ListBranches(ctx, in.WorkID, in.SourceID)
		if err != nil {
			return result, err
		}
		for _, existing := range branches {
			if existing == name {
				branchExists = true
				break
			}
		}
		target := name
		if !branchExists {
			target = branch.DefaultName
		}
		if _, err := m.run(ctx, checkout, "update", target); err != nil {
			return result, services.Wrap(services.ErrCommit, "vcs", "commit", "update to "+target, err)
		}
		if parent, err := m.currentCheckout(ctx, checkout); err == nil {
			result.ParentID = parent.Artifact
		}
	}

	for relPath, contents := range in.Files {
		target := filepath.Join(checkout, filepath.FromSlash(relPath))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return result, services.Wrap(services.ErrCommit, "vcs", "commit", "create file directory", err)
		}
		if err := os.WriteFile(target, normalizeText(relPath, contents), 0o644); err != nil {
			return result, services.Wrap(services.ErrCommit, "vcs", "commit", "write "+relPath, err)
		}
	}

	if _, err := m.run(ctx, checkout, "addremove"); err != nil {
		return result, services.Wrap(services.ErrCommit, "vcs", "commit", "addremove", err)
	}

	args := []string{"commit", "--user", m.user, "-m", in.Message}
	if name != branch.DefaultName && !branchExists {
		args = append(args, "--branch", name)
		result.BranchCreated = true
	}
	if out, err := m.run(ctx, checkout, args...); err != nil {
		detail := strings.TrimSpace(string(out.Stderr))
		if detail == "" {
			detail = err.Error()
		}
		return result, services.Wrap(services.ErrCommit, "vcs", "commit", detail, err)
	}

	info, err := m.currentCheckout(ctx, checkout)
	if err != nil {
		return result, err
	}
	result.ArtifactID = info.Artifact
	result.Branch = info.Branch
	m.log.Info("committed revision",
		logging.FieldWorkID, in.WorkID,
		logging.FieldSourceID, in.SourceID,
		logging.FieldBranch, result.Branch,
		"artifact", result.ArtifactID)
	return result, nil
}

// ListBranches returns the branch names in a repository, default branch
// included. The listing is best effort: a missing repository or a failed
// query yields an empty list, never an error, so callers like Commit fall
// back to the default branch instead of aborting.
func (m *Manager) ListBranches(ctx context.Context, workID, sourceID string) ([]string, error) {
	repoPath := m.RepositoryPath(workID, sourceID)
	if _, err := os.Stat(repoPath); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	out, err := m.run(ctx, "", "branch", "list", "-R", repoPath)
	if err != nil {
		m.log.Warn("branch list failed",
			logging.FieldWorkID, workID,
			logging.FieldSourceID, sourceID,
			logging.Error(err))
		return nil, nil
	}

	var names []string
	for _, line := range strings.Split(string(out.Stdout), "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
		if line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// Diff returns the fossil unified diff of one file between two check-ins.
func (m *Manager) Diff(ctx context.Context, workID, sourceID, fromArtifact, toArtifact, path string) (string, error) {
	repoPath := m.RepositoryPath(workID, sourceID)

	checkout, err := os.MkdirTemp(m.workDir, "fossil-diff-*")
	if err != nil {
		return "", services.Wrap(services.ErrCommit, "vcs", "diff", "create checkout directory", err)
	}
	defer os.RemoveAll(checkout)

	if _, err := m.run(ctx, checkout, "open", repoPath, "--workdir", checkout); err != nil {
		return "", services.Wrap(services.ErrCommit, "vcs", "diff", "open repository", err)
	}
	out, err := m.run(ctx, checkout, "diff", "--from", fromArtifact, "--to", toArtifact, path)
	if err != nil {
		return "", services.Wrap(services.ErrCommit, "vcs", "diff", strings.TrimSpace(string(out.Stderr)), err)
	}
	return string(out.Stdout), nil
}

// RemoveRepository deletes a source's repository file. The work directory is
// left in place when other sources still use it.
func (m *Manager) RemoveRepository(workID, sourceID string) error {
	repoPath := m.RepositoryPath(workID, sourceID)
	if err := os.Remove(repoPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrCommit, "vcs", "remove", "", err)
	}
	// Best effort; fails silently while siblings remain.
	_ = os.Remove(filepath.Dir(repoPath))
	return nil
}

// MoveRepository relocates a repository when a source is reassigned.
func (m *Manager) MoveRepository(workID, sourceID, newWorkID, newSourceID string) error {
	from := m.RepositoryPath(workID, sourceID)
	to := m.RepositoryPath(newWorkID, newSourceID)
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return services.Wrap(services.ErrCommit, "vcs", "move", "create target directory", err)
	}
	if err := os.Rename(from, to); err != nil {
		return services.Wrap(services.ErrCommit, "vcs", "move", "", err)
	}
	_ = os.Remove(filepath.Dir(from))
	return nil
}

func (m *Manager) ensureRepository(ctx context.Context, repoPath string) (existed bool, err error) {
	if _, err := os.Stat(repoPath); err == nil {
		return true, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, services.Wrap(services.ErrCommit, "vcs", "init", "stat repository", err)
	}

	if err := os.MkdirAll(filepath.Dir(repoPath), 0o755); err != nil {
		return false, services.Wrap(services.ErrCommit, "vcs", "init", "create repository directory", err)
	}
	if out, runErr := m.run(ctx, "", "init", "-A", m.user, repoPath); runErr != nil {
		detail := strings.TrimSpace(string(out.Stderr))
		if detail == "" {
			detail = runErr.Error()
		}
		return false, services.Wrap(services.ErrCommit, "vcs", "init", detail, runErr)
	}
	return false, nil
}

// checkoutInfo describes the currently checked-out check-in.
type checkoutInfo struct {
	Artifact string
	Branch   string
}

// currentCheckout reads the checked-out artifact id and branch from the
// fossil info output. Fossil versions label the artifact line differently,
// so several keys are accepted. The branch is the first non-default tag,
// falling back to the default branch when only propagating tags remain.
func (m *Manager) currentCheckout(ctx context.Context, checkout string) (checkoutInfo, error) {
	out, err := m.run(ctx, checkout, "info", "current")
	if err != nil {
		// Older fossil rejects the "current" argument.
		out, err = m.run(ctx, checkout, "info")
		if err != nil {
			return checkoutInfo{}, services.Wrap(services.ErrCommit, "vcs", "info", "", err)
		}
	}

	info := checkoutInfo{Branch: branch.DefaultName}
	for _, line := range strings.Split(string(out.Stdout), "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(strings.ToLower(key)) {
		case "checkout", "checkin", "check-in", "uuid", "hash":
			if fields := strings.Fields(value); len(fields) > 0 {
				info.Artifact = fields[0]
			}
		case "tags":
			for _, tag := range strings.Split(value, ",") {
				tag = strings.TrimSpace(tag)
				if tag != "" && tag != branch.DefaultName {
					info.Branch = tag
					break
				}
			}
		}
	}
	if info.Artifact == "" {
		return checkoutInfo{}, services.Wrap(services.ErrCommit, "vcs", "info", "no artifact id in fossil info output", nil)
	}
	return info, nil
}

func (m *Manager) run(ctx context.Context, dir string, args ...string) (Output, error) {
	out, err := m.exec.Run(ctx, dir, m.binary, args...)
	if err != nil {
		m.log.Debug("fossil command failed",
			logging.FieldBinary, m.binary,
			"args", fmt.Sprintf("%v", args),
			logging.Error(err))
	}
	return out, err
}

// normalizeText converts CRLF and bare CR line endings to LF for the text
// formats kept under version control. Binary formats pass through untouched.
func normalizeText(path string, contents []byte) []byte {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml", ".musicxml", ".json", ".txt", ".lmx":
		contents = bytes.ReplaceAll(contents, []byte("\r\n"), []byte("\n"))
		contents = bytes.ReplaceAll(contents, []byte("\r"), []byte("\n"))
	}
	return contents
}
