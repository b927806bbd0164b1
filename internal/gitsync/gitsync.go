package gitsync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/sirupsen/logrus"
)

// CommitPrefix starts every mirror commit message
const CommitPrefix = "Content updated, date: "

const dateLayout = "02.01.2006, 15:04:05"

// Options describes the repository holding the mirror
type Options struct {
	RepoDir     string
	Scope       string // directory whose changes are committed; empty means the whole worktree
	Remote      string // remote name; empty disables pull and push
	Branch      string // defaults to the checked out branch
	AuthorName  string
	AuthorEmail string
	Username    string
	Token       string
}

// Result summarizes one synchronization
type Result struct {
	Committed bool
	Hash      string
	Files     int
	Pushed    bool
}

// Syncer commits mirror changes and publishes them to the remote
type Syncer struct {
	opts Options
	now  func() time.Time
}

// New creates a syncer
func New(opts Options) *Syncer {
	return &Syncer{opts: opts, now: time.Now}
}

// CommitMessage formats the message for a commit made at t
func CommitMessage(t time.Time) string {
	return CommitPrefix + t.Format(dateLayout)
}

// Sync commits every change under the scope. A clean scope is a no-op.
// When a remote is set the commit is followed by a pull and a push.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	var res Result

	repo, err := git.PlainOpen(s.opts.RepoDir)
	if err != nil {
		return res, fmt.Errorf("failed to open repository %s: %w", s.opts.RepoDir, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return res, fmt.Errorf("failed to open worktree: %w", err)
	}

	changed, err := s.changedFiles(wt)
	if err != nil {
		return res, err
	}
	if len(changed) == 0 {
		logrus.Info("Mirror is unchanged, nothing to commit")
		return res, nil
	}

	// Add stages deletions as well
	for _, c := range changed {
		if _, err := wt.Add(c.path); err != nil {
			return res, fmt.Errorf("failed to stage %s: %w", c.path, err)
		}
		if c.deleted {
			logrus.Debugf("Staged removal of %s", c.path)
		}
	}

	when := s.now()
	hash, err := wt.Commit(CommitMessage(when), &git.CommitOptions{
		Author: &object.Signature{
			Name:  s.opts.AuthorName,
			Email: s.opts.AuthorEmail,
			When:  when,
		},
	})
	if err != nil {
		return res, fmt.Errorf("failed to commit: %w", err)
	}

	res.Committed = true
	res.Hash = hash.String()
	res.Files = len(changed)
	logrus.Infof("Committed %d file(s) as %s", res.Files, res.Hash[:7])

	if s.opts.Remote == "" {
		return res, nil
	}

	if err := s.publish(ctx, repo, wt); err != nil {
		return res, err
	}
	res.Pushed = true
	return res, nil
}

type change struct {
	path    string
	deleted bool
}

// changedFiles lists worktree changes under the scope, sorted by path
func (s *Syncer) changedFiles(wt *git.Worktree) ([]change, error) {
	prefix, err := s.scopePrefix()
	if err != nil {
		return nil, err
	}

	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to read status: %w", err)
	}

	var changes []change
	for path, fs := range status {
		if fs.Worktree == git.Unmodified && fs.Staging == git.Unmodified {
			continue
		}
		if prefix != "" && path != prefix && !strings.HasPrefix(path, prefix+"/") {
			continue
		}
		changes = append(changes, change{path: path, deleted: fs.Worktree == git.Deleted})
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].path < changes[j].path })
	return changes, nil
}

// scopePrefix returns the scope as a slash separated path relative to the repository root
func (s *Syncer) scopePrefix() (string, error) {
	if s.opts.Scope == "" {
		return "", nil
	}

	repoDir, err := filepath.Abs(s.opts.RepoDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve repository dir: %w", err)
	}
	// relative scopes follow mirror_dir and resolve against the working directory
	scope, err := filepath.Abs(s.opts.Scope)
	if err != nil {
		return "", fmt.Errorf("failed to resolve sync scope: %w", err)
	}

	rel, err := filepath.Rel(repoDir, scope)
	if err != nil {
		return "", fmt.Errorf("failed to resolve sync scope: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("sync scope %s is outside repository %s", s.opts.Scope, s.opts.RepoDir)
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}

// publish integrates remote changes and pushes the new commit
func (s *Syncer) publish(ctx context.Context, repo *git.Repository, wt *git.Worktree) error {
	branch, err := s.branch(repo)
	if err != nil {
		return err
	}

	auth := s.auth()

	err = wt.PullContext(ctx, &git.PullOptions{
		RemoteName:    s.opts.Remote,
		ReferenceName: branch,
		SingleBranch:  true,
		Auth:          auth,
	})
	switch {
	case err == nil:
		logrus.Infof("Pulled %s from %s", branch.Short(), s.opts.Remote)
	case errors.Is(err, git.NoErrAlreadyUpToDate), errors.Is(err, transport.ErrEmptyRemoteRepository):
	default:
		return fmt.Errorf("failed to pull %s: %w", s.opts.Remote, err)
	}

	refSpec := gitconfig.RefSpec(fmt.Sprintf("%s:%s", branch, branch))
	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: s.opts.Remote,
		RefSpecs:   []gitconfig.RefSpec{refSpec},
		Auth:       auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push to %s: %w", s.opts.Remote, err)
	}

	logrus.Infof("Pushed %s to %s", branch.Short(), s.opts.Remote)
	return nil
}

func (s *Syncer) branch(repo *git.Repository) (plumbing.ReferenceName, error) {
	if s.opts.Branch != "" {
		return plumbing.NewBranchReferenceName(s.opts.Branch), nil
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	return head.Name(), nil
}

func (s *Syncer) auth() transport.AuthMethod {
	if s.opts.Token == "" {
		return nil
	}
	user := s.opts.Username
	if user == "" {
		// hosting providers accept any non-empty user name with a token
		user = "site-mirror"
	}
	return &githttp.BasicAuth{Username: user, Password: s.opts.Token}
}
