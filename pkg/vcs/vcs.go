// Package vcs is the narrow, read-only adapter through which the rest of
// gitup observes the host version control system. It never clones,
// fetches, pushes, or otherwise mutates a repository; every method opens
// an existing working tree and reads refs, the index, or remotes.
package vcs

import (
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/crashappsec/gitup/pkg/core/errors"
)

// Repo is a read-only handle on a git working tree.
type Repo struct {
	path string
	repo *git.Repository
}

// Open opens the repository rooted at path. It returns ErrNotFound
// (wrapped) if path is not inside a git working tree; callers treat that
// as "VCS absent" rather than a hard failure, per the specification's
// ExternalToolError handling.
func Open(path string) (*Repo, error) {
	r, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "opening git repository at %s: %v", path, err)
	}
	return &Repo{path: path, repo: r}, nil
}

// IsRepo reports whether path is inside a git working tree, without the
// cost of building commit iterators.
func IsRepo(path string) bool {
	_, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	return err == nil
}

// Head returns the full hex hash of the current HEAD commit.
func (r *Repo) Head() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", errors.Wrap(err, "resolving HEAD")
	}
	return ref.Hash().String(), nil
}

// CommitCount returns the number of commits reachable from HEAD.
func (r *Repo) CommitCount() (int, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return 0, errors.Wrap(err, "resolving HEAD")
	}

	iter, err := r.repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return 0, errors.Wrap(err, "walking commit log")
	}

	count := 0
	err = iter.ForEach(func(*object.Commit) error {
		count++
		return nil
	})
	if err != nil {
		return count, errors.Wrap(err, "iterating commit log")
	}
	return count, nil
}

// FirstCommitTime returns the author timestamp of the repository's oldest
// reachable commit, used by the state detector's project-age scoring.
func (r *Repo) FirstCommitTime() (time.Time, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return time.Time{}, errors.Wrap(err, "resolving HEAD")
	}

	iter, err := r.repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return time.Time{}, errors.Wrap(err, "walking commit log")
	}

	var oldest time.Time
	err = iter.ForEach(func(c *object.Commit) error {
		if oldest.IsZero() || c.Author.When.Before(oldest) {
			oldest = c.Author.When
		}
		return nil
	})
	if err != nil {
		return time.Time{}, errors.Wrap(err, "iterating commit log")
	}
	if oldest.IsZero() {
		return time.Time{}, errors.NotFoundError("no commits")
	}
	return oldest, nil
}

// IsTracked reports whether relPath (relative to the repository root) is
// present in the index, i.e. staged or committed. An untracked working-tree
// file returns false without error.
func (r *Repo) IsTracked(relPath string) (bool, error) {
	idx, err := r.repo.Storer.Index()
	if err != nil {
		return false, errors.Wrap(err, "reading index")
	}

	normalized := filepathToSlash(relPath)
	for _, entry := range idx.Entries {
		if entry.Name == normalized {
			return true, nil
		}
	}
	return false, nil
}

// RemoteURLs returns every configured remote's URL list, keyed by remote name.
func (r *Repo) RemoteURLs() (map[string][]string, error) {
	remotes, err := r.repo.Remotes()
	if err != nil {
		return nil, errors.Wrap(err, "listing remotes")
	}

	urls := make(map[string][]string, len(remotes))
	for _, remote := range remotes {
		cfg := remote.Config()
		urls[cfg.Name] = append([]string(nil), cfg.URLs...)
	}
	return urls, nil
}

// KnownForge identifies a hosted git forge from a remote URL.
type KnownForge string

const (
	ForgeGitHub    KnownForge = "github"
	ForgeGitLab    KnownForge = "gitlab"
	ForgeBitbucket KnownForge = "bitbucket"
	ForgeNone      KnownForge = ""
)

// HostedForge inspects the "origin" remote (falling back to any remote) and
// reports which known hosted forge it points at, if any.
func (r *Repo) HostedForge() (KnownForge, error) {
	urls, err := r.RemoteURLs()
	if err != nil {
		return ForgeNone, err
	}

	candidates := urls["origin"]
	if len(candidates) == 0 {
		for _, u := range urls {
			candidates = u
			break
		}
	}

	for _, u := range candidates {
		if forge := classifyForge(u); forge != ForgeNone {
			return forge, nil
		}
	}
	return ForgeNone, nil
}

func classifyForge(url string) KnownForge {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, "github.com"):
		return ForgeGitHub
	case strings.Contains(lower, "gitlab.com"):
		return ForgeGitLab
	case strings.Contains(lower, "bitbucket.org"):
		return ForgeBitbucket
	default:
		return ForgeNone
	}
}

// ParseOwnerRepo extracts owner/repo from an SSH (git@host:owner/repo.git)
// or HTTPS (https://host/owner/repo.git) remote URL.
func ParseOwnerRepo(url string) (owner, repo string) {
	if strings.HasPrefix(url, "git@") {
		parts := strings.SplitN(url, ":", 2)
		if len(parts) == 2 {
			path := strings.TrimSuffix(parts[1], ".git")
			pathParts := strings.Split(path, "/")
			if len(pathParts) >= 2 {
				return pathParts[0], pathParts[len(pathParts)-1]
			}
		}
		return "", ""
	}

	trimmed := strings.TrimSuffix(url, ".git")
	parts := strings.Split(trimmed, "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2], parts[len(parts)-1]
	}
	return "", ""
}

// TrackedFiles returns the full set of index-tracked paths, relative to the
// repository root, for bulk is-tracked lookups during a scan (cheaper than
// calling IsTracked once per file).
func (r *Repo) TrackedFiles() (map[string]bool, error) {
	idx, err := r.repo.Storer.Index()
	if err != nil {
		return nil, errors.Wrap(err, "reading index")
	}

	tracked := make(map[string]bool, len(idx.Entries))
	for _, entry := range idx.Entries {
		tracked[entry.Name] = true
	}
	return tracked, nil
}

// CommitsSince returns commits reachable from HEAD authored after since,
// newest first, used by a future audit of recently touched risk paths.
func (r *Repo) CommitsSince(since time.Time) ([]*object.Commit, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return nil, errors.Wrap(err, "resolving HEAD")
	}

	iter, err := r.repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, errors.Wrap(err, "walking commit log")
	}

	var commits []*object.Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if c.Author.When.After(since) {
			commits = append(commits, c)
		}
		return nil
	})
	if err != nil {
		return commits, errors.Wrap(err, "iterating commit log")
	}

	sort.Slice(commits, func(i, j int) bool {
		return commits[i].Author.When.After(commits[j].Author.When)
	})
	return commits, nil
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
