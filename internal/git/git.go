// internal/git/git.go
package git

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Git provides git operations for a repository
type Git struct {
	repoPath string
}

// New creates a Git instance for the given repository path
func New(repoPath string) *Git {
	return &Git{repoPath: repoPath}
}

// BranchName creates a sanitized branch name from task ID and title
func BranchName(taskID, title string) string {
	// Lowercase and replace spaces with hyphens
	slug := strings.ToLower(title)
	slug = strings.ReplaceAll(slug, " ", "-")

	// Remove non-alphanumeric characters except hyphens
	reg := regexp.MustCompile(`[^a-z0-9-]`)
	slug = reg.ReplaceAllString(slug, "")

	// Remove consecutive hyphens
	reg = regexp.MustCompile(`-+`)
	slug = reg.ReplaceAllString(slug, "-")

	// Trim hyphens from ends
	slug = strings.Trim(slug, "-")

	// Truncate to reasonable length (30 chars for slug)
	if len(slug) > 30 {
		slug = slug[:30]
		// Don't end on a hyphen
		slug = strings.TrimRight(slug, "-")
	}

	return fmt.Sprintf("task/%s-%s", taskID, slug)
}

// run executes a git command and returns output
func (g *Git) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = g.repoPath

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, output)
	}
	return strings.TrimSpace(string(output)), nil
}

// CurrentBranch returns the current branch name
func (g *Git) CurrentBranch() (string, error) {
	return g.run("rev-parse", "--abbrev-ref", "HEAD")
}

// CreateBranch creates and checks out a new branch
func (g *Git) CreateBranch(name string) error {
	_, err := g.run("checkout", "-b", name)
	return err
}

// SwitchBranch switches to an existing branch
func (g *Git) SwitchBranch(name string) error {
	_, err := g.run("checkout", name)
	return err
}

// HasUncommittedChanges returns true if there are uncommitted changes
func (g *Git) HasUncommittedChanges() (bool, error) {
	output, err := g.run("status", "--porcelain")
	if err != nil {
		return false, err
	}
	return output != "", nil
}

// Add stages files for commit
func (g *Git) Add(paths ...string) error {
	args := append([]string{"add"}, paths...)
	_, err := g.run(args...)
	return err
}

// Commit creates a commit with the given message
func (g *Git) Commit(message string) error {
	_, err := g.run("commit", "-m", message)
	return err
}

// Push pushes the current branch to origin
func (g *Git) Push() error {
	branch, err := g.CurrentBranch()
	if err != nil {
		return err
	}
	_, err = g.run("push", "-u", "origin", branch)
	return err
}

// GetDiff returns the diff for staged changes
func (g *Git) GetDiff() (string, error) {
	return g.run("diff", "--staged")
}

// GetLog returns recent commit messages
func (g *Git) GetLog(count int) (string, error) {
	return g.run("log", fmt.Sprintf("-%d", count), "--oneline")
}

// WorktreeRoot returns a git worktree allocator backed by this
// repository, rooting every allocated worktree under dir. Satisfies
// internal/execution's WorktreeAllocator.
func (g *Git) WorktreeRoot(dir string) *WorktreeAllocator {
	return &WorktreeAllocator{git: g, dir: dir}
}

// WorktreeAllocator hands each immediate-spawn agent its own `git
// worktree add` checkout on a fresh branch, so concurrent agents never
// collide on a single working copy.
type WorktreeAllocator struct {
	git *Git
	dir string
}

// Allocate creates a new worktree at <dir>/<missionID>-<branch> (each
// segment sanitized) on
// branch, creating branch if it does not already exist.
func (w *WorktreeAllocator) Allocate(missionID, branch string) (string, error) {
	path := filepath.Join(w.dir, sanitizePathSegment(missionID)+"-"+sanitizePathSegment(branch))
	if _, err := w.git.run("worktree", "add", "-b", branch, path); err != nil {
		// branch may already exist from a prior attempt on the same task;
		// retry without -b to reuse it.
		if _, retryErr := w.git.run("worktree", "add", path, branch); retryErr != nil {
			return "", fmt.Errorf("allocate worktree for mission %s: %w", missionID, err)
		}
	}
	return path, nil
}

// Release removes a worktree once its agent is done with it.
func (w *WorktreeAllocator) Release(path string) error {
	_, err := w.git.run("worktree", "remove", "--force", path)
	return err
}

func sanitizePathSegment(s string) string {
	reg := regexp.MustCompile(`[^a-zA-Z0-9_.-]`)
	return reg.ReplaceAllString(s, "-")
}

// PRMetrics records the cost of the work a PR represents, surfaced in
// the generated body so a reviewer sees spend before reading the diff.
type PRMetrics struct {
	TokensUsed  int
	TimeMinutes int
}

// PRInfo describes a pull request to be opened for one or more
// completed tasks, authored by one or more delegated agents.
type PRInfo struct {
	Title   string
	Summary string
	TaskIDs []string
	Agents  []string
	Metrics PRMetrics
}

// GenerateBody renders a markdown PR body. The "team-coop" trailer
// identifies control-plane-authored PRs in repository history.
func (p PRInfo) GenerateBody() string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Summary\n\n%s\n\n", p.Summary)

	fmt.Fprintf(&b, "## Tasks\n\n")
	for _, id := range p.TaskIDs {
		fmt.Fprintf(&b, "- %s\n", id)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## Agents\n\n")
	for _, agent := range p.Agents {
		fmt.Fprintf(&b, "- %s\n", agent)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## Metrics\n\n")
	fmt.Fprintf(&b, "- Tokens used: %s\n", formatThousands(p.Metrics.TokensUsed))
	fmt.Fprintf(&b, "- Time: %d min\n\n", p.Metrics.TimeMinutes)

	b.WriteString("---\nteam-coop\n")

	return b.String()
}

// formatThousands renders n with comma thousands separators (23450 -> "23,450").
func formatThousands(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}

	if neg {
		return "-" + string(out)
	}
	return string(out)
}
