package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	giturls "github.com/whilp/git-urls"
)

// Client は Git リポジトリ操作を提供する
type Client struct {
	sshKeyPath  string
	sshPassword string
	progress    io.Writer
}

// NewClient は新しい Client を作成する
// progress が nil の場合、clone/fetch の進捗は出力しない
func NewClient(sshKeyPath, sshPassword string, progress io.Writer) *Client {
	return &Client{
		sshKeyPath:  sshKeyPath,
		sshPassword: sshPassword,
		progress:    progress,
	}
}

// CommitInfo はコミット情報を表す
type CommitInfo struct {
	Hash    string
	Date    time.Time
	Message string
	Author  string
}

// URLToDirectoryName は Git URL をクローン先のディレクトリ名に変換する
// 例: git@github.com:u-blox/docs.git -> github.com/u-blox/docs
func (c *Client) URLToDirectoryName(gitURL string) (string, error) {
	u, err := giturls.Parse(gitURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse git URL: %w", err)
	}

	hostname := u.Hostname()
	if hostname == "" {
		hostname = u.Host
	}

	path := strings.TrimPrefix(u.Path, "/")
	path = strings.TrimSuffix(path, ".git")
	if path == "" {
		return "", fmt.Errorf("git URL has no repository path: %s", gitURL)
	}

	return filepath.Join(hostname, path), nil
}

// CloneOrPull はリポジトリが存在しない場合はクローン、存在する場合は fetch して ref をチェックアウトする
func (c *Client) CloneOrPull(ctx context.Context, url, destDir, ref string) error {
	if _, err := os.Stat(filepath.Join(destDir, ".git")); os.IsNotExist(err) {
		return c.clone(ctx, url, destDir)
	}
	return c.pull(ctx, destDir, ref)
}

func (c *Client) clone(ctx context.Context, url, destDir string) error {
	auth, err := c.getSSHAuth()
	if err != nil {
		return fmt.Errorf("failed to setup SSH auth: %w", err)
	}

	opts := &git.CloneOptions{
		URL:      url,
		Progress: c.progress,
	}
	if auth != nil {
		opts.Auth = auth
	}
	if _, err := git.PlainCloneContext(ctx, destDir, false, opts); err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}
	return nil
}

func (c *Client) pull(ctx context.Context, repoPath, ref string) error {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return fmt.Errorf("failed to open repository: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	auth, err := c.getSSHAuth()
	if err != nil {
		return fmt.Errorf("failed to setup SSH auth: %w", err)
	}

	remote, err := repo.Remote("origin")
	if err != nil {
		return fmt.Errorf("failed to get remote: %w", err)
	}

	opts := &git.FetchOptions{Progress: c.progress}
	if auth != nil {
		opts.Auth = auth
	}
	if err := remote.FetchContext(ctx, opts); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to fetch: %w", err)
	}

	err = worktree.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewRemoteReferenceName("origin", ref),
		Force:  true,
	})
	if err != nil {
		return fmt.Errorf("failed to checkout: %w", err)
	}
	return nil
}

// GetCommitInfo は指定された ref のコミット情報を取得する
func (c *Client) GetCommitInfo(repoPath, ref string) (*CommitInfo, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	commit, err := c.commit(repo, ref)
	if err != nil {
		return nil, err
	}

	return &CommitInfo{
		Hash:    commit.Hash.String(),
		Date:    commit.Author.When,
		Message: commit.Message,
		Author:  commit.Author.Name,
	}, nil
}

// File はコミット内のファイル
type File struct {
	Path    string
	Content []byte
}

// ReadFiles は指定された ref のツリーから accept を満たすファイルを読み込む
func (c *Client) ReadFiles(ctx context.Context, repoPath, ref string, accept func(path string) bool) ([]File, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	commit, err := c.commit(repo, ref)
	if err != nil {
		return nil, err
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}

	var files []File
	err = tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if accept != nil && !accept(f.Name) {
			return nil
		}

		reader, err := f.Reader()
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", f.Name, err)
		}
		defer reader.Close()

		content, err := io.ReadAll(reader)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", f.Name, err)
		}
		files = append(files, File{Path: f.Name, Content: content})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate files: %w", err)
	}

	return files, nil
}

func (c *Client) commit(repo *git.Repository, ref string) (*object.Commit, error) {
	hash, err := c.resolveRef(repo, ref)
	if err != nil {
		return nil, err
	}
	commit, err := repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit object: %w", err)
	}
	return commit, nil
}

func (c *Client) getSSHAuth() (*ssh.PublicKeys, error) {
	if c.sshKeyPath == "" {
		return nil, nil
	}

	if _, err := os.Stat(c.sshKeyPath); os.IsNotExist(err) {
		return nil, nil
	}

	auth, err := ssh.NewPublicKeysFromFile("git", c.sshKeyPath, c.sshPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to load SSH key: %w", err)
	}

	return auth, nil
}

func (c *Client) resolveRef(repo *git.Repository, ref string) (plumbing.Hash, error) {
	if ref == "" || ref == "HEAD" {
		head, err := repo.Head()
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("failed to resolve HEAD: %w", err)
		}
		return head.Hash(), nil
	}

	candidates := []plumbing.ReferenceName{
		plumbing.NewRemoteReferenceName("origin", ref),
		plumbing.NewBranchReferenceName(ref),
		plumbing.NewTagReferenceName(ref),
	}
	for _, name := range candidates {
		if r, err := repo.Reference(name, true); err == nil {
			return r.Hash(), nil
		}
	}

	hash := plumbing.NewHash(ref)
	if !hash.IsZero() {
		if _, err := repo.CommitObject(hash); err == nil {
			return hash, nil
		}
	}

	return plumbing.ZeroHash, fmt.Errorf("failed to resolve ref: %s", ref)
}
