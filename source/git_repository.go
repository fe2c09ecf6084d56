package source

import (
	"context"
	"io"
	"net/url"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/sirupsen/logrus"

	"github.com/kscale/go-bootconfig/bootcfg"
)

// GitRepository is a struct that implements the Repository interface for
// handling a boot configuration tracked in a Git repository. The clone
// lives in memory; Refresh pulls and re-reads the file. Useful when the
// boot profile for a fleet is reviewed through an ordinary Git workflow.
type GitRepository struct {
	sync.RWMutex                    // RWMutex to synchronize access to data during refresh
	Name          string            // Name of the configuration source
	URL           *url.URL          // URL of the Git repository
	Path          string            // Path to the boot configuration file within the repository
	Branch        string            // Branch to use when cloning the Git repository
	Auth          *http.BasicAuth   // BasicAuth to use when cloning the Git repository
	doc           *bootcfg.Document // Parsed document
	rawData       []byte            // Raw bytes of the boot configuration file
	gitRepository *git.Repository   // Go-Git repository instance for the in-memory clone
	fs            billy.Filesystem  // Filesystem holding the in-memory clone
}

// NewGitRepository creates a GitRepository for the given clone URL and
// in-repository file path.
func NewGitRepository(name, rawURL, path, branch string) (*GitRepository, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	return &GitRepository{Name: name, URL: parsed, Path: path, Branch: branch}, nil
}

// GetName returns the name of the configuration source.
func (g *GitRepository) GetName() string {
	return g.Name
}

// Document returns the last successfully parsed boot configuration.
func (g *GitRepository) Document() *bootcfg.Document {
	g.RLock()
	defer g.RUnlock()
	return g.doc
}

// GetRawData returns the raw bytes of the boot configuration file.
func (g *GitRepository) GetRawData() []byte {
	g.RLock()
	defer g.RUnlock()
	return g.rawData
}

// Refresh clones the repository into memory on first use, pulls on
// subsequent calls, then re-reads and re-parses the configuration file.
func (g *GitRepository) Refresh() error {
	if err := g.sync(); err != nil {
		return err
	}

	file, err := g.fs.Open(g.Path)
	if err != nil {
		logrus.WithError(err).Debug("error opening file")
		return err
	}
	defer func(file billy.File) {
		if err := file.Close(); err != nil {
			logrus.WithError(err).Error("error closing file")
		}
	}(file)

	data, err := io.ReadAll(file)
	if err != nil {
		logrus.WithError(err).Debug("error reading file")
		return err
	}

	doc := bootcfg.Parse(data)

	g.Lock()
	g.doc = doc
	g.rawData = data
	g.Unlock()

	return nil
}

func (g *GitRepository) sync() error {
	g.Lock()
	defer g.Unlock()

	if g.fs == nil {
		g.fs = memfs.New()
		logrus.Debugf("cloning %s into memory", g.URL.String())

		options := &git.CloneOptions{
			URL:  g.URL.String(),
			Auth: g.Auth,
		}
		if g.Branch != "" {
			options.ReferenceName = plumbing.NewBranchReferenceName(g.Branch)
			options.SingleBranch = true
		}
		r, err := git.CloneContext(context.Background(), memory.NewStorage(), g.fs, options)
		if err != nil {
			g.fs = nil
			return err
		}
		g.gitRepository = r
		logrus.Debug("cloned")
		return nil
	}

	w, err := g.gitRepository.Worktree()
	if err != nil {
		return err
	}
	logrus.Debug("pulling")

	pullOptions := &git.PullOptions{Auth: g.Auth}
	if g.Branch != "" {
		pullOptions.ReferenceName = plumbing.NewBranchReferenceName(g.Branch)
		pullOptions.SingleBranch = true
		pullOptions.Force = true
	}

	err = w.PullContext(context.Background(), pullOptions)
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return err
	}
	if err == git.NoErrAlreadyUpToDate {
		logrus.Debug("already up to date")
	} else {
		logrus.Debug("pulled")
	}
	return nil
}
