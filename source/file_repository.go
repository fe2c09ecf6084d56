package source

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/kscale/go-bootconfig/bootcfg"
)

// FileRepository is a struct that implements the Repository interface for
// handling a boot configuration stored on the local filesystem, typically
// the mounted boot partition.
type FileRepository struct {
	sync.RWMutex                   // RWMutex to synchronize access to data during refresh
	Name         string            // Name of the configuration source
	Path         string            // File path of the boot configuration file
	doc          *bootcfg.Document // Parsed document
	rawData      []byte            // Raw bytes of the boot configuration file
}

// NewFileRepository creates a FileRepository for the given path.
func NewFileRepository(name, path string) (*FileRepository, error) {
	return &FileRepository{Name: name, Path: path}, nil
}

// GetName returns the name of the configuration source.
func (f *FileRepository) GetName() string {
	return f.Name
}

// Document returns the last successfully parsed boot configuration.
func (f *FileRepository) Document() *bootcfg.Document {
	f.RLock()
	defer f.RUnlock()
	return f.doc
}

// GetRawData returns the raw bytes of the boot configuration file.
func (f *FileRepository) GetRawData() []byte {
	f.RLock()
	defer f.RUnlock()
	return f.rawData
}

// Refresh reads the file from disk and swaps in the parsed document.
// A read error keeps the previously cached document.
func (f *FileRepository) Refresh() error {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		logrus.WithError(err).Debug("error reading file")
		return err
	}

	doc := bootcfg.Parse(data)

	f.Lock()
	f.doc = doc
	f.rawData = data
	f.Unlock()

	return nil
}
