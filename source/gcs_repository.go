package source

import (
	"context"
	"io"
	"sync"

	"cloud.google.com/go/storage"

	"github.com/kscale/go-bootconfig/bootcfg"
)

// GcpStorageRepository is a struct that implements the Repository interface
// for handling a boot configuration stored in a GCS bucket.
type GcpStorageRepository struct {
	sync.RWMutex                    // RWMutex to synchronize access to data during refresh
	Name          string            // Name of the configuration source
	BucketName    string            // Name of the GCS bucket
	ObjectName    string            // Name of the boot configuration object within the bucket
	Client        *storage.Client   // GCS client instance
	doc           *bootcfg.Document // Parsed document
	rawData       []byte            // Raw bytes of the boot configuration file
	clientOnce    sync.Once         // Ensures client is initialized only once
	clientInitErr error             // Stores error from client initialization
}

// NewGcpStorageRepository creates a GcpStorageRepository for the given
// bucket and object.
func NewGcpStorageRepository(name, bucket, object string) (*GcpStorageRepository, error) {
	return &GcpStorageRepository{Name: name, BucketName: bucket, ObjectName: object}, nil
}

// GetName returns the name of the configuration source.
func (g *GcpStorageRepository) GetName() string {
	return g.Name
}

// Document returns the last successfully parsed boot configuration.
func (g *GcpStorageRepository) Document() *bootcfg.Document {
	g.RLock()
	defer g.RUnlock()
	return g.doc
}

// GetRawData returns the raw bytes of the boot configuration file.
func (g *GcpStorageRepository) GetRawData() []byte {
	g.RLock()
	defer g.RUnlock()
	return g.rawData
}

// Refresh reads the object from the GCS bucket and swaps in the parsed
// document.
func (g *GcpStorageRepository) Refresh() error {
	ctx := context.Background()

	// Thread-safe client initialization (only if client not pre-configured)
	if g.Client == nil {
		g.clientOnce.Do(func() {
			g.Client, g.clientInitErr = storage.NewClient(ctx)
		})
		if g.clientInitErr != nil {
			return g.clientInitErr
		}
	}

	// Network I/O outside the lock
	reader, err := g.Client.Bucket(g.BucketName).Object(g.ObjectName).NewReader(ctx)
	if err != nil {
		return err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	doc := bootcfg.Parse(data)

	// Only lock for the atomic swap
	g.Lock()
	g.doc = doc
	g.rawData = data
	g.Unlock()

	return nil
}
