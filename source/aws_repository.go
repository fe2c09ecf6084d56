package source

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kscale/go-bootconfig/bootcfg"
)

// AwsS3Repository is a struct that implements the Repository interface for
// handling a boot configuration stored in an S3 bucket, where a CI
// pipeline typically publishes the reviewed profile.
type AwsS3Repository struct {
	sync.RWMutex                    // RWMutex to synchronize access to data during refresh
	Name          string            // Name of the configuration source
	BucketName    string            // Name of the S3 bucket
	ObjectName    string            // Key of the boot configuration file within the bucket
	Client        *s3.Client        // S3 client instance
	doc           *bootcfg.Document // Parsed document
	rawData       []byte            // Raw bytes of the boot configuration file
	clientOnce    sync.Once         // Ensures client is initialized only once
	clientInitErr error             // Stores error from client initialization
}

// NewAwsS3Repository creates an AwsS3Repository for the given bucket and key.
func NewAwsS3Repository(name, bucket, key string) (*AwsS3Repository, error) {
	return &AwsS3Repository{Name: name, BucketName: bucket, ObjectName: key}, nil
}

// GetName returns the name of the configuration source.
func (a *AwsS3Repository) GetName() string {
	return a.Name
}

// Document returns the last successfully parsed boot configuration.
func (a *AwsS3Repository) Document() *bootcfg.Document {
	a.RLock()
	defer a.RUnlock()
	return a.doc
}

// GetRawData returns the raw bytes of the boot configuration file.
func (a *AwsS3Repository) GetRawData() []byte {
	a.RLock()
	defer a.RUnlock()
	return a.rawData
}

// Refresh reads the file from the S3 bucket and swaps in the parsed
// document.
func (a *AwsS3Repository) Refresh() error {
	ctx := context.Background()

	// Thread-safe client initialization (only if client not pre-configured)
	if a.Client == nil {
		a.clientOnce.Do(func() {
			cfg, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				a.clientInitErr = fmt.Errorf("failed to load AWS config: %w", err)
				return
			}
			a.Client = s3.NewFromConfig(cfg)
		})
		if a.clientInitErr != nil {
			return a.clientInitErr
		}
	}

	// Network I/O outside the lock
	resp, err := a.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.BucketName),
		Key:    aws.String(a.ObjectName),
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	doc := bootcfg.Parse(data)

	// Only lock for the atomic swap
	a.Lock()
	a.doc = doc
	a.rawData = data
	a.Unlock()

	return nil
}
