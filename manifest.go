package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kscale/go-bootconfig/source"
)

// Manifest describes a set of boot-configuration repositories and the
// server settings, so one instance can serve several hardware
// profiles.
type Manifest struct {
	Addr               string             `yaml:"addr"`
	AuthKey            string             `yaml:"authKey"`
	RefreshIntervalSec int                `yaml:"refreshIntervalSec"`
	Repositories       []RepositoryConfig `yaml:"repositories"`
}

// RepositoryConfig describes a single repository entry. Which fields
// are required depends on the type.
type RepositoryConfig struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Path   string `yaml:"path"`
	URL    string `yaml:"url"`
	Branch string `yaml:"branch"`
	Bucket string `yaml:"bucket"`
}

// LoadManifest reads and parses a YAML manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(manifest.Repositories) == 0 {
		return nil, fmt.Errorf("manifest %s lists no repositories", path)
	}
	return &manifest, nil
}

// BuildRepositories constructs a Repository per manifest entry.
func (m *Manifest) BuildRepositories() ([]source.Repository, error) {
	repositories := make([]source.Repository, 0, len(m.Repositories))
	for _, rc := range m.Repositories {
		repo, err := rc.build()
		if err != nil {
			return nil, fmt.Errorf("repository %q: %w", rc.Name, err)
		}
		repositories = append(repositories, repo)
	}
	return repositories, nil
}

func (rc RepositoryConfig) build() (source.Repository, error) {
	if rc.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	switch rc.Type {
	case "fs":
		if rc.Path == "" {
			return nil, fmt.Errorf("path is required")
		}
		return source.NewFileRepository(rc.Name, rc.Path)
	case "git":
		if rc.URL == "" || rc.Path == "" {
			return nil, fmt.Errorf("url and path are required")
		}
		return source.NewGitRepository(rc.Name, rc.URL, rc.Path, rc.Branch)
	case "http":
		if rc.URL == "" {
			return nil, fmt.Errorf("url is required")
		}
		return source.NewWebRepository(rc.Name, rc.URL)
	case "s3":
		if rc.Bucket == "" || rc.Path == "" {
			return nil, fmt.Errorf("bucket and path are required")
		}
		return source.NewAwsS3Repository(rc.Name, rc.Bucket, rc.Path)
	case "gcs":
		if rc.Bucket == "" || rc.Path == "" {
			return nil, fmt.Errorf("bucket and path are required")
		}
		return source.NewGcpStorageRepository(rc.Name, rc.Bucket, rc.Path)
	default:
		return nil, fmt.Errorf("unknown repository type %q", rc.Type)
	}
}
