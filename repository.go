package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/kscale/go-bootconfig/source"
)

// NewRepository builds a repository from the command-line flags.
func NewRepository(repoType string) (source.Repository, error) {
	switch repoType {
	case "fs":
		if *path == "" {
			logrus.Fatal("path is required")
		}
		return source.NewFileRepository(*name, *path)
	case "git":
		if *path == "" {
			logrus.Fatal("path is required")
		}
		if *URL == "" {
			logrus.Fatal("url is required")
		}
		return source.NewGitRepository(*name, *URL, *path, *branch)
	case "http":
		if *URL == "" {
			logrus.Fatal("url is required")
		}
		return source.NewWebRepository(*name, *URL)
	case "s3":
		if *bucket == "" {
			logrus.Fatal("bucket is required")
		}
		if *path == "" {
			logrus.Fatal("path is required")
		}
		return source.NewAwsS3Repository(*name, *bucket, *path)
	case "gcs":
		if *bucket == "" {
			logrus.Fatal("bucket is required")
		}
		if *path == "" {
			logrus.Fatal("path is required")
		}
		return source.NewGcpStorageRepository(*name, *bucket, *path)
	default:
		return nil, fmt.Errorf("unknown repository type %q", repoType)
	}
}
