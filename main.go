// Command go-bootconfig serves Raspberry Pi boot configuration files
// to a fleet of devices. A single source is configured with flags; a
// YAML manifest configures several at once.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kscale/go-bootconfig/server"
	"github.com/kscale/go-bootconfig/source"
)

var (
	repoType        = flag.String("repo_type", "fs", "repository type (fs, git, http, s3, gcs)")
	name            = flag.String("name", "config.txt", "name the configuration is served under")
	path            = flag.String("path", "", "path to the boot configuration file")
	URL             = flag.String("url", "", "url of the git repository or http endpoint")
	branch          = flag.String("branch", "", "git branch to track")
	bucket          = flag.String("bucket", "", "s3 or gcs bucket name")
	addr            = flag.String("addr", ":8080", "listen address")
	authKey         = flag.String("auth_key", "", "auth key for the server")
	refreshInterval = flag.Duration("refresh_interval", 30*time.Second, "how often sources are re-fetched")
	manifestPath    = flag.String("manifest", "", "YAML manifest describing multiple repositories")
)

func main() {
	flag.Parse()

	repositories := buildRepositories()

	srv := server.NewServer(context.Background(), repositories, *refreshInterval)
	srv.AuthKey = *authKey
	srv.Start(*addr)
}

func buildRepositories() []source.Repository {
	if *manifestPath != "" {
		manifest, err := LoadManifest(*manifestPath)
		if err != nil {
			logrus.WithError(err).Fatal("error loading manifest")
		}
		if manifest.Addr != "" {
			*addr = manifest.Addr
		}
		if manifest.AuthKey != "" {
			*authKey = manifest.AuthKey
		}
		if manifest.RefreshIntervalSec > 0 {
			*refreshInterval = time.Duration(manifest.RefreshIntervalSec) * time.Second
		}
		repositories, err := manifest.BuildRepositories()
		if err != nil {
			logrus.WithError(err).Fatal("error building repositories")
		}
		return repositories
	}

	repository, err := NewRepository(*repoType)
	if err != nil {
		logrus.WithError(err).Fatal("error creating repository")
	}
	return []source.Repository{repository}
}
