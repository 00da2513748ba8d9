// Package main is the OfficeSync command-line client. It mirrors the remote
// users and tasks collections into a local SQLite cache and records offline
// mutations.
package main

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	version   string
	buildDate string
)

// Global flags.
var (
	serverURL  string
	dbPath     string
	backend    string
	projectID  string
	certFile   string
	keyFile    string
	caFile     string
	logLevel   string
	logFile    string
	ownerID    string
	pageSize   int
	jsonOutput bool
	offline    bool
)

var rootCmd = &cobra.Command{
	Use:           "officesync",
	Short:         "Offline-first sync client for office users and tasks",
	Version:       cmp.Or(version, "N/A") + " (" + cmp.Or(buildDate, "N/A") + ")",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&serverURL, "url", envOr("OFFICESYNC_URL", "http://localhost:8080"), "document server base URL")
	pf.StringVar(&dbPath, "db", envOr("OFFICESYNC_DB", "officesync.db"), "local cache database path")
	pf.StringVar(&backend, "backend", envOr("OFFICESYNC_BACKEND", backendHTTP), "remote backend: http or datastore")
	pf.StringVar(&projectID, "project", os.Getenv("DATASTORE_PROJECT_ID"), "Google Cloud project of the datastore backend")
	pf.StringVar(&certFile, "cert", "", "client certificate for mutual TLS")
	pf.StringVar(&keyFile, "key", "", "client key for mutual TLS")
	pf.StringVar(&caFile, "ca", "", "CA certificate of the server")
	pf.StringVar(&logLevel, "log-level", "warn", "log level")
	pf.StringVar(&logFile, "log-file", "", "rotated log file")
	pf.StringVar(&ownerID, "owner", os.Getenv("OFFICESYNC_OWNER"), "owner (user uid) of synced tasks")
	pf.IntVar(&pageSize, "page-size", 0, "records per page (default 50)")
	pf.BoolVar(&jsonOutput, "json", false, "print JSON")
	pf.BoolVar(&offline, "offline", envBool("OFFICESYNC_OFFLINE"), "skip remote fetches and keep the cached data")
}

func envOr(key, fallback string) string {
	return cmp.Or(os.Getenv(key), fallback)
}

func envBool(key string) bool {
	v, _ := strconv.ParseBool(os.Getenv(key))
	return v
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
