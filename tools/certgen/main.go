// Package main generates a Certificate Authority (CA), server, and client
// certificates for the document server's TLS and the client's mutual TLS,
// writing them to files under the output directory.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/atinyakov/OfficeSync/internal/certgen"
)

func main() {
	dir := flag.String("dir", "certs", "output directory")
	hosts := flag.String("hosts", "localhost,127.0.0.1", "comma-separated server hosts")
	clients := flag.String("clients", "officesync-client", "comma-separated client common names")
	flag.Parse()

	if err := run(*dir, split(*hosts), split(*clients)); err != nil {
		fmt.Fprintf(os.Stderr, "certgen: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Certificates generated into %s\n", *dir)
}

// run writes ca.crt/ca.key, server.crt/server.key and one
// <client>.crt/<client>.key pair per client name into dir.
func run(dir string, hosts, clients []string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	ca, err := certgen.NewAuthority("OfficeSync CA")
	if err != nil {
		return err
	}
	certPEM, keyPEM, err := ca.PEM()
	if err != nil {
		return err
	}
	if err := writePair(dir, "ca", certPEM, keyPEM); err != nil {
		return err
	}

	certPEM, keyPEM, err = ca.IssueServer(hosts...)
	if err != nil {
		return err
	}
	if err := writePair(dir, "server", certPEM, keyPEM); err != nil {
		return err
	}

	for _, name := range clients {
		certPEM, keyPEM, err := ca.IssueClient(name)
		if err != nil {
			return err
		}
		if err := writePair(dir, name, certPEM, keyPEM); err != nil {
			return err
		}
	}
	return nil
}

// writePair writes name.crt and name.key; keys are readable by the owner only.
func writePair(dir, name string, certPEM, keyPEM []byte) error {
	if err := os.WriteFile(filepath.Join(dir, name+".crt"), certPEM, 0o644); err != nil {
		return fmt.Errorf("write %s.crt: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".key"), keyPEM, 0o600); err != nil {
		return fmt.Errorf("write %s.key: %w", name, err)
	}
	return nil
}

func split(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
