package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/atinyakov/OfficeSync/internal/entitysync"
	"github.com/atinyakov/OfficeSync/internal/localstore"
	"github.com/atinyakov/OfficeSync/internal/logger"
	"github.com/atinyakov/OfficeSync/internal/models"
	"github.com/atinyakov/OfficeSync/internal/queue"
	"github.com/atinyakov/OfficeSync/internal/remote"
	"github.com/atinyakov/OfficeSync/internal/state"
	"go.uber.org/zap"
)

const (
	backendHTTP      = "http"
	backendDatastore = "datastore"
)

// app wires the local cache, the remote backend and the state store.
type app struct {
	log   *zap.Logger
	local *localstore.Store
	http  *remote.Client
	state *state.Store
	queue *queue.Queue

	closers []func() error
}

func openApp(ctx context.Context) (*app, error) {
	l := logger.New()
	l.File = logFile
	if err := l.Init(logLevel); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &app{log: l.Log}
	a.closers = append(a.closers, func() error { _ = l.Log.Sync(); return nil })

	local, err := localstore.Open(ctx, dbPath, localstore.DefaultSchema, a.log)
	if err != nil {
		return nil, err
	}
	a.local = local
	a.closers = append(a.closers, local.Close)
	a.queue = queue.New(local, queue.WithLogger(a.log))

	fetcher, conn, err := a.remote(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	users, err := entitysync.NewUsers(fetcher, local, conn, a.log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	tasks, err := entitysync.NewTasks(fetcher, local, conn, a.log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.state = state.NewStore(a.log)
	if err := a.state.Register(state.NewSlice[models.User](users, a.log)); err != nil {
		_ = a.Close()
		return nil, err
	}
	if err := a.state.Register(state.NewSlice[models.Task](tasks, a.log)); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// remote selects the backend named by the --backend flag. Connectivity
// follows --offline; a backend that cannot be reached fails the sync.
func (a *app) remote(ctx context.Context) (entitysync.Fetcher, entitysync.Connectivity, error) {
	switch backend {
	case backendHTTP:
		var httpClient *http.Client
		if certFile != "" || keyFile != "" {
			c, err := remote.LoadClientCertificate(certFile, keyFile, caFile)
			if err != nil {
				return nil, nil, err
			}
			httpClient = c
		}
		a.http = remote.NewClient(serverURL, httpClient, a.log)
		return a.http, entitysync.StaticConnectivity(!offline), nil
	case backendDatastore:
		if projectID == "" {
			return nil, nil, errors.New("--project is required for the datastore backend")
		}
		ds, err := remote.NewDatastoreFetcher(ctx, projectID, a.log)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, ds.Close)
		return ds, entitysync.StaticConnectivity(!offline), nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
