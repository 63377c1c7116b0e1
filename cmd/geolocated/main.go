package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashgrove/geolocated/internal/api"
	"github.com/ashgrove/geolocated/internal/archive"
	"github.com/ashgrove/geolocated/internal/config"
	"github.com/ashgrove/geolocated/internal/geodb"
	"github.com/ashgrove/geolocated/internal/geolookup"
	"github.com/ashgrove/geolocated/internal/tzdb"
	"github.com/ashgrove/geolocated/internal/updater"
)

func main() {
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		fatalf("%v", err)
	}

	store := archive.NewStore(envCfg.DataDir)
	if err := store.Discover(); err != nil {
		fatalf("archive discovery: %v", err)
	}
	log.Println("Archive Store discovery complete")

	pool := geodb.NewPool(store, envCfg.MaxmindEditions, envCfg.DeferredGCPoll)
	pool.LoadStartup()
	log.Printf("Reader Pool startup load complete for %d editions", len(envCfg.MaxmindEditions))

	tzTable := tzdb.NewTable()
	tzdb.Initialize(tzTable, store, envCfg.ZicPath)

	facade := geolookup.New(pool, store, tzTable, envCfg.LookupCacheEntries)

	httpClient := &http.Client{Timeout: envCfg.HTTPClientTimeout}
	refresher := archive.NewRefresher(store, httpClient)
	auth := maxmindAuth(envCfg)

	var loop *updater.Loop
	if envCfg.AutoUpdateEnabled() {
		editions := make([]updater.EditionConfig, 0, len(envCfg.MaxmindEditions))
		for _, tag := range envCfg.MaxmindEditions {
			editions = append(editions, updater.EditionConfig{
				Tag:         tag,
				URLTemplate: envCfg.MaxmindDownloadURL,
				Auth:        auth,
				MinInterval: envCfg.AutoUpdateInterval,
			})
		}
		loop = updater.NewLoop(refresher, pool, editions)
		loop.Start()
		log.Println("Updater Loop started")
	} else {
		log.Println("Auto-update disabled (no MaxMind credentials or overridden download URL)")
	}

	var tzUpdater *tzdb.Updater
	if envCfg.TzdataAutoUpdateEnabled() {
		tzAuth := archive.Auth{}
		if envCfg.TzdataBearerToken != "" {
			tzAuth = archive.Auth{Method: archive.AuthBearer, Token: envCfg.TzdataBearerToken}
		}
		builder := tzdb.NewBuilder(tzTable, store, envCfg.ZicPath)
		tzUpdater = tzdb.NewUpdater(refresher, builder, envCfg.TzdataDownloadURL, tzAuth, envCfg.TzdataAutoUpdateInterval)
		tzUpdater.Start()
		log.Println("Timezone Builder periodic refresh started")
	}

	srv := api.NewServer(envCfg.ListenAddr, envCfg.APIKey, facade, store, pool, tzTable, loop, envCfg.MaxmindEditions)

	serverErrCh := make(chan error, 1)
	go func() {
		log.Printf("geolocated API server starting on %s", envCfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runtimeErr error
	select {
	case sig := <-quit:
		log.Printf("received signal %s, shutting down...", sig)
	case err := <-serverErrCh:
		runtimeErr = err
		log.Printf("received server runtime error (%v), shutting down...", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
	if loop != nil {
		loop.Stop()
		log.Println("Updater Loop stopped")
	}
	if tzUpdater != nil {
		tzUpdater.Stop()
		log.Println("Timezone Builder periodic refresh stopped")
	}

	log.Println("geolocated stopped")
	if runtimeErr != nil {
		fatalf("runtime server error: %v", runtimeErr)
	}
}

// maxmindAuth prefers a bearer token, falling back to basic auth with the
// account ID and licence key, per the upstream auth precedence.
func maxmindAuth(envCfg *config.EnvConfig) archive.Auth {
	if envCfg.MaxmindBearerToken != "" {
		return archive.Auth{Method: archive.AuthBearer, Token: envCfg.MaxmindBearerToken}
	}
	if envCfg.MaxmindAccountID != "" {
		return archive.Auth{Method: archive.AuthBasic, User: envCfg.MaxmindAccountID, Password: envCfg.MaxmindLicenceKey}
	}
	return archive.Auth{Method: archive.AuthNone}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal: "+format+"\n", args...)
	os.Exit(1)
}
