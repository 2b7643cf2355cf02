package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/crystal-station/gostation/pkg/adminlog"
	"github.com/crystal-station/gostation/pkg/adminmgr"
	"github.com/crystal-station/gostation/pkg/archive"
	"github.com/crystal-station/gostation/pkg/boltstore"
	"github.com/crystal-station/gostation/pkg/server"
)

// envDefault returns the environment variable value if set, otherwise the fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func main() {
	confFile := flag.String("conf", envDefault("STATION_CONF", ""), "Path to game config file (env: STATION_CONF)")
	boltPath := flag.String("bolt", "", "Path to bbolt account database (env: STATION_BOLT)")
	adminLogPath := flag.String("adminlog", "", "Path to SQLite admin log (env: STATION_ADMINLOG)")
	port := flag.Int("port", 0, "Web port to listen on (env: STATION_PORT)")
	protoDir := flag.String("protodir", "", "Directory of extra prototypes (env: STATION_PROTODIR)")
	localeFile := flag.String("locale", "", "Path to locale overrides (env: STATION_LOCALE)")
	tlsCert := flag.String("tls-cert", "", "Path to TLS certificate file (env: STATION_TLS_CERT)")
	tlsKey := flag.String("tls-key", "", "Path to TLS private key file (env: STATION_TLS_KEY)")
	restore := flag.String("restore", "", "Restore data from an archive and exit")
	overwriteConf := flag.Bool("restore-conf", false, "With -restore, replace a config file that differs from the archive")
	archiveDir := flag.String("archive-dir", "", "Directory for data archives (env: STATION_ARCHIVE_DIR)")
	createHost := flag.String("create-host", envDefault("STATION_CREATE_HOST", ""), "Create a HOST account as name:password and exit (env: STATION_CREATE_HOST)")
	flag.Parse()

	log.Printf("Welcome to %s", server.VersionString())

	// Load game config if specified, otherwise use defaults
	var gc *server.GameConf
	if *confFile != "" {
		var err error
		gc, err = server.LoadGameConf(*confFile)
		if err != nil {
			log.Fatalf("Error loading game config: %v", err)
		}
		log.Printf("Loaded game config from %s", *confFile)
	} else {
		gc = server.DefaultGameConf()
	}

	// Environment overrides the file; flags override both.
	if err := gc.ApplyEnv(); err != nil {
		log.Fatalf("Error reading environment: %v", err)
	}
	if *port != 0 {
		gc.WebPort = *port
	}
	if *boltPath != "" {
		gc.BoltPath = *boltPath
	}
	if *adminLogPath != "" {
		gc.AdminLogPath = *adminLogPath
	}
	if *protoDir != "" {
		gc.PrototypeDir = *protoDir
	}
	if *localeFile != "" {
		gc.LocaleFile = *localeFile
	}
	if *archiveDir != "" {
		gc.ArchiveDir = *archiveDir
	}
	if *tlsCert != "" {
		gc.TLSCert = *tlsCert
	}
	if *tlsKey != "" {
		gc.TLSKey = *tlsKey
	}

	if err := gc.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Restore from an archive and exit
	if *restore != "" {
		res, err := archive.Restore(archive.RestoreParams{
			ArchivePath:   *restore,
			AccountsDest:  gc.BoltPath,
			AdminLogDest:  gc.AdminLogPath,
			PrototypeDest: gc.PrototypeDir,
			LocaleDest:    gc.LocaleFile,
			ConfDest:      gc.Path,
			OverwriteConf: *overwriteConf,
		})
		if err != nil {
			log.Fatalf("Error restoring archive: %v", err)
		}
		for _, w := range res.Warnings {
			log.Printf("Warning: %s", w)
		}
		log.Printf("Restored %d files from %s (%s, %s)", res.FilesRestored, filepath.Base(*restore), res.Manifest.Name, res.Manifest.Timestamp)
		return
	}

	var store *boltstore.Store
	if gc.BoltPath != "" {
		if err := os.MkdirAll(filepath.Dir(gc.BoltPath), 0755); err != nil {
			log.Fatalf("Error creating data directory: %v", err)
		}
		var err error
		store, err = boltstore.Open(gc.BoltPath)
		if err != nil {
			log.Fatalf("Error opening bolt database: %v", err)
		}
		defer store.Close()
		log.Printf("Accounts database: %s (schema %d)", gc.BoltPath, store.Schema())
	}

	// Create a HOST account and exit
	if *createHost != "" {
		if store == nil {
			log.Fatalf("-create-host needs a bolt database")
		}
		name, password, ok := strings.Cut(*createHost, ":")
		if !ok {
			fmt.Fprintln(os.Stderr, "Usage: gostation -bolt <boltfile> -create-host name:password")
			os.Exit(1)
		}
		auth := server.NewAuthService(store, "", 0)
		if err := auth.Register(name, password); err != nil {
			log.Fatalf("Error creating account: %v", err)
		}
		if err := store.SetAdminFlags(name, uint32(adminmgr.FlagHost)); err != nil {
			log.Fatalf("Error setting flags: %v", err)
		}
		log.Printf("Created HOST account %s", name)
		return
	}

	var alog *adminlog.Store
	if gc.AdminLogPath != "" {
		if err := os.MkdirAll(filepath.Dir(gc.AdminLogPath), 0755); err != nil {
			log.Fatalf("Error creating data directory: %v", err)
		}
		var err error
		alog, err = adminlog.Open(gc.AdminLogPath, gc.AdminLogTimeout)
		if err != nil {
			log.Fatalf("Error opening admin log: %v", err)
		}
		defer alog.Close()
		log.Printf("Admin log: %s", gc.AdminLogPath)
	}

	game, err := server.NewGame(gc, store, alog)
	if err != nil {
		log.Fatalf("Error building game: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(game)
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
