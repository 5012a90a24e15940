package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/i5heu/linkchain"
	"github.com/i5heu/linkchain/internal/backup"
	"github.com/i5heu/linkchain/internal/config"
	backupApi "github.com/i5heu/linkchain/pkg/backup"
	"github.com/i5heu/linkchain/pkg/logging"
	"github.com/i5heu/linkchain/pkg/storage"
	"github.com/i5heu/linkchain/pkg/types"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		logging.Logger.Error("linkchain failed", "error", err)
		os.Exit(1)
	}
}

// run loads, validates and rewrites the chain. A broken chain is reported,
// not returned as an error.
func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("linkchain", flag.ContinueOnError)
	configPath := fs.String("config", "linkchain.yaml", "path to the YAML config file")
	asJSON := fs.Bool("json", false, "dump records as JSON instead of text")
	restorePath := fs.String("restore", "", "xz snapshot to restore into storage before loading")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: linkchain [flags] [path [backend]]\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	conf, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	conf.ApplyArgs(fs.Args())
	if err := conf.Validate(); err != nil {
		return err
	}
	scheme, err := conf.Scheme()
	if err != nil {
		return err
	}

	log, err := logging.New(conf.Log.Level, conf.Log.JSON)
	if err != nil {
		return err
	}
	cmdLog, err := logging.NewSlog(os.Stderr, conf.Log.Level, conf.Log.JSON)
	if err != nil {
		return err
	}
	logging.Logger = cmdLog

	ctx := context.Background()

	if *restorePath != "" {
		if err := restore(ctx, conf, *restorePath, log); err != nil {
			return err
		}
	}

	ledger, err := linkchain.New(linkchain.Config{
		Backend:       conf.Storage.Backend,
		Path:          conf.Storage.Path,
		MinimumFreeMB: conf.Storage.MinimumFreeMB,
		Scheme:        scheme,
		Logger:        log,
	})
	if err != nil {
		return err
	}
	defer ledger.Close()

	if err := ledger.Start(ctx); err != nil {
		return err
	}

	report := ledger.Verify()
	fmt.Fprintf(stdout, "Is valid? %t\n", report.Valid)

	if *asJSON {
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(ledger.Records()); err != nil {
			return err
		}
	} else {
		fmt.Fprint(stdout, ledger.String())
	}

	if err := ledger.Persist(ctx); err != nil {
		return err
	}

	if conf.Backup.Path != "" {
		compression := backupApi.Compression(conf.Backup.Compression)
		if err := writeBackup(ctx, conf.Backup.Path, compression, ledger.Entries(), scheme, log); err != nil {
			return err
		}
	}

	return nil
}

func restore(ctx context.Context, conf config.Config, path string, log *logrus.Logger) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	manifest, records, err := backup.NewBackupManager(log, "").RestoreData(ctx, file)
	if err != nil {
		return err
	}

	store, err := storage.Open(storage.Config{
		Backend:       conf.Storage.Backend,
		Path:          conf.Storage.Path,
		MinimumFreeMB: conf.Storage.MinimumFreeMB,
		Logger:        log,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Persist(ctx, types.Annotate(records, manifest.Scheme)); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"backupID": manifest.ID,
		"records":  len(records),
	}).Info("Snapshot restored")
	return nil
}

func writeBackup(
	ctx context.Context,
	path string,
	compression backupApi.Compression,
	entries []types.Entry,
	scheme types.DigestScheme,
	log *logrus.Logger,
) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}

	if _, err := backup.NewBackupManager(log, compression).BackupData(ctx, file, entries, scheme); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
