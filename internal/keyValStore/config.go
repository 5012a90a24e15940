package keyValStore

import (
	"errors"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/disk"
)

func (sc *StoreConfig) checkConfig() error {
	if sc.InMemory {
		return nil
	}

	if sc.Path == "" {
		return errors.New("no path provided in configuration")
	}

	info, err := os.Stat(sc.Path)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(sc.Path, 0o755); err != nil {
			return fmt.Errorf("create store directory: %w", err)
		}
		info, err = os.Stat(sc.Path)
	}
	if err != nil {
		return fmt.Errorf("stat store directory: %w", err)
	}
	if !info.IsDir() {
		return errors.New("path is not a directory")
	}

	if sc.MinimumFreeMB == 0 {
		return nil
	}

	usage, err := disk.Usage(sc.Path)
	if err != nil {
		return fmt.Errorf("disk usage: %w", err)
	}
	if usage.Free/(1024*1024) < sc.MinimumFreeMB {
		return errors.New("not enough space available on disk")
	}

	return nil
}
