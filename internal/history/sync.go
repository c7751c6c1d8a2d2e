package history

import (
	"log/slog"

	"github.com/starford/jera/internal/storage"
)

// Sync brings the fragments table in line with the project tree:
// new/changed files get their checksum recorded, entries for files
// removed from disk are deleted.
func Sync(db Log, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	recorded, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if recorded[m.Path] == m.Checksum {
			continue
		}
		if err := db.UpsertFragment(m.Path, m.Checksum); err != nil {
			logger.Warn("history sync: upsert failed",
				slog.String("path", m.Path), slog.String("error", err.Error()))
		}
	}

	for p := range recorded {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteFragment(p); err != nil {
				logger.Warn("history sync: delete failed",
					slog.String("path", p), slog.String("error", err.Error()))
			}
		}
	}

	return nil
}

// ChangedSinceLastSync compares the project tree against the recorded
// checksums and returns the paths that are new or modified.
func ChangedSinceLastSync(db Log, store storage.Provider) ([]string, error) {
	metas, err := store.List("")
	if err != nil {
		return nil, err
	}
	recorded, err := db.AllChecksums()
	if err != nil {
		return nil, err
	}

	var changed []string
	for _, m := range metas {
		if recorded[m.Path] != m.Checksum {
			changed = append(changed, m.Path)
		}
	}
	return changed, nil
}
