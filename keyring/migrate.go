package keyring

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ogbo/walletcore/keystore"
	"github.com/ogbo/walletcore/registry"
)

// MigrationReport lists what MigrateAll did per wallet id.
type MigrationReport struct {
	Migrated []string         // re-encrypted and saved
	Current  []string         // already at the target parameters
	Failed   map[string]error // left untouched
}

// OK reports whether no wallet failed.
func (r *MigrationReport) OK() bool { return len(r.Failed) == 0 }

// MigrateAll upgrades every local keystore that password opens and that is
// below the configured KDF. A wallet that fails (wrong password, corrupt
// blob, lost compare-and-swap) is recorded in the report and skipped; its
// stored keystore is left exactly as it was. The returned error is non-nil
// only when the registry cannot be read or ctx ends.
func (k *Keyring) MigrateAll(ctx context.Context, password string) (*MigrationReport, error) {
	records, err := k.reg.List()
	if err != nil {
		return nil, err
	}

	report := &MigrationReport{Failed: make(map[string]error)}
	var mu sync.Mutex
	record := func(id string, migrated bool, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err != nil:
			report.Failed[id] = err
		case migrated:
			report.Migrated = append(report.Migrated, id)
		default:
			report.Current = append(report.Current, id)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(k.opts.Workers)
	for _, rec := range records {
		if rec.IsExternal() {
			continue
		}
		if !k.migrator.NeedsMigration(rec.Keystore) {
			record(rec.ID, false, nil)
			continue
		}
		g.Go(func() error {
			migrated, err := k.migrateOne(gctx, rec, password)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			record(rec.ID, migrated, err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	k.log.Info("Keystore migration finished",
		"migrated", len(report.Migrated), "current", len(report.Current), "failed", len(report.Failed))
	for id, err := range report.Failed {
		k.log.Warn("Keystore migration skipped wallet", "id", id, "err", err)
	}
	return report, nil
}

func (k *Keyring) migrateOne(ctx context.Context, rec *registry.Record, password string) (bool, error) {
	res, err := submit(ctx, k.pool, func() (*keystore.MigrationResult, error) {
		return k.migrator.Migrate(rec.Keystore, password)
	}, func(r *keystore.MigrationResult) { clear(r.Key) })
	if err != nil {
		return false, err
	}
	defer clear(res.Key)

	if err := checkAddress(res.Key, rec.Address); err != nil {
		return false, err
	}
	if !res.Migrated {
		return false, nil
	}
	if err := k.reg.ReplaceKeystore(rec.ID, rec.Keystore, res.Blob); err != nil {
		return false, err
	}
	return true, nil
}
