package cmd

import (
	"errors"

	"github.com/jmcleod/certflux/ca"
	"github.com/jmcleod/certflux/config"
	"github.com/jmcleod/certflux/output"
	"github.com/jmcleod/certflux/prompt"
	"github.com/jmcleod/certflux/store"
	boltstore "github.com/jmcleod/certflux/store/bbolt"
)

var (
	errNoBatchInput = errors.New("nothing to process: pass --names, --scan-dir, or configure csr_input_dir")
	errBatchPartial = errors.New("one or more items failed")
	errNoInventory  = errors.New("no inventory configured: set inventory_path in the config file")
)

// loadCA loads the intermediate CA, prompting for the key passphrase
// only when the on-disk key carries an encryption marker.
func loadCA(cfg *config.Config, f *output.Formatter) (*ca.Authority, error) {
	f.Step("Loading intermediate CA...")
	authority, err := ca.Load(cfg.CACertPath, cfg.CAKeyPath, func() (string, error) {
		return prompt.Password("Enter intermediate CA private key password")
	})
	if err != nil {
		return nil, err
	}
	if !authority.VerifySelfConsistency() {
		authority.Close()
		return nil, errCAInconsistent(cfg)
	}
	f.Success("CA loaded: %s", authority.Subject())
	return authority, nil
}

func errCAInconsistent(cfg *config.Config) error {
	return &caMismatchError{certPath: cfg.CACertPath, keyPath: cfg.CAKeyPath}
}

type caMismatchError struct {
	certPath, keyPath string
}

func (e *caMismatchError) Error() string {
	return "CA certificate " + e.certPath + " does not match key " + e.keyPath
}

// openInventory opens the configured certificate inventory, or returns
// nil when none is configured.
func openInventory(cfg *config.Config) (store.Repository, error) {
	if cfg.InventoryPath == "" {
		return nil, nil
	}
	return boltstore.NewRepositoryFromFile(cfg.InventoryPath, nil)
}
