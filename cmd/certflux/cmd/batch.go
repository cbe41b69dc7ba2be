package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmcleod/certflux/batch"
	"github.com/jmcleod/certflux/csr"
	"github.com/jmcleod/certflux/internal/util"
	"github.com/jmcleod/certflux/prompt"
)

var (
	batchNames    string
	batchScanDir  string
	batchFilter   string
	batchSANs     string
	batchPassword bool
	batchParallel bool
	batchWorkers  int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Issue certificates for many identifiers in one run",
	Long: `batch issues certificates for a comma-separated list of names, or for
every CSR file found in a scan directory. The CA is unlocked once and
shared across the whole run; each item succeeds or fails on its own.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := newFormatter()

		cfg, err := loadConfig()
		if err != nil {
			return fail(f, err)
		}

		var jobs []batch.Job
		switch {
		case batchScanDir != "" || (batchNames == "" && cfg.CSRInputDir != ""):
			dir := batchScanDir
			if dir == "" {
				dir = cfg.CSRInputDir
			}
			files, err := batch.FindCSRFiles(dir)
			if err != nil {
				return fail(f, err)
			}
			files = batch.FilterCSRFiles(files, batchFilter)
			if len(files) == 0 {
				return fail(f, batch.ErrNoCSRFiles)
			}
			f.Info("Found %d CSR file(s) in %s", len(files), dir)
			jobs = batch.JobsFromCSRFiles(files)

		case batchNames != "":
			names := splitNames(batchNames)
			sans, err := csr.ParseSANList(batchSANs)
			if err != nil {
				return fail(f, err)
			}

			// Collect the passphrase up front so no prompt interleaves
			// with worker output.
			var passphrase []byte
			if batchPassword {
				pw, err := prompt.NewPassword("Enter password for batch private keys")
				if err != nil {
					return fail(f, err)
				}
				passphrase = []byte(pw)
				defer util.WipeBytes(passphrase)
			}
			jobs = batch.BuildJobs(names, sans, passphrase)

		default:
			return fail(f, errNoBatchInput)
		}

		authority, err := loadCA(cfg, f)
		if err != nil {
			return fail(f, err)
		}
		defer authority.Close()

		inventory, err := openInventory(cfg)
		if err != nil {
			return fail(f, err)
		}
		if inventory != nil {
			defer inventory.Close()
		}

		opts := []batch.RunnerOption{}
		if inventory != nil {
			opts = append(opts, batch.WithInventory(inventory))
		}
		runner := batch.NewRunner(cfg, authority, opts...)

		parallel := batchParallel || cfg.Batch.Parallel
		workers := batchWorkers
		if workers <= 0 {
			workers = cfg.Batch.MaxWorkers
		}
		if parallel {
			f.Step("Processing %d item(s) with up to %d worker(s)...", len(jobs), workers)
		} else {
			f.Step("Processing %d item(s) sequentially...", len(jobs))
		}

		result := batch.NewCoordinator(runner, parallel, workers).Process(jobs)

		f.Info("Batch complete: %d succeeded, %d failed", result.Successful, result.Failed)
		for _, e := range result.Errors {
			f.Error("%s: %s", e.Name, e.Message)
		}
		if result.Failed > 0 {
			return fail(f, errBatchPartial)
		}
		f.Success("All %d certificate(s) issued", result.Successful)
		return nil
	},
}

func splitNames(s string) []string {
	var names []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return names
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringVarP(&batchNames, "names", "n", "", "Comma-separated certificate names")
	batchCmd.Flags().StringVar(&batchScanDir, "scan-dir", "", "Directory to scan for CSR files (overrides config)")
	batchCmd.Flags().StringVar(&batchFilter, "filter", "", "Only process CSR files whose name contains this substring")
	batchCmd.Flags().StringVarP(&batchSANs, "sans", "s", "", "Subject Alternative Names applied to every name")
	batchCmd.Flags().BoolVarP(&batchPassword, "password", "p", false, "Password-protect the generated private keys")
	batchCmd.Flags().BoolVar(&batchParallel, "parallel", false, "Process items concurrently")
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "Worker pool size in parallel mode (config default when 0)")
}
