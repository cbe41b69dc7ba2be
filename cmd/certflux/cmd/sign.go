package cmd

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmcleod/certflux/batch"
	"github.com/jmcleod/certflux/csr"
)

var (
	signName string
	signDays int
)

var signCmd = &cobra.Command{
	Use:   "sign <csr-file>",
	Short: "Sign an externally generated CSR",
	Long: `sign verifies the self-signature of a CSR produced elsewhere and
issues a certificate for it. No private key material is generated or
stored for the requester.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := newFormatter()

		cfg, err := loadConfig()
		if err != nil {
			return fail(f, err)
		}

		request, err := csr.LoadPEM(args[0])
		if err != nil {
			return fail(f, err)
		}

		name := signName
		if name == "" {
			base := filepath.Base(args[0])
			base = strings.TrimSuffix(base, ".pem")
			name = strings.TrimSuffix(base, ".csr")
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

		f.Step("Signing CSR for %s...", name)
		issued, err := runner.Run(batch.Job{
			Name:         name,
			Request:      request,
			ValidityDays: signDays,
		})
		if err != nil {
			return fail(f, err)
		}

		f.Success("Certificate %s issued (serial %s)", issued.Name, issued.SerialNumber)
		f.Info("Certificate: %s", issued.CertPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(signCmd)
	signCmd.Flags().StringVarP(&signName, "name", "n", "", "Certificate name (defaults to the CSR file name)")
	signCmd.Flags().IntVarP(&signDays, "days", "d", 0, "Certificate validity in days (config default when 0)")
}
