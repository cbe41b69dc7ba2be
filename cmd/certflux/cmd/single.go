package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jmcleod/certflux/batch"
	"github.com/jmcleod/certflux/csr"
	"github.com/jmcleod/certflux/internal/util"
	"github.com/jmcleod/certflux/prompt"
)

var (
	singleName     string
	singleSANs     string
	singlePassword bool
	singleDays     int
	singleKeySize  int
)

var singleCmd = &cobra.Command{
	Use:   "single",
	Short: "Generate and sign a single certificate",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := newFormatter()

		cfg, err := loadConfig()
		if err != nil {
			return fail(f, err)
		}

		name := singleName
		if name == "" {
			name, err = prompt.Input("Certificate name", "")
			if err != nil {
				return fail(f, err)
			}
		}

		sans, err := csr.ParseSANList(singleSANs)
		if err != nil {
			return fail(f, err)
		}

		var passphrase []byte
		if singlePassword {
			pw, err := prompt.NewPassword("Enter password for " + name)
			if err != nil {
				return fail(f, err)
			}
			passphrase = []byte(pw)
			defer util.WipeBytes(passphrase)
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

		f.Step("Issuing certificate %s...", name)
		issued, err := runner.Run(batch.Job{
			Name:         name,
			SANs:         sans,
			Passphrase:   passphrase,
			ValidityDays: singleDays,
			KeySize:      singleKeySize,
		})
		if err != nil {
			return fail(f, err)
		}

		f.Success("Certificate %s issued (serial %s)", issued.Name, issued.SerialNumber)
		f.Info("Certificate: %s", issued.CertPath)
		if issued.KeyPath != "" {
			f.Info("Private key: %s", issued.KeyPath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(singleCmd)
	singleCmd.Flags().StringVarP(&singleName, "name", "n", "", "Certificate name")
	singleCmd.Flags().StringVarP(&singleSANs, "sans", "s", "", "Subject Alternative Names, e.g. DNS:example.com,IP:192.168.1.1")
	singleCmd.Flags().BoolVarP(&singlePassword, "password", "p", false, "Password-protect the private key")
	singleCmd.Flags().IntVarP(&singleDays, "days", "d", 0, "Certificate validity in days (config default when 0)")
	singleCmd.Flags().IntVarP(&singleKeySize, "key-size", "k", 0, "RSA key size in bits (config default when 0)")
}
