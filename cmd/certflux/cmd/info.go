package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/certflux/certinfo"
	"github.com/jmcleod/certflux/csr"
)

var infoCmd = &cobra.Command{
	Use:   "info <cert-file>",
	Short: "Show the details of an issued certificate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := newFormatter()

		summary, _, err := certinfo.LoadFile(args[0])
		if err != nil {
			return fail(f, err)
		}

		f.Header("Certificate %s", args[0])
		f.Info("Subject:   %s", summary.Subject)
		f.Info("Issuer:    %s", summary.Issuer)
		f.Info("Serial:    %s", summary.SerialNumber)
		f.Info("Key:       %s", summary.KeyAlgorithm)
		f.Info("NotBefore: %s", summary.NotBefore.Format(time.RFC3339))
		f.Info("NotAfter:  %s", summary.NotAfter.Format(time.RFC3339))
		if len(summary.SANs) > 0 {
			f.Info("SANs:      %s", csr.FormatSANList(summary.SANs))
		}

		switch {
		case summary.IsExpired():
			f.Warn("Expired %d day(s) ago", -summary.DaysUntilExpiry())
		case summary.DaysUntilExpiry() <= 30:
			f.Warn("Expires in %d day(s)", summary.DaysUntilExpiry())
		default:
			f.Success("Valid for another %d day(s)", summary.DaysUntilExpiry())
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List certificates recorded in the inventory",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := newFormatter()

		cfg, err := loadConfig()
		if err != nil {
			return fail(f, err)
		}

		inventory, err := openInventory(cfg)
		if err != nil {
			return fail(f, err)
		}
		if inventory == nil {
			return fail(f, errNoInventory)
		}
		defer inventory.Close()

		recs, err := inventory.List()
		if err != nil {
			return fail(f, err)
		}
		if len(recs) == 0 {
			f.Info("Inventory is empty")
			return nil
		}

		f.Header("%d certificate(s)", len(recs))
		for _, rec := range recs {
			f.Info("%s  %s  expires %s", rec.SerialNumber, rec.CommonName, rec.NotAfter.Format("2006-01-02"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(listCmd)
}
