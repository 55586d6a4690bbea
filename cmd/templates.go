package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/facegate/facegate/internal/core/service"
	mongodb "github.com/facegate/facegate/internal/infrastructure/db/mongo"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Inspect enrolled face templates",
}

var templatesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Scan every enrolled template and report corrupted or stale ones",
	Long: `Reads every stored face template the same way face login does and reports
how many are usable with the active template format. Templates with the wrong
length or an older format version are listed by account email; they are
skipped during face login until the account re-enrols.`,
	RunE: runTemplatesCheck,
}

func init() {
	rootCmd.AddCommand(templatesCmd)
	templatesCmd.AddCommand(templatesCheckCmd)
	templatesCheckCmd.Flags().Bool("fail", false, "Exit non-zero when any template is skipped")
}

func runTemplatesCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, log, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	format, err := cfg.Format()
	if err != nil {
		return err
	}

	client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database, AppName: "facegate-cli"})
	if err != nil {
		return err
	}
	defer disconnect(log, "mongodb", func() error { return client.Disconnect(context.Background()) })

	store := service.NewTemplateStore(mongodb.NewAccountRepository(db), format, log)
	report, err := store.Audit(ctx)
	if err != nil {
		return err
	}

	writeAuditReport(cmd.OutOrStdout(), format.Version, report)

	if fail, _ := cmd.Flags().GetBool("fail"); fail && report.SkippedCount() > 0 {
		return fmt.Errorf("%d templates skipped", report.SkippedCount())
	}
	return nil
}

func writeAuditReport(w io.Writer, version int, report service.AuditReport) {
	fmt.Fprintf(w, "Template format: v%d\n", version)
	fmt.Fprintf(w, "Usable:  %d\n", report.Usable)
	fmt.Fprintf(w, "Skipped: %d\n", report.SkippedCount())

	reasons := make([]string, 0, len(report.Skipped))
	for reason := range report.Skipped {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)

	for _, reason := range reasons {
		fmt.Fprintf(w, "  %s:\n", reason)
		for _, email := range report.Skipped[reason] {
			fmt.Fprintf(w, "    %s\n", email)
		}
	}
}
