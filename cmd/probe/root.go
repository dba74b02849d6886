package probe

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/ValentinKolb/idemkv/cmd/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ProbeCmd fires concurrent duplicate create requests at a running API
var ProbeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Send concurrent duplicate requests to the API and report the outcome",
	Long: `Send concurrent duplicate requests to the API and report the outcome.

In shared mode all requests carry the same Idempotency-Key: exactly one should
execute and all others should be replayed. In distinct mode every request has its
own key but the same sku: exactly one should create the product and all others
should report the existing one.`,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return util.BindCommandFlags(cmd)
	},
	RunE: run,
}

func init() {
	cobra.OnInitialize(util.InitConfig)

	key := "url"
	ProbeCmd.Flags().String(key, "http://localhost:8081", util.WrapString("Base url of the API"))
	key = "tenant"
	ProbeCmd.Flags().String(key, "probe", util.WrapString("Tenant sent in the X-Tenant-ID header"))
	key = "requests"
	ProbeCmd.Flags().Int(key, 50, util.WrapString("Number of concurrent requests"))
	key = "mode"
	ProbeCmd.Flags().String(key, ModeShared, util.WrapString("Token mode (shared, distinct)"))
	key = "sku"
	ProbeCmd.Flags().String(key, "", util.WrapString("Sku of the product to create (default: random)"))
	key = "timeout"
	ProbeCmd.Flags().Duration(key, 30*time.Second, util.WrapString("Timeout per request"))
	key = "csv"
	ProbeCmd.Flags().String(key, "", util.WrapString("Optional path to save the status counts as CSV"))
}

func optionsFromConfig() Options {
	sku := viper.GetString("sku")
	if sku == "" {
		sku = fmt.Sprintf("probe-%d", time.Now().UnixNano())
	}
	return Options{
		BaseURL:    viper.GetString("url"),
		Tenant:     viper.GetString("tenant"),
		Requests:   viper.GetInt("requests"),
		Mode:       viper.GetString("mode"),
		SKU:        sku,
		Name:       "probe item",
		PriceCents: 100,
	}
}

func run(_ *cobra.Command, _ []string) error {
	opts := optionsFromConfig()
	client := &http.Client{Timeout: viper.GetDuration("timeout")}

	fmt.Printf("Probing %s with %d requests (mode: %s, sku: %s)\n\n", opts.BaseURL, opts.Requests, opts.Mode, opts.SKU)
	report, err := Run(context.Background(), client, opts)
	if err != nil {
		return err
	}
	report.Print(os.Stdout)

	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeCSV(csvPath, report); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
	}

	if !report.Consistent() {
		return fmt.Errorf("responses refer to %d different products", len(report.ProductIDs))
	}
	return nil
}

func writeCSV(path string, r *Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	rows := [][]string{{"status", "count"}}
	for code, n := range r.Statuses {
		rows = append(rows, []string{strconv.Itoa(code), strconv.Itoa(n)})
	}
	rows = append(rows,
		[]string{"replayed", strconv.Itoa(r.Replayed)},
		[]string{"upsert_existing", strconv.Itoa(r.UpsertExisting)},
		[]string{"failed", strconv.Itoa(r.Failed)},
	)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}
