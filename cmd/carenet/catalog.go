package main

import (
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/gyeh/carenet/internal/catalog"
	"github.com/gyeh/carenet/internal/npi"
	"github.com/gyeh/carenet/internal/output"
	"github.com/gyeh/carenet/internal/progress"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and import provider catalogs",
	}

	cmd.AddCommand(newCatalogValidateCmd())
	cmd.AddCommand(newCatalogImportCmd())
	cmd.AddCommand(newCatalogVerifyNPICmd())

	return cmd
}

func newCatalogValidateCmd() *cobra.Command {
	var (
		file   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load a provider catalog and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			providers, err := catalog.FileSource{Path: file}.Load(cmd.Context())
			if err != nil {
				return err
			}
			summary := catalog.Summarize(providers)
			if asJSON {
				return output.Encode(cmd.OutOrStdout(), summary)
			}
			printSummary(cmd.OutOrStdout(), file, summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Catalog file (.json or .json.gz)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	cmd.MarkFlagRequired("file")

	return cmd
}

func printSummary(w io.Writer, name string, s catalog.Summary) {
	fmt.Fprintf(w, "%s: %d providers (%d with NPI)\n", name, s.Providers, s.WithNPI)
	fmt.Fprintln(w, "Types:")
	for _, t := range s.TypeNames() {
		fmt.Fprintf(w, "  %-24s %d\n", t, s.Types[t])
	}
	fmt.Fprintln(w, "Carriers (in network):")
	for _, c := range s.CarrierNames() {
		fmt.Fprintf(w, "  %-24s %d\n", c, s.Carriers[c])
	}
}

func newCatalogImportCmd() *cobra.Command {
	var (
		from       string
		out        string
		region     string
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Fetch a catalog from a path, URL or S3, validate it and write it locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mgr progress.Manager
			switch {
			case noProgress:
				mgr = progress.NoopManager{}
			case isatty.IsTerminal(os.Stderr.Fd()):
				mgr = progress.NewMPBManager()
			default:
				mgr = progress.NewLogManager(os.Stderr)
			}

			start := time.Now()
			f := &catalog.Fetcher{Region: region}
			res, err := f.Import(cmd.Context(), from, out, mgr.NewTracker(path.Base(from)))
			mgr.Wait()
			if err != nil {
				return fmt.Errorf("importing %s: %w", from, err)
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Imported %d providers (%d bytes fetched) in %.1fs\n",
				res.Providers, res.CompressedBytes, time.Since(start).Seconds())
			fmt.Fprintf(cmd.ErrOrStderr(), "Catalog written to %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Catalog source: local path, http(s) URL or s3://bucket/key")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file path (use '-' for stdout)")
	cmd.Flags().StringVar(&region, "region", "us-east-1", "AWS region for s3:// sources")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable progress bars")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("out")

	return cmd
}

func newCatalogVerifyNPICmd() *cobra.Command {
	var (
		file        string
		registryURL string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "verify-npi",
		Short: "Check catalog NPIs against the NPPES registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			providers, err := catalog.FileSource{Path: file}.Load(cmd.Context())
			if err != nil {
				return err
			}

			client := &npi.Client{BaseURL: registryURL}
			checked, findings := catalog.VerifyNPIs(cmd.Context(), providers, client, concurrency)

			w := cmd.OutOrStdout()
			for _, f := range findings {
				fmt.Fprintf(w, "%s\t%s\t%s\n", f.ProviderID, f.NPI, f.Problem)
			}
			fmt.Fprintf(w, "%d providers checked, %d problems\n", checked, len(findings))
			if len(findings) > 0 {
				return fmt.Errorf("%d NPI problems found", len(findings))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Catalog file (.json or .json.gz)")
	cmd.Flags().StringVar(&registryURL, "registry-url", npi.RegistryURL, "NPPES registry API endpoint")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Concurrent registry lookups")
	cmd.MarkFlagRequired("file")

	return cmd
}
