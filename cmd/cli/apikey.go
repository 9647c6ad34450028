package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anstrom/scanexport/internal/auth"
)

func newAPIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys for the conversion API",
		Long: `The conversion API accepts keys whose bcrypt hashes are listed in
api.auth.key_hashes. Keys are shown once when generated and cannot be
recovered from their hashes.`,
		Annotations: map[string]string{skipConfigFlag: "true"},
	}
	cmd.AddCommand(newAPIKeyGenerateCmd())
	return cmd
}

func newAPIKeyGenerateCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:         "generate",
		Short:       "Generate a new API key and its hash",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigFlag: "true"},
		Example: `  scanexport apikey generate
  scanexport apikey generate --json | jq -r .hash`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			generated, err := auth.GenerateAPIKey()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(generated)
			}

			fmt.Fprintf(out, "API key:  %s\n", generated.Key)
			fmt.Fprintf(out, "Hash:     %s\n\n", generated.Hash)
			fmt.Fprintln(out, "Store the key now, it is not shown again. To enable it, add the hash to")
			fmt.Fprintln(out, "the configuration:")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "  api:")
			fmt.Fprintln(out, "    auth:")
			fmt.Fprintln(out, "      enabled: true")
			fmt.Fprintln(out, "      key_hashes:")
			fmt.Fprintf(out, "        - %q\n", generated.Hash)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the key and hash as JSON")
	return cmd
}
