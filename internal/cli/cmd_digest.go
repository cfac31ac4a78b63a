package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"thesiscert/internal/fingerprint"
)

func NewCmdDigest(out io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "digest FILE...",
		Short: "Print the content digest of each file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			algo, err := computableAlgorithm(cfg.Algorithm)
			if err != nil {
				return err
			}
			for _, path := range args {
				if err := doDigest(out, path, algo); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func doDigest(out io.Writer, path string, algo fingerprint.Algorithm) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sum, _, err := fingerprint.DigestReader(f, algo)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	_, err = fmt.Fprintf(out, "%s:%s  %s\n", algo, sum, path)
	return err
}

func computableAlgorithm(name string) (fingerprint.Algorithm, error) {
	algo, err := fingerprint.ParseAlgorithm(name)
	if err != nil {
		return "", err
	}
	if !algo.Supported() {
		return "", fmt.Errorf("algorithm %s cannot be computed", algo)
	}
	return algo, nil
}
