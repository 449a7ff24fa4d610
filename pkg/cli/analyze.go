package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/strategos/pkg/cli/config"
	"github.com/secmon-lab/strategos/pkg/domain/model"
	"github.com/secmon-lab/strategos/pkg/service/analyzer"
	"github.com/secmon-lab/strategos/pkg/service/selector"
	"github.com/secmon-lab/strategos/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

// cmdAnalyze profiles content from a file or stdin and prints the profile
// plus the strategy that would be selected for it. Useful for catalog
// tuning without a running server.
func cmdAnalyze() *cli.Command {
	var input string
	var url string
	var withSelection bool
	var geminiCfg config.Gemini
	var catalogCfg config.Catalog
	var repoCfg config.Repository

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Path to content file (stdin when \"-\")",
			Value:       "-",
			Destination: &input,
		},
		&cli.StringFlag{
			Name:        "url",
			Usage:       "Source URL of the content, used as an analysis hint",
			Destination: &url,
		},
		&cli.BoolFlag{
			Name:        "select",
			Usage:       "Also run strategy selection against the profile",
			Value:       true,
			Destination: &withSelection,
		},
	}
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, catalogCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "analyze",
		Aliases: []string{"a"},
		Usage:   "Profile content and preview strategy selection",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			content, err := readContent(input)
			if err != nil {
				return err
			}

			llmClient, err := geminiCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to configure Gemini client")
			}
			azOpts := []analyzer.Option{}
			if llmClient != nil {
				azOpts = append(azOpts, analyzer.WithLLMClient(llmClient))
			}

			profile, err := analyzer.New(azOpts...).Analyze(ctx, content, url, nil)
			if err != nil {
				return err
			}

			out := map[string]any{"profile": profile}

			if withSelection {
				cat, err := catalogCfg.Configure()
				if err != nil {
					return goerr.Wrap(err, "failed to load strategy catalog")
				}
				store, err := repoCfg.Configure(ctx)
				if err != nil {
					return goerr.Wrap(err, "failed to initialize memory store")
				}
				defer safe.Close(ctx, store)

				result, err := selector.New(cat, store).Select(ctx, profile, model.DefaultDeviceConstraints(), nil)
				if err != nil {
					return err
				}
				out["selection"] = result
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func readContent(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", goerr.Wrap(err, "failed to read content from stdin")
		}
		return string(data), nil
	}

	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read content file", goerr.V("path", path))
	}
	return string(data), nil
}
