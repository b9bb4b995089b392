package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/logger"
	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/matching"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank a single request read from a file or stdin and print the result",
	Run: func(cmd *cobra.Command, _ []string) {
		rank(cmd)
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().StringP("input", "i", "-", "request file, - for stdin")
	rankCmd.Flags().Bool("print-prompt", false, "print the rendered prompt instead of calling the model")
}

type rankOutput struct {
	Matches []string `json:"matches"`
	Source  string   `json:"source"`
	Dropped int      `json:"dropped_duplicates"`
	Padded  int      `json:"padded"`
}

func rank(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Results go to stdout, so logs go to stderr.
	logger, err := logger.NewStderr(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	input, _ := cmd.Flags().GetString("input")
	raw, err := readRawRequest(cmd.InOrStdin(), input)
	if err != nil {
		logger.Fatal("reading the request", zap.String("input", input), zap.Error(err))
	}

	if printPrompt, _ := cmd.Flags().GetBool("print-prompt"); printPrompt {
		prompt, err := renderPrompt(raw, config.Matching.DefaultK)
		if err != nil {
			logger.Fatal("rendering the prompt", zap.Error(err))
		}
		fmt.Fprintln(cmd.OutOrStdout(), prompt)
		return
	}

	ranker, err := newRanker(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the ranker", zap.Error(err))
	}

	res, err := ranker.Rank(ctx, raw)
	if err != nil {
		logger.Fatal("ranking", zap.Error(err))
	}

	if err := writeRankOutput(cmd.OutOrStdout(), res); err != nil {
		logger.Fatal("writing the result", zap.Error(err))
	}
}

func readRawRequest(stdin io.Reader, input string) (matching.RawRequest, error) {
	r := stdin
	if input != "" && input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return matching.RawRequest{}, err
		}
		defer f.Close()
		r = f
	}

	var payload struct {
		Campaign   any  `json:"campaign"`
		Candidates any  `json:"candidates"`
		K          *int `json:"k"`
	}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return matching.RawRequest{}, fmt.Errorf("decode request: %w", err)
	}

	return matching.RawRequest{Campaign: payload.Campaign, Candidates: payload.Candidates, K: payload.K}, nil
}

func renderPrompt(raw matching.RawRequest, defaultK int) (string, error) {
	req, _, err := matching.Normalize(raw, defaultK)
	if err != nil {
		return "", err
	}
	return matching.BuildPrompt(req)
}

func writeRankOutput(w io.Writer, res matching.Result) error {
	out := rankOutput{
		Matches: res.Matches,
		Source:  string(res.Source),
		Dropped: res.Dropped,
		Padded:  res.Padded,
	}
	if out.Matches == nil {
		out.Matches = []string{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
