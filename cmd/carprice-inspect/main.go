// Command carprice-inspect describes a model artifact without serving it.
// It lists the types a loader would have to trust and can score the
// built-in example cars.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/IlyassOtmani/car-price-ml/internal/config"
	"github.com/IlyassOtmani/car-price-ml/internal/form"
	"github.com/IlyassOtmani/car-price-ml/internal/logger"
	"github.com/IlyassOtmani/car-price-ml/internal/pipeline"
	"github.com/IlyassOtmani/car-price-ml/internal/predict"
)

type report struct {
	Source         string            `json:"source"`
	Fingerprint    string            `json:"fingerprint"`
	Metadata       pipeline.Metadata `json:"metadata"`
	Types          []string          `json:"types"`
	UntrustedTypes []string          `json:"untrusted_types"`
	Examples       map[string]string `json:"examples,omitempty"`
}

func main() {
	asJSON := flag.Bool("json", false, "Print the report as JSON")
	examples := flag.Bool("examples", false, "Score the built-in example cars")
	trust := flag.String("trust", "", "Comma separated types to trust when scoring (default: the enumerated ones)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [artifact]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := logger.Init("carprice-inspect", "WARN"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	path := config.DefaultModelPath
	if flag.NArg() > 0 {
		path = flag.Arg(0)
	}

	if err := run(os.Stdout, path, *asJSON, *examples, splitTypes(*trust)); err != nil {
		fmt.Fprintf(os.Stderr, "carprice-inspect: %v\n", err)
		os.Exit(1)
	}
}

func run(out io.Writer, path string, asJSON, scoreExamples bool, trusted []string) error {
	artifact, err := pipeline.Open(path)
	if err != nil {
		return err
	}

	rep := report{
		Source:         artifact.Source(),
		Fingerprint:    artifact.Fingerprint(),
		Metadata:       artifact.Metadata,
		Types:          artifact.Types(),
		UntrustedTypes: artifact.UntrustedTypes(),
	}

	if scoreExamples {
		if rep.Examples, err = scoreBuiltins(path, trusted); err != nil {
			return err
		}
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	printReport(out, rep)
	return nil
}

func scoreBuiltins(path string, trusted []string) (map[string]string, error) {
	model, err := predict.LoadModel(path, trusted)
	if err != nil {
		return nil, err
	}
	f, err := form.Load()
	if err != nil {
		return nil, err
	}

	adapter := predict.New(model)
	prices := make(map[string]string)
	for _, ex := range f.Examples() {
		res, err := adapter.PredictRequest(context.Background(), ex.Request)
		if err != nil {
			return nil, fmt.Errorf("example %s: %w", ex.ID, err)
		}
		prices[ex.ID] = res.Price
	}
	return prices, nil
}

func printReport(out io.Writer, rep report) {
	fmt.Fprintf(out, "Source:       %s\n", rep.Source)
	fmt.Fprintf(out, "Fingerprint:  %s\n", rep.Fingerprint)
	if rep.Metadata.Algorithm != "" {
		fmt.Fprintf(out, "Algorithm:    %s\n", rep.Metadata.Algorithm)
	}
	if rep.Metadata.TrainedAt != "" {
		fmt.Fprintf(out, "Trained at:   %s\n", rep.Metadata.TrainedAt)
	}
	if rep.Metadata.NSamples > 0 {
		fmt.Fprintf(out, "Samples:      %d\n", rep.Metadata.NSamples)
	}

	fmt.Fprintln(out, "Types:")
	for _, t := range rep.Types {
		fmt.Fprintf(out, "  %s\n", t)
	}

	if len(rep.UntrustedTypes) == 0 {
		fmt.Fprintln(out, "Untrusted types: none")
	} else {
		fmt.Fprintln(out, "Untrusted types:")
		for _, t := range rep.UntrustedTypes {
			fmt.Fprintf(out, "  %s\n", t)
		}
	}

	if len(rep.Examples) > 0 {
		fmt.Fprintln(out, "Examples:")
		for _, id := range []string{"economy", "luxury", "sports"} {
			if price, ok := rep.Examples[id]; ok {
				fmt.Fprintf(out, "  %-8s %s\n", id, price)
			}
		}
	}
}

func splitTypes(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
