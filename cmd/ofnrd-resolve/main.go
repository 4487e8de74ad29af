// Command ofnrd-resolve replays saved model replies through the analysis core
// and prints the record the backend would have returned for each of them.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"tpris/backend/internal/analysis"
	"tpris/backend/internal/pipeline"
)

type resolved struct {
	Source  string                  `json:"source"`
	Score   int                     `json:"score"`
	Flag    string                  `json:"flag,omitempty"`
	Repairs []string                `json:"repairs,omitempty"`
	Result  analysis.AnalysisResult `json:"result"`
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		logrus.Fatalf("ofnrd-resolve: %v", err)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fset := flag.NewFlagSet("ofnrd-resolve", flag.ContinueOnError)
	var inputs multiFlag
	fset.Var(&inputs, "in", "File holding a raw model reply (repeatable, default stdin)")
	salvage := fset.Bool("salvage", false, "Repair truncated JSON when strict extraction fails")
	keepFences := fset.Bool("keep-fences", false, "Do not strip markdown code fences before extraction")
	if err := fset.Parse(args); err != nil {
		return err
	}

	resolver := analysis.Resolver{Salvage: *salvage}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")

	resolveOne := func(source string, raw []byte) error {
		text := strings.TrimSpace(string(raw))
		if !*keepFences {
			text = pipeline.StripCodeFence(text)
		}
		out := resolver.Resolve(text)
		entry := resolved{Source: source, Score: out.Score, Repairs: out.Repairs, Result: out.Result}
		fields := logrus.Fields{"source": source, "score": out.Score, "repairs": out.Repairs}
		if out.Failed() {
			entry.Flag = out.Failure.Kind.Code()
			fields["flag"] = entry.Flag
			logrus.WithFields(fields).WithField("detail", out.Failure.Detail).Warn("reply fell back to default record")
		} else {
			logrus.WithFields(fields).Info("reply resolved")
		}
		return enc.Encode(entry)
	}

	if len(inputs) == 0 {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		return resolveOne("stdin", raw)
	}
	for _, path := range inputs {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := resolveOne(path, raw); err != nil {
			return err
		}
	}
	return nil
}

type multiFlag []string

func (m *multiFlag) String() string {
	return strings.Join(*m, ",")
}

func (m *multiFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}
