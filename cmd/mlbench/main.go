// Command mlbench runs and evaluates ensemble benchmarks.
//
//	mlbench run --config bench.yaml
//	mlbench estimators --task classification
//	mlbench results --path results
//	mlbench evaluate --path results --metric accuracy --plot accuracy.png
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/YuminosukeSato/mlbench/pkg/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// --log-level debug でスタックトレースを出力
		slog.Debug("command failed", log.ErrAttr(err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
