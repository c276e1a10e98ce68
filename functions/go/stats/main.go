package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/3s-rg-codes/oaas-sdk-go/pkg/functionRuntime"
	"github.com/3s-rg-codes/oaas-sdk-go/pkg/oaas"
)

const (
	FunctionKey = "example.stats.summary"
	ValuesKey   = "values"
)

var (
	errNoValues      = errors.New("no values")
	errNoDestination = errors.New("task is immutable and has no output object")
)

func main() {
	router := oaas.NewRouter(nil, nil)
	router.HandleFunc(FunctionKey, handler)
	functionRuntime.Start(router)
}

// handler summarizes the newline separated numbers under the main object's values key.
// The summary becomes the output object's data, or a "summary" field of the main
// object when there is no output. An immutable task without output has nowhere to
// put the summary and fails.
func handler(ctx context.Context, ic *oaas.InvocationContext) (*oaas.Completion, error) {
	if !ic.Task().HasOutput() && ic.Task().Immutable {
		return nil, errNoDestination
	}

	rc, err := ic.LoadMainFile(ctx, ValuesKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	values, err := parseValues(rc)
	if err != nil {
		return nil, err
	}
	summary := summarize(values)
	ic.Logger().Debug("Summarized values", "count", len(values))

	if ic.Task().HasOutput() {
		return ic.CreateCompletion(oaas.OutputData(summary)), nil
	}
	data := maps.Clone(ic.Task().Main.Data)
	data["summary"] = summary
	return ic.CreateCompletion(oaas.MainData(data)), nil
}

func parseValues(r io.Reader) ([]float64, error) {
	var values []float64
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		values = append(values, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, errNoValues
	}
	return values, nil
}

func summarize(values []float64) map[string]any {
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) < 2 {
		std = 0
	}
	return map[string]any{
		"count":  len(values),
		"mean":   mean,
		"stddev": std,
		"min":    floats.Min(values),
		"max":    floats.Max(values),
		"sum":    floats.Sum(values),
	}
}
