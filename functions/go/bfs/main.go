package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/graph/simple"

	"github.com/3s-rg-codes/oaas-sdk-go/pkg/functionRuntime"
	"github.com/3s-rg-codes/oaas-sdk-go/pkg/oaas"
)

const (
	FunctionKey = "example.graph.bfs"
	EdgesKey    = "edges"
	OrderKey    = "order"
)

func main() {
	router := oaas.NewRouter(nil, nil)
	router.HandleFunc(FunctionKey, handler)
	functionRuntime.Start(router)
}

// inspired by https://github.com/spcl/serverless-benchmarks/blob/master/benchmarks/500.scientific/503.graph-bfs/python/function.py

func handler(ctx context.Context, ic *oaas.InvocationContext) (*oaas.Completion, error) {
	start, err := strconv.ParseInt(ic.Args().GetOr("start", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid start node: %w", err)
	}

	rc, err := ic.LoadMainFile(ctx, EdgesKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	startGraph := time.Now()
	g, err := readGraph(rc)
	if err != nil {
		return nil, err
	}
	graphDuration := time.Since(startGraph).Microseconds()

	if g.Node(start) == nil {
		return nil, fmt.Errorf("start node %d not in graph", start)
	}

	startBFS := time.Now()
	order := bfs(g, start)
	bfsDuration := time.Since(startBFS).Microseconds()

	encoded, err := json.Marshal(order)
	if err != nil {
		return nil, err
	}
	if err := ic.UploadBytes(ctx, OrderKey, encoded); err != nil {
		return nil, err
	}

	return ic.CreateCompletion(oaas.OutputData(map[string]any{
		"visited":                         len(order),
		"graphGeneratingTimeMicroseconds": graphDuration,
		"computeTimeMicroseconds":         bfsDuration,
	})), nil
}

// readGraph parses an undirected edge list with one "from to" pair per line.
// Lines starting with # are ignored.
func readGraph(r io.Reader) (*simple.UndirectedGraph, error) {
	g := simple.NewUndirectedGraph()
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected two node ids", line)
		}
		from, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		to, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if g.Node(from) == nil {
			g.AddNode(simple.Node(from))
		}
		if from == to {
			continue
		}
		g.SetEdge(g.NewEdge(simple.Node(from), simple.Node(to)))
	}
	return g, scanner.Err()
}

// bfs visits neighbours in ascending id order so the result is stable.
func bfs(g *simple.UndirectedGraph, start int64) []int64 {
	visited := map[int64]bool{start: true}
	var result []int64
	queue := []int64{start}

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		result = append(result, curr)

		var next []int64
		neighbors := g.From(curr)
		for neighbors.Next() {
			n := neighbors.Node().ID()
			if !visited[n] {
				visited[n] = true
				next = append(next, n)
			}
		}
		slices.Sort(next)
		queue = append(queue, next...)
	}

	return result
}
