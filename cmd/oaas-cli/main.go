package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/goforj/godump"
	"github.com/urfave/cli/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/3s-rg-codes/oaas-sdk-go/pkg/functionRuntime"
	"github.com/3s-rg-codes/oaas-sdk-go/pkg/model"
	"github.com/3s-rg-codes/oaas-sdk-go/pkg/presign"
	"github.com/3s-rg-codes/oaas-sdk-go/pkg/storage"
	"github.com/3s-rg-codes/oaas-sdk-go/pkg/utils"
)

var timeoutFlag = &cli.DurationFlag{
	Name:    "timeout",
	Usage:   "example: 30s, 1m, 1h",
	Aliases: []string{"t"},
	Value:   30 * time.Second,
	Sources: cli.EnvVars("OAAS_TIMEOUT"),
}

var logLevelFlag = &cli.StringFlag{
	Name:    "log-level",
	Usage:   "debug, info, warn or error",
	Value:   "warn",
	Sources: cli.EnvVars("OAAS_LOG_LEVEL"),
}

var logFormatFlag = &cli.StringFlag{
	Name:    "log-format",
	Usage:   "text, json or dev",
	Value:   "text",
	Sources: cli.EnvVars("OAAS_LOG_FORMAT"),
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "oaas-cli",
		Usage: "inspect tasks, invoke functions and move object files",
		Commands: []*cli.Command{
			{
				Name:      "inspect",
				Usage:     "parse a task descriptor and dump it",
				ArgsUsage: "task file (- for stdin)",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "print the normalized task as JSON instead of a dump",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					raw, err := readInput(cmd.Args().Get(0))
					if err != nil {
						return err
					}
					return InspectTask(cmd.Root().Writer, raw, cmd.Bool("json"))
				},
			},
			{
				Name:      "invoke",
				Usage:     "send a task descriptor to a running function",
				ArgsUsage: "task file (- for stdin)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "address",
						Value:   "http://localhost:8080",
						Usage:   "function URL, or host:port with --grpc",
						Sources: cli.EnvVars("OAAS_FUNCTION_ADDRESS"),
					},
					&cli.BoolFlag{
						Name:  "grpc",
						Usage: "use the gRPC endpoint",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					raw, err := readInput(cmd.Args().Get(0))
					if err != nil {
						return err
					}
					invoker, closeFn, err := createInvoker(cmd.String("address"), cmd.Bool("grpc"))
					if err != nil {
						return err
					}
					defer closeFn()
					return InvokeTask(ctx, cmd.Root().Writer, invoker, raw, cmd.Duration("timeout"))
				},
			},
			{
				Name:      "get",
				Usage:     "download an object file from a presigned URL",
				ArgsUsage: "URL",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "file to write, stdout when empty",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					client := storage.NewClient(storage.WithLogger(setupLogger(cmd)))
					return Download(ctx, client, cmd.Args().Get(0), cmd.String("output"), cmd.Root().Writer, cmd.Duration("timeout"))
				},
			},
			{
				Name:      "put",
				Usage:     "upload a file to a presigned URL",
				ArgsUsage: "URL FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "content-type",
						Usage: "content type sent with the upload",
					},
					&cli.BoolFlag{
						Name:  "gzip",
						Usage: "compress the upload with gzip content encoding",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 2 {
						return errors.New("put needs a URL and a file")
					}
					client := storage.NewClient(storage.WithLogger(setupLogger(cmd)))
					ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
					defer cancel()
					return client.PutFile(ctx, cmd.Args().Get(0), cmd.Args().Get(1), storage.PutOptions{
						ContentType: cmd.String("content-type"),
						Gzip:        cmd.Bool("gzip"),
					})
				},
			},
			{
				Name:      "presign",
				Usage:     "print a presigned S3 URL for an object key",
				ArgsUsage: "key",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "endpoint", Usage: "S3 endpoint", Sources: cli.EnvVars("OAAS_S3_ENDPOINT")},
					&cli.StringFlag{Name: "region", Value: "us-east-1", Sources: cli.EnvVars("OAAS_S3_REGION")},
					&cli.StringFlag{Name: "bucket", Required: true, Sources: cli.EnvVars("OAAS_S3_BUCKET")},
					&cli.StringFlag{Name: "access-key", Sources: cli.EnvVars("OAAS_S3_ACCESS_KEY")},
					&cli.StringFlag{Name: "secret-key", Sources: cli.EnvVars("OAAS_S3_SECRET_KEY")},
					&cli.BoolFlag{Name: "path-style", Usage: "path style bucket addressing", Value: true},
					&cli.StringFlag{Name: "method", Value: "GET", Usage: "GET or PUT"},
					&cli.DurationFlag{Name: "ttl", Value: 15 * time.Minute},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					p, err := presign.NewS3Presigner(presign.S3Config{
						Endpoint:  cmd.String("endpoint"),
						Region:    cmd.String("region"),
						Bucket:    cmd.String("bucket"),
						AccessKey: cmd.String("access-key"),
						SecretKey: cmd.String("secret-key"),
						PathStyle: cmd.Bool("path-style"),
					})
					if err != nil {
						return err
					}
					u, err := Presign(p, cmd.String("method"), cmd.Args().Get(0), cmd.Duration("ttl"))
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.Root().Writer, u)
					return nil
				},
			},
		},
		// all sub commands inherit these flags
		Flags: []cli.Flag{
			timeoutFlag,
			logLevelFlag,
			logFormatFlag,
		},
	}
}

// InspectTask parses a task descriptor and writes it to w, either as a dump or as normalized JSON.
func InspectTask(w io.Writer, raw []byte, asJSON bool) error {
	task, err := model.ParseTask(raw)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(task)
	}
	fmt.Fprintln(w, godump.DumpStr(task))
	return nil
}

// InvokeTask sends a task to a function and prints the reply headers and the completion.
func InvokeTask(ctx context.Context, w io.Writer, invoker functionRuntime.Invoker, raw []byte, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := invoker.Invoke(ctx, raw)
	if err != nil {
		return err
	}
	for k, v := range res.Header {
		fmt.Fprintf(w, "%s: %s\n", k, v[0])
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Completion)
}

// Download writes the object behind url to path, or to w when path is empty.
func Download(ctx context.Context, client *storage.Client, url, path string, w io.Writer, timeout time.Duration) error {
	if url == "" {
		return errors.New("get needs a URL")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rc, err := client.Get(ctx, url)
	if err != nil {
		return err
	}
	defer rc.Close()

	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	_, err = io.Copy(w, rc)
	return err
}

// Presign returns a presigned URL for method GET or PUT.
func Presign(p presign.Presigner, method, key string, ttl time.Duration) (string, error) {
	switch method {
	case "GET", "get":
		return p.PresignGet(key, ttl)
	case "PUT", "put":
		return p.PresignPut(key, ttl)
	default:
		return "", fmt.Errorf("unsupported method %q", method)
	}
}

func createInvoker(address string, useGRPC bool) (functionRuntime.Invoker, func(), error) {
	if !useGRPC {
		return functionRuntime.NewHTTPInvoker(address, nil), func() {}, nil
	}
	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, err
	}
	return functionRuntime.NewGRPCInvoker(conn), func() { conn.Close() }, nil
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func setupLogger(cmd *cli.Command) *slog.Logger {
	return utils.SetupLogger(cmd.String("log-level"), cmd.String("log-format"), "")
}
