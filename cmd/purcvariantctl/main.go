// Command purcvariantctl is a small front-end exercising the variant
// runtime and the stream/websocket runtime from the command line.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/purc-run/purcvariant/internal/config"
	"github.com/purc-run/purcvariant/streamrt"
	"github.com/purc-run/purcvariant/variant"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	app := &cli.App{
		Name:  "purcvariantctl",
		Usage: "inspect the variant value model and drive the stream/websocket runtime",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to a TOML config file"},
		},
		Commands: []*cli.Command{
			variantCommand(log),
			streamCommand(log),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Error("purcvariantctl failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) config.Config {
	path := c.String("config")
	if path == "" {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Default()
	}
	return cfg
}

func variantCommand(log *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "variant",
		Usage: "build and print a variant value",
		Subcommands: []*cli.Command{
			{
				Name:      "build",
				Usage:     "parse a JSON document into a variant tree and print its stringified form",
				ArgsUsage: "<json>",
				Action: func(c *cli.Context) error {
					raw := c.Args().First()
					if raw == "" {
						return cli.Exit("build: missing JSON argument", 1)
					}
					var doc any
					if err := json.Unmarshal([]byte(raw), &doc); err != nil {
						return cli.Exit(fmt.Sprintf("build: invalid JSON: %v", err), 1)
					}

					h := variant.NewHeap(variant.WithLogger(log))
					v := fromJSON(h, doc)
					defer v.Unref()

					var buf bytes.Buffer
					if err := variant.Stringify(v, &buf); err != nil {
						return cli.Exit(fmt.Sprintf("build: stringify failed: %v", err), 1)
					}
					fmt.Println(buf.String())
					stats := h.Stats()
					fmt.Printf("values=%d bytes=%d\n", stats.TotalValues, stats.TotalMem)
					return nil
				},
			},
		},
	}
}

func fromJSON(h *variant.Heap, doc any) *variant.Variant {
	switch t := doc.(type) {
	case nil:
		return h.Null()
	case bool:
		return h.MakeBool(t)
	case float64:
		return h.MakeNumber(t)
	case string:
		return h.MakeString(t)
	case []any:
		items := make([]*variant.Variant, len(t))
		for i, e := range t {
			items[i] = fromJSON(h, e)
		}
		arr := h.MakeArray(items...)
		for _, it := range items {
			it.Unref()
		}
		return arr
	case map[string]any:
		obj := h.MakeObject()
		for k, e := range t {
			child := fromJSON(h, e)
			_ = obj.Set(k, child)
			child.Unref()
		}
		return obj
	default:
		return h.Null()
	}
}

func streamCommand(log *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "stream",
		Usage: "drive the websocket runtime",
		Subcommands: []*cli.Command{
			{
				Name:  "ws-echo",
				Usage: "listen on an inet address and echo every websocket TEXT/BINARY message",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "listen", Value: "inet://127.0.0.1:8765", Usage: "stream.open-style listen URL"},
				},
				Action: func(c *cli.Context) error {
					return runWSEcho(log, loadConfig(c), c.String("listen"))
				},
			},
			{
				Name:      "ws-client",
				Usage:     "connect to a websocket server, complete the handshake, and print inbound messages",
				ArgsUsage: "<url>",
				Action: func(c *cli.Context) error {
					url := c.Args().First()
					if url == "" {
						return cli.Exit("ws-client: missing URL argument", 1)
					}
					return runWSClient(log, loadConfig(c), url)
				},
			},
		},
	}
}

func runWSClient(log *zap.Logger, cfg config.Config, dialURL string) error {
	conn, err := streamrt.StreamDial(dialURL, streamrt.FlagDefault, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	reqBytes, key, err := streamrt.BuildClientHandshakeRequest(streamrt.ClientHandshakeOptions{
		Host: dialURL, Path: "/",
	})
	if err != nil {
		return err
	}
	if _, err := conn.Write(reqBytes); err != nil {
		return err
	}

	buf := make([]byte, 8192)
	n, err := conn.Read(buf)
	if err != nil {
		return err
	}
	if _, err := streamrt.VerifyServerHandshakeResponse(buf[:n], key); err != nil {
		return err
	}
	log.Info("websocket handshake complete", zap.String("url", dialURL))

	engine := streamrt.NewWSEngine(streamrt.RoleClient, cfg.Stream.MaxMessageSizeBytes)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return err
		}
		results, err := engine.Feed(buf[:n])
		if err != nil {
			return err
		}
		for _, r := range results {
			if r.Message != nil {
				fmt.Println(string(r.Message.Payload))
			}
			if r.ShouldStop {
				return nil
			}
		}
	}
}

func runWSEcho(log *zap.Logger, cfg config.Config, listenURL string) error {
	ln, err := streamrt.StreamListen(listenURL, streamrt.FlagDefault, 64, nil)
	if err != nil {
		return err
	}
	defer ln.Close()

	log.Info("websocket echo server listening", zap.String("addr", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go serveWSEcho(log, cfg, conn)
	}
}

func serveWSEcho(log *zap.Logger, cfg config.Config, conn streamrt.RawIO) {
	defer conn.Close()

	buf := make([]byte, 8192)
	n, err := conn.Read(buf)
	if err != nil {
		log.Warn("reading handshake request failed", zap.Error(err))
		return
	}
	req, err := streamrt.ParseHandshakeRequest(buf[:n])
	if err != nil {
		log.Warn("handshake request rejected", zap.Error(err))
		return
	}
	resp := streamrt.BuildHandshakeResponse(req, streamrt.HandshakeResponseOptions{})
	if _, err := conn.Write(resp); err != nil {
		log.Warn("sending handshake response failed", zap.Error(err))
		return
	}

	engine := streamrt.NewWSEngine(streamrt.RoleServer, cfg.Stream.MaxMessageSizeBytes)
	writer := streamrt.NewWSWriter(conn, false, streamrt.WithPermessageDeflate(cfg.Stream.CompressMinBytes))

	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		results, err := engine.Feed(buf[:n])
		if err != nil {
			log.Warn("websocket protocol error", zap.Error(err))
			return
		}
		for _, r := range results {
			switch {
			case r.Message != nil:
				echoOpcode := streamrt.WSOpBinary
				if r.Message.Opcode == streamrt.OpText {
					echoOpcode = streamrt.WSOpText
				}
				if _, err := writer.WriteMessage(echoOpcode, r.Message.Payload); err != nil {
					return
				}
			case r.Ping != nil:
				if _, err := conn.Write(streamrt.EncodeWSFrame(streamrt.WSOpPong, true, r.Ping, nil)); err != nil {
					return
				}
			case r.ShouldStop:
				return
			}
		}
	}
}
