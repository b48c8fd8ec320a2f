// Command btcp-send is the connector-side reference front end: it reads a
// file and streams it to a listening btcp-recv over UDP.
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/btcpnet/btcp/pkg/btcp"
	"github.com/btcpnet/btcp/pkg/transport"
)

var (
	addr       = flag.String("addr", "127.0.0.1:9000", "remote address to connect to")
	input      = flag.String("i", "", "input file to send (default stdin)")
	window     = flag.Uint("w", uint(btcp.DefaultWindow), "window size in segments")
	timeoutMs  = flag.Uint("t", uint(btcp.DefaultTimeout.Milliseconds()), "retransmission timeout in milliseconds")
	maxRetries = flag.Int("retries", btcp.DefaultMaxRetries, "handshake/termination retry budget")
	tos        = flag.Int("tos", 0, "IPv4 type-of-service byte to mark outgoing segments with (0 = unset)")
)

func main() {
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	if err := run(sugar); err != nil {
		sugar.Errorw("btcp-send failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *zap.SugaredLogger) error {
	remoteAddr, err := net.ResolveUDPAddr("udp", *addr)
	if err != nil {
		return fmt.Errorf("resolve remote address: %w", err)
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return fmt.Errorf("listen udp: %w", err)
	}

	opts := []transport.Option{transport.WithLogger(logger)}
	if *tos != 0 {
		opts = append(opts, transport.WithTOS(*tos))
	}
	tr := transport.New(conn, remoteAddr, opts...)
	defer tr.Close()

	cfg := btcp.Config{
		Window:     uint8(*window),
		Timeout:    time.Duration(*timeoutMs) * time.Millisecond,
		MaxRetries: *maxRetries,
	}

	c := btcp.NewConnector(cfg, tr, tr.Inbound())
	defer c.Close()

	logger.Infow("connecting", "remote", remoteAddr.String())
	if err := c.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	logger.Infow("connected")

	src := io.Reader(os.Stdin)
	if *input != "" {
		f, err := os.Open(*input)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		src = f
	}

	buf := make([]byte, btcp.PayloadSize)
	var total int
	for {
		n, err := src.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			for len(chunk) > 0 {
				accepted, sendErr := c.Send(chunk)
				if sendErr != nil {
					return fmt.Errorf("send: %w", sendErr)
				}
				chunk = chunk[accepted:]
			}
			total += n
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
	}

	logger.Infow("all data handed to sender, shutting down", "bytes", total)
	if err := c.Shutdown(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	stats := c.Stats()
	logger.Infow("done",
		"segmentsSent", stats.SegmentsSent,
		"retransmissions", stats.Retransmissions,
		"fastRetransmissions", stats.FastRetransmissions,
	)
	return nil
}
