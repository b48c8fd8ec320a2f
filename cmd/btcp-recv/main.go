// Command btcp-recv is the accepter-side reference front end: it listens
// on a UDP socket for a single btcp-send connection and writes the
// received bytes to a file.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/btcpnet/btcp/pkg/btcp"
	"github.com/btcpnet/btcp/pkg/transport"
)

var (
	listenAddr = flag.String("addr", "127.0.0.1:9000", "address to listen on")
	output     = flag.String("o", "", "output file to write (default stdout)")
	window     = flag.Uint("w", uint(btcp.DefaultWindow), "window size in segments")
	timeoutMs  = flag.Uint("t", uint(btcp.DefaultTimeout.Milliseconds()), "retransmission timeout in milliseconds")
	maxRetries = flag.Int("retries", btcp.DefaultMaxRetries, "handshake/termination retry budget")
)

func main() {
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	if err := run(sugar); err != nil {
		sugar.Errorw("btcp-recv failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *zap.SugaredLogger) error {
	local, err := net.ResolveUDPAddr("udp", *listenAddr)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	conn, err := net.ListenUDP("udp", local)
	if err != nil {
		return fmt.Errorf("listen udp: %w", err)
	}

	// remote is unknown until the connector's SYN arrives; the transport
	// adopts it from that datagram's source address automatically.
	tr := transport.New(conn, nil, transport.WithLogger(logger))
	defer tr.Close()

	cfg := btcp.Config{
		Window:     uint8(*window),
		Timeout:    time.Duration(*timeoutMs) * time.Millisecond,
		MaxRetries: *maxRetries,
	}

	a := btcp.NewAccepter(cfg, tr, tr.Inbound())
	defer a.Close()

	logger.Infow("waiting for handshake", "listening", local.String())
	if err := a.Accept(); err != nil {
		return fmt.Errorf("accept: %w", err)
	}
	logger.Infow("accepted", "peer", tr.RemoteAddr())

	dst := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		dst = f
	}

	buf := make([]byte, btcp.PayloadSize)
	var total int
	for {
		n, err := a.Recv(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write output: %w", werr)
			}
			total += n
		}
		if err == btcp.ErrConnectionClosed {
			break
		}
		if err != nil {
			return fmt.Errorf("recv: %w", err)
		}
	}

	stats := a.Stats()
	logger.Infow("done",
		"bytes", total,
		"segmentsAccepted", stats.SegmentsAccepted,
		"duplicatesSeen", stats.DuplicatesSeen,
		"outOfOrderSeen", stats.OutOfOrderSeen,
	)
	return nil
}
