package main

import (
	"encoding/json"
	"flag"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/miradorstack/mirador-sentinel/internal/utils"
)

// reading is one reply of the mock anomaly process.
type reading struct {
	Anomaly    bool     `json:"anomaly"`
	MLFlag     bool     `json:"ml_flag"`
	CPU        float64  `json:"cpu"`
	RAM        float64  `json:"ram"`
	DiskRead   float64  `json:"disk_read"`
	DiskWrite  float64  `json:"disk_write"`
	NetSent    float64  `json:"net_sent"`
	NetRecv    float64  `json:"net_recv"`
	Proc       int      `json:"proc"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

func main() {
	addr := flag.String("addr", "127.0.0.1:5055", "Listen address")
	script := flag.String("script", "10,45,70,75,80,30", "Comma-separated confidence values replayed in a loop")
	garbageEvery := flag.Int("garbage-every", 0, "Reply with malformed text every N requests (0 disables)")
	flag.Parse()

	logger := utils.NewLogger("info", false)

	confidences, err := parseScript(*script)
	if err != nil {
		logger.Error("invalid script", slog.Any("error", err))
		os.Exit(1)
	}

	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		logger.Error("listen failed", slog.String("address", *addr), slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("mock bridge listening", slog.String("address", lis.Addr().String()))

	var served atomic.Int64
	for {
		conn, err := lis.Accept()
		if err != nil {
			logger.Error("accept failed", slog.Any("error", err))
			return
		}
		n := served.Add(1)
		go handle(logger, conn, n, confidences, *garbageEvery)
	}
}

func handle(logger *slog.Logger, conn net.Conn, n int64, confidences []float64, garbageEvery int) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))

	// The real process reads at most 16 bytes and ignores their content.
	buf := make([]byte, 16)
	_, _ = conn.Read(buf)

	if garbageEvery > 0 && n%int64(garbageEvery) == 0 {
		_, _ = conn.Write([]byte("model warming up"))
		return
	}

	confidence := confidences[int(n-1)%len(confidences)]
	if err := json.NewEncoder(conn).Encode(makeReading(confidence)); err != nil {
		logger.Warn("write failed", slog.Any("error", err))
	}
}

func makeReading(confidence float64) reading {
	r := reading{
		CPU:        5 + confidence*0.9,
		RAM:        42.5,
		DiskRead:   0.8,
		DiskWrite:  1.6,
		NetSent:    12,
		NetRecv:    30,
		Proc:       312,
		Confidence: confidence,
		Reasons:    []string{},
	}
	if confidence >= 60 {
		r.Anomaly = true
		r.MLFlag = true
		r.Reasons = append(r.Reasons, "cpu spike")
	}
	return r
}

func parseScript(script string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(script, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
