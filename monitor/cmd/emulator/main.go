package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Krimson/ctg-stream/monitor/internal/csvreader"
	"github.com/Krimson/ctg-stream/monitor/internal/emulator"
	"github.com/Krimson/ctg-stream/monitor/internal/logger"
	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
	synth "github.com/Krimson/ctg-stream/monitor/internal/signal"
)

func main() {
	var (
		csvFile    = flag.String("csv", "", "CSV с колонками time_sec,fhr,uc")
		fhrFile    = flag.String("fhr", "", "CSV с данными пульса плода (time,value)")
		ucFile     = flag.String("uc", "", "CSV с данными сокращений матки (time,value)")
		profile    = flag.String("profile", "normal", "Синтетический сценарий, если файлы не заданы")
		duration   = flag.Int("duration", 1200, "Длительность синтетической записи, с")
		seed       = flag.Int64("seed", 1, "Seed синтетической записи")
		speed      = flag.Float64("speed", 1, "Ускорение воспроизведения")
		serverAddr = flag.String("server", "localhost:50051", "Адрес gRPC сервера")
		sessionID  = flag.String("session", "", "ID сессии (генерируется автоматически если не указан)")
		logLevel   = flag.String("log-level", "info", "Уровень логирования")
	)
	flag.Parse()

	log, err := logger.NewLogger(*logLevel, "console", "ctg-emulator")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *sessionID == "" {
		*sessionID = uuid.New().String()
	}

	samples, err := loadSamples(*csvFile, *fhrFile, *ucFile, *profile, *duration, *seed)
	if err != nil {
		log.Fatal("failed to load recording", zap.Error(err))
	}
	log.Info("recording loaded", zap.Int("samples", len(samples)), zap.String("session_id", *sessionID))

	client, err := emulator.NewClient(*serverAddr, *sessionID, log)
	if err != nil {
		log.Fatal("failed to create client", zap.Error(err))
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("interrupted, closing stream")
		cancel()
	}()

	stream := make(chan pipeline.Sample, 64)
	go func() {
		if err := csvreader.Stream(ctx, samples, time.Now(), *speed, stream); err != nil {
			log.Warn("streaming stopped", zap.Error(err))
		}
	}()

	acked, err := client.PushSamples(ctx, stream)
	if err != nil {
		log.Error("push failed", zap.Error(err))
	}
	log.Info("samples acknowledged", zap.Uint64("acked", acked))

	endCtx, endCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer endCancel()
	sum, err := client.EndSession(endCtx)
	if err != nil {
		log.Fatal("failed to end session", zap.Error(err))
	}

	log.Info("session finished",
		zap.String("session_id", sum.SessionID),
		zap.Int("duration_sec", sum.DurationSec),
		zap.Int("accelerations", sum.AccelerationsCount),
		zap.Int("decelerations", sum.DecelerationsCount),
		zap.Int("contractions", sum.ContractionsCount))
	if sum.FIGO != nil {
		log.Info("figo", zap.String("situation", *sum.FIGO))
	}
}

func loadSamples(csvFile, fhrFile, ucFile, profile string, duration int, seed int64) ([]pipeline.Sample, error) {
	switch {
	case csvFile != "":
		return csvreader.ReadFile(csvFile)
	case fhrFile != "" || ucFile != "":
		fhr, err := readSeries(fhrFile)
		if err != nil {
			return nil, err
		}
		uc, err := readSeries(ucFile)
		if err != nil {
			return nil, err
		}
		return csvreader.Merge(fhr, uc), nil
	default:
		cfg, err := synth.Profile(profile, duration, seed)
		if err != nil {
			return nil, err
		}
		g, err := synth.New(cfg)
		if err != nil {
			return nil, err
		}
		return g.All(), nil
	}
}

func readSeries(path string) ([]csvreader.DataPoint, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return csvreader.ReadSeries(f)
}
