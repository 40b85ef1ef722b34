package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Krimson/ctg-stream/monitor/internal/config"
	"github.com/Krimson/ctg-stream/monitor/internal/csvreader"
	"github.com/Krimson/ctg-stream/monitor/internal/logger"
	"github.com/Krimson/ctg-stream/monitor/internal/model"
	"github.com/Krimson/ctg-stream/monitor/internal/offline"
	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
	"github.com/Krimson/ctg-stream/monitor/internal/recorder"
	synth "github.com/Krimson/ctg-stream/monitor/internal/signal"
)

// replay прогоняет запись через конвейер без сервера и печатает уведомления по мере появления
func main() {
	var (
		csvFile  = flag.String("csv", "", "CSV с колонками time_sec,fhr,uc")
		profile  = flag.String("profile", "normal", "Синтетический сценарий: "+fmt.Sprint(synth.ProfileNames()))
		duration = flag.Int("duration", 1800, "Длительность синтетической записи, с")
		seed     = flag.Int64("seed", 1, "Seed синтетической записи")
		manifest = flag.String("manifest", "", "Манифест моделей")
		every    = flag.Int("every", 60, "Печатать строку состояния каждые N секунд (0 - не печатать)")
		asJSON   = flag.Bool("json", false, "Вывести итоговый отчет в JSON")
		record   = flag.String("record", "", "Записать снимки каждого тика в JSONL файл")
	)
	flag.Parse()

	log, err := logger.NewLogger("warn", "console", "ctg-replay")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	samples, name, err := load(*csvFile, *profile, *duration, *seed)
	if err != nil {
		log.Fatal("failed to load recording", zap.Error(err))
	}

	var bundle *model.Bundle
	if *manifest != "" {
		if bundle, err = model.LoadBundle(*manifest); err != nil {
			log.Warn("model bundle unavailable", zap.Error(err))
		}
	}

	cfg := config.Load().Pipeline

	if *asJSON {
		report, err := offline.NewAnalyzer(cfg, bundle, nil, log).Analyze(context.Background(), name, samples)
		if err != nil {
			log.Fatal("analysis failed", zap.Error(err))
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Fatal("failed to encode report", zap.Error(err))
		}
		return
	}

	var rec *recorder.JSONLWriter
	if *record != "" {
		if rec, err = recorder.Open(*record, false, log); err != nil {
			log.Fatal("failed to open record file", zap.Error(err))
		}
	}

	err = replay(name, samples, cfg, bundle, *every, rec, log)
	if rec != nil {
		if cerr := rec.Close(); cerr != nil {
			log.Error("failed to close record file", zap.Error(cerr))
		}
	}
	if err != nil {
		log.Fatal("replay failed", zap.Error(err))
	}
}

func replay(name string, samples []pipeline.Sample, cfg pipeline.Config, bundle *model.Bundle, every int, rec *recorder.JSONLWriter, log *zap.Logger) error {
	groups := csvreader.GroupBySecond(samples)
	last := 0
	for sec := range groups {
		if sec > last {
			last = sec
		}
	}

	pipe := pipeline.New(name, cfg, bundle, log)
	for sec := 1; sec <= last; sec++ {
		snap, err := pipe.Tick(groups[sec])
		if err != nil {
			return err
		}
		if rec != nil {
			if err := rec.Write(snap); err != nil {
				return err
			}
		}
		for _, n := range snap.NewNotifications {
			fmt.Println(renderNotification(n))
		}
		if every > 0 && sec%every == 0 {
			fmt.Println(renderStatus(snap))
		}
	}

	fmt.Println(renderSummary(pipe.Finalize()))
	return nil
}

func load(csvFile, profile string, duration int, seed int64) ([]pipeline.Sample, string, error) {
	if csvFile != "" {
		samples, err := csvreader.ReadFile(csvFile)
		return samples, csvFile, err
	}
	cfg, err := synth.Profile(profile, duration, seed)
	if err != nil {
		return nil, "", err
	}
	g, err := synth.New(cfg)
	if err != nil {
		return nil, "", err
	}
	return g.All(), profile, nil
}
