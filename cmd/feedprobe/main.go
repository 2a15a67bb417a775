// Command feedprobe fetches each feed once, normalizes the responses, and
// prints the resulting snapshots with their derived alert fields. It is a
// diagnostic for checking feed reachability and wire-shape drift without
// running the full service.
//
// Usage:
//
//	go run ./cmd/feedprobe -timeout 5s
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/quakewatch/eew-alert-service/internal/adapter/feeds"
	"github.com/quakewatch/eew-alert-service/internal/domain"
	"github.com/quakewatch/eew-alert-service/internal/poller"
)

func main() {
	scURL := flag.String("sc-url", "https://api.wolfx.jp/sc_eew.json", "Sichuan EEW feed URL")
	iclURL := flag.String("icl-url", "https://mobile-new.chinaeew.cn/v1/earlywarnings", "ICL EEW feed URL")
	ceaURL := flag.String("cea-url", "https://api.wolfx.jp/cea_eew.json", "CEA EEW feed URL")
	cencURL := flag.String("cenc-url", "https://news.data.cea.cn/quakenews", "CENC catalog URL")
	timeout := flag.Duration("timeout", 5*time.Second, "per-fetch timeout")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sources := []poller.Source{
		feeds.NewSichuanSource(*scURL, *timeout, logger),
		feeds.NewICLSource(*iclURL, *timeout, logger),
		feeds.NewCEASource(*ceaURL, *timeout, logger),
		feeds.NewCENCSource(*cencURL, *timeout, logger),
	}

	failures := 0
	for _, src := range sources {
		if err := probe(src, *timeout); err != nil {
			fmt.Fprintf(os.Stderr, "%-8s ERROR: %v\n", src.Kind(), err)
			failures++
		}
	}
	if failures > 0 {
		os.Exit(1)
	}
}

func probe(src poller.Source, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	snap, history, err := src.Fetch(ctx)
	if err != nil {
		return err
	}

	if snap == nil {
		fmt.Printf("%-8s idle\n", src.Kind())
	} else {
		printSnapshot(*snap)
	}
	if len(history) > 0 {
		fmt.Printf("%-8s catalog: %d recent quakes, newest %q M%s\n",
			src.Kind(), len(history), history[0].Place, trimFloat(history[0].Magnitude))
	}
	return nil
}

func printSnapshot(snap domain.Snapshot) {
	fields := domain.DeriveFields(snap)
	fmt.Printf("%-8s %s\n", snap.Source, snap.EventID)
	fmt.Printf("         place=%q origin=%q report=%d\n", fields.Place, fields.OriginTime, fields.ReportNo)
	fmt.Printf("         M%s depth=%skm intensity=%s\n",
		trimFloat(fields.Magnitude), trimFloat(fields.Depth), fields.IntensityLabel())
	if snap.Cancel {
		fmt.Println("         CANCELLED")
	}
	if snap.Final {
		fmt.Println("         final report")
	}
}

func trimFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}
