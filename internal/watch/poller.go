package watch

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/thermognosis/thermo-engine/internal/api"
	"github.com/thermognosis/thermo-engine/internal/scanner"
)

// Poller tails an inbox directory for freshly dropped measurement dumps
// and pushes each new file through the evaluation pipeline, streaming run
// summaries to the websocket hub as they complete.
type Poller struct {
	scanner   *scanner.DatasetScanner
	wsHub     *api.Hub
	inboxDir  string
	interval  time.Duration
	seenFiles map[string]bool
}

// StreamPayload represents the real-time data sent to the dashboard UI.
type StreamPayload struct {
	Type           string  `json:"type"`
	RunID          string  `json:"runId"`
	Source         string  `json:"source"`
	Mode           string  `json:"mode"`
	BatchSize      int     `json:"batchSize"`
	PosteriorSum   float64 `json:"posteriorSum"`
	MaxPosterior   float64 `json:"maxPosterior"`
	ArgMax         int     `json:"argMax"`
	ProcessingTime float64 `json:"processingTimeMs"`
}

func NewPoller(sc *scanner.DatasetScanner, wsHub *api.Hub, inboxDir string, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Poller{
		scanner:   sc,
		wsHub:     wsHub,
		inboxDir:  inboxDir,
		interval:  interval,
		seenFiles: make(map[string]bool),
	}
}

func (p *Poller) Run(ctx context.Context) {
	log.Printf("[watch] starting inbox poller on %s...", p.inboxDir)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Reset the seen set hourly so the map cannot grow without bound over
	// a long-lived inbox. Re-listed files are deduplicated per tick anyway.
	cleanupTicker := time.NewTicker(1 * time.Hour)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[watch] stopping inbox poller...")
			return
		case <-cleanupTicker.C:
			p.seenFiles = make(map[string]bool)
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick processes up to a handful of new files per interval so one giant
// drop cannot starve the stream.
func (p *Poller) tick(ctx context.Context) {
	entries, err := os.ReadDir(p.inboxDir)
	if err != nil {
		log.Printf("[watch] error reading inbox: %v", err)
		return
	}

	processedCount := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".csv") {
			continue
		}
		if p.seenFiles[name] {
			continue
		}
		p.seenFiles[name] = true

		path := filepath.Join(p.inboxDir, name)
		start := time.Now()
		run, err := p.scanner.ProcessFile(ctx, path)
		if err != nil {
			log.Printf("[watch] error processing %s: %v", name, err)
			continue
		}
		elapsed := float64(time.Since(start).Microseconds()) / 1000.0

		if run.BatchSize > 0 {
			log.Printf("[watch] evaluated %s: %d states, max posterior %.4f at index %d",
				name, run.BatchSize, run.MaxPosterior, run.ArgMax)
		}

		if p.wsHub != nil {
			payload := StreamPayload{
				Type:           "evaluation_run",
				RunID:          run.RunID,
				Source:         run.Source,
				Mode:           run.Mode,
				BatchSize:      run.BatchSize,
				PosteriorSum:   run.PosteriorSum,
				MaxPosterior:   run.MaxPosterior,
				ArgMax:         run.ArgMax,
				ProcessingTime: elapsed,
			}
			payloadBytes, _ := json.Marshal(payload)
			p.wsHub.Broadcast(payloadBytes)
		}

		processedCount++
		if processedCount >= 5 {
			break
		}
	}
}

// Seen reports whether the poller has already handled the named file.
func (p *Poller) Seen(name string) bool {
	return p.seenFiles[name]
}
