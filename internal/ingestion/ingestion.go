// Package ingestion runs scraper subprocesses and turns their stdout
// into stored rows (spec §4.3). It is the only subsystem that touches
// the OS subprocess boundary. Grounded on the teacher's ticker/stop-
// channel goroutine idiom (internal/queue.Scheduler) and the content-
// hashing convention used throughout the teacher's planning modules
// (crypto/md5, e.g. modules/planning/evaluation.Service).
package ingestion

import (
	"bufio"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/antonkoetzler/arbihawk/internal/matcher"
	"github.com/antonkoetzler/arbihawk/internal/store"
	"github.com/antonkoetzler/arbihawk/internal/validator"
)

// SourceKind identifies what shape of payload a scraper emits and how
// it should be dispatched into the store (spec §4.3).
type SourceKind string

const (
	SourceBetano     SourceKind = "betano"
	SourceFlashscore SourceKind = "flashscore"
	SourceLivescore  SourceKind = "livescore"
	SourceStocks     SourceKind = "stocks"
	SourceCrypto     SourceKind = "crypto"
)

func (k SourceKind) validatorKind() validator.SourceKind {
	switch k {
	case SourceBetano:
		return validator.SourceBetano
	case SourceFlashscore:
		return validator.SourceFlashscore
	case SourceLivescore:
		return validator.SourceLivescore
	case SourceStocks:
		return validator.SourceStocks
	case SourceCrypto:
		return validator.SourceCrypto
	}
	return validator.SourceKind(k)
}

// LogFunc receives classified scraper log lines (spec §4.3: "a log
// callback (level, message) → ()").
type LogFunc func(level, message string)

// Request describes one subprocess invocation.
type Request struct {
	Command []string
	Source  SourceKind
	Timeout time.Duration // zero means no absolute timeout
	OnLog   LogFunc
}

// Result is the terminal outcome of a Run call (spec §4.3).
type Result struct {
	Success bool
	Stopped bool
	Records int
	Status  string // success, duplicate, validation_failed, error
	Reason  string
}

// Pipeline executes scraper subprocesses and dispatches their
// validated output into the store.
type Pipeline struct {
	store   *store.Store
	matcher *matcher.Matcher
	log     zerolog.Logger
}

// New constructs a Pipeline bound to a store and matcher.
func New(s *store.Store, m *matcher.Matcher, log zerolog.Logger) *Pipeline {
	return &Pipeline{store: s, matcher: m, log: log.With().Str("component", "ingestion").Logger()}
}

// Run spawns the subprocess described by req, classifies its output,
// extracts a JSON payload, validates and dispatches it, and records an
// ingestion_metadata row (spec §4.3). ctx carries cancellation; a
// caller cancelling ctx is the "stop" path.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	raw, stopped, timedOut, err := p.collect(ctx, req)
	if stopped {
		return Result{Success: false, Stopped: true, Status: "stopped"}, nil
	}
	if timedOut {
		return Result{Success: false, Status: "error", Reason: "timeout"}, nil
	}
	if err != nil {
		return Result{Success: false, Status: "error", Reason: err.Error()}, nil
	}

	payload, ok := extractJSON(raw, req.Source)
	if !ok {
		return Result{Success: false, Status: "error", Reason: "no JSON payload found in subprocess output"}, nil
	}

	checksum := contentChecksum(payload.raw)
	seen, err := p.store.HasSeenChecksum(string(req.Source), checksum)
	if err != nil {
		return Result{}, fmt.Errorf("ingestion: check checksum: %w", err)
	}
	if seen {
		if _, err := p.store.RecordIngestionWithValidation(string(req.Source), checksum, 0, "duplicate", ""); err != nil {
			p.log.Warn().Err(err).Msg("failed to record duplicate ingestion metadata")
		}
		return Result{Success: true, Status: "duplicate"}, nil
	}

	result := validator.Validate(req.Source.validatorKind(), payload.value)
	if !result.Valid {
		if _, err := p.store.RecordIngestionWithValidation(string(req.Source), checksum, 0, "validation_failed", result.ErrorString()); err != nil {
			p.log.Warn().Err(err).Msg("failed to record validation-failure ingestion metadata")
		}
		return Result{Success: false, Status: "validation_failed", Reason: result.ErrorString()}, nil
	}

	records, err := p.dispatch(req.Source, payload.value)
	if err != nil {
		if _, recErr := p.store.RecordIngestionWithValidation(string(req.Source), checksum, records, "error", err.Error()); recErr != nil {
			p.log.Warn().Err(recErr).Msg("failed to record error ingestion metadata")
		}
		return Result{}, fmt.Errorf("ingestion: dispatch %s: %w", req.Source, err)
	}

	if _, err := p.store.RecordIngestionWithValidation(string(req.Source), checksum, records, "success", ""); err != nil {
		return Result{}, fmt.Errorf("ingestion: record metadata: %w", err)
	}

	return Result{Success: true, Records: records, Status: "success"}, nil
}

// collect spawns the subprocess and drains its merged stdout/stderr
// line by line, honouring cancellation and the context deadline (spec
// §4.3 execution model). Lines classified as log lines are forwarded
// through req.OnLog as they arrive; JSON-candidate lines are retained
// for post-process extraction.
func (p *Pipeline) collect(ctx context.Context, req Request) (raw []string, stopped, timedOut bool, err error) {
	if len(req.Command) == 0 {
		return nil, false, false, fmt.Errorf("empty command")
	}

	cmd := exec.CommandContext(ctx, req.Command[0], req.Command[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, false, false, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, false, false, fmt.Errorf("start: %w", err)
	}

	lines := make(chan string, 256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	var collected []string
readLoop:
	for {
		select {
		case <-ctx.Done():
			_ = cmd.Process.Kill()
			<-done
			_ = cmd.Wait()
			if ctx.Err() == context.DeadlineExceeded {
				return collected, false, true, nil
			}
			return collected, true, false, nil
		case line, ok := <-lines:
			if !ok {
				break readLoop
			}
			collected = append(collected, line)
			level, message, isJSONCandidate := classify(line)
			if req.OnLog == nil {
				continue
			}
			if !isJSONCandidate {
				req.OnLog(level, message)
				continue
			}
			// Bracket/brace-prefixed lines are usually JSON payloads, but
			// scrapers also emit log lines that happen to start with '['
			// (e.g. "[INFO] ..."). Only suppress the log callback once the
			// line (or the block it anchors) actually decodes as JSON;
			// otherwise log it, matching the scraper bridge's "also log it
			// in case it's a log message starting with [" fallback.
			if len(message) > 3 && len(message) < 500 && !candidateDecodes(collected) {
				req.OnLog(level, message)
			}
		}
	}

	<-done
	if err := cmd.Wait(); err != nil {
		if _, isExit := err.(*exec.ExitError); !isExit {
			return collected, false, false, fmt.Errorf("wait: %w", err)
		}
	}

	return collected, false, false, nil
}

func contentChecksum(raw []byte) string {
	sum := md5.Sum(raw)
	return hex.EncodeToString(sum[:])
}

// decodedPayload pairs the raw bytes used for checksumming with the
// decoded value used for validation/dispatch.
type decodedPayload struct {
	raw   []byte
	value interface{}
}

func tryDecode(candidate string) (decodedPayload, bool) {
	var v interface{}
	if err := json.Unmarshal([]byte(candidate), &v); err != nil {
		return decodedPayload{}, false
	}
	return decodedPayload{raw: []byte(candidate), value: v}, true
}
