package runtime

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// TraceWriter appends trace events to a JSONL file.
type TraceWriter struct {
	file   *os.File
	writer *bufio.Writer
	enc    *json.Encoder
}

// NewTraceWriter creates a trace writer that appends to the given file.
func NewTraceWriter(path string) (*TraceWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	w := bufio.NewWriter(f)
	return &TraceWriter{
		file:   f,
		writer: w,
		enc:    json.NewEncoder(w),
	}, nil
}

// WriteStep appends a step_result event.
func (tw *TraceWriter) WriteStep(result *StepResult) error {
	return tw.write(TraceEvent{
		Type:      "step_result",
		Timestamp: time.Now(),
		RunID:     result.RunID,
		Result:    result,
	})
}

// WriteSummary appends the run_summary event.
func (tw *TraceWriter) WriteSummary(runID string, summary *RunSummary) error {
	return tw.write(TraceEvent{
		Type:      "run_summary",
		Timestamp: time.Now(),
		RunID:     runID,
		Summary:   summary,
	})
}

// write encodes one event and flushes it to disk, so a killed run still
// leaves every completed step on record.
func (tw *TraceWriter) write(event TraceEvent) error {
	if err := tw.enc.Encode(event); err != nil {
		return fmt.Errorf("encode trace event: %w", err)
	}
	if err := tw.writer.Flush(); err != nil {
		return fmt.Errorf("flush trace: %w", err)
	}
	if err := tw.file.Sync(); err != nil {
		return fmt.Errorf("sync trace: %w", err)
	}
	return nil
}

// Close flushes and closes the trace file.
func (tw *TraceWriter) Close() error {
	if err := tw.writer.Flush(); err != nil {
		return err
	}
	return tw.file.Close()
}

// ReadTrace parses a JSONL trace file.
func ReadTrace(path string) ([]TraceEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()

	var events []TraceEvent
	dec := json.NewDecoder(f)
	for dec.More() {
		var ev TraceEvent
		if err := dec.Decode(&ev); err != nil {
			return nil, fmt.Errorf("decode trace event %d: %w", len(events)+1, err)
		}
		events = append(events, ev)
	}
	return events, nil
}
