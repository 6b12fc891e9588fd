package train

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CSVLogger appends one record per optimizer step to a CSV file.
type CSVLogger struct {
	file   *os.File
	writer *csv.Writer
	start  time.Time
}

// NewCSVLogger creates the log file and writes the header.
func NewCSVLogger(filename string) (*CSVLogger, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	writer := csv.NewWriter(file)
	writer.Write([]string{"step", "loss", "lr", "gamma", "time_seconds"})
	writer.Flush()
	return &CSVLogger{
		file:   file,
		writer: writer,
		start:  time.Now(),
	}, nil
}

// Log writes one training record.
func (c *CSVLogger) Log(step int, loss, lr, gamma float64) {
	if c.writer == nil {
		return
	}
	record := []string{
		strconv.Itoa(step),
		fmt.Sprintf("%.6f", loss),
		fmt.Sprintf("%.8f", lr),
		fmt.Sprintf("%.6f", gamma),
		fmt.Sprintf("%.2f", time.Since(c.start).Seconds()),
	}
	if err := c.writer.Write(record); err != nil {
		fmt.Printf("CSVLogger: failed to write record: %v\n", err)
	}
	c.writer.Flush()
}

// Close flushes and closes the log file.
func (c *CSVLogger) Close() {
	if c.file != nil {
		c.writer.Flush()
		c.file.Close()
		c.file = nil
		c.writer = nil
	}
}
