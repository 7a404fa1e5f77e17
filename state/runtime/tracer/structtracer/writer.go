package structtracer

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/golang/snappy"
	jsoniter "github.com/json-iterator/go"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

var ErrUnknownFormat = errors.New("unknown trace format")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ParseFormat accepts "text" and "json", the empty string selects text
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Sink writes finished traces to an io.Writer, optionally snappy framed
type Sink struct {
	w        io.Writer
	format   Format
	compress bool
}

func NewSink(w io.Writer, format Format, compress bool) *Sink {
	return &Sink{w: w, format: format, compress: compress}
}

// Write encodes one transaction trace
func (s *Sink) Write(txHash string, res *StructTraceResult) error {
	var (
		w     io.Writer
		flush func() error
	)

	if s.compress {
		sw := snappy.NewBufferedWriter(s.w)
		w, flush = sw, sw.Close
	} else {
		bw := bufio.NewWriter(s.w)
		w, flush = bw, bw.Flush
	}

	var err error

	switch s.format {
	case FormatJSON:
		err = json.NewEncoder(w).Encode(struct {
			TxHash string `json:"txHash"`
			*StructTraceResult
		}{txHash, res})
	case FormatText:
		err = writeText(w, txHash, res)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownFormat, s.format)
	}

	if err != nil {
		return err
	}

	return flush()
}

func writeText(w io.Writer, txHash string, res *StructTraceResult) error {
	if _, err := fmt.Fprintf(w, "tx %s failed=%t energy=%d return=%s\n",
		txHash, res.Failed, res.Energy, res.ReturnValue); err != nil {
		return err
	}

	for _, l := range res.StructLogs {
		line := fmt.Sprintf("%d\t%-14s\tpc=%d\tenergy=%d\tcost=%d", l.Depth, l.Op, l.Pc, l.Energy, l.EnergyCost)
		if len(l.Stack) > 0 {
			line += fmt.Sprintf("\tstack=%v", l.Stack)
		}

		if l.Error != "" {
			line += "\terr=" + l.Error
		}

		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	return nil
}
