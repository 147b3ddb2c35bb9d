// Package serve answers JSON line requests so editors and scripts can drive
// scans without spawning a process per run.
package serve

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/memkit/treescan/internal/logging"
)

// MaxRequestBytes limits the size of a single request line.
const MaxRequestBytes = 1 << 20

// Request describes one request line.
type Request struct {
	Op    string `json:"op"`
	Reset bool   `json:"reset,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// Response describes one response line.
type Response struct {
	OK    bool   `json:"ok"`
	Op    string `json:"op"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// Handlers implement the operations. Requests are handled one at a time, so
// scans never overlap.
type Handlers struct {
	Status  func(ctx context.Context) (any, error)
	Scan    func(ctx context.Context, reset bool) (any, error)
	History func(ctx context.Context, limit int) (any, error)
}

// ServeStdio reads requests from in until EOF or ctx is done and writes one
// response per request to out.
func ServeStdio(ctx context.Context, in io.Reader, out io.Writer, h Handlers, logger *zap.Logger) error {
	logger = logging.Component(logger, "serve")
	reader := bufio.NewReader(in)
	encoder := json.NewEncoder(out)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, tooLarge, err := readLine(reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		var resp Response
		switch {
		case tooLarge:
			resp = Response{Error: "request too large"}
		case len(line) == 0:
			resp = Response{Error: "invalid request: empty"}
		default:
			var req Request
			if err := json.Unmarshal(line, &req); err != nil {
				resp = Response{Error: fmt.Sprintf("invalid request: %v", err)}
				break
			}
			resp = handle(ctx, h, req)
		}
		if !resp.OK {
			logger.Debug("request failed", zap.String("op", resp.Op), zap.String("error", resp.Error))
		}
		if err := encoder.Encode(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
}

func handle(ctx context.Context, h Handlers, req Request) Response {
	var (
		data any
		err  error
	)
	switch req.Op {
	case "status":
		data, err = h.Status(ctx)
	case "scan":
		data, err = h.Scan(ctx, req.Reset)
	case "history":
		if req.Limit < 0 {
			return Response{Error: "invalid history request: limit must not be negative"}
		}
		data, err = h.History(ctx, req.Limit)
	default:
		return Response{Error: "unknown op"}
	}
	if err != nil {
		return Response{Op: req.Op, Error: err.Error()}
	}
	return Response{OK: true, Op: req.Op, Data: data}
}

// readLine returns the next line without its terminator. Lines longer than
// MaxRequestBytes are consumed and reported as tooLarge without being held
// in memory.
func readLine(reader *bufio.Reader) ([]byte, bool, error) {
	var (
		line     []byte
		tooLarge bool
	)
	for {
		chunk, err := reader.ReadSlice('\n')
		if !tooLarge {
			if len(line)+len(chunk) > MaxRequestBytes {
				tooLarge, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == nil, errors.Is(err, io.EOF) && (tooLarge || len(line) > 0):
			if tooLarge {
				return nil, true, nil
			}
			return bytes.TrimRight(line, "\r\n"), false, nil
		default:
			return nil, false, err
		}
	}
}
