// Package serve exposes a scanner.Core over newline-delimited JSON on a
// reader/writer pair, normally stdin and stdout.
package serve

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/praetorian-inc/sigscan/pkg/logging"
	"github.com/praetorian-inc/sigscan/pkg/scanner"
)

// Version is the server protocol version
const Version = "1.0.0"

// Server manages the streaming scanner
type Server struct {
	core    *scanner.Core
	encoder *json.Encoder
	decoder *json.Decoder
	logger  *slog.Logger
}

// NewServer creates a new streaming server
func NewServer(core *scanner.Core, in io.Reader, out io.Writer) *Server {
	return &Server{
		core:    core,
		encoder: json.NewEncoder(out),
		decoder: json.NewDecoder(bufio.NewReader(in)),
		logger:  logging.Discard(),
	}
}

// WithLogger sets the logger for request errors.
func (s *Server) WithLogger(logger *slog.Logger) *Server {
	s.logger = logging.OrDefault(logger)
	return s
}

// Run starts the server main loop. It returns nil on EOF or a close
// request, and the context error on cancellation.
func (s *Server) Run(ctx context.Context) error {
	s.sendReady()

	reqChan := make(chan Request, 1)
	errChan := make(chan error, 1)

	go func() {
		for {
			var req Request
			if err := s.decoder.Decode(&req); err != nil {
				errChan <- err
				return
			}
			select {
			case reqChan <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errChan:
			// Drain any pending requests before handling EOF
			for {
				select {
				case req := <-reqChan:
					if s.processRequest(ctx, req) {
						return nil
					}
				default:
					if err == io.EOF {
						return nil
					}
					s.sendError("decode", err.Error())
					return nil
				}
			}
		case req := <-reqChan:
			if s.processRequest(ctx, req) {
				return nil
			}
		}
	}
}

// processRequest handles a single request and returns true if the server should exit
func (s *Server) processRequest(ctx context.Context, req Request) bool {
	switch req.Type {
	case "find":
		s.handleFind(ctx, req.Payload)
	case "scan":
		s.handleScan(ctx, req.Payload)
	case "scan_batch":
		s.handleScanBatch(ctx, req.Payload)
	case "signatures":
		s.handleSignatures()
	case "close":
		return true
	default:
		s.sendError("unknown", "unknown request type: "+req.Type)
	}
	return false
}

func (s *Server) sendReady() {
	s.send("ready", ReadyData{Version: Version, Signatures: len(s.core.Signatures())})
}

func (s *Server) handleFind(ctx context.Context, payload json.RawMessage) {
	var p FindPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError("find", err.Error())
		return
	}

	result, err := s.core.Find(ctx, p.Haystack, p.Patterns)
	if err != nil {
		s.sendError("find", err.Error())
		return
	}
	s.send("find", result)
}

func (s *Server) handleScan(ctx context.Context, payload json.RawMessage) {
	var p ScanPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError("scan", err.Error())
		return
	}

	result, err := s.core.Scan(ctx, p.Content, p.Source)
	if err != nil {
		s.sendError("scan", err.Error())
		return
	}
	s.send("scan", result)
}

func (s *Server) handleScanBatch(ctx context.Context, payload json.RawMessage) {
	var p ScanBatchPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError("scan_batch", err.Error())
		return
	}

	result, err := s.core.ScanBatch(ctx, p.Items)
	if err != nil {
		s.sendError("scan_batch", err.Error())
		return
	}
	s.send("scan_batch", result)
}

func (s *Server) handleSignatures() {
	sigs := s.core.Signatures()
	infos := make([]SignatureInfo, len(sigs))
	for i, sig := range sigs {
		infos[i] = SignatureInfo{ID: sig.ID, Name: sig.Name, Pattern: sig.Pattern.String()}
	}
	s.send("signatures", infos)
}

func (s *Server) send(reqType string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.sendError(reqType, err.Error())
		return
	}
	if err := s.encoder.Encode(Response{Success: true, Type: reqType, Data: data}); err != nil {
		s.logger.Warn("writing response", "type", reqType, "error", err)
	}
}

func (s *Server) sendError(reqType, msg string) {
	s.logger.Debug("request failed", "type", reqType, "error", msg)
	if err := s.encoder.Encode(Response{
		Success: false,
		Type:    reqType,
		Error:   msg,
	}); err != nil {
		s.logger.Warn("writing error response", "type", reqType, "error", err)
	}
}
