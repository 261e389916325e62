package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/rs/zerolog"
)

// ExecRecognizer runs a local whisper-style command per chunk. The command
// receives --audio <wav> plus optional --model, --language and --vad-filter,
// and prints {"text": ..., "segments": [...]} on stdout.
type ExecRecognizer struct {
	cmd    []string
	model  string
	logger zerolog.Logger
}

type execResult struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// NewExecRecognizer parses command with shell quoting rules
func NewExecRecognizer(command, model string, logger zerolog.Logger) (*ExecRecognizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse stt command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("stt command is empty")
	}
	return &ExecRecognizer{
		cmd:    args,
		model:  model,
		logger: logger.With().Str("component", "stt").Str("backend", "exec").Logger(),
	}, nil
}

// Name identifies the backend
func (r *ExecRecognizer) Name() string {
	return "exec"
}

// Transcribe runs the command on path and decodes its JSON output
func (r *ExecRecognizer) Transcribe(ctx context.Context, path string, opts Options) (Result, error) {
	cmdArgs := append([]string{}, r.cmd[1:]...)
	cmdArgs = append(cmdArgs, "--audio", path)
	if r.model != "" {
		cmdArgs = append(cmdArgs, "--model", r.model)
	}
	if opts.LanguageHint != "" {
		cmdArgs = append(cmdArgs, "--language", opts.LanguageHint)
	}
	if opts.VADFilter {
		cmdArgs = append(cmdArgs, "--vad-filter")
	}

	command := exec.CommandContext(ctx, r.cmd[0], cmdArgs...)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return Result{}, fmt.Errorf("stt command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var resp execResult
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return Result{}, fmt.Errorf("decode stt response: %w", err)
	}

	r.logger.Debug().Str("path", path).Int("segments", len(resp.Segments)).Msg("Exec transcription complete")
	return Result{Text: strings.TrimSpace(resp.Text), Language: resp.Language, Segments: resp.Segments}, nil
}
