package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"babel/internal/config"
	"babel/internal/history"
	"babel/internal/ipc"
	"babel/internal/language"
	"babel/internal/logging"
	"babel/internal/protocol"
	"babel/internal/session"
	"babel/internal/worker"
)

type translateOptions struct {
	from     string
	to       string
	daemon   bool
	noStream bool
	jsonOut  bool
	verbose  bool
	timeout  time.Duration
}

type translateResult struct {
	ID             string `json:"id"`
	SourceLanguage string `json:"src_lang"`
	TargetLanguage string `json:"tgt_lang"`
	Output         string `json:"output"`
}

func newTranslateCommand(ctx *commandContext) *cobra.Command {
	var opts translateOptions

	cmd := &cobra.Command{
		Use:   "translate [text...]",
		Short: "Translate text, streaming the output as it is generated",
		Long: "Translate text passed as arguments or on stdin. By default the engine runs in-process; " +
			"--daemon sends the request to a running babel daemon instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			text, err := translateInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			return runTranslate(cmd, cfg, text, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.from, "from", "f", "", "Source language (code, BCP 47 tag, or name)")
	cmd.Flags().StringVarP(&opts.to, "to", "t", "", "Target language (code, BCP 47 tag, or name)")
	cmd.Flags().BoolVar(&opts.daemon, "daemon", false, "Translate through the running daemon")
	cmd.Flags().BoolVar(&opts.noStream, "no-stream", false, "Print only the final translation")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log worker activity to stderr")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "Give up after this long")
	return cmd
}

func translateInput(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimRight(string(data), "\n")
	if strings.TrimSpace(text) == "" {
		return "", errors.New("no text to translate: pass it as arguments or on stdin")
	}
	return text, nil
}

func resolveLanguage(flag, fallback, which string) (string, error) {
	value := strings.TrimSpace(flag)
	if value == "" {
		value = fallback
	}
	lang, ok := language.Resolve(value)
	if !ok {
		return "", fmt.Errorf("unknown %s language %q (see `babel languages`)", which, value)
	}
	return lang.Code, nil
}

func runTranslate(cmd *cobra.Command, cfg *config.Config, text string, opts translateOptions) error {
	src, err := resolveLanguage(opts.from, cfg.Translate.SourceLanguage, "source")
	if err != nil {
		return err
	}
	tgt, err := resolveLanguage(opts.to, cfg.Translate.TargetLanguage, "target")
	if err != nil {
		return err
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{Level: level, Format: cfg.Logging.Format})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	runCtx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	var port protocol.ControlPort
	if opts.daemon {
		conn, err := ipc.DialStream(cfg.Paths.SocketPath)
		if err != nil {
			return wrapDialError(err, cfg.Paths.SocketPath)
		}
		port = conn
	} else {
		local, cleanup, err := openLocalPort(runCtx, cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()
		port = local
	}

	sess := session.New(port, logger)
	defer sess.Close()

	stream := !opts.noStream && !opts.jsonOut
	renderer := newTranslateRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), stream)
	sess.OnChange(renderer.observe)

	id, err := sess.Submit(protocol.Request{Text: text, SourceLanguage: src, TargetLanguage: tgt})
	if err != nil {
		return fmt.Errorf("submit translation: %w", err)
	}

	state, err := sess.AwaitIdle(runCtx)
	renderer.finish(state)
	if err != nil {
		return fmt.Errorf("wait for translation: %w", err)
	}
	if state.Err != nil {
		return fmt.Errorf("translation failed (%s): %s", state.Err.Kind, state.Err.Message)
	}
	if opts.jsonOut {
		return writeJSON(cmd.OutOrStdout(), translateResult{
			ID:             id,
			SourceLanguage: src,
			TargetLanguage: tgt,
			Output:         state.Final,
		})
	}
	return nil
}

// openLocalPort runs a worker in this process and returns the control side of
// a pipe attached to it.
func openLocalPort(ctx context.Context, cfg *config.Config, logger *slog.Logger) (protocol.ControlPort, func(), error) {
	var store *history.Store
	var recorder worker.Recorder
	if cfg.History.Enabled {
		s, err := history.Open(cfg)
		if err != nil {
			logger.Warn("history unavailable; continuing without it", logging.Error(err))
		} else {
			store = s
			recorder = s
		}
	}

	w, err := worker.NewFromConfig(cfg, logger, recorder)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, nil, err
	}
	if err := w.Start(ctx); err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, nil, err
	}

	control, workerPort := protocol.Pipe()
	served := make(chan struct{})
	go func() {
		defer close(served)
		if err := w.Serve(ctx, workerPort, "local"); err != nil {
			logger.Debug("local worker port closed", logging.Error(err))
		}
	}()

	cleanup := func() {
		_ = control.Close()
		w.Stop()
		<-served
		if store != nil {
			_ = store.Close()
		}
	}
	return control, cleanup, nil
}
