package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/bmbmjmdm/hear-you-out/internal/asr"
	"github.com/bmbmjmdm/hear-you-out/internal/audio"
	"github.com/bmbmjmdm/hear-you-out/internal/cards"
	"github.com/bmbmjmdm/hear-you-out/internal/concat"
	"github.com/bmbmjmdm/hear-you-out/internal/state"
	"github.com/bmbmjmdm/hear-you-out/internal/tui"
)

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "open the question and answer cards",
		Action: func(cCtx *cli.Context) error {
			svc, err := buildServices(cCtx)
			if err != nil {
				return err
			}
			defer svc.Close()
			return run(cCtx.Context, svc)
		},
	}
}

func run(ctx context.Context, svc *services) error {
	cfg, log := svc.cfg, svc.log

	if _, err := svc.login(ctx); err != nil {
		return err
	}

	ffmpeg := concat.New(concat.Config{FFmpegPath: cfg.FFmpeg.Path, Timeout: cfg.FFmpeg.Timeout}, log.Named("concat"))
	if err := ffmpeg.CheckAvailable(ctx); err != nil {
		// 只有追加录音需要 ffmpeg
		log.Warnw("ffmpeg unavailable, extending a paused recording will fail", "error", err)
	}

	engine, err := audio.NewEngine(audio.Config{
		SampleRate:    cfg.Audio.SampleRate,
		MeterInterval: cfg.Audio.MeterInterval,
	}, log.Named("audio"))
	if err != nil {
		return fmt.Errorf("failed to open audio devices: %w", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Warnw("Failed to close audio engine", "error", err)
		}
	}()

	var transcriber tui.Transcriber
	if cfg.OpenAI.APIKey != "" {
		asrCfg := asr.DefaultConfig()
		asrCfg.APIKey = cfg.OpenAI.APIKey
		if cfg.OpenAI.Model != "" {
			asrCfg.Model = cfg.OpenAI.Model
		}
		asrCfg.Language = cfg.OpenAI.Language
		svcASR, err := asr.NewService(asrCfg, log.Named("asr"))
		if err != nil {
			return err
		}
		transcriber = svcASR
	}

	root := cfg.Audio.SessionDir
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("failed to create session root: %w", err)
	}

	factory := &sessionFactory{
		root: root,
		policy: state.Config{
			MinSeconds: cfg.Policy.MinSeconds,
			MaxSeconds: cfg.Policy.MaxSeconds,
			Tick:       cfg.Policy.Tick,
			RetryDelay: cfg.Policy.RetryDelay,
		},
		deps: state.Deps{
			Device:    engine,
			Concat:    ffmpeg,
			Submitter: svc.api,
		},
		log: log.Named("session"),
	}

	deps := tui.Deps{
		Queue:       cards.NewQueue(svc.api, svc.prefs, log.Named("cards")),
		Prefs:       svc.prefs,
		Account:     svc.api,
		NewSession:  factory.New,
		Player:      engine,
		Transcriber: transcriber,
		Policy: tui.Policy{
			MinSeconds:  cfg.Policy.MinSeconds,
			MaxSeconds:  cfg.Policy.MaxSeconds,
			WarnSeconds: cfg.Policy.WarnSeconds,
		},
		Log: log.Named("tui"),
	}

	log.Infow("Starting", "api", cfg.API.BaseURL, "store", cfg.Store.Driver)
	return tui.Run(ctx, deps)
}

func NewLoginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "register this device if needed and show the account",
		Flags: []cli.Flag{jsonFlag},
		Action: func(cCtx *cli.Context) error {
			svc, err := buildServices(cCtx)
			if err != nil {
				return err
			}
			defer svc.Close()

			sess, err := svc.login(cCtx.Context)
			if err != nil {
				return err
			}
			deviceID, err := svc.prefs.DeviceID(cCtx.Context)
			if err != nil {
				return err
			}

			out := cCtx.App.Writer
			if cCtx.Bool(jsonFlag.Name) {
				return json.NewEncoder(out).Encode(map[string]any{
					"device_id":     deviceID,
					"user_id":       sess.UserID,
					"feature_flags": sess.FeatureFlags,
				})
			}
			fmt.Fprintf(out, "device: %s\n", deviceID)
			fmt.Fprintf(out, "user:   %s\n", sess.UserID)
			fmt.Fprintf(out, "flags:  %s\n", formatFlags(sess.FeatureFlags))
			return nil
		},
	}
}

func formatFlags(flags map[string]bool) string {
	names := make([]string, 0, len(flags))
	for name, on := range flags {
		if on {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "-"
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func NewQuestionCommand() *cli.Command {
	return &cli.Command{
		Name:  "question",
		Usage: "print the current question and its checklist",
		Flags: []cli.Flag{jsonFlag},
		Action: func(cCtx *cli.Context) error {
			svc, err := buildServices(cCtx)
			if err != nil {
				return err
			}
			defer svc.Close()

			if _, err := svc.login(cCtx.Context); err != nil {
				return err
			}
			q, err := svc.api.Question(cCtx.Context)
			if err != nil {
				return err
			}

			out := cCtx.App.Writer
			if cCtx.Bool(jsonFlag.Name) {
				return json.NewEncoder(out).Encode(q)
			}
			fmt.Fprintln(out, q.Text)
			for i, item := range q.Checklist {
				fmt.Fprintf(out, "  %d. %s\n", i+1, item)
			}
			return nil
		},
	}
}

func NewDoctorCommand() *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "check ffmpeg, audio devices, local store and server",
		Action: func(cCtx *cli.Context) error {
			svc, err := buildServices(cCtx)
			if err != nil {
				return err
			}
			defer svc.Close()
			return doctor(cCtx.Context, cCtx.App.Writer, svc)
		},
	}
}

type check struct {
	name string
	run  func(ctx context.Context) (string, error)
}

func doctor(ctx context.Context, out io.Writer, svc *services) error {
	cfg := svc.cfg
	checks := []check{
		{"ffmpeg", func(ctx context.Context) (string, error) {
			s := concat.New(concat.Config{FFmpegPath: cfg.FFmpeg.Path, Timeout: cfg.FFmpeg.Timeout}, svc.log)
			return cfg.FFmpeg.Path, s.CheckAvailable(ctx)
		}},
		{"audio", func(ctx context.Context) (string, error) {
			in, outDev, err := audio.GetManager().Probe()
			return fmt.Sprintf("in=%q out=%q", in, outDev), err
		}},
		{"sessions", func(ctx context.Context) (string, error) {
			abs, _ := filepath.Abs(cfg.Audio.SessionDir)
			return abs, os.MkdirAll(cfg.Audio.SessionDir, 0755)
		}},
		{"store", func(ctx context.Context) (string, error) {
			id, err := svc.prefs.DeviceID(ctx)
			return cfg.Store.Driver + " device=" + id, err
		}},
		{"server", func(ctx context.Context) (string, error) {
			sess, err := svc.login(ctx)
			if err != nil {
				return cfg.API.BaseURL, err
			}
			return cfg.API.BaseURL + " user=" + sess.UserID, nil
		}},
	}

	failed := 0
	for _, c := range checks {
		detail, err := c.run(ctx)
		if err != nil {
			failed++
			fmt.Fprintf(out, "✗ %-8s %s: %v\n", c.name, detail, err)
			continue
		}
		fmt.Fprintf(out, "✓ %-8s %s\n", c.name, detail)
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d check(s) failed", failed), 1)
	}
	return nil
}
