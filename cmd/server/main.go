package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexiqai/voiceapi/internal/config"
)

// flags override the matching environment variables when set
type flags struct {
	addr        string
	port        int
	asrEngine   string
	ttsEngine   string
	asrProvider string
	ttsProvider string
	threads     int
	modelsRoot  string
	asrModel    string
	asrLang     string
	ttsModel    string
}

func newRootCommand(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "voiceapi",
		Short:         "Streaming speech recognition and synthesis server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)
			return serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.addr, "addr", "0.0.0.0", "serve address")
	fs.IntVar(&f.port, "port", 8000, "port number")
	fs.StringVar(&f.asrEngine, "asr-engine", config.EngineMock, "asr engine: mock, exec, deepgram")
	fs.StringVar(&f.ttsEngine, "tts-engine", config.EngineMock, "tts engine: mock, exec, cartesia")
	fs.StringVar(&f.asrProvider, "asr-provider", "cpu", "asr provider, cpu or cuda")
	fs.StringVar(&f.ttsProvider, "tts-provider", "cpu", "tts provider, cpu or cuda")
	fs.IntVar(&f.threads, "threads", 2, "number of threads")
	fs.StringVar(&f.modelsRoot, "models-root", "", "model root directory")
	fs.StringVar(&f.asrModel, "asr-model", "sensevoice", "asr model name: zipformer-bilingual, sensevoice, paraformer-trilingual, paraformer-en, fireredasr")
	fs.StringVar(&f.asrLang, "asr-lang", "zh", "asr language: zh, en, ja, ko, yue")
	fs.StringVar(&f.ttsModel, "tts-model", "vits-zh-hf-theresa", "tts model name: vits-zh-hf-theresa, vits-melo-tts-zh_en, kokoro-multi-lang-v1_0")
	return cmd
}

func (f *flags) apply(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("addr") {
		cfg.Addr = f.addr
	}
	if fs.Changed("port") {
		cfg.Port = f.port
	}
	if fs.Changed("asr-engine") {
		cfg.ASREngine = f.asrEngine
	}
	if fs.Changed("tts-engine") {
		cfg.TTSEngine = f.ttsEngine
	}
	if fs.Changed("asr-provider") {
		cfg.ASRProvider = f.asrProvider
	}
	if fs.Changed("tts-provider") {
		cfg.TTSProvider = f.ttsProvider
	}
	if fs.Changed("threads") {
		cfg.Threads = f.threads
	}
	if fs.Changed("models-root") {
		cfg.ModelsRoot = f.modelsRoot
	}
	if fs.Changed("asr-model") {
		cfg.ASRModel = f.asrModel
	}
	if fs.Changed("asr-lang") {
		cfg.ASRLang = f.asrLang
	}
	if fs.Changed("tts-model") {
		cfg.TTSModel = f.ttsModel
	}
}

func main() {
	if err := newRootCommand(&flags{}).Execute(); err != nil {
		// Use fmt for fatal errors; the logger may not be initialized yet
		fmt.Fprintf(os.Stderr, "voiceapi: %v\n", err)
		os.Exit(1)
	}
}
