// =============================================================================
// Colloquy 主入口
// =============================================================================
// 运行多参与者对话并（可选）对成稿做一次分析
//
// 使用方法:
//
//	colloquy run --config colloquy.yaml             # 按配置运行对话
//	colloquy run --config colloquy.yaml --analyze "Score this debate 1-10."
//	colloquy version                                # 显示版本信息
// =============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/BaSui01/colloquy/config"
	"github.com/BaSui01/colloquy/conversation"
	"github.com/BaSui01/colloquy/providers"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		if err := runCommand(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "colloquy: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("colloquy %s\n", version)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: colloquy <run|version> [flags]")
	fmt.Fprintln(os.Stderr, "  run --config <path> [--analyze <prompt>]")
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "colloquy.yaml", "path to the run configuration")
	analyzePrompt := fs.String("analyze", "", "analysis prompt to run over the finished transcript")
	if err := fs.Parse(args); err != nil {
		return err
	}

	providers.LoadDotEnv()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger, err := cfg.BuildLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	participants, err := cfg.BuildParticipants(logger)
	if err != nil {
		return err
	}

	runner, err := conversation.NewRunner(participants, conversation.RunnerConfig{
		Logger: logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	transcript, runErr := runner.Run(ctx, cfg.RunOptions())

	fmt.Print(conversation.FormatTranscript(transcript))
	if runErr != nil {
		return fmt.Errorf("run ended early after %d turns: %w", transcript.Len(), runErr)
	}

	if *analyzePrompt != "" {
		if err := analyze(ctx, cfg, participants, transcript, *analyzePrompt, logger); err != nil {
			return err
		}
	}
	return nil
}

// analyze 让第一个参与者客串评审，对成稿做一次只读分析。
func analyze(
	ctx context.Context,
	cfg *config.Config,
	participants []*conversation.Participant,
	transcript *conversation.Transcript,
	prompt string,
	logger *zap.Logger,
) error {
	analyzer, err := conversation.NewAnalyzer(participants[0], logger)
	if err != nil {
		return err
	}

	resp, err := analyzer.Analyze(ctx, transcript, conversation.AnalyzeOptions{Prompt: prompt})
	if err != nil {
		return err
	}

	fmt.Println("--- ANALYSIS ---")
	fmt.Println(resp.Text())
	return nil
}
