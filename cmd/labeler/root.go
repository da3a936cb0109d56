package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	labeler "github.com/menta2k/yolo-labeler"
	"github.com/menta2k/yolo-labeler/internal/config"
	"github.com/menta2k/yolo-labeler/internal/logger"
	"github.com/menta2k/yolo-labeler/pkg/canvas"
	"github.com/menta2k/yolo-labeler/pkg/workspace"
)

var (
	configPath string
	envFile    string
	debug      bool

	cfg    *config.Config
	appLog *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:           "labeler",
	Short:         "Bounding-box annotation editor for YOLO datasets",
	Long:          `labeler draws, moves and resizes YOLO boxes over a folder of images and keeps one .txt annotation file per image plus a shared classes.txt.`,
	Version:       labeler.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var envFiles []string
		if envFile != "" {
			envFiles = append(envFiles, envFile)
		}
		loaded, err := config.Load(configPath, envFiles...)
		if err != nil {
			return err
		}
		if debug {
			loaded.Log.Debug = true
		}
		cfg = loaded

		appLog, err = logger.New(cfg.Log)
		if err != nil {
			return err
		}
		appLog.Debug("config loaded from %s", configPath)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appLog != nil {
			appLog.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.GetConfigPath(), "configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file with LABELER_* overrides (default ./.env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(editCmd, scanCmd, listCmd, classesCmd, renderCmd, suggestCmd, modelsCmd, initConfigCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write the current configuration to the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.SaveToFile(configPath); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", configPath)
		return nil
	},
}

func canvasConfig() canvas.Config {
	return canvas.Config{
		HandleSize:  cfg.Canvas.HandleSize,
		MinBoxSize:  cfg.Canvas.MinBoxSize,
		MinDrawSize: cfg.Canvas.MinDrawSize,
	}
}

// folderArg picks the folder from the arguments or the configured default
func folderArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg.Dataset.Dir != "" {
		return cfg.Dataset.Dir, nil
	}
	return "", fmt.Errorf("no folder given and dataset.dir is not set")
}

func openWorkspace(dir string, reporter workspace.Reporter) (*workspace.Workspace, error) {
	return workspace.Open(dir, workspace.Options{
		Canvas:   canvasConfig(),
		Logger:   appLog,
		Reporter: reporter,
	})
}

func visionTimeout() time.Duration {
	return time.Duration(cfg.Vision.TimeoutSec) * time.Second
}
