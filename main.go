package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tsinghua-fib-lab/highway-datagen/dataset"
	"github.com/tsinghua-fib-lab/highway-datagen/env"
	_ "github.com/tsinghua-fib-lab/highway-datagen/env/gymsocket"
	_ "github.com/tsinghua-fib-lab/highway-datagen/env/highway"
	"github.com/tsinghua-fib-lab/highway-datagen/task"
	"github.com/tsinghua-fib-lab/highway-datagen/utils/config"
	"gopkg.in/yaml.v2"
)

var (
	// 预置配置：stacked（单个堆叠npy）或ragged（每个episode一个数组，附带控制器动作）
	preset = flag.String("preset", config.PresetStacked, "config preset (stacked or ragged)")
	// 配置文件路径，文件中的字段覆盖预置配置
	configPath = flag.String("config", "", "config file path")
	// 配置文件Base64编码后的数据
	configData = flag.String("config-data", "", "config file base64 encoded data")
	// 环境变量文件，可选
	dotenv = flag.String("env-file", ".env", "dotenv file providing MONGO_URI (optional)")

	// log
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log = logrus.WithField("module", "datagen")
)

// loadConfig 按预置配置、配置文件（或Base64数据）与环境变量组装配置
func loadConfig() config.Config {
	var file []byte
	var err error
	if *configPath != "" {
		file, err = os.ReadFile(*configPath)
		if err != nil {
			log.Panicf("config file load err: %v", err)
		}
	} else if *configData != "" {
		file, err = base64.StdEncoding.DecodeString(*configData)
		if err != nil {
			log.Panicf("config data load err: %v", err)
		}
	}
	c, err := config.Load(*preset, file)
	if err != nil {
		log.Panicf("config load err: %v", err)
	}
	if c.Output.Mongo.URI == "" {
		c.Output.Mongo.URI = os.Getenv("MONGO_URI")
	}
	return c
}

// setupLog 安装日志格式并设置日志级别
func setupLog() error {
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	// log: 运行时才修改
	level, ok := logLevels[*logLevel]
	if !ok {
		return fmt.Errorf("log.level must be one of %v", lo.Keys(logLevels))
	}
	logrus.SetLevel(level)
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	for _, path := range args {
		summary, err := dataset.Inspect(path)
		if err != nil {
			return fmt.Errorf("inspect %s: %w", path, err)
		}
		if err := summary.Print(cmd.OutOrStdout()); err != nil {
			return err
		}
	}
	return nil
}

func runCollect(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(*dotenv); err != nil && !os.IsNotExist(err) {
		log.Warnf("dotenv %s: %v", *dotenv, err)
	}

	c := loadConfig()
	rc, err := config.NewRuntimeConfig(c)
	if err != nil {
		return err
	}
	masked := c
	if masked.Output.Mongo.URI != "" {
		masked.Output.Mongo.URI = "***"
	}
	if out, err := yaml.Marshal(masked); err == nil {
		log.Debugf("config:\n%s", out)
	}

	e, err := env.Make(c)
	if err != nil {
		return err
	}
	defer e.Close()
	sink, err := dataset.New(c.Output)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	summary, err := task.NewContext(rc, e, sink).Run(ctx)
	if err != nil {
		return fmt.Errorf("data generation aborted after %d episodes: %w", summary.Episodes, err)
	}
	log.Infof("Data generation finished: %v", summary)
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "highway-datagen",
		Short:         "Collect highway driving trajectories from a rule-based controller into datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return setupLog()
		},
	}
	// 各包通过flag注册的参数（如rand.seed_offset、log.heartbeat_interval）统一交给cobra解析
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the rollout and write the dataset",
		Args:  cobra.NoArgs,
		RunE:  runCollect,
	}
	inspectCmd := &cobra.Command{
		Use:   "inspect <dataset>...",
		Short: "Print shape and per-column statistics of dataset files (.npy .npz .pb)",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runInspect,
	}
	rootCmd.AddCommand(runCmd, inspectCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
