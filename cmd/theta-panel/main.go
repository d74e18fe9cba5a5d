package main

import (
	"fmt"
	"os"

	"github.com/kardianos/service"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"theta-panel/internal/config"
	"theta-panel/internal/logging"
)

var (
	cfgFile       string
	listenAddr    string
	serviceAction string
)

var rootCmd = &cobra.Command{
	Use:   "theta-panel",
	Short: "Web control panel for OSC spherical cameras",
	Long: `theta-panel serves a browser UI and JSON API that drive one OSC camera
(RICOH THETA): capture, file browsing and download, and live preview relay.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control panel server",
	Long: `Runs the panel in the foreground, or as an OS service when started by the
service manager. Use --service install|uninstall|start|stop|restart to manage
the installed service.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		err := config.Load(cfgFile, func(v *viper.Viper) error {
			return v.BindPFlag("listen", cmd.Flags().Lookup("listen"))
		})
		if err != nil {
			return err
		}
		cfg := config.Get()
		if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
			return err
		}

		s, err := service.New(&program{cfg: cfg}, serviceConfig())
		if err != nil {
			return err
		}

		if serviceAction != "" {
			if err := service.Control(s, serviceAction); err != nil {
				return fmt.Errorf("failed to %s service: %w", serviceAction, err)
			}
			fmt.Printf("Service action '%s' completed successfully.\n", serviceAction)
			return nil
		}

		log.Info().
			Str("camera", cfg.Camera.BaseURL()).
			Str("mode", cfg.Camera.Mode).
			Msg("starting theta panel")
		return s.Run()
	},
}

func serviceConfig() *service.Config {
	args := []string{"serve"}
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	if listenAddr != "" {
		args = append(args, "--listen", listenAddr)
	}
	wd, _ := os.Getwd()
	return &service.Config{
		Name:             "theta-panel",
		DisplayName:      "THETA Control Panel",
		Description:      "Web control panel and relay for an OSC spherical camera",
		Arguments:        args,
		WorkingDirectory: wd,
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (default 0.0.0.0:5000)")
	serveCmd.Flags().StringVar(&serviceAction, "service", "", "service control: install, uninstall, start, stop, restart")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
