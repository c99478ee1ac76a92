package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"yashubustudio/logcompliance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the upload form over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		monitor, logger, closeAll, err := newMonitor(cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer closeAll()

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return web.New(monitor, logger).Serve(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default from config, :8501)")
	cobra.CheckErr(viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr")))
	rootCmd.AddCommand(serveCmd)
}
