package main

import (
	"omnia/internal/api"
	"omnia/internal/app"
	"omnia/internal/config"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "serve")
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		listen, _ := cmd.Flags().GetString("listen")
		if listen == "" {
			listen = a.Config().API.Listen
		}
		if listen == "" {
			listen = config.DefaultListen
		}

		h := api.NewHandler(a.Service(), a.Logger(), app.Version)
		return api.NewServer(listen, h, a.Logger()).Run(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "Address to listen on (default api.listen)")
	rootCmd.AddCommand(serveCmd)
}
