package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pesio-ai/be-procurement-assistant/internal/pkg/logger"
	"github.com/pesio-ai/be-procurement-assistant/internal/service"
)

// cli carries settings shared by every subcommand
type cli struct {
	v   *viper.Viper
	log *logger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:   "reportctl",
		Short: "Render procurement documents and compare quotations offline",
		Long: `reportctl renders JSON documents (RFQs, analyses, purchase orders) into
reports and builds vendor comparison tables from extracted quotations,
without running the procurement service.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
	}

	root.PersistentFlags().String("config", "", "config file (YAML)")
	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("font-path", "", "UTF-8 TTF font for PDF output")
	_ = c.v.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = c.v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))
	_ = c.v.BindPFlag("report.font_path", root.PersistentFlags().Lookup("font-path"))

	root.AddCommand(newRenderCmd(c), newCompareCmd(c))
	return root
}

func (c *cli) init() error {
	c.v.SetEnvPrefix("REPORTCTL")
	c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	c.v.AutomaticEnv()

	if path := c.v.GetString("config"); path != "" {
		c.v.SetConfigFile(path)
		if err := c.v.ReadInConfig(); err != nil {
			return err
		}
	}

	c.log = logger.New(logger.Config{
		Level:       c.v.GetString("log.level"),
		Environment: "development",
		ServiceName: "reportctl",
		Output:      os.Stderr,
	})
	return nil
}

func (c *cli) reports() *service.ReportService {
	return service.NewReportService(c.v.GetString("report.font_path"), c.log)
}
