package cmd

import (
	"context"

	"showmerge/db"
	"showmerge/logger"
	"showmerge/repository"
	"showmerge/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动合并服务",
	Long:  `启动HTTP服务器，提供同步/异步合并接口、运行记录查询和运行事件 WebSocket。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := repository.NewMemoryMergeRepository(0)
		if cfg.DBEnabled {
			gdb, err := db.ConnectGormDB(cfg)
			if err != nil {
				return err
			}
			defer db.CloseGormDB()
			repo = repository.NewGormMergeRepository(gdb)
		} else {
			logger.Warn("MySQL disabled, run history is kept in memory")
		}

		hub := server.NewEventHub()
		recorder := repository.NewRecorder(repo)
		defer recorder.Close()

		orch, err := buildOrchestrator(context.Background(), cfg, recorder, hub)
		if err != nil {
			return err
		}
		defer db.CloseRedis()

		return server.New(cfg, orch, repo, hub).ListenAndServe()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
