package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"showmerge/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix    string
	minioStats     bool
	minioRecursive bool
	minioDelete    bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶管理",
	Long:  `查看和管理MinIO存储桶中的文件，支持列出文件、查看统计信息、递归显示目录结构、删除目录等功能。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		store, err := storage.NewStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("无法连接到MinIO: %w", err)
		}
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, store.Bucket())

		// 根据参数执行不同的操作
		switch {
		case minioDelete:
			if minioPrefix == "" {
				return fmt.Errorf("删除操作需要指定目录前缀")
			}
			n, err := store.RemovePrefix(ctx, minioPrefix)
			if err != nil {
				return fmt.Errorf("删除目录失败: %w", err)
			}
			fmt.Printf("已删除 %d 个对象 (前缀: %s)\n", n, minioPrefix)
		case minioRecursive:
			fmt.Printf("\n递归显示目录结构 (前缀: %s)...\n", minioPrefix)
			return store.PrintTree(ctx, os.Stdout, minioPrefix)
		case minioStats:
			return store.PrintStats(ctx, os.Stdout, minioPrefix)
		default:
			objects, err := store.List(ctx, minioPrefix, false)
			if err != nil {
				return fmt.Errorf("列出文件失败: %w", err)
			}
			for _, obj := range objects {
				fmt.Printf("%-60s %12d  %s\n", obj.Key, obj.Size, obj.LastModified.Format(time.RFC3339))
			}
			fmt.Printf("\n共 %d 个对象\n", len(objects))
		}
		return nil
	},
}

func init() {
	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "对象前缀")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "显示存储桶统计信息")
	minioCmd.Flags().BoolVarP(&minioRecursive, "recursive", "r", false, "递归显示目录结构")
	minioCmd.Flags().BoolVarP(&minioDelete, "delete", "d", false, "删除指定前缀下的所有对象")
	rootCmd.AddCommand(minioCmd)
}
