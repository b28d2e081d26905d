package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"showmerge/core/pipeline"
	"showmerge/db"
	"showmerge/model"

	"github.com/spf13/cobra"
)

var (
	mergeOutput        string
	mergeFolder        string
	mergeTarget        string
	mergeTransition    string
	mergeSilence       float64
	mergeClip          string
	mergeCompression   string
	mergeFade          float64
	mergeCodec         string
	mergeBitrate       string
	mergeCleanupChunks bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge [URL...]",
	Short: "合并音频片段",
	Long:  `从URL列表或MinIO目录获取音频片段，合并为一个带章节的节目并上传。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := model.MergeRequest{
			Files:         args,
			Folder:        mergeFolder,
			OutputName:    mergeOutput,
			TargetFolder:  mergeTarget,
			Compression:   mergeCompression,
			Codec:         mergeCodec,
			Bitrate:       mergeBitrate,
			CleanupChunks: mergeCleanupChunks,
		}
		if cmd.Flags().Changed("transition") || cmd.Flags().Changed("silence") || cmd.Flags().Changed("clip") {
			req.Transition = &model.TransitionPolicy{
				Kind:    model.TransitionKind(mergeTransition),
				Seconds: mergeSilence,
				ClipURL: mergeClip,
			}
		}
		if cmd.Flags().Changed("fade") {
			req.FadeSeconds = &mergeFade
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		progress := pipeline.ObserverFunc(func(e pipeline.Event) {
			fmt.Fprintf(os.Stderr, "[%s] %s\n", e.Time.Format("15:04:05"), e.Stage)
		})
		orch, err := buildOrchestrator(ctx, cfg, progress)
		if err != nil {
			return err
		}
		defer db.CloseRedis()

		result, err := orch.Run(ctx, "", req)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "", "节目名称 (必填)")
	mergeCmd.Flags().StringVar(&mergeFolder, "folder", "", "从该MinIO目录发现片段")
	mergeCmd.Flags().StringVar(&mergeTarget, "target", "", "上传目录 (默认 OUTPUT_FOLDER)")
	mergeCmd.Flags().StringVar(&mergeTransition, "transition", "silence", "片段间过渡: none, silence, clip")
	mergeCmd.Flags().Float64Var(&mergeSilence, "silence", 0, "静音时长(秒)")
	mergeCmd.Flags().StringVar(&mergeClip, "clip", "", "过渡音效URL")
	mergeCmd.Flags().StringVar(&mergeCompression, "compression", "", "压缩预设: light, normal, radio, crushed, off")
	mergeCmd.Flags().Float64Var(&mergeFade, "fade", 0, "每个片段的淡入淡出时长(秒)")
	mergeCmd.Flags().StringVar(&mergeCodec, "codec", "", "音频编码器")
	mergeCmd.Flags().StringVar(&mergeBitrate, "bitrate", "", "音频码率, 例如 192k")
	mergeCmd.Flags().BoolVar(&mergeCleanupChunks, "cleanup-chunks", false, "合并后删除中间分片")
	mergeCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(mergeCmd)
}
