package storage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
	ByMediaType  map[string]int64
}

// Stats collects object counts and sizes under prefix.
func (s *Store) Stats(ctx context.Context, prefix string) (*BucketStats, error) {
	objects, err := s.List(ctx, prefix, true)
	if err != nil {
		return nil, err
	}
	return summarize(objects), nil
}

func summarize(objects []ObjectInfo) *BucketStats {
	stats := &BucketStats{ByMediaType: make(map[string]int64)}
	for _, obj := range objects {
		stats.TotalObjects++
		stats.TotalSize += obj.Size
		if obj.LastModified.After(stats.LastModified) {
			stats.LastModified = obj.LastModified
		}
		stats.ByMediaType[MediaType(obj.ContentType, obj.Key)] += obj.Size
	}
	return stats
}

// PrintStats 打印存储桶统计信息
func (s *Store) PrintStats(ctx context.Context, w io.Writer, prefix string) error {
	stats, err := s.Stats(ctx, prefix)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\n=== 存储桶统计信息 ===\n")
	fmt.Fprintf(w, "存储桶名称: %s\n", s.bucketName)
	fmt.Fprintf(w, "前缀: %s\n", prefix)
	fmt.Fprintf(w, "总大小: %s\n", formatSize(stats.TotalSize))
	fmt.Fprintf(w, "对象总数: %d\n", stats.TotalObjects)
	fmt.Fprintf(w, "最后修改时间: %s\n", stats.LastModified.Format(time.RFC3339))

	kinds := make([]string, 0, len(stats.ByMediaType))
	for kind := range stats.ByMediaType {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	fmt.Fprintf(w, "\n按类型统计:\n")
	for _, kind := range kinds {
		fmt.Fprintf(w, "%s: %s\n", kind, formatSize(stats.ByMediaType[kind]))
	}
	return nil
}

// PrintTree 递归显示目录结构
func (s *Store) PrintTree(ctx context.Context, w io.Writer, prefix string) error {
	objects, err := s.List(ctx, prefix, true)
	if err != nil {
		return err
	}
	printDirectoryStructure(w, prefix, objects)
	return nil
}

// printDirectoryStructure 打印目录结构
func printDirectoryStructure(w io.Writer, prefix string, objects []ObjectInfo) {
	dirs := make(map[string]bool)
	for _, obj := range objects {
		parts := strings.Split(obj.Key, "/")
		for i := 1; i < len(parts); i++ {
			dirs[strings.Join(parts[:i], "/")] = true
		}
	}

	var sortedDirs []string
	for dir := range dirs {
		if strings.HasPrefix(dir+"/", prefix) || strings.HasPrefix(prefix, dir+"/") {
			sortedDirs = append(sortedDirs, dir)
		}
	}
	sort.Strings(sortedDirs)

	for _, dir := range sortedDirs {
		indent := strings.Repeat("  ", strings.Count(dir, "/"))
		fmt.Fprintf(w, "%s📁 %s/\n", indent, dir)
		for _, obj := range objects {
			name := strings.TrimPrefix(obj.Key, dir+"/")
			if strings.HasPrefix(obj.Key, dir+"/") && !strings.Contains(name, "/") {
				fmt.Fprintf(w, "%s  📄 %s (%s)\n", indent, name, formatSize(obj.Size))
			}
		}
	}

	// 根目录下的文件
	for _, obj := range objects {
		if !strings.Contains(obj.Key, "/") {
			fmt.Fprintf(w, "📄 %s (%s)\n", obj.Key, formatSize(obj.Size))
		}
	}
}

// formatSize 格式化文件大小
func formatSize(size int64) string {
	if size < 0 {
		size = 0
	}
	return humanize.IBytes(uint64(size))
}

// inferContentType 从文件名推断内容类型
func inferContentType(filename string) string {
	switch strings.ToLower(getFileExtension(filename)) {
	case "mp3", "wav", "flac", "m4a", "aac", "ogg", "opus":
		return "audio"
	case "mp4", "avi", "mov", "mkv", "webm":
		return "video"
	case "jpg", "jpeg", "png", "gif", "webp":
		return "image"
	case "pdf", "doc", "docx", "txt", "json":
		return "document"
	default:
		return "other"
	}
}

// getFileExtension 获取文件扩展名 (不含点)
func getFileExtension(filename string) string {
	for i := len(filename) - 1; i >= 0; i-- {
		switch filename[i] {
		case '.':
			return filename[i+1:]
		case '/':
			return ""
		}
	}
	return ""
}
