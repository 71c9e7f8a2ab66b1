package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/moonfable/tale_go_server/config"
)

var (
	dryRun        = flag.Bool("dry-run", true, "Dry run mode, don't actually delete files")
	mixExpire     = flag.Int("mix-expire", 1, "Hours to keep leftover mix session dirs")
	mediaExpire   = flag.Int("media-expire", 7, "Days to keep locally stored audio/cartoon files")
	cleanMixDirs  = flag.Bool("clean-mix", true, "Clean leftover mix session dirs")
	cleanMedia    = flag.Bool("clean-media", true, "Clean locally stored audio and cartoon files")
)

func main() {
	flag.Parse()

	log.Println("🧹 Starting cleanup task...")
	log.Printf("Mode: dry-run=%v", *dryRun)

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	tempDir := cfg.Audio.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	totalSize := int64(0)
	deletedSize := int64(0)
	totalFiles := 0
	deletedFiles := 0

	// 1. 清理混音进程崩溃后遗留的会话目录
	if *cleanMixDirs {
		log.Printf("\n🎵 Cleaning leftover mix session dirs (older than %d hours)...", *mixExpire)
		size, count := cleanExpiredMixDirs(tempDir, *mixExpire, *dryRun)
		deletedSize += size
		deletedFiles += count
	}

	// 2. 清理未配置 OSS 时落在本地的音频 / 动画文件
	if *cleanMedia {
		log.Printf("\n📦 Cleaning local media files (older than %d days)...", *mediaExpire)
		for _, sub := range []string{"audio", "cartoons"} {
			size, count := cleanExpiredFiles(filepath.Join(tempDir, sub), *mediaExpire*24, *dryRun)
			deletedSize += size
			deletedFiles += count
		}
	}

	// 3. 统计当前占用
	log.Println("\n📈 Scanning current disk usage...")
	filepath.Walk(tempDir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			totalSize += info.Size()
			totalFiles++
		}
		return nil
	})

	// 输出统计
	log.Println("\n" + strings.Repeat("=", 60))
	log.Println("📊 Cleanup Summary")
	log.Println(strings.Repeat("=", 60))
	log.Printf("Total files: %d", totalFiles)
	log.Printf("Total size: %s", formatSize(totalSize))
	log.Printf("Deleted files: %d", deletedFiles)
	log.Printf("Freed space: %s", formatSize(deletedSize))
	if *dryRun {
		log.Println("\n⚠️  DRY RUN MODE - No files were actually deleted")
		log.Println("   Run with -dry-run=false to actually delete files")
	} else {
		log.Println("\n✅ Cleanup completed!")
	}
	log.Println(strings.Repeat("=", 60))
}

// cleanExpiredMixDirs 清理过期的混音会话目录（<temp>/mix_*）
func cleanExpiredMixDirs(tempDir string, expireHours int, dryRun bool) (int64, int) {
	expireTime := time.Now().Add(-time.Duration(expireHours) * time.Hour)
	var totalSize int64
	var count int

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		log.Printf("Failed to read temp dir: %v", err)
		return 0, 0
	}

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "mix_") {
			continue
		}

		dirPath := filepath.Join(tempDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(expireTime) {
			size := getDirSize(dirPath)
			totalSize += size

			log.Printf("  - %s (%.2f MB, %s old)",
				entry.Name(),
				float64(size)/1024/1024,
				time.Since(info.ModTime()).Round(time.Hour))

			if !dryRun {
				if err := os.RemoveAll(dirPath); err != nil {
					log.Printf("    ❌ Failed to delete: %v", err)
				} else {
					count++
				}
			} else {
				count++
			}
		}
	}

	log.Printf("Found %d leftover mix dirs (total: %s)", count, formatSize(totalSize))

	return totalSize, count
}

// cleanExpiredFiles 清理目录下过期的普通文件
func cleanExpiredFiles(dir string, expireHours int, dryRun bool) (int64, int) {
	expireTime := time.Now().Add(-time.Duration(expireHours) * time.Hour)
	var totalSize int64
	var count int

	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Failed to read dir %s: %v", dir, err)
		}
		return 0, 0
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(expireTime) {
			totalSize += info.Size()

			log.Printf("  - %s (%.2f KB, %s old)",
				entry.Name(),
				float64(info.Size())/1024,
				time.Since(info.ModTime()).Round(time.Hour))

			if !dryRun {
				filePath := filepath.Join(dir, entry.Name())
				if err := os.Remove(filePath); err != nil {
					log.Printf("    ❌ Failed to delete: %v", err)
				} else {
					count++
				}
			} else {
				count++
			}
		}
	}

	log.Printf("Found %d expired files in %s (total: %s)", count, dir, formatSize(totalSize))

	return totalSize, count
}

// getDirSize 计算目录大小
func getDirSize(path string) int64 {
	var size int64
	filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}

// formatSize 格式化文件大小
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
