package cron

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Service struct {
	audioTempDir string
	expireHours  int
	stopChan     chan struct{}
}

func NewService(audioTempDir string, expireHours int) *Service {
	return &Service{
		audioTempDir: audioTempDir,
		expireHours:  expireHours,
		stopChan:     make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runCleanup()
	log.Println("Cron service started (temp cleanup)")
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("Cron service stopped")
}

// runCleanup 每小时执行一次全量清理
func (s *Service) runCleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.CleanupAll()
		}
	}
}

// CleanupAll 执行所有清理任务
func (s *Service) CleanupAll() {
	expireHours := s.expireHours
	if expireHours <= 0 {
		expireHours = 1
	}
	expireDuration := time.Duration(expireHours) * time.Hour

	c1 := s.cleanupMixDirs(expireDuration)
	c2 := s.cleanupLocalAudio(expireDuration)

	total := c1 + c2
	if total > 0 {
		log.Printf("Cleanup summary: mix_dirs=%d, local_audio=%d", c1, c2)
	}
}

// cleanupMixDirs 清理混音进程崩溃后遗留的会话目录（<temp>/mix_*）。
// 正常路径混音自己清理，这里只兜底
func (s *Service) cleanupMixDirs(expireDuration time.Duration) int {
	tmpDir := s.audioTempDir
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		log.Printf("Cleanup mix dirs: failed to read dir %s: %v", tmpDir, err)
		return 0
	}

	cleaned := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "mix_") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if time.Since(info.ModTime()) > expireDuration {
			dirPath := filepath.Join(tmpDir, entry.Name())
			if err := os.RemoveAll(dirPath); err != nil {
				log.Printf("Cleanup mix dirs: failed to remove %s: %v", dirPath, err)
			} else {
				cleaned++
			}
		}
	}
	return cleaned
}

// cleanupLocalAudio 清理未配置 OSS 时落在本地的音频文件（<temp>/audio/）
func (s *Service) cleanupLocalAudio(expireDuration time.Duration) int {
	tmpDir := s.audioTempDir
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	audioDir := filepath.Join(tmpDir, "audio")

	entries, err := os.ReadDir(audioDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Cleanup local audio: failed to read dir %s: %v", audioDir, err)
		}
		return 0
	}

	cleaned := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if time.Since(info.ModTime()) > expireDuration {
			filePath := filepath.Join(audioDir, entry.Name())
			if err := os.Remove(filePath); err != nil {
				log.Printf("Cleanup local audio: failed to remove %s: %v", filePath, err)
			} else {
				cleaned++
			}
		}
	}
	return cleaned
}
