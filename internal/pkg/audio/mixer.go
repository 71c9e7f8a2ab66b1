package audio

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/moonfable/tale_go_server/config"
)

// MixError 混音错误，包含用户友好消息和原始错误
type MixError struct {
	UserMessage string // 中文，给用户看
	RawError    error  // 原始错误，写日志
}

func (e *MixError) Error() string {
	return e.UserMessage
}

func (e *MixError) Unwrap() error {
	return e.RawError
}

func mixError(msg string, err error) *MixError {
	return &MixError{UserMessage: msg, RawError: err}
}

// Mixer 调用 ffmpeg 将朗读音轨与背景音乐混音。
// 输出时长以朗读音轨为准：音乐循环、截断到朗读时长，结尾淡出。
type Mixer struct {
	ffmpegPath  string
	ffprobePath string
	tempDir     string
	musicVolume float64
	fadeSeconds int
	httpClient  *http.Client
}

func NewMixer(cfg *config.AudioConfig) *Mixer {
	ffmpegPath := cfg.FFmpegPath
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	ffprobePath := cfg.FFprobePath
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	musicVolume := cfg.MusicVolume
	if musicVolume <= 0 {
		musicVolume = 0.25
	}
	fadeSeconds := cfg.FadeSeconds
	if fadeSeconds <= 0 {
		fadeSeconds = 3
	}

	return &Mixer{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		tempDir:     tempDir,
		musicVolume: musicVolume,
		fadeSeconds: fadeSeconds,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Mix 混音：落盘朗读音轨和背景音乐，探测朗读时长，调 ffmpeg 合成，读回结果。
// 每次调用使用独立的随机会话目录，成功或失败都会清理
func (m *Mixer) Mix(ctx context.Context, voiceAudio []byte, musicURL string) ([]byte, error) {
	sessionDir, err := m.createSessionDir()
	if err != nil {
		return nil, mixError("混音失败，请稍后重试", err)
	}
	defer m.cleanup(sessionDir)

	voicePath := filepath.Join(sessionDir, "voice.mp3")
	if err := os.WriteFile(voicePath, voiceAudio, 0644); err != nil {
		return nil, mixError("混音失败，请稍后重试", fmt.Errorf("failed to write voice track: %w", err))
	}

	musicPath := filepath.Join(sessionDir, "music.mp3")
	if err := m.fetchMusic(ctx, musicURL, musicPath); err != nil {
		return nil, mixError("获取背景音乐失败，请稍后重试", err)
	}

	duration, err := m.probeDuration(ctx, voicePath)
	if err != nil {
		return nil, mixError("混音失败，请稍后重试", fmt.Errorf("failed to probe voice duration: %w", err))
	}

	outPath := filepath.Join(sessionDir, "mixed.mp3")
	if err := m.runFFmpeg(ctx, voicePath, musicPath, outPath, duration); err != nil {
		return nil, mixError("混音失败，请稍后重试", err)
	}

	mixed, err := os.ReadFile(outPath)
	if err != nil {
		return nil, mixError("混音失败，请稍后重试", fmt.Errorf("failed to read mixed output: %w", err))
	}

	return mixed, nil
}

// createSessionDir 创建随机命名的会话目录，避免并发请求互相覆盖
func (m *Mixer) createSessionDir() (string, error) {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	session := hex.EncodeToString(bytes)

	dir := filepath.Join(m.tempDir, "mix_"+session)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create session dir: %w", err)
	}
	return dir, nil
}

// fetchMusic 下载背景音乐到会话目录
func (m *Mixer) fetchMusic(ctx context.Context, musicURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, musicURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build music request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch music: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("music fetch returned status %d", resp.StatusCode)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create music file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("failed to save music file: %w", err)
	}
	return nil
}

// probeDuration 用 ffprobe 探测音轨时长（秒）
func (m *Mixer) probeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, m.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w, output: %s", err, output)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", output, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("invalid voice duration: %f", duration)
	}
	return duration, nil
}

// runFFmpeg 固定滤镜图：朗读原音量；音乐衰减后无限循环、截断到朗读时长，
// 结尾 fadeSeconds 秒淡出正好结束在朗读结束点；amix 输出时长取第一路
func (m *Mixer) runFFmpeg(ctx context.Context, voicePath, musicPath, outPath string, voiceDuration float64) error {
	fadeStart := voiceDuration - float64(m.fadeSeconds)
	if fadeStart < 0 {
		fadeStart = 0
	}

	filter := fmt.Sprintf(
		"[1:a]volume=%.2f,aloop=loop=-1:size=2147483647,atrim=0:%.3f,afade=t=out:st=%.3f:d=%d[bg];"+
			"[0:a][bg]amix=inputs=2:duration=first[out]",
		m.musicVolume, voiceDuration, fadeStart, m.fadeSeconds,
	)

	cmd := exec.CommandContext(ctx, m.ffmpegPath,
		"-y",
		"-i", voicePath,
		"-i", musicPath,
		"-filter_complex", filter,
		"-map", "[out]",
		"-t", fmt.Sprintf("%.3f", voiceDuration),
		outPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w, output: %s", err, output)
	}
	return nil
}

// cleanup 清理会话目录。清理失败只记日志，不覆盖主错误
func (m *Mixer) cleanup(dir string) {
	if dir == "" {
		return
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		log.Printf("Mixer cleanup: failed to resolve %s: %v", dir, err)
		return
	}

	absTemp, err := filepath.Abs(m.tempDir)
	if err == nil && !strings.HasPrefix(absDir, absTemp) {
		log.Printf("Mixer cleanup: refusing to delete directory outside temp: %s", absDir)
		return
	}

	if err := os.RemoveAll(absDir); err != nil {
		log.Printf("Mixer cleanup: failed to remove %s: %v", absDir, err)
	}
}
