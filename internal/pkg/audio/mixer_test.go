package audio

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moonfable/tale_go_server/config"
)

// fakeMusicServer 返回固定字节的假音乐源
func fakeMusicServer(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake-music-bytes"))
	}))
}

func newTestMixer(t *testing.T, tempDir string) *Mixer {
	t.Helper()

	// /bin/false 立即失败，测试只关心清理和错误路径
	return NewMixer(&config.AudioConfig{
		FFmpegPath:  "/bin/false",
		FFprobePath: "/bin/false",
		TempDir:     tempDir,
	})
}

// assertNoMixDirs 断言临时目录里没有残留的 mix_ 会话目录
func assertNoMixDirs(t *testing.T, tempDir string) {
	t.Helper()

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "mix_") {
			t.Errorf("leftover session dir: %s", filepath.Join(tempDir, entry.Name()))
		}
	}
}

func TestMixer_CleanupOnProbeFailure(t *testing.T) {
	srv := fakeMusicServer(t)
	defer srv.Close()

	tempDir := t.TempDir()
	mixer := newTestMixer(t, tempDir)

	_, err := mixer.Mix(context.Background(), []byte("voice"), srv.URL+"/lullaby.mp3")
	require.Error(t, err)

	var mixErr *MixError
	require.True(t, errors.As(err, &mixErr))
	assert.Equal(t, "混音失败，请稍后重试", mixErr.UserMessage)

	assertNoMixDirs(t, tempDir)
}

func TestMixer_CleanupOnMusicFetchFailure(t *testing.T) {
	srv := fakeMusicServer(t)
	srv.Close() // 音乐源挂掉

	tempDir := t.TempDir()
	mixer := newTestMixer(t, tempDir)

	_, err := mixer.Mix(context.Background(), []byte("voice"), srv.URL+"/lullaby.mp3")
	require.Error(t, err)

	var mixErr *MixError
	require.True(t, errors.As(err, &mixErr))
	assert.Equal(t, "获取背景音乐失败，请稍后重试", mixErr.UserMessage)

	assertNoMixDirs(t, tempDir)
}

func TestMixer_CleanupOnMusicNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	tempDir := t.TempDir()
	mixer := newTestMixer(t, tempDir)

	_, err := mixer.Mix(context.Background(), []byte("voice"), srv.URL+"/missing.mp3")
	require.Error(t, err)
	assertNoMixDirs(t, tempDir)
}

func TestMixError_Unwrap(t *testing.T) {
	raw := errors.New("ffmpeg exploded")
	err := mixError("混音失败，请稍后重试", raw)

	assert.Equal(t, "混音失败，请稍后重试", err.Error())
	assert.ErrorIs(t, err, raw)
}

func TestMixer_Defaults(t *testing.T) {
	mixer := NewMixer(&config.AudioConfig{})

	assert.Equal(t, "ffmpeg", mixer.ffmpegPath)
	assert.Equal(t, "ffprobe", mixer.ffprobePath)
	assert.Equal(t, os.TempDir(), mixer.tempDir)
	assert.InDelta(t, 0.25, mixer.musicVolume, 0.001)
	assert.Equal(t, 3, mixer.fadeSeconds)
}
