package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnvFile 把 .env 文件中的变量（如 OVERLAY_*）加载进进程环境，文件不存在时忽略。
// 已经存在的环境变量不会被覆盖。
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("加载 env 文件失败: %w", err)
	}
	return nil
}
