package providers

import (
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// LoadDotEnv 加载进程工作目录下的 .env 文件（仅一次，且不覆盖已存在的环境变量）。
// 找不到 .env 不算错误：正式部署通常直接注入环境变量。
func LoadDotEnv() {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})
}

// ResolveAPIKey resolves an API key: an explicit value wins, otherwise the
// named environment variable is consulted after a one-time .env load.
func ResolveAPIKey(explicit, envVar string) string {
	if key := strings.TrimSpace(explicit); key != "" {
		return key
	}
	LoadDotEnv()
	return strings.TrimSpace(os.Getenv(envVar))
}
