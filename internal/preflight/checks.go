package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sys/unix"

	"mixtape/internal/config"
)

const redisTimeout = 3 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckReadableDirectory verifies that an input directory exists and can be listed.
func CheckReadableDirectory(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "read ok")
}

func checkDirectory(name, path string, mode uint32, ok string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, ok)}
}

// CheckRedis pings the notification broker once.
func CheckRedis(ctx context.Context, cfg config.Notifications) Result {
	const name = "Redis"

	checkCtx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: redisTimeout,
		MaxRetries:  -1,
	})
	defer client.Close()

	if err := client.Ping(checkCtx).Err(); err != nil {
		return Result{Name: name, Detail: summarizeRedisError(cfg.RedisAddr, err)}
	}
	return Result{Name: name, Passed: true, Detail: cfg.RedisAddr + " (reachable)"}
}

func summarizeRedisError(addr string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return addr + " (error: ping timed out)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return addr + " (error: unreachable)"
	}
	return fmt.Sprintf("%s (error: %v)", addr, err)
}
