package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"CityWatch/pkg/logger"
	"CityWatch/pkg/util"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const filePrefix = "citywatch_backup_"

// Options 备份参数
type Options struct {
	Driver string
	DSN    string
	Dir    string
	Keep   int // 保留最近的备份数量, 0 表示不清理
	DB     *gorm.DB
}

// Execute 根据驱动执行数据库备份, 返回备份文件路径
func Execute(ctx context.Context, opt Options) (string, error) {
	if opt.Dir == "" {
		opt.Dir = "./data/backups"
	}
	if err := os.MkdirAll(opt.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	stamp := time.Now().Format("20060102_150405")

	var (
		dst string
		err error
	)
	switch opt.Driver {
	case "", "sqlite":
		dst = filepath.Join(opt.Dir, filePrefix+stamp+".db")
		err = backupSQLite(ctx, opt, dst)
	case "mysql":
		dst = filepath.Join(opt.Dir, filePrefix+stamp+".sql")
		err = backupMySQL(ctx, opt.DSN, dst)
	case "pg", "postgres":
		dst = filepath.Join(opt.Dir, filePrefix+stamp+".sql")
		err = runDump(ctx, dst, "pg_dump", "--dbname="+opt.DSN)
	default:
		return "", fmt.Errorf("unsupported DB_DRIVER: %s", opt.Driver)
	}
	if err != nil {
		os.Remove(dst)
		return "", err
	}
	logger.Info("database backup completed", zap.String("file", dst))
	if opt.Keep > 0 {
		if err := prune(opt.Dir, opt.Keep); err != nil {
			logger.Warn("prune backups failed", zap.Error(err))
		}
	}
	return dst, nil
}

// backupSQLite 优先使用 VACUUM INTO, 没有连接时直接拷贝文件
func backupSQLite(ctx context.Context, opt Options, dst string) error {
	if opt.DB != nil {
		return opt.DB.WithContext(ctx).Exec("VACUUM INTO ?", dst).Error
	}
	src := util.SQLiteFile(opt.DSN)
	if src == "" {
		return fmt.Errorf("in-memory sqlite needs an open connection to back up")
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy data: %w", err)
	}
	return out.Close()
}

func backupMySQL(ctx context.Context, dsn, dst string) error {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return fmt.Errorf("parse mysql dsn: %w", err)
	}
	args := []string{"--single-transaction", "-u", cfg.User}
	if host, port, ok := strings.Cut(cfg.Addr, ":"); ok {
		args = append(args, "-h", host, "-P", port)
	} else if cfg.Addr != "" {
		args = append(args, "-h", cfg.Addr)
	}
	args = append(args, cfg.DBName)
	cmd := exec.CommandContext(ctx, "mysqldump", args...)
	if cfg.Passwd != "" {
		cmd.Env = append(os.Environ(), "MYSQL_PWD="+cfg.Passwd)
	}
	return runCmd(cmd, dst)
}

func runDump(ctx context.Context, dst, name string, args ...string) error {
	return runCmd(exec.CommandContext(ctx, name, args...), dst)
}

func runCmd(cmd *exec.Cmd, dst string) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	var stderr strings.Builder
	cmd.Stdout = out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", filepath.Base(cmd.Path), err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// prune 删除超出保留数量的旧备份
func prune(dir string, keep int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), filePrefix) {
			names = append(names, e.Name())
		}
	}
	if len(names) <= keep {
		return nil
	}
	sort.Strings(names)
	for _, n := range names[:len(names)-keep] {
		if err := os.Remove(filepath.Join(dir, n)); err != nil {
			return err
		}
	}
	return nil
}
